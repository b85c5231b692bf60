package gormrepos

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/notification"
)

const notificationBatchSize = 500

type notificationRepository struct {
	repo
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *gorm.DB) *notificationRepository {
	return &notificationRepository{repo{db: db}}
}

func pushRequestToRow(pr notification.PushRequest) *pushRequestRow {
	return &pushRequestRow{
		ID:             pr.ID,
		BusinessID:     pr.BusinessID,
		DealID:         nullString(pr.DealID),
		UniversityID:   pr.UniversityID,
		Title:          pr.Title,
		Body:           pr.Body,
		Status:         string(pr.Status),
		ReviewNote:     pr.ReviewNote,
		ReviewedBy:     nullString(pr.ReviewedBy),
		RecipientCount: pr.RecipientCount,
		CreatedAt:      pr.CreatedAt.UTC(),
		ReviewedAt:     nullTime(pr.ReviewedAt),
	}
}

func pushRequestFromRow(row *pushRequestRow) notification.PushRequest {
	return notification.PushRequest{
		ID:             row.ID,
		BusinessID:     row.BusinessID,
		DealID:         row.DealID.String,
		UniversityID:   row.UniversityID,
		Title:          row.Title,
		Body:           row.Body,
		Status:         notification.Status(row.Status),
		ReviewNote:     row.ReviewNote,
		ReviewedBy:     row.ReviewedBy.String,
		RecipientCount: row.RecipientCount,
		CreatedAt:      row.CreatedAt.UTC(),
		ReviewedAt:     fromNullTime(row.ReviewedAt),
	}
}

func notificationToRow(n notification.Notification) (*notificationRow, error) {
	var data []byte
	if len(n.Data) > 0 {
		var err error
		if data, err = json.Marshal(n.Data); err != nil {
			return nil, errors.Wrap(err, "encoding notification data")
		}
	}
	return &notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		Data:      string(data),
		ReadAt:    nullTime(n.ReadAt),
		CreatedAt: n.CreatedAt.UTC(),
	}, nil
}

func notificationFromRow(row *notificationRow) (notification.Notification, error) {
	n := notification.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Body:      row.Body,
		Data:      map[string]string{},
		ReadAt:    fromNullTime(row.ReadAt),
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &n.Data); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding notification data")
		}
	}
	return n, nil
}

func (r notificationRepository) CreatePushRequest(ctx context.Context, pr notification.PushRequest, exec ...core.DBExecutor) (notification.PushRequest, error) {
	pr.ID = uuid.New().String()
	row := pushRequestToRow(pr)
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		return notification.PushRequest{}, errors.Wrap(err, "inserting push request")
	}
	return pushRequestFromRow(row), nil
}

func (r notificationRepository) getPushRequest(q *gorm.DB, id string) (notification.PushRequest, error) {
	var row pushRequestRow
	if err := q.Where("id = ?", id).First(&row).Error; err != nil {
		return notification.PushRequest{}, trapNotFound(err, notification.ErrNotFound, "finding push request")
	}
	return pushRequestFromRow(&row), nil
}

func (r notificationRepository) GetPushRequest(ctx context.Context, id string, exec ...core.DBExecutor) (notification.PushRequest, error) {
	return r.getPushRequest(r.getExec(ctx, exec), id)
}

func (r notificationRepository) LockPushRequest(ctx context.Context, id string, exec ...core.DBExecutor) (notification.PushRequest, error) {
	return r.getPushRequest(r.getExec(ctx, exec).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r notificationRepository) QueryPushRequests(ctx context.Context, filter notification.QueryFilter, exec ...core.DBExecutor) ([]notification.PushRequest, error) {
	q := r.getExec(ctx, exec).Model(&pushRequestRow{})
	if filter.BusinessID != "" {
		q = q.Where("business_id = ?", filter.BusinessID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var rows []*pushRequestRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying push requests")
	}
	prs := make([]notification.PushRequest, 0, len(rows))
	for _, row := range rows {
		prs = append(prs, pushRequestFromRow(row))
	}
	return prs, nil
}

func (r notificationRepository) UpdatePushRequest(ctx context.Context, pr notification.PushRequest, exec ...core.DBExecutor) (notification.PushRequest, error) {
	row := pushRequestToRow(pr)
	if err := r.getExec(ctx, exec).Save(row).Error; err != nil {
		return notification.PushRequest{}, errors.Wrap(err, "updating push request")
	}
	return pushRequestFromRow(row), nil
}

func (r notificationRepository) CreateNotifications(ctx context.Context, ns []notification.Notification, exec ...core.DBExecutor) error {
	if len(ns) == 0 {
		return nil
	}
	rows := make([]*notificationRow, 0, len(ns))
	for _, n := range ns {
		n.ID = uuid.New().String()
		row, err := notificationToRow(n)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := r.getExec(ctx, exec).CreateInBatches(rows, notificationBatchSize).Error; err != nil {
		return errors.Wrap(err, "inserting notifications")
	}
	return nil
}

func (r notificationRepository) GetNotification(ctx context.Context, id string, exec ...core.DBExecutor) (notification.Notification, error) {
	var row notificationRow
	if err := r.getExec(ctx, exec).Where("id = ?", id).First(&row).Error; err != nil {
		return notification.Notification{}, trapNotFound(err, notification.ErrNotificationNotFound, "finding notification")
	}
	return notificationFromRow(&row)
}

func (r notificationRepository) QueryNotifications(ctx context.Context, filter notification.NotificationFilter, exec ...core.DBExecutor) ([]notification.Notification, error) {
	q := r.getExec(ctx, exec).Model(&notificationRow{}).Where("user_id = ?", filter.UserID)
	if filter.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []*notificationRow
	if err := q.Order("created_at DESC, id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	ns := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := notificationFromRow(row)
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, nil
}

func (r notificationRepository) MarkRead(ctx context.Context, userID string, ids []string, readAt time.Time, exec ...core.DBExecutor) error {
	q := r.getExec(ctx, exec).Model(&notificationRow{}).Where("user_id = ? AND read_at IS NULL", userID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	if err := q.UpdateColumn("read_at", readAt.UTC()).Error; err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return nil
}
