package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/ticket"
)

type ticketRepository struct {
	repo
}

var _ ticket.Repository = (*ticketRepository)(nil) // interface compliance check

func NewTicketRepository(db *gorm.DB) *ticketRepository {
	return &ticketRepository{repo{db: db}}
}

func (ticketRepository) toRow(t ticket.Ticket) *ticketRow {
	return &ticketRow{
		ID:        t.ID,
		Code:      t.Code,
		DealID:    t.DealID,
		UserID:    t.UserID,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.UTC(),
		UsedAt:    nullTime(t.UsedAt),
	}
}

func (ticketRepository) fromRow(row *ticketRow) ticket.Ticket {
	return ticket.Ticket{
		ID:        row.ID,
		Code:      row.Code,
		DealID:    row.DealID,
		UserID:    row.UserID,
		Status:    ticket.Status(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		UsedAt:    fromNullTime(row.UsedAt),
	}
}

func (r ticketRepository) CreateTicket(ctx context.Context, t ticket.Ticket, exec ...core.DBExecutor) (ticket.Ticket, error) {
	t.ID = uuid.New().String()
	row := r.toRow(t)
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			// either the code or the one active ticket per user and deal
			if _, getErr := r.GetActiveTicket(ctx, t.UserID, t.DealID, exec...); getErr == nil {
				return ticket.Ticket{}, ticket.ErrAlreadyClaimed
			}
			return ticket.Ticket{}, core.NewConflictError("ticket code already taken, please retry")
		}
		return ticket.Ticket{}, errors.Wrap(err, "inserting ticket")
	}
	return r.fromRow(row), nil
}

func (r ticketRepository) getByCode(q *gorm.DB, code string) (ticket.Ticket, error) {
	var row ticketRow
	if err := q.Where("code = ?", code).First(&row).Error; err != nil {
		return ticket.Ticket{}, trapNotFound(err, ticket.ErrNotFound, "finding ticket")
	}
	return r.fromRow(&row), nil
}

func (r ticketRepository) GetTicketByCode(ctx context.Context, code string, exec ...core.DBExecutor) (ticket.Ticket, error) {
	return r.getByCode(r.getExec(ctx, exec), code)
}

func (r ticketRepository) LockTicketByCode(ctx context.Context, code string, exec ...core.DBExecutor) (ticket.Ticket, error) {
	return r.getByCode(r.getExec(ctx, exec).Clauses(clause.Locking{Strength: "UPDATE"}), code)
}

func (r ticketRepository) TicketCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&ticketRow{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "checking ticket code")
	}
	return count > 0, nil
}

func (r ticketRepository) GetActiveTicket(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) (ticket.Ticket, error) {
	var row ticketRow
	err := r.getExec(ctx, exec).
		Where("user_id = ? AND deal_id = ? AND status = ?", userID, dealID, string(ticket.StatusActive)).
		First(&row).Error
	if err != nil {
		return ticket.Ticket{}, trapNotFound(err, ticket.ErrNotFound, "finding active ticket")
	}
	return r.fromRow(&row), nil
}

func (r ticketRepository) QueryTickets(ctx context.Context, filter ticket.QueryFilter, exec ...core.DBExecutor) ([]ticket.Ticket, error) {
	q := r.getExec(ctx, exec).Model(&ticketRow{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.DealID != "" {
		q = q.Where("deal_id = ?", filter.DealID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var rows []*ticketRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying tickets")
	}
	tickets := make([]ticket.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, r.fromRow(row))
	}
	return tickets, nil
}

func (r ticketRepository) UpdateTicket(ctx context.Context, t ticket.Ticket, exec ...core.DBExecutor) (ticket.Ticket, error) {
	row := r.toRow(t)
	if err := r.getExec(ctx, exec).Save(row).Error; err != nil {
		return ticket.Ticket{}, errors.Wrap(err, "updating ticket")
	}
	updated := r.fromRow(row)
	updated.Deal = t.Deal
	return updated, nil
}

func (r ticketRepository) CreateRedemption(ctx context.Context, red ticket.Redemption, exec ...core.DBExecutor) (ticket.Redemption, error) {
	red.ID = uuid.New().String()
	row := &redemptionRow{
		ID:         red.ID,
		TicketID:   red.TicketID,
		DealID:     red.DealID,
		BusinessID: red.BusinessID,
		LocationID: red.LocationID,
		UserID:     red.UserID,
		Lat:        red.Lat,
		Lng:        red.Lng,
		DistanceM:  red.DistanceM,
		RedeemedAt: red.RedeemedAt.UTC(),
	}
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return ticket.Redemption{}, ticket.ErrTicketUsed
		}
		return ticket.Redemption{}, errors.Wrap(err, "inserting redemption")
	}
	return redemptionFromRow(row), nil
}

func redemptionFromRow(row *redemptionRow) ticket.Redemption {
	return ticket.Redemption{
		ID:         row.ID,
		TicketID:   row.TicketID,
		DealID:     row.DealID,
		BusinessID: row.BusinessID,
		LocationID: row.LocationID,
		UserID:     row.UserID,
		Lat:        row.Lat,
		Lng:        row.Lng,
		DistanceM:  row.DistanceM,
		RedeemedAt: row.RedeemedAt.UTC(),
	}
}

func (r ticketRepository) GetLastRedemption(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) (ticket.Redemption, error) {
	var row redemptionRow
	err := r.getExec(ctx, exec).
		Where("user_id = ? AND deal_id = ?", userID, dealID).
		Order("redeemed_at DESC").
		First(&row).Error
	if err != nil {
		return ticket.Redemption{}, trapNotFound(err, ticket.ErrRedemptionNotFound, "finding last redemption")
	}
	return redemptionFromRow(&row), nil
}

func (r ticketRepository) QueryRedemptions(ctx context.Context, query ticket.RedemptionQuery, exec ...core.DBExecutor) ([]ticket.RedemptionRow, error) {
	q := r.getExec(ctx, exec).Table("redemptions").
		Select("redemptions.*, tickets.code AS code, deals.title AS deal_title, " +
			"locations.label AS location_label, users.name AS student_name").
		Joins("JOIN tickets ON tickets.id = redemptions.ticket_id").
		Joins("JOIN deals ON deals.id = redemptions.deal_id").
		Joins("JOIN locations ON locations.id = redemptions.location_id").
		Joins("JOIN users ON users.id = redemptions.user_id").
		Where("redemptions.business_id = ?", query.BusinessID)
	if query.DealID != "" {
		q = q.Where("redemptions.deal_id = ?", query.DealID)
	}
	if !query.From.IsZero() {
		q = q.Where("redemptions.redeemed_at >= ?", query.From.UTC())
	}
	if !query.To.IsZero() {
		q = q.Where("redemptions.redeemed_at <= ?", query.To.UTC())
	}

	var rows []struct {
		Redemption    redemptionRow `gorm:"embedded"`
		Code          string
		DealTitle     string
		LocationLabel string
		StudentName   string
	}
	if err := q.Order("redemptions.redeemed_at DESC").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying redemptions")
	}
	reds := make([]ticket.RedemptionRow, 0, len(rows))
	for i := range rows {
		reds = append(reds, ticket.RedemptionRow{
			Redemption:    redemptionFromRow(&rows[i].Redemption),
			Code:          rows[i].Code,
			DealTitle:     rows[i].DealTitle,
			LocationLabel: rows[i].LocationLabel,
			StudentName:   rows[i].StudentName,
		})
	}
	return reds, nil
}
