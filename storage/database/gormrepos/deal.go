package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/deal"
)

var dealOrderings = map[string]bool{"created_at": true, "expires_at": true, "title": true, "priority": true}

type dealRepository struct {
	repo
}

var _ deal.Repository = (*dealRepository)(nil) // interface compliance check

func NewDealRepository(db *gorm.DB) *dealRepository {
	return &dealRepository{repo{db: db}}
}

func (dealRepository) toRow(d deal.Deal) *dealRow {
	return &dealRow{
		ID:              d.ID,
		BusinessID:      d.BusinessID,
		Title:           d.Title,
		Description:     d.Description,
		Category:        d.Category,
		DiscountPercent: d.DiscountPercent,
		ExpiresAt:       nullTime(d.ExpiresAt),
		Priority:        null.NewInt(d.Priority, d.Priority != 0),
		CooldownHours:   d.CooldownHours,
		IsActive:        d.IsActive,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func (dealRepository) fromRow(row *dealRow) deal.Deal {
	d := deal.Deal{
		ID:              row.ID,
		BusinessID:      row.BusinessID,
		Title:           row.Title,
		Description:     row.Description,
		Category:        row.Category,
		DiscountPercent: row.DiscountPercent,
		ExpiresAt:       fromNullTime(row.ExpiresAt),
		Priority:        row.Priority.Int,
		CooldownHours:   row.CooldownHours,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.Business != nil {
		biz := businessFromRow(row.Business)
		d.Business = &biz
	}
	return d
}

func preloadBusiness(q *gorm.DB) *gorm.DB {
	return q.Preload("Business").Preload("Business.Locations", func(db *gorm.DB) *gorm.DB {
		return db.Order("locations.created_at, locations.id")
	})
}

func (r dealRepository) CreateDeal(ctx context.Context, d deal.Deal, exec ...core.DBExecutor) (deal.Deal, error) {
	d.ID = uuid.New().String()
	row := r.toRow(d)
	if err := r.getExec(ctx, exec).Omit(clause.Associations).Create(row).Error; err != nil {
		return deal.Deal{}, errors.Wrap(err, "inserting deal")
	}
	return r.fromRow(row), nil
}

func (r dealRepository) GetDeal(ctx context.Context, id string, exec ...core.DBExecutor) (deal.Deal, error) {
	var row dealRow
	if err := preloadBusiness(r.getExec(ctx, exec)).Where("id = ?", id).First(&row).Error; err != nil {
		return deal.Deal{}, trapNotFound(err, deal.ErrNotFound, "finding deal")
	}
	return r.fromRow(&row), nil
}

func (r dealRepository) QueryDeals(ctx context.Context, filter deal.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]deal.Deal, error) {
	q := r.getExec(ctx, exec).Model(&dealRow{})
	if filter.Search != "" {
		val := likeLower(filter.Search)
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", val, val)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.BusinessID != "" {
		q = q.Where("business_id = ?", filter.BusinessID)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if !filter.AvailableAt.IsZero() {
		q = q.Where("is_active = ?", true).
			Where("(expires_at IS NULL OR expires_at > ?)", filter.AvailableAt.UTC()).
			Where("business_id IN (?)", r.db.Model(&businessRow{}).Select("id").Where("status = ?", string(business.StatusApproved)))
	}
	q = applyOrdering(q, ordering, dealOrderings)

	var rows []*dealRow
	if err := preloadBusiness(q).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying deals")
	}
	deals := make([]deal.Deal, 0, len(rows))
	for _, row := range rows {
		deals = append(deals, r.fromRow(row))
	}
	return deals, nil
}

func (r dealRepository) UpdateDeal(ctx context.Context, d deal.Deal, exec ...core.DBExecutor) (deal.Deal, error) {
	row := r.toRow(d)
	if err := r.getExec(ctx, exec).Omit(clause.Associations).Save(row).Error; err != nil {
		return deal.Deal{}, errors.Wrap(err, "updating deal")
	}
	updated := r.fromRow(row)
	updated.Business = d.Business
	return updated, nil
}

func (r dealRepository) DeleteDeal(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res := r.getExec(ctx, exec).Where("id = ?", id).Delete(&dealRow{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting deal")
	}
	if res.RowsAffected == 0 {
		return deal.ErrNotFound
	}
	return nil
}
