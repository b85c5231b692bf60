package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
)

var businessOrderings = map[string]bool{"name": true, "city": true, "created_at": true}

type businessRepository struct {
	repo
}

var _ business.Repository = (*businessRepository)(nil) // interface compliance check

func NewBusinessRepository(db *gorm.DB) *businessRepository {
	return &businessRepository{repo{db: db}}
}

func locationToRow(loc business.Location) locationRow {
	return locationRow{
		ID:         loc.ID,
		BusinessID: loc.BusinessID,
		Label:      loc.Label,
		Address:    loc.Address,
		City:       loc.City,
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		CreatedAt:  loc.CreatedAt.UTC(),
	}
}

func locationFromRow(row locationRow) business.Location {
	return business.Location{
		ID:         row.ID,
		BusinessID: row.BusinessID,
		Label:      row.Label,
		Address:    row.Address,
		City:       row.City,
		Lat:        row.Lat,
		Lng:        row.Lng,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func businessToRow(b business.Business) *businessRow {
	return &businessRow{
		ID:                   b.ID,
		OwnerID:              b.OwnerID,
		Name:                 b.Name,
		Description:          b.Description,
		Category:             b.Category,
		City:                 b.City,
		Status:               string(b.Status),
		SubscriptionStatus:   string(b.SubscriptionStatus),
		StripeCustomerID:     b.StripeCustomerID,
		StripeSubscriptionID: b.StripeSubscriptionID,
		CreatedAt:            b.CreatedAt.UTC(),
		UpdatedAt:            b.UpdatedAt.UTC(),
	}
}

func businessFromRow(row *businessRow) business.Business {
	b := business.Business{
		ID:                   row.ID,
		OwnerID:              row.OwnerID,
		Name:                 row.Name,
		Description:          row.Description,
		Category:             row.Category,
		City:                 row.City,
		Status:               business.Status(row.Status),
		SubscriptionStatus:   business.SubscriptionStatus(row.SubscriptionStatus),
		StripeCustomerID:     row.StripeCustomerID,
		StripeSubscriptionID: row.StripeSubscriptionID,
		Locations:            make([]business.Location, 0, len(row.Locations)),
		CreatedAt:            row.CreatedAt.UTC(),
		UpdatedAt:            row.UpdatedAt.UTC(),
	}
	for _, loc := range row.Locations {
		b.Locations = append(b.Locations, locationFromRow(loc))
	}
	return b
}

func preloadLocations(q *gorm.DB) *gorm.DB {
	return q.Preload("Locations", func(db *gorm.DB) *gorm.DB { return db.Order("locations.created_at, locations.id") })
}

func (r businessRepository) CreateBusiness(ctx context.Context, b business.Business, exec ...core.DBExecutor) (business.Business, error) {
	b.ID = uuid.New().String()
	row := businessToRow(b)
	for _, loc := range b.Locations {
		loc.ID = uuid.New().String()
		loc.BusinessID = b.ID
		row.Locations = append(row.Locations, locationToRow(loc))
	}
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		return business.Business{}, errors.Wrap(err, "inserting business")
	}
	return businessFromRow(row), nil
}

func (r businessRepository) get(q *gorm.DB, msg string) (business.Business, error) {
	var row businessRow
	if err := preloadLocations(q).First(&row).Error; err != nil {
		return business.Business{}, trapNotFound(err, business.ErrNotFound, msg)
	}
	return businessFromRow(&row), nil
}

func (r businessRepository) GetBusiness(ctx context.Context, id string, exec ...core.DBExecutor) (business.Business, error) {
	return r.get(r.getExec(ctx, exec).Where("id = ?", id), "finding business")
}

func (r businessRepository) GetBusinessByStripeCustomer(ctx context.Context, customerID string, exec ...core.DBExecutor) (business.Business, error) {
	if customerID == "" {
		return business.Business{}, business.ErrNotFound
	}
	return r.get(r.getExec(ctx, exec).Where("stripe_customer_id = ?", customerID), "finding business by customer")
}

func (r businessRepository) QueryBusinesses(ctx context.Context, filter business.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]business.Business, error) {
	q := r.getExec(ctx, exec).Model(&businessRow{})
	if filter.Search != "" {
		val := likeLower(filter.Search)
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", val, val)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.City != "" {
		q = q.Where("LOWER(city) = LOWER(?)", filter.City)
	}
	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	q = applyOrdering(q, ordering, businessOrderings)

	var rows []*businessRow
	if err := preloadLocations(q).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying businesses")
	}
	businesses := make([]business.Business, 0, len(rows))
	for _, row := range rows {
		businesses = append(businesses, businessFromRow(row))
	}
	return businesses, nil
}

func (r businessRepository) UpdateBusiness(ctx context.Context, b business.Business, exec ...core.DBExecutor) (business.Business, error) {
	row := businessToRow(b)
	if err := r.getExec(ctx, exec).Omit(clause.Associations).Save(row).Error; err != nil {
		return business.Business{}, errors.Wrap(err, "updating business")
	}
	updated := businessFromRow(row)
	updated.Locations = b.Locations
	return updated, nil
}

func (r businessRepository) CreateLocation(ctx context.Context, loc business.Location, exec ...core.DBExecutor) (business.Location, error) {
	loc.ID = uuid.New().String()
	row := locationToRow(loc)
	if err := r.getExec(ctx, exec).Create(&row).Error; err != nil {
		return business.Location{}, errors.Wrap(err, "inserting location")
	}
	return locationFromRow(row), nil
}

func (r businessRepository) DeleteLocation(ctx context.Context, businessID, locationID string, exec ...core.DBExecutor) error {
	res := r.getExec(ctx, exec).Where("id = ? AND business_id = ?", locationID, businessID).Delete(&locationRow{})
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return core.NewConflictError("location has redemptions")
		}
		return errors.Wrap(res.Error, "deleting location")
	}
	if res.RowsAffected == 0 {
		return business.ErrLocationNotFound
	}
	return nil
}
