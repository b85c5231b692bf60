package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/university"
)

type universityRepository struct {
	repo
}

var _ university.Repository = (*universityRepository)(nil) // interface compliance check

func NewUniversityRepository(db *gorm.DB) *universityRepository {
	return &universityRepository{repo{db: db}}
}

func (universityRepository) toRow(uni university.University) *universityRow {
	return &universityRow{
		ID:        uni.ID,
		Name:      uni.Name,
		City:      uni.City,
		Lat:       uni.Lat,
		Lng:       uni.Lng,
		CreatedAt: uni.CreatedAt.UTC(),
		UpdatedAt: uni.UpdatedAt.UTC(),
	}
}

func (universityRepository) fromRow(row *universityRow) university.University {
	return university.University{
		ID:        row.ID,
		Name:      row.Name,
		City:      row.City,
		Lat:       row.Lat,
		Lng:       row.Lng,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (r universityRepository) CreateUniversity(ctx context.Context, uni university.University, exec ...core.DBExecutor) (university.University, error) {
	uni.ID = uuid.New().String()
	row := r.toRow(uni)
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return university.University{}, university.ErrNameExists
		}
		return university.University{}, errors.Wrap(err, "inserting university")
	}
	return r.fromRow(row), nil
}

func (r universityRepository) GetUniversity(ctx context.Context, id string, exec ...core.DBExecutor) (university.University, error) {
	var row universityRow
	if err := r.getExec(ctx, exec).Where("id = ?", id).First(&row).Error; err != nil {
		return university.University{}, trapNotFound(err, university.ErrNotFound, "finding university")
	}
	return r.fromRow(&row), nil
}

func (r universityRepository) GetUniversityByName(ctx context.Context, name string, exec ...core.DBExecutor) (university.University, error) {
	var row universityRow
	if err := r.getExec(ctx, exec).Where("LOWER(name) = LOWER(?)", name).First(&row).Error; err != nil {
		return university.University{}, trapNotFound(err, university.ErrNotFound, "finding university by name")
	}
	return r.fromRow(&row), nil
}

func (r universityRepository) QueryUniversities(ctx context.Context, filter *university.QueryFilter, exec ...core.DBExecutor) ([]university.University, error) {
	q := r.getExec(ctx, exec).Model(&universityRow{})
	if filter != nil {
		if filter.Search != "" {
			val := likeLower(filter.Search)
			q = q.Where("(LOWER(name) LIKE ? OR LOWER(city) LIKE ?)", val, val)
		}
		if filter.City != "" {
			q = q.Where("LOWER(city) = LOWER(?)", filter.City)
		}
	}

	var rows []*universityRow
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying universities")
	}
	unis := make([]university.University, 0, len(rows))
	for _, row := range rows {
		unis = append(unis, r.fromRow(row))
	}
	return unis, nil
}

func (r universityRepository) UpdateUniversity(ctx context.Context, uni university.University, exec ...core.DBExecutor) (university.University, error) {
	row := r.toRow(uni)
	if err := r.getExec(ctx, exec).Save(row).Error; err != nil {
		if isUniqueViolation(err) {
			return university.University{}, university.ErrNameExists
		}
		return university.University{}, errors.Wrap(err, "updating university")
	}
	return r.fromRow(row), nil
}

func (r universityRepository) DeleteUniversity(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res := r.getExec(ctx, exec).Where("id = ?", id).Delete(&universityRow{})
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return core.NewConflictError("university still has students")
		}
		return errors.Wrap(res.Error, "deleting university")
	}
	if res.RowsAffected == 0 {
		return university.ErrNotFound
	}
	return nil
}
