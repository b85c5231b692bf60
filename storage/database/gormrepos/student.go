package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/student"
)

type studentRepository struct {
	repo
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *gorm.DB) *studentRepository {
	return &studentRepository{repo{db: db}}
}

func (studentRepository) toRow(s student.Student) *studentRow {
	return &studentRow{
		UserID:          s.UserID,
		UniversityID:    s.UniversityID,
		CampusCity:      s.CampusCity,
		StudentIDNumber: s.StudentIDNumber,
		LastSpinAt:      nullTime(s.LastSpinAt),
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}
}

func (studentRepository) fromRow(row *studentRow) student.Student {
	return student.Student{
		UserID:          row.UserID,
		UniversityID:    row.UniversityID,
		CampusCity:      row.CampusCity,
		StudentIDNumber: row.StudentIDNumber,
		LastSpinAt:      fromNullTime(row.LastSpinAt),
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

func (r studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	row := r.toRow(s)
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return r.fromRow(row), nil
}

func (r studentRepository) get(q *gorm.DB, userID string) (student.Student, error) {
	var row studentRow
	if err := q.Where("user_id = ?", userID).First(&row).Error; err != nil {
		return student.Student{}, trapNotFound(err, student.ErrNotFound, "finding student")
	}
	return r.fromRow(&row), nil
}

func (r studentRepository) GetStudent(ctx context.Context, userID string, exec ...core.DBExecutor) (student.Student, error) {
	return r.get(r.getExec(ctx, exec), userID)
}

func (r studentRepository) LockStudent(ctx context.Context, userID string, exec ...core.DBExecutor) (student.Student, error) {
	return r.get(r.getExec(ctx, exec).Clauses(clause.Locking{Strength: "UPDATE"}), userID)
}

func (r studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	row := r.toRow(s)
	if err := r.getExec(ctx, exec).Save(row).Error; err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return r.fromRow(row), nil
}

func (r studentRepository) SaveDeal(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) error {
	row := &savedDealRow{UserID: userID, DealID: dealID, CreatedAt: core.NowFunc()}
	if err := r.getExec(ctx, exec).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return errors.Wrap(err, "saving deal")
	}
	return nil
}

func (r studentRepository) UnsaveDeal(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) error {
	err := r.getExec(ctx, exec).Where("user_id = ? AND deal_id = ?", userID, dealID).Delete(&savedDealRow{}).Error
	return errors.Wrap(err, "unsaving deal")
}

func (r studentRepository) SavedDealIDs(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	ids := make([]string, 0)
	err := r.getExec(ctx, exec).Model(&savedDealRow{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("deal_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing saved deals")
	}
	return ids, nil
}

func (r studentRepository) SavedCategories(ctx context.Context, userID string, exec ...core.DBExecutor) ([]string, error) {
	cats := make([]string, 0)
	err := r.getExec(ctx, exec).Model(&dealRow{}).
		Distinct("category").
		Where("id IN (?)", r.db.Model(&savedDealRow{}).Select("deal_id").Where("user_id = ?", userID)).
		Pluck("category", &cats).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing saved categories")
	}
	return cats, nil
}

func (r studentRepository) ListRecipients(ctx context.Context, universityIDs []string, exec ...core.DBExecutor) ([]student.Recipient, error) {
	var rows []struct {
		UserID    string
		PushToken string
	}
	err := r.getExec(ctx, exec).Table("students").
		Select("users.id AS user_id, users.push_token AS push_token").
		Joins("JOIN users ON users.id = students.user_id").
		Where("students.university_id IN ? AND users.is_active = ?", universityIDs, true).
		Order("users.id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "listing recipients")
	}
	recipients := make([]student.Recipient, len(rows))
	for i, row := range rows {
		recipients[i] = student.Recipient{UserID: row.UserID, PushToken: row.PushToken}
	}
	return recipients, nil
}
