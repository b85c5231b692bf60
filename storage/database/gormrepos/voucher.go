package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/voucher"
)

type voucherRepository struct {
	repo
}

var _ voucher.Repository = (*voucherRepository)(nil) // interface compliance check

func NewVoucherRepository(db *gorm.DB) *voucherRepository {
	return &voucherRepository{repo{db: db}}
}

func prizeToRow(p voucher.Prize) *prizeRow {
	return &prizeRow{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		BusinessID:  nullString(p.BusinessID),
		Weight:      p.Weight,
		Quantity:    p.Quantity,
		IsBlank:     p.IsBlank,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func prizeFromRow(row *prizeRow) voucher.Prize {
	return voucher.Prize{
		ID:          row.ID,
		BusinessID:  row.BusinessID.String,
		Name:        row.Name,
		Description: row.Description,
		Weight:      row.Weight,
		Quantity:    row.Quantity,
		IsBlank:     row.IsBlank,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func voucherToRow(v voucher.Voucher) *voucherRow {
	return &voucherRow{
		ID:        v.ID,
		Code:      v.Code,
		PrizeID:   v.PrizeID,
		UserID:    v.UserID,
		Status:    string(v.Status),
		ExpiresAt: v.ExpiresAt.UTC(),
		CreatedAt: v.CreatedAt.UTC(),
		UsedAt:    nullTime(v.UsedAt),
	}
}

func voucherFromRow(row *voucherRow) voucher.Voucher {
	v := voucher.Voucher{
		ID:        row.ID,
		Code:      row.Code,
		PrizeID:   row.PrizeID,
		UserID:    row.UserID,
		Status:    voucher.Status(row.Status),
		ExpiresAt: row.ExpiresAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
		UsedAt:    fromNullTime(row.UsedAt),
	}
	if row.Prize != nil {
		p := prizeFromRow(row.Prize)
		v.Prize = &p
	}
	return v
}

func (r voucherRepository) CreatePrize(ctx context.Context, p voucher.Prize, exec ...core.DBExecutor) (voucher.Prize, error) {
	p.ID = uuid.New().String()
	row := prizeToRow(p)
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		return voucher.Prize{}, errors.Wrap(err, "inserting prize")
	}
	return prizeFromRow(row), nil
}

func (r voucherRepository) GetPrize(ctx context.Context, id string, exec ...core.DBExecutor) (voucher.Prize, error) {
	var row prizeRow
	if err := r.getExec(ctx, exec).Where("id = ?", id).First(&row).Error; err != nil {
		return voucher.Prize{}, trapNotFound(err, voucher.ErrPrizeNotFound, "finding prize")
	}
	return prizeFromRow(&row), nil
}

func (r voucherRepository) QueryPrizes(ctx context.Context, filter voucher.PrizeFilter, exec ...core.DBExecutor) ([]voucher.Prize, error) {
	q := r.getExec(ctx, exec).Model(&prizeRow{})
	if filter.BusinessID != "" {
		q = q.Where("business_id = ?", filter.BusinessID)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}

	var rows []*prizeRow
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying prizes")
	}
	prizes := make([]voucher.Prize, 0, len(rows))
	for _, row := range rows {
		prizes = append(prizes, prizeFromRow(row))
	}
	return prizes, nil
}

func (r voucherRepository) LockActivePrizes(ctx context.Context, exec core.DBExecutor) ([]voucher.Prize, error) {
	var rows []*prizeRow
	err := r.getExec(ctx, []core.DBExecutor{exec}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("is_active = ?", true).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "locking prizes")
	}
	prizes := make([]voucher.Prize, 0, len(rows))
	for _, row := range rows {
		prizes = append(prizes, prizeFromRow(row))
	}
	return prizes, nil
}

func (r voucherRepository) UpdatePrize(ctx context.Context, p voucher.Prize, exec ...core.DBExecutor) (voucher.Prize, error) {
	row := prizeToRow(p)
	if err := r.getExec(ctx, exec).Save(row).Error; err != nil {
		return voucher.Prize{}, errors.Wrap(err, "updating prize")
	}
	return prizeFromRow(row), nil
}

func (r voucherRepository) DeletePrize(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res := r.getExec(ctx, exec).Where("id = ?", id).Delete(&prizeRow{})
	if res.Error != nil {
		if isForeignKeyViolation(res.Error) {
			return core.NewConflictError("prize was already won; deactivate it instead")
		}
		return errors.Wrap(res.Error, "deleting prize")
	}
	if res.RowsAffected == 0 {
		return voucher.ErrPrizeNotFound
	}
	return nil
}

func (r voucherRepository) DecrementPrizeStock(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res := r.getExec(ctx, exec).Model(&prizeRow{}).
		Where("id = ? AND quantity > 0", id).
		UpdateColumn("quantity", gorm.Expr("quantity - 1"))
	if res.Error != nil {
		return errors.Wrap(res.Error, "decrementing prize stock")
	}
	if res.RowsAffected == 0 {
		return voucher.ErrOutOfStock
	}
	return nil
}

func (r voucherRepository) CreateVoucher(ctx context.Context, v voucher.Voucher, exec ...core.DBExecutor) (voucher.Voucher, error) {
	v.ID = uuid.New().String()
	row := voucherToRow(v)
	if err := r.getExec(ctx, exec).Omit(clause.Associations).Create(row).Error; err != nil {
		return voucher.Voucher{}, errors.Wrap(err, "inserting voucher")
	}
	return voucherFromRow(row), nil
}

func (r voucherRepository) VoucherCodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error) {
	var count int64
	if err := r.getExec(ctx, exec).Model(&voucherRow{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "checking voucher code")
	}
	return count > 0, nil
}

func (r voucherRepository) GetVoucherByCode(ctx context.Context, code string, exec ...core.DBExecutor) (voucher.Voucher, error) {
	var row voucherRow
	if err := r.getExec(ctx, exec).Preload("Prize").Where("code = ?", code).First(&row).Error; err != nil {
		return voucher.Voucher{}, trapNotFound(err, voucher.ErrNotFound, "finding voucher")
	}
	return voucherFromRow(&row), nil
}

func (r voucherRepository) LockVoucherByCode(ctx context.Context, code string, exec core.DBExecutor) (voucher.Voucher, error) {
	var row voucherRow
	err := r.getExec(ctx, []core.DBExecutor{exec}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", code).
		First(&row).Error
	if err != nil {
		return voucher.Voucher{}, trapNotFound(err, voucher.ErrNotFound, "locking voucher")
	}
	return voucherFromRow(&row), nil
}

func (r voucherRepository) QueryVouchers(ctx context.Context, filter voucher.QueryFilter, exec ...core.DBExecutor) ([]voucher.Voucher, error) {
	q := r.getExec(ctx, exec).Model(&voucherRow{}).Preload("Prize")
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var rows []*voucherRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying vouchers")
	}
	vouchers := make([]voucher.Voucher, 0, len(rows))
	for _, row := range rows {
		vouchers = append(vouchers, voucherFromRow(row))
	}
	return vouchers, nil
}

func (r voucherRepository) UpdateVoucher(ctx context.Context, v voucher.Voucher, exec ...core.DBExecutor) (voucher.Voucher, error) {
	row := voucherToRow(v)
	if err := r.getExec(ctx, exec).Omit(clause.Associations).Save(row).Error; err != nil {
		return voucher.Voucher{}, errors.Wrap(err, "updating voucher")
	}
	updated := voucherFromRow(row)
	updated.Prize = v.Prize
	return updated, nil
}

func (r voucherRepository) CreateSpin(ctx context.Context, s voucher.Spin, exec ...core.DBExecutor) (voucher.Spin, error) {
	s.ID = uuid.New().String()
	row := &spinRow{
		ID:        s.ID,
		UserID:    s.UserID,
		PrizeID:   s.PrizeID,
		VoucherID: nullString(s.VoucherID),
		CreatedAt: s.CreatedAt.UTC(),
	}
	if err := r.getExec(ctx, exec).Create(row).Error; err != nil {
		return voucher.Spin{}, errors.Wrap(err, "inserting spin")
	}
	return s, nil
}
