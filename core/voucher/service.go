package voucher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/codegen"
	"github.com/trezcool/campusdeals/core/draw"
	"github.com/trezcool/campusdeals/core/user"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("voucher not found")
	ErrPrizeNotFound = core.NewNotFoundError("prize not found")
	ErrOutOfStock    = errors.New("prize out of stock")
	ErrNoPrizes      = core.NewConflictError("the wheel has no prize left")
	ErrVoucherUsed   = core.NewConflictError("voucher already used")
	ErrExpired       = core.NewConflictError("voucher expired")
	ErrNotRedeemer   = core.NewPermissionError("you cannot redeem this voucher")
)

type Repository interface {
	CreatePrize(ctx context.Context, p Prize, exec ...core.DBExecutor) (Prize, error)
	GetPrize(ctx context.Context, id string, exec ...core.DBExecutor) (Prize, error)
	QueryPrizes(ctx context.Context, filter PrizeFilter, exec ...core.DBExecutor) ([]Prize, error)
	UpdatePrize(ctx context.Context, p Prize, exec ...core.DBExecutor) (Prize, error)
	DeletePrize(ctx context.Context, id string, exec ...core.DBExecutor) error
	// LockActivePrizes returns the active prizes, locked for the rest of the transaction of exec.
	LockActivePrizes(ctx context.Context, exec core.DBExecutor) ([]Prize, error)
	// DecrementPrizeStock takes one unit from a limited prize, or fails with ErrOutOfStock.
	DecrementPrizeStock(ctx context.Context, id string, exec ...core.DBExecutor) error

	CreateVoucher(ctx context.Context, v Voucher, exec ...core.DBExecutor) (Voucher, error)
	VoucherCodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error)
	GetVoucherByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Voucher, error)
	// LockVoucherByCode returns the voucher without its prize, locked for the rest of the transaction of exec.
	LockVoucherByCode(ctx context.Context, code string, exec core.DBExecutor) (Voucher, error)
	QueryVouchers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Voucher, error)
	UpdateVoucher(ctx context.Context, v Voucher, exec ...core.DBExecutor) (Voucher, error)

	CreateSpin(ctx context.Context, s Spin, exec ...core.DBExecutor) (Spin, error)
}

// SpinGate guards the spin cooldown of a student.
type SpinGate interface {
	// LockForSpin locks the student for the rest of the transaction of exec and returns their last spin time.
	LockForSpin(ctx context.Context, userID string, exec core.DBExecutor) (time.Time, error)
	SetLastSpin(ctx context.Context, userID string, at time.Time, exec core.DBExecutor) error
}

type Service struct {
	db     core.DBTransactor
	repo   Repository
	gate   SpinGate
	bizSvc *business.Service
	conf   *core.Config

	src   draw.Source
	codes *codegen.Generator
}

func NewService(db core.DBTransactor, repo Repository, gate SpinGate, bizSvc *business.Service, conf *core.Config) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		gate:   gate,
		bizSvc: bizSvc,
		conf:   conf,
		src:    draw.CryptoSource{},
		codes:  codegen.New(codegen.VoucherCodeLength),
	}
}

func (svc *Service) nextSpinAt(last time.Time) time.Time {
	if last.IsZero() {
		return time.Time{}
	}
	return last.Add(svc.conf.Rules.SpinCooldown)
}

// Spin turns the wheel for usr, at most once per cooldown period.
// Everything happens in one transaction holding the student row lock, so concurrent spins
// of the same student are serialized and see each other's LastSpinAt. The active prizes are
// locked too, so the stock a spin draws from stays current until it commits.
func (svc *Service) Spin(ctx context.Context, usr user.User) (SpinResult, error) {
	var res SpinResult
	err := svc.db.Transaction(ctx, func(exec core.DBExecutor) error {
		last, err := svc.gate.LockForSpin(ctx, usr.ID, exec)
		if err != nil {
			return err
		}
		now := core.NowFunc()
		if next := svc.nextSpinAt(last); now.Before(next) {
			return core.NewConflictError(fmt.Sprintf("next spin available at %s", next.Format(time.RFC3339)))
		}

		prizes, err := svc.repo.LockActivePrizes(ctx, exec)
		if err != nil {
			return errors.Wrap(err, "loading prizes")
		}
		items := make([]draw.Item, len(prizes))
		for i, p := range prizes {
			items[i] = p.item()
		}
		prize, err := svc.pickPrize(ctx, prizes, items, exec)
		if err != nil {
			return err
		}
		if err = svc.gate.SetLastSpin(ctx, usr.ID, now, exec); err != nil {
			return errors.Wrap(err, "stamping spin")
		}

		spin := Spin{UserID: usr.ID, PrizeID: prize.ID, CreatedAt: now}
		if !prize.IsBlank {
			v, err := svc.issueVoucher(ctx, usr, prize, now, exec)
			if err != nil {
				return err
			}
			spin.VoucherID = v.ID
			res.Voucher = &v
		}
		if _, err = svc.repo.CreateSpin(ctx, spin, exec); err != nil {
			return errors.Wrap(err, "recording spin")
		}
		res.Prize = prize
		res.NextSpinAt = svc.nextSpinAt(now)
		return nil
	})
	if err != nil {
		return SpinResult{}, err
	}
	return res, nil
}

// pickPrize draws one of prizes and takes it from stock when limited.
// A prize found out of stock is left out and the draw starts over among the others.
func (svc *Service) pickPrize(ctx context.Context, prizes []Prize, items []draw.Item, exec core.DBExecutor) (Prize, error) {
	for {
		idx, err := draw.Pick(items, svc.src)
		if err != nil {
			if errors.Cause(err) == draw.ErrNothingToDraw {
				return Prize{}, ErrNoPrizes
			}
			return Prize{}, err
		}
		prize := prizes[idx]
		if !prize.IsLimited() {
			return prize, nil
		}

		err = svc.repo.DecrementPrizeStock(ctx, prize.ID, exec)
		switch {
		case err == nil:
			prize.Quantity--
			return prize, nil
		case errors.Cause(err) == ErrOutOfStock:
			items[idx].Quantity = 0
		default:
			return Prize{}, errors.Wrap(err, "taking prize from stock")
		}
	}
}

func (svc *Service) issueVoucher(ctx context.Context, usr user.User, prize Prize, now time.Time, exec core.DBExecutor) (Voucher, error) {
	code, err := svc.codes.Generate(ctx, func(ctx context.Context, code string) (bool, error) {
		return svc.repo.VoucherCodeExists(ctx, code, exec)
	})
	if err != nil {
		return Voucher{}, err
	}
	v, err := svc.repo.CreateVoucher(ctx, Voucher{
		Code:      code,
		PrizeID:   prize.ID,
		UserID:    usr.ID,
		Status:    StatusActive,
		ExpiresAt: now.Add(svc.conf.Rules.VoucherValidity),
		CreatedAt: now,
	}, exec)
	if err != nil {
		return Voucher{}, errors.Wrap(err, "issuing voucher")
	}
	v.Prize = &prize
	return v, nil
}

// SpinStatus tells whether a student who last spun at lastSpinAt may spin now.
func (svc *Service) SpinStatus(lastSpinAt time.Time) SpinStatus {
	next := svc.nextSpinAt(lastSpinAt)
	return SpinStatus{
		CanSpin:    !core.NowFunc().Before(next),
		LastSpinAt: lastSpinAt,
		NextSpinAt: next,
	}
}

// Mine lists the vouchers won by usr, flagging the expired ones.
func (svc *Service) Mine(ctx context.Context, usr user.User, filter QueryFilter) ([]Voucher, error) {
	filter.UserID = usr.ID
	filter.Status = strings.ToLower(core.CleanString(filter.Status))
	vouchers, err := svc.repo.QueryVouchers(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := core.NowFunc()
	for i, v := range vouchers {
		if v.Status == StatusActive && v.IsExpired(now) {
			vouchers[i].Status = StatusExpired
		}
	}
	return vouchers, nil
}

// Redeem marks a voucher as used. Vouchers of a business prize are redeemed by that business' owner,
// platform vouchers by admins; admins may redeem any voucher.
func (svc *Service) Redeem(ctx context.Context, usr user.User, code string) (Voucher, error) {
	v, err := svc.repo.GetVoucherByCode(ctx, code)
	if err != nil {
		return Voucher{}, err
	}
	prize, err := svc.repo.GetPrize(ctx, v.PrizeID)
	if err != nil {
		return Voucher{}, errors.Wrap(err, "loading prize")
	}
	if err = svc.checkRedeemer(ctx, usr, prize); err != nil {
		return Voucher{}, err
	}

	// the status is read again under the row lock: concurrent redemptions of a code are serialized
	var expired bool
	err = svc.db.Transaction(ctx, func(exec core.DBExecutor) error {
		locked, err := svc.repo.LockVoucherByCode(ctx, code, exec)
		if err != nil {
			return err
		}
		now := core.NowFunc()
		switch {
		case locked.Status == StatusUsed:
			return ErrVoucherUsed
		case locked.Status == StatusExpired:
			return ErrExpired
		case locked.IsExpired(now):
			locked.Status = StatusExpired
			expired = true
			if _, err = svc.repo.UpdateVoucher(ctx, locked, exec); err != nil {
				return errors.Wrap(err, "expiring voucher")
			}
			return nil
		}

		locked.Status = StatusUsed
		locked.UsedAt = now
		v, err = svc.repo.UpdateVoucher(ctx, locked, exec)
		return err
	})
	if err != nil {
		return Voucher{}, err
	}
	if expired {
		return Voucher{}, ErrExpired
	}
	v.Prize = &prize
	return v, nil
}

func (svc *Service) checkRedeemer(ctx context.Context, usr user.User, prize Prize) error {
	if usr.IsAdmin() {
		return nil
	}
	if prize.BusinessID == "" {
		return ErrNotRedeemer
	}
	biz, err := svc.bizSvc.Get(ctx, prize.BusinessID)
	if err != nil {
		return errors.Wrap(err, "loading business")
	}
	if !biz.IsManagedBy(usr) {
		return ErrNotRedeemer
	}
	return nil
}

// Prizes

func (svc *Service) CreatePrize(ctx context.Context, np NewPrize) (Prize, error) {
	if np.BusinessID != "" {
		if _, err := svc.bizSvc.Get(ctx, np.BusinessID); err != nil {
			if errors.Cause(err) == business.ErrNotFound {
				return Prize{}, core.NewValidationError(err, core.FieldError{Field: "business_id", Error: err.Error()})
			}
			return Prize{}, err
		}
	}
	now := core.NowFunc()
	return svc.repo.CreatePrize(ctx, Prize{
		BusinessID:  np.BusinessID,
		Name:        np.Name,
		Description: np.Description,
		Weight:      np.Weight,
		Quantity:    np.Quantity,
		IsBlank:     np.IsBlank,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetPrize(ctx context.Context, id string) (Prize, error) {
	return svc.repo.GetPrize(ctx, id)
}

func (svc *Service) QueryPrizes(ctx context.Context, filter PrizeFilter) ([]Prize, error) {
	return svc.repo.QueryPrizes(ctx, filter)
}

func (svc *Service) UpdatePrize(ctx context.Context, p Prize, up UpdatePrize) (Prize, error) {
	p.Name = up.Name
	p.Description = up.Description
	if up.Weight != nil {
		p.Weight = *up.Weight
	}
	if up.Quantity != nil {
		p.Quantity = *up.Quantity
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	p.UpdatedAt = core.NowFunc()
	return svc.repo.UpdatePrize(ctx, p)
}

func (svc *Service) DeletePrize(ctx context.Context, id string) error {
	return svc.repo.DeletePrize(ctx, id)
}
