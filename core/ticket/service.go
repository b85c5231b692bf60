package ticket

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/codegen"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/geo"
	"github.com/trezcool/campusdeals/core/user"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("ticket not found")
	ErrRedemptionNotFound = core.NewNotFoundError("redemption not found")
	ErrAlreadyClaimed     = core.NewConflictError("you already hold an active ticket for this deal")
	ErrAlreadyRedeemed    = core.NewConflictError("you already redeemed this deal")
	ErrTicketUsed         = core.NewConflictError("ticket already used")
	ErrTicketExpired      = core.NewConflictError("ticket expired")
	ErrTooFar             = errors.New("you must be at the business to redeem this ticket")
)

type Repository interface {
	CreateTicket(ctx context.Context, t Ticket, exec ...core.DBExecutor) (Ticket, error)
	GetTicketByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Ticket, error)
	// LockTicketByCode is GetTicketByCode holding a row lock until the end of the transaction of exec.
	LockTicketByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Ticket, error)
	TicketCodeExists(ctx context.Context, code string) (bool, error)
	// GetActiveTicket returns ErrNotFound if the user holds no active ticket on the deal.
	GetActiveTicket(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) (Ticket, error)
	QueryTickets(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Ticket, error)
	UpdateTicket(ctx context.Context, t Ticket, exec ...core.DBExecutor) (Ticket, error)

	CreateRedemption(ctx context.Context, r Redemption, exec ...core.DBExecutor) (Redemption, error)
	// GetLastRedemption returns ErrRedemptionNotFound if the user never redeemed the deal.
	GetLastRedemption(ctx context.Context, userID, dealID string, exec ...core.DBExecutor) (Redemption, error)
	QueryRedemptions(ctx context.Context, query RedemptionQuery, exec ...core.DBExecutor) ([]RedemptionRow, error)
}

type Service struct {
	db      core.DBTransactor
	repo    Repository
	dealSvc *deal.Service
	codes   *codegen.Generator
}

func NewService(db core.DBTransactor, repo Repository, dealSvc *deal.Service) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		dealSvc: dealSvc,
		codes:   codegen.New(codegen.TicketCodeLength),
	}
}

// Claim issues a ticket on an available deal.
// A user holds at most one active ticket per deal. Once redeemed, a once-only deal cannot be claimed
// again, while a cooldown deal can be claimed again after its cooldown elapsed since the last redemption.
func (svc *Service) Claim(ctx context.Context, usr user.User, dealID string) (Ticket, error) {
	d, err := svc.dealSvc.GetAvailable(ctx, dealID)
	if err != nil {
		return Ticket{}, err
	}

	switch _, err = svc.repo.GetActiveTicket(ctx, usr.ID, d.ID); {
	case err == nil:
		return Ticket{}, ErrAlreadyClaimed
	case errors.Cause(err) != ErrNotFound:
		return Ticket{}, errors.Wrap(err, "checking active ticket")
	}

	now := core.NowFunc()
	switch last, err := svc.repo.GetLastRedemption(ctx, usr.ID, d.ID); {
	case errors.Cause(err) == ErrRedemptionNotFound:
	case err != nil:
		return Ticket{}, errors.Wrap(err, "checking last redemption")
	case d.IsOnceOnly():
		return Ticket{}, ErrAlreadyRedeemed
	default:
		if next := last.RedeemedAt.Add(d.Cooldown()); now.Before(next) {
			return Ticket{}, core.NewConflictError(fmt.Sprintf("deal available again at %s", next.Format("2006-01-02T15:04:05Z07:00")))
		}
	}

	code, err := svc.codes.Generate(ctx, svc.repo.TicketCodeExists)
	if err != nil {
		return Ticket{}, err
	}
	t, err := svc.repo.CreateTicket(ctx, Ticket{
		Code:      code,
		DealID:    d.ID,
		UserID:    usr.ID,
		Status:    StatusActive,
		CreatedAt: now,
	})
	if err != nil {
		return Ticket{}, err
	}
	t.Deal = &d
	return t, nil
}

// Mine lists the tickets of usr.
func (svc *Service) Mine(ctx context.Context, usr user.User, filter QueryFilter) ([]Ticket, error) {
	filter.UserID = usr.ID
	filter.Status = strings.ToLower(core.CleanString(filter.Status))
	return svc.repo.QueryTickets(ctx, filter)
}

// Redeem uses the ticket of usr identified by req.Code. In one transaction it checks the ticket is
// active and its deal unexpired, checks req is within 25 m of a business location,
// marks the ticket used and records the redemption.
func (svc *Service) Redeem(ctx context.Context, usr user.User, req RedeemRequest) (Redemption, error) {
	var (
		red     Redemption
		expired bool
	)
	err := svc.db.Transaction(ctx, func(exec core.DBExecutor) error {
		t, err := svc.repo.LockTicketByCode(ctx, req.Code, exec)
		if err != nil {
			return err
		}
		if t.UserID != usr.ID {
			return ErrNotFound
		}
		switch t.Status {
		case StatusUsed:
			return ErrTicketUsed
		case StatusExpired:
			return ErrTicketExpired
		}

		d, err := svc.dealSvc.Get(ctx, t.DealID, exec)
		if err != nil {
			return errors.Wrap(err, "loading deal")
		}
		now := core.NowFunc()
		if d.IsExpired(now) {
			t.Status = StatusExpired
			if _, err = svc.repo.UpdateTicket(ctx, t, exec); err != nil {
				return errors.Wrap(err, "expiring ticket")
			}
			expired = true
			return nil
		}
		if !d.IsAvailable(now) || d.Business == nil {
			return deal.ErrUnavailable
		}

		loc, dist, ok := d.Business.NearestLocation(req.Point())
		if !ok || dist > geo.RedemptionRadiusKm {
			return tooFarError(loc, dist, ok)
		}

		t.Status = StatusUsed
		t.UsedAt = now
		if _, err = svc.repo.UpdateTicket(ctx, t, exec); err != nil {
			return errors.Wrap(err, "using ticket")
		}
		red, err = svc.repo.CreateRedemption(ctx, Redemption{
			TicketID:   t.ID,
			DealID:     d.ID,
			BusinessID: d.BusinessID,
			LocationID: loc.ID,
			UserID:     usr.ID,
			Lat:        req.Lat,
			Lng:        req.Lng,
			DistanceM:  math.Round(dist*1000*10) / 10,
			RedeemedAt: now,
		}, exec)
		return err
	})
	if err != nil {
		return Redemption{}, err
	}
	if expired {
		return Redemption{}, ErrTicketExpired
	}
	return red, nil
}

func tooFarError(loc business.Location, distKm float64, found bool) error {
	msg := ErrTooFar.Error()
	if found {
		label := loc.Label
		if label == "" {
			label = loc.Address
		}
		msg = fmt.Sprintf("%s (%.0f m from %s)", msg, distKm*1000, strings.TrimSpace(label))
	}
	return core.NewValidationError(ErrTooFar, core.FieldError{Field: "location", Error: msg})
}

// Lookup lets the owner of the deal's business check a ticket at the counter.
func (svc *Service) Lookup(ctx context.Context, usr user.User, code string) (Ticket, error) {
	t, err := svc.repo.GetTicketByCode(ctx, strings.ToUpper(core.CleanString(code)))
	if err != nil {
		return Ticket{}, err
	}
	d, err := svc.dealSvc.Get(ctx, t.DealID)
	if err != nil {
		return Ticket{}, errors.Wrap(err, "loading deal")
	}
	if d.Business == nil || !d.Business.IsManagedBy(usr) {
		return Ticket{}, ErrNotFound
	}
	t.Deal = &d
	return t, nil
}

// Redemptions lists the redemptions recorded at biz, most recent first.
func (svc *Service) Redemptions(ctx context.Context, biz business.Business, query RedemptionQuery) ([]RedemptionRow, error) {
	query.BusinessID = biz.ID
	return svc.repo.QueryRedemptions(ctx, query)
}
