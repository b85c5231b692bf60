package voucher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/draw"
	"github.com/trezcool/campusdeals/core/user"
)

type fakeTx struct{}

func (fakeTx) Transaction(_ context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}

type fakeGate struct {
	last  map[string]time.Time
	locks int
}

func (g *fakeGate) LockForSpin(_ context.Context, userID string, _ core.DBExecutor) (time.Time, error) {
	g.locks++
	return g.last[userID], nil
}

func (g *fakeGate) SetLastSpin(_ context.Context, userID string, at time.Time, _ core.DBExecutor) error {
	g.last[userID] = at
	return nil
}

// fakeRepo implements the parts of Repository used by Spin and Redeem.
type fakeRepo struct {
	Repository
	prizes   []Prize
	vouchers []Voucher
	spins    []Spin
	// soldOut prizes were emptied by another spin after they were loaded.
	soldOut map[string]bool
	// snapshot, when set, is what an unlocked read of a voucher returns.
	snapshot *Voucher
	locks    int
}

func (r *fakeRepo) LockActivePrizes(context.Context, core.DBExecutor) ([]Prize, error) {
	r.locks++
	active := make([]Prize, 0, len(r.prizes))
	for _, p := range r.prizes {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

func (r *fakeRepo) DecrementPrizeStock(_ context.Context, id string, _ ...core.DBExecutor) error {
	for i, p := range r.prizes {
		if p.ID == id {
			if p.Quantity <= 0 || r.soldOut[id] {
				return ErrOutOfStock
			}
			r.prizes[i].Quantity--
			return nil
		}
	}
	return ErrPrizeNotFound
}

func (r *fakeRepo) VoucherCodeExists(context.Context, string, ...core.DBExecutor) (bool, error) {
	return false, nil
}

func (r *fakeRepo) CreateVoucher(_ context.Context, v Voucher, _ ...core.DBExecutor) (Voucher, error) {
	v.ID = fmt.Sprintf("v%d", len(r.vouchers)+1)
	r.vouchers = append(r.vouchers, v)
	return v, nil
}

func (r *fakeRepo) CreateSpin(_ context.Context, s Spin, _ ...core.DBExecutor) (Spin, error) {
	s.ID = fmt.Sprintf("s%d", len(r.spins)+1)
	r.spins = append(r.spins, s)
	return s, nil
}

func (r *fakeRepo) findVoucher(code string) (int, error) {
	for i, v := range r.vouchers {
		if v.Code == code {
			return i, nil
		}
	}
	return -1, ErrNotFound
}

func (r *fakeRepo) GetVoucherByCode(_ context.Context, code string, _ ...core.DBExecutor) (Voucher, error) {
	if r.snapshot != nil {
		return *r.snapshot, nil
	}
	i, err := r.findVoucher(code)
	if err != nil {
		return Voucher{}, err
	}
	return r.vouchers[i], nil
}

func (r *fakeRepo) LockVoucherByCode(_ context.Context, code string, _ core.DBExecutor) (Voucher, error) {
	r.locks++
	i, err := r.findVoucher(code)
	if err != nil {
		return Voucher{}, err
	}
	return r.vouchers[i], nil
}

func (r *fakeRepo) UpdateVoucher(_ context.Context, v Voucher, _ ...core.DBExecutor) (Voucher, error) {
	i, err := r.findVoucher(v.Code)
	if err != nil {
		return Voucher{}, err
	}
	r.vouchers[i] = v
	return v, nil
}

func (r *fakeRepo) GetPrize(_ context.Context, id string, _ ...core.DBExecutor) (Prize, error) {
	for _, p := range r.prizes {
		if p.ID == id {
			return p, nil
		}
	}
	return Prize{}, ErrPrizeNotFound
}

// fixedSource always lands on r.
type fixedSource int64

func (s fixedSource) Int63n(n int64) int64 { return int64(s) % n }

func newTestService(repo *fakeRepo, gate *fakeGate, src draw.Source) *Service {
	conf := &core.Config{Rules: core.RulesConfig{SpinCooldown: 12 * time.Hour, VoucherValidity: 30 * 24 * time.Hour}}
	svc := NewService(fakeTx{}, repo, gate, nil, conf)
	svc.src = src
	return svc
}

func freezeNow(t *testing.T, now time.Time) {
	t.Helper()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

func TestService_Spin(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	freezeNow(t, now)
	student := user.User{ID: "stud", Roles: []string{user.RoleStudent}}

	t.Run("wins a voucher and takes stock", func(t *testing.T) {
		repo := &fakeRepo{prizes: []Prize{
			{ID: "sold-out", Weight: 1000, Quantity: 0, IsActive: true},
			{ID: "coffee", Weight: 10, Quantity: 3, IsActive: true},
		}}
		gate := &fakeGate{last: map[string]time.Time{}}
		svc := newTestService(repo, gate, fixedSource(0))

		res, err := svc.Spin(context.Background(), student)
		require.NoError(t, err)
		assert.Equal(t, "coffee", res.Prize.ID)
		assert.Equal(t, 2, res.Prize.Quantity)
		assert.Equal(t, 2, repo.prizes[1].Quantity)
		require.NotNil(t, res.Voucher)
		assert.Len(t, res.Voucher.Code, 10)
		assert.Equal(t, now.Add(30*24*time.Hour), res.Voucher.ExpiresAt)
		assert.Equal(t, StatusActive, res.Voucher.Status)
		assert.Equal(t, now.Add(12*time.Hour), res.NextSpinAt)
		assert.Equal(t, now, gate.last["stud"])
		require.Len(t, repo.spins, 1)
		assert.Equal(t, res.Voucher.ID, repo.spins[0].VoucherID)
		assert.Equal(t, 1, gate.locks)
		assert.Equal(t, 1, repo.locks)
	})

	t.Run("prize emptied meanwhile is drawn again", func(t *testing.T) {
		repo := &fakeRepo{
			prizes: []Prize{
				{ID: "coffee", Weight: 10, Quantity: 1, IsActive: true},
				{ID: "tea", Weight: 10, Quantity: draw.Unlimited, IsActive: true},
			},
			soldOut: map[string]bool{"coffee": true},
		}
		gate := &fakeGate{last: map[string]time.Time{}}
		svc := newTestService(repo, gate, fixedSource(0))

		res, err := svc.Spin(context.Background(), student)
		require.NoError(t, err)
		assert.Equal(t, "tea", res.Prize.ID)
		require.NotNil(t, res.Voucher)
		assert.Equal(t, "tea", res.Voucher.PrizeID)
		assert.Equal(t, 1, repo.prizes[0].Quantity)
	})

	t.Run("every limited prize emptied meanwhile", func(t *testing.T) {
		repo := &fakeRepo{
			prizes:  []Prize{{ID: "coffee", Weight: 10, Quantity: 1, IsActive: true}},
			soldOut: map[string]bool{"coffee": true},
		}
		gate := &fakeGate{last: map[string]time.Time{}}
		svc := newTestService(repo, gate, fixedSource(0))

		_, err := svc.Spin(context.Background(), student)
		assert.Equal(t, ErrNoPrizes, err)
		assert.Empty(t, repo.spins)
	})

	t.Run("blank prize issues no voucher", func(t *testing.T) {
		repo := &fakeRepo{prizes: []Prize{{ID: "blank", Weight: 1, Quantity: draw.Unlimited, IsBlank: true, IsActive: true}}}
		gate := &fakeGate{last: map[string]time.Time{}}
		svc := newTestService(repo, gate, fixedSource(0))

		res, err := svc.Spin(context.Background(), student)
		require.NoError(t, err)
		assert.Nil(t, res.Voucher)
		assert.Empty(t, repo.vouchers)
		assert.Equal(t, draw.Unlimited, repo.prizes[0].Quantity)
		require.Len(t, repo.spins, 1)
		assert.Equal(t, "", repo.spins[0].VoucherID)
	})

	t.Run("cooldown", func(t *testing.T) {
		repo := &fakeRepo{prizes: []Prize{{ID: "p", Weight: 1, Quantity: draw.Unlimited, IsActive: true}}}
		gate := &fakeGate{last: map[string]time.Time{"stud": now.Add(-11 * time.Hour)}}
		svc := newTestService(repo, gate, fixedSource(0))

		_, err := svc.Spin(context.Background(), student)
		require.Error(t, err)
		_, isConflict := errors.Cause(err).(*core.ConflictError)
		assert.True(t, isConflict)
		assert.Contains(t, err.Error(), now.Add(time.Hour).Format(time.RFC3339))
		assert.Empty(t, repo.spins)

		gate.last["stud"] = now.Add(-12 * time.Hour)
		_, err = svc.Spin(context.Background(), student)
		assert.NoError(t, err)
	})

	t.Run("nothing left", func(t *testing.T) {
		repo := &fakeRepo{prizes: []Prize{
			{ID: "gone", Weight: 5, Quantity: 0, IsActive: true},
			{ID: "inactive", Weight: 5, Quantity: draw.Unlimited, IsActive: false},
		}}
		gate := &fakeGate{last: map[string]time.Time{}}
		svc := newTestService(repo, gate, fixedSource(0))

		_, err := svc.Spin(context.Background(), student)
		assert.Equal(t, ErrNoPrizes, err)
		assert.True(t, gate.last["stud"].IsZero())
	})
}

func TestService_SpinStatus(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	freezeNow(t, now)
	svc := newTestService(&fakeRepo{}, &fakeGate{}, fixedSource(0))

	st := svc.SpinStatus(time.Time{})
	assert.True(t, st.CanSpin)
	assert.True(t, st.NextSpinAt.IsZero())

	st = svc.SpinStatus(now.Add(-time.Hour))
	assert.False(t, st.CanSpin)
	assert.Equal(t, now.Add(11*time.Hour), st.NextSpinAt)
}

func TestService_Redeem(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	freezeNow(t, now)
	admin := user.User{ID: "admin", Roles: []string{user.RoleAdmin}}
	prize := Prize{ID: "coffee", Name: "Free coffee", Weight: 1, Quantity: draw.Unlimited, IsActive: true}

	newRepo := func(status Status, expiresAt time.Time) *fakeRepo {
		return &fakeRepo{
			prizes: []Prize{prize},
			vouchers: []Voucher{
				{ID: "v1", Code: "ABCDEFGHJK", PrizeID: "coffee", UserID: "stud", Status: status, ExpiresAt: expiresAt},
			},
		}
	}

	t.Run("redeems once", func(t *testing.T) {
		repo := newRepo(StatusActive, now.Add(time.Hour))
		svc := newTestService(repo, &fakeGate{}, fixedSource(0))

		v, err := svc.Redeem(context.Background(), admin, "ABCDEFGHJK")
		require.NoError(t, err)
		assert.Equal(t, StatusUsed, v.Status)
		assert.Equal(t, now, v.UsedAt)
		require.NotNil(t, v.Prize)
		assert.Equal(t, "Free coffee", v.Prize.Name)
		assert.Equal(t, 1, repo.locks)

		_, err = svc.Redeem(context.Background(), admin, "ABCDEFGHJK")
		assert.Equal(t, ErrVoucherUsed, err)
	})

	t.Run("used by a concurrent redemption", func(t *testing.T) {
		repo := newRepo(StatusUsed, now.Add(time.Hour))
		stale := repo.vouchers[0]
		stale.Status = StatusActive
		repo.snapshot = &stale
		svc := newTestService(repo, &fakeGate{}, fixedSource(0))

		_, err := svc.Redeem(context.Background(), admin, "ABCDEFGHJK")
		assert.Equal(t, ErrVoucherUsed, err)
	})

	t.Run("expired", func(t *testing.T) {
		repo := newRepo(StatusActive, now.Add(-time.Minute))
		svc := newTestService(repo, &fakeGate{}, fixedSource(0))

		_, err := svc.Redeem(context.Background(), admin, "ABCDEFGHJK")
		assert.Equal(t, ErrExpired, err)
		assert.Equal(t, StatusExpired, repo.vouchers[0].Status)
	})

	t.Run("platform voucher needs an admin", func(t *testing.T) {
		repo := newRepo(StatusActive, now.Add(time.Hour))
		svc := newTestService(repo, &fakeGate{}, fixedSource(0))

		owner := user.User{ID: "owner", Roles: []string{user.RoleBusiness}}
		_, err := svc.Redeem(context.Background(), owner, "ABCDEFGHJK")
		assert.Equal(t, ErrNotRedeemer, err)
		assert.Equal(t, StatusActive, repo.vouchers[0].Status)
	})
}
