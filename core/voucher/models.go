package voucher

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/draw"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// Prize is a slot of the spin wheel.
type Prize struct {
	ID          string `json:"id"`
	BusinessID  string `json:"business_id"` // empty for platform prizes
	Name        string `json:"name"`
	Description string `json:"description"`
	Weight      int    `json:"weight"`
	// Quantity is the remaining stock, draw.Unlimited for none.
	Quantity  int       `json:"quantity"`
	IsBlank   bool      `json:"is_blank"` // "try again" slot; wins nothing
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Prize) IsLimited() bool { return p.Quantity >= 0 }

func (p Prize) item() draw.Item {
	return draw.Item{ID: p.ID, Weight: p.Weight, Quantity: p.Quantity}
}

type Voucher struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	PrizeID   string    `json:"prize_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UsedAt    time.Time `json:"used_at"`
	Prize     *Prize    `json:"prize,omitempty"`
}

func (v Voucher) IsExpired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// Spin records one turn of the wheel.
type Spin struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PrizeID   string    `json:"prize_id"`
	VoucherID string    `json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
}

type SpinResult struct {
	Prize      Prize     `json:"prize"`
	Voucher    *Voucher  `json:"voucher"` // nil on blank prizes
	NextSpinAt time.Time `json:"next_spin_at"`
}

type SpinStatus struct {
	CanSpin    bool      `json:"can_spin"`
	LastSpinAt time.Time `json:"last_spin_at"`
	NextSpinAt time.Time `json:"next_spin_at"`
}

// NewPrize contains information needed to create a new Prize.
type NewPrize struct {
	BusinessID  string `json:"business_id"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Weight      int    `json:"weight" validate:"min=1,max=1000000"`
	Quantity    int    `json:"quantity" validate:"min=-1"`
	IsBlank     bool   `json:"is_blank"`
}

func (np *NewPrize) Validate(validate *validator.Validate) error {
	np.BusinessID = core.CleanString(np.BusinessID)
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

// UpdatePrize defines what information may be provided to modify an existing Prize.
type UpdatePrize struct {
	Name        string `json:"name" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Weight      *int   `json:"weight" validate:"omitempty,min=1,max=1000000"`
	Quantity    *int   `json:"quantity" validate:"omitempty,min=-1"`
	IsActive    *bool  `json:"is_active"`
}

func (up *UpdatePrize) Validate(orig Prize, validate *validator.Validate) error {
	if up.Name = core.CleanString(up.Name); up.Name == "" {
		up.Name = orig.Name
	}
	if up.Description = core.CleanString(up.Description); up.Description == "" {
		up.Description = orig.Description
	}
	return validate.Struct(up)
}

type RedeemRequest struct {
	Code string `json:"code" validate:"required,code"`
}

func (rr *RedeemRequest) Validate(validate *validator.Validate) error {
	rr.Code = strings.ToUpper(core.CleanString(rr.Code))
	return validate.Struct(rr)
}

type PrizeFilter struct {
	BusinessID string `query:"business_id"`
	ActiveOnly bool   `query:"active"`
}

type QueryFilter struct {
	UserID string `query:"-"`
	Status string `query:"status"`
}
