package deal

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/geo"
	"github.com/trezcool/campusdeals/core/ranking"
)

type Deal struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	DiscountPercent int       `json:"discount_percent"`
	ExpiresAt       time.Time `json:"expires_at"` // UTC; zero means it never expires
	// Priority is set by admins and is the base of the relevance score.
	Priority int `json:"priority"`
	// CooldownHours is how long a user waits, after a redemption, to claim the deal again.
	// 0 means the deal can only be redeemed once per user.
	CooldownHours int                `json:"cooldown_hours"`
	IsActive      bool               `json:"is_active"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Business      *business.Business `json:"business,omitempty"`
}

func (d Deal) IsExpired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// IsAvailable reports whether students may see and claim d.
func (d Deal) IsAvailable(now time.Time) bool {
	if !d.IsActive || d.IsExpired(now) {
		return false
	}
	return d.Business == nil || d.Business.IsApproved()
}

func (d Deal) IsOnceOnly() bool { return d.CooldownHours == 0 }

func (d Deal) Cooldown() time.Duration { return time.Duration(d.CooldownHours) * time.Hour }

func (d Deal) Candidate() ranking.Candidate {
	c := ranking.Candidate{
		Priority:  d.Priority,
		Category:  d.Category,
		CreatedAt: d.CreatedAt,
	}
	if d.Business != nil {
		c.BusinessCity = d.Business.City
	}
	return c
}

// NewDeal contains information needed to create a new Deal.
type NewDeal struct {
	Title           string     `json:"title" validate:"required,max=200"`
	Description     string     `json:"description" validate:"max=2000"`
	Category        string     `json:"category" validate:"required,category"`
	DiscountPercent int        `json:"discount_percent" validate:"min=0,max=100"`
	ExpiresAt       *time.Time `json:"expires_at"`
	CooldownHours   int        `json:"cooldown_hours" validate:"min=0,max=8760"`
}

func (nd *NewDeal) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.Description = core.CleanString(nd.Description)
	nd.Category = core.CleanString(nd.Category, true /* lower */)
	if err := validate.Struct(nd); err != nil {
		return err
	}
	return validateExpiry(nd.ExpiresAt)
}

func validateExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(core.NowFunc()) {
		return core.NewValidationError(nil, core.FieldError{Field: "expires_at", Error: "must be in the future"})
	}
	return nil
}

// UpdateDeal defines what information may be provided to modify an existing Deal.
type UpdateDeal struct {
	Title           string     `json:"title" validate:"omitempty,max=200"`
	Description     string     `json:"description" validate:"omitempty,max=2000"`
	Category        string     `json:"category" validate:"omitempty,category"`
	DiscountPercent *int       `json:"discount_percent" validate:"omitempty,min=0,max=100"`
	ExpiresAt       *time.Time `json:"expires_at"`
	CooldownHours   *int       `json:"cooldown_hours" validate:"omitempty,min=0,max=8760"`
	IsActive        *bool      `json:"is_active"`
}

func (ud *UpdateDeal) Validate(orig Deal, validate *validator.Validate) error {
	if ud.Title = core.CleanString(ud.Title); ud.Title == "" {
		ud.Title = orig.Title
	}
	if ud.Description = core.CleanString(ud.Description); ud.Description == "" {
		ud.Description = orig.Description
	}
	if ud.Category = core.CleanString(ud.Category, true /* lower */); ud.Category == "" {
		ud.Category = orig.Category
	}
	if err := validate.Struct(ud); err != nil {
		return err
	}
	return validateExpiry(ud.ExpiresAt)
}

type PriorityUpdate struct {
	Priority int `json:"priority" validate:"min=-1000,max=1000"`
}

type QueryFilter struct {
	Search     string `query:"search"`
	Category   string `query:"category"`
	BusinessID string `query:"business_id"`
	// AvailableAt, when set, keeps active deals of approved businesses not expired at that time.
	AvailableAt time.Time `query:"-"`
	IDs         []string  `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.BusinessID = core.CleanString(qf.BusinessID)
}

type NearbyQuery struct {
	Lat      float64 `query:"lat" validate:"latitude"`
	Lng      float64 `query:"lng" validate:"longitude"`
	RadiusKm float64 `query:"radius_km" validate:"omitempty,gt=0,lte=50"`
	Category string  `query:"category" validate:"omitempty,category"`
}

func (nq *NearbyQuery) Validate(validate *validator.Validate) error {
	nq.Category = core.CleanString(nq.Category, true /* lower */)
	if err := validate.Struct(nq); err != nil {
		return err
	}
	if nq.RadiusKm == 0 {
		nq.RadiusKm = geo.DiscoveryRadiusKm
	}
	return nil
}

func (nq NearbyQuery) Point() geo.Point {
	return geo.Point{Lat: nq.Lat, Lng: nq.Lng}
}

// RankedDeal is a feed entry.
type RankedDeal struct {
	Deal
	Score int `json:"score"`
}

type NearbyDeal struct {
	Deal
	DistanceKm float64 `json:"distance_km"`
}
