package business

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/geo"
	"github.com/trezcool/campusdeals/core/user"
)

type (
	Status             string
	SubscriptionStatus string
)

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusSuspended Status = "suspended"

	SubscriptionNone     SubscriptionStatus = "none"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// Categories shared by businesses and their deals.
var Categories = []string{
	"food", "cafe", "fashion", "beauty", "sport", "entertainment",
	"education", "tech", "travel", "health", "services", "other",
}

type Location struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Label      string    `json:"label"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	CreatedAt  time.Time `json:"created_at"`
}

func (l Location) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lng: l.Lng}
}

type Business struct {
	ID                   string             `json:"id"`
	OwnerID              string             `json:"owner_id"`
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	Category             string             `json:"category"`
	City                 string             `json:"city"`
	Status               Status             `json:"status"`
	SubscriptionStatus   SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID     string             `json:"-"`
	StripeSubscriptionID string             `json:"-"`
	Locations            []Location         `json:"locations"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

func (b Business) IsApproved() bool { return b.Status == StatusApproved }

func (b Business) HasActiveSubscription() bool { return b.SubscriptionStatus == SubscriptionActive }

// IsManagedBy reports whether usr may manage b.
func (b Business) IsManagedBy(usr user.User) bool {
	return usr.IsAdmin() || (usr.ID != "" && usr.ID == b.OwnerID)
}

// NearestLocation returns the location of b closest to p, and its distance in km.
func (b Business) NearestLocation(p geo.Point) (Location, float64, bool) {
	pts := make([]geo.Point, len(b.Locations))
	for i, l := range b.Locations {
		pts[i] = l.Point()
	}
	idx, dist := geo.Nearest(p, pts)
	if idx < 0 {
		return Location{}, 0, false
	}
	return b.Locations[idx], dist, true
}

type NewLocation struct {
	Label   string  `json:"label" validate:"max=100"`
	Address string  `json:"address" validate:"max=255"`
	City    string  `json:"city" validate:"required,max=100"`
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
}

func (nl *NewLocation) clean() {
	nl.Label = core.CleanString(nl.Label)
	nl.Address = core.CleanString(nl.Address)
	nl.City = core.CleanString(nl.City)
}

func (nl *NewLocation) Validate(validate *validator.Validate) error {
	nl.clean()
	return validate.Struct(nl)
}

// NewBusiness contains information needed to create a new Business.
type NewBusiness struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Category    string        `json:"category" validate:"required,category"`
	City        string        `json:"city" validate:"required,max=100"`
	Locations   []NewLocation `json:"locations" validate:"required,min=1,max=20,dive"`
}

func (nb *NewBusiness) clean() {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.Category = core.CleanString(nb.Category, true /* lower */)
	nb.City = core.CleanString(nb.City)
	for i := range nb.Locations {
		nb.Locations[i].clean()
	}
}

func (nb *NewBusiness) Validate(validate *validator.Validate) error {
	nb.clean()
	return validate.Struct(nb)
}

// Registration signs up a business owner together with their first business.
type Registration struct {
	Owner    user.NewUser `json:"owner"`
	Business NewBusiness  `json:"business"`
}

func (r *Registration) Validate(ctx context.Context, validate *validator.Validate, usrSvc user.Service) error {
	r.Business.clean()
	if err := validate.Struct(r.Business); err != nil {
		return err
	}
	r.Owner.Roles = []string{user.RoleBusiness}
	if r.Owner.Password == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: "this field is required"})
	}
	return r.Owner.Validate(ctx, validate, usrSvc)
}

// UpdateBusiness defines what information may be provided to modify an existing Business.
type UpdateBusiness struct {
	Name        string `json:"name" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Category    string `json:"category" validate:"omitempty,category"`
	City        string `json:"city" validate:"omitempty,max=100"`
}

func (ub *UpdateBusiness) Validate(orig Business, validate *validator.Validate) error {
	if ub.Name = core.CleanString(ub.Name); ub.Name == "" {
		ub.Name = orig.Name
	}
	if ub.Description = core.CleanString(ub.Description); ub.Description == "" {
		ub.Description = orig.Description
	}
	if ub.Category = core.CleanString(ub.Category, true /* lower */); ub.Category == "" {
		ub.Category = orig.Category
	}
	if ub.City = core.CleanString(ub.City); ub.City == "" {
		ub.City = orig.City
	}
	return validate.Struct(ub)
}

type StatusUpdate struct {
	Status Status `json:"status" validate:"required,oneof=pending approved suspended"`
}

type QueryFilter struct {
	Search   string `query:"search"`
	Status   string `query:"status"`
	Category string `query:"category"`
	City     string `query:"city"`
	OwnerID  string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
	qf.City = core.CleanString(qf.City)
}

// NearbyQuery looks for approved businesses around a point.
type NearbyQuery struct {
	Lat      float64 `query:"lat" validate:"latitude"`
	Lng      float64 `query:"lng" validate:"longitude"`
	RadiusKm float64 `query:"radius_km" validate:"omitempty,gt=0,lte=50"`
}

func (nq *NearbyQuery) Validate(validate *validator.Validate) error {
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

type NearbyBusiness struct {
	Business
	DistanceKm float64 `json:"distance_km"`
}
