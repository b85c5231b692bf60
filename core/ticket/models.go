package ticket

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/deal"
	"github.com/trezcool/campusdeals/core/geo"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// Ticket is a student's claim on a deal, redeemed in store with its code.
type Ticket struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	DealID    string     `json:"deal_id"`
	UserID    string     `json:"user_id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    time.Time  `json:"used_at"`
	Deal      *deal.Deal `json:"deal,omitempty"`
}

// Redemption records where and when a ticket was used.
type Redemption struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	DealID     string    `json:"deal_id"`
	BusinessID string    `json:"business_id"`
	LocationID string    `json:"location_id"`
	UserID     string    `json:"user_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	DistanceM  float64   `json:"distance_m"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// RedemptionRow is a redemption as listed to business owners.
type RedemptionRow struct {
	Redemption
	Code          string `json:"code"`
	DealTitle     string `json:"deal_title"`
	LocationLabel string `json:"location_label"`
	StudentName   string `json:"student_name"`
}

type RedeemRequest struct {
	Code string  `json:"code" validate:"required,code"`
	Lat  float64 `json:"lat" validate:"latitude"`
	Lng  float64 `json:"lng" validate:"longitude"`
}

func (rr *RedeemRequest) Validate(validate *validator.Validate) error {
	rr.Code = strings.ToUpper(core.CleanString(rr.Code))
	return validate.Struct(rr)
}

func (rr RedeemRequest) Point() geo.Point {
	return geo.Point{Lat: rr.Lat, Lng: rr.Lng}
}

type QueryFilter struct {
	UserID string `query:"-"`
	DealID string `query:"deal_id"`
	Status string `query:"status"`
}

type RedemptionQuery struct {
	BusinessID string    `query:"-"`
	DealID     string    `query:"deal_id"`
	From       time.Time `query:"-"` // bound from "from"
	To         time.Time `query:"-"` // bound from "to"
}
