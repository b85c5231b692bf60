package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSent     Status = "sent"
)

// PushRequest is a business asking to notify the students around a university.
type PushRequest struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	DealID         string    `json:"deal_id"`
	UniversityID   string    `json:"university_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Status         Status    `json:"status"`
	ReviewNote     string    `json:"review_note"`
	ReviewedBy     string    `json:"reviewed_by"`
	RecipientCount int       `json:"recipient_count"`
	CreatedAt      time.Time `json:"created_at"`
	ReviewedAt     time.Time `json:"reviewed_at"`
}

// Notification is an in-app message of a user.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	ReadAt    time.Time         `json:"read_at"`
	CreatedAt time.Time         `json:"created_at"`
}

func (n Notification) IsRead() bool { return !n.ReadAt.IsZero() }

// NewPushRequest contains information needed to submit a PushRequest.
type NewPushRequest struct {
	UniversityID string `json:"university_id" validate:"required"`
	DealID       string `json:"deal_id"`
	Title        string `json:"title" validate:"required,max=65"`
	Body         string `json:"body" validate:"required,max=240"`
}

func (np *NewPushRequest) Validate(validate *validator.Validate) error {
	np.UniversityID = core.CleanString(np.UniversityID)
	np.DealID = core.CleanString(np.DealID)
	np.Title = core.CleanString(np.Title)
	np.Body = core.CleanString(np.Body)
	return validate.Struct(np)
}

type Review struct {
	Status Status `json:"status" validate:"required,oneof=approved rejected"`
	Note   string `json:"note" validate:"max=500"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Note = core.CleanString(r.Note)
	return validate.Struct(r)
}

type QueryFilter struct {
	BusinessID string `query:"business_id"`
	Status     string `query:"status"`
}

type NotificationFilter struct {
	UserID     string `query:"-"`
	UnreadOnly bool   `query:"unread"`
	core.Page
}
