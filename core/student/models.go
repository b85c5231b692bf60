package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/user"
)

// Student is the profile attached to a user having the student role.
type Student struct {
	UserID          string    `json:"user_id"`
	UniversityID    string    `json:"university_id"`
	CampusCity      string    `json:"campus_city"`
	StudentIDNumber string    `json:"student_id_number"`
	LastSpinAt      time.Time `json:"last_spin_at"` // UTC; zero until the first spin
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Registration signs up a student. They sign in with one-time codes, so no password is asked.
type Registration struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,e164"`
	UniversityID    string `json:"university_id" validate:"required"`
	CampusCity      string `json:"campus_city" validate:"max=100"`
	StudentIDNumber string `json:"student_id_number" validate:"max=50"`
}

func (r *Registration) Validate(ctx context.Context, validate *validator.Validate, usrSvc user.Service) error {
	r.Name = core.CleanString(r.Name)
	r.Email = core.CleanString(r.Email, true /* lower */)
	r.Phone = core.CleanString(r.Phone)
	r.UniversityID = core.CleanString(r.UniversityID)
	r.CampusCity = core.CleanString(r.CampusCity)
	r.StudentIDNumber = core.CleanString(r.StudentIDNumber)

	if err := validate.Struct(r); err != nil {
		return err
	}
	return usrSvc.CheckEmailUniqueness(ctx, r.Email, nil)
}

func (r Registration) newUser() user.NewUser {
	return user.NewUser{
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
		Roles: []string{user.RoleStudent},
	}
}

type UpdateProfile struct {
	UniversityID    string `json:"university_id"`
	CampusCity      string `json:"campus_city" validate:"max=100"`
	StudentIDNumber string `json:"student_id_number" validate:"max=50"`
}

func (up *UpdateProfile) Validate(orig Student, validate *validator.Validate) error {
	if up.UniversityID = core.CleanString(up.UniversityID); up.UniversityID == "" {
		up.UniversityID = orig.UniversityID
	}
	if up.CampusCity = core.CleanString(up.CampusCity); up.CampusCity == "" {
		up.CampusCity = orig.CampusCity
	}
	if up.StudentIDNumber = core.CleanString(up.StudentIDNumber); up.StudentIDNumber == "" {
		up.StudentIDNumber = orig.StudentIDNumber
	}
	return validate.Struct(up)
}

// Recipient is an active student reachable by notifications.
type Recipient struct {
	UserID    string
	PushToken string
}
