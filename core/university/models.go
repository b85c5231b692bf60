package university

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/geo"
)

type University struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u University) Point() geo.Point {
	return geo.Point{Lat: u.Lat, Lng: u.Lng}
}

// NewUniversity contains information needed to create (or overwrite) a University.
type NewUniversity struct {
	Name string  `json:"name" yaml:"name" validate:"required,max=200"`
	City string  `json:"city" yaml:"city" validate:"required,max=100"`
	Lat  float64 `json:"lat" yaml:"lat" validate:"latitude"`
	Lng  float64 `json:"lng" yaml:"lng" validate:"longitude"`
}

func (nu *NewUniversity) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.City = core.CleanString(nu.City)
	return validate.Struct(nu)
}

type QueryFilter struct {
	Search string `query:"search"`
	City   string `query:"city"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.City = core.CleanString(qf.City)
}
