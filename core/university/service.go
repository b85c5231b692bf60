package university

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/geo"
)

var (
	ErrNotFound   = core.NewNotFoundError("university not found")
	ErrNameExists = errors.New("a university with this name already exists")
)

type (
	Repository interface {
		CreateUniversity(ctx context.Context, uni University, exec ...core.DBExecutor) (University, error)
		GetUniversity(ctx context.Context, id string, exec ...core.DBExecutor) (University, error)
		GetUniversityByName(ctx context.Context, name string, exec ...core.DBExecutor) (University, error)
		QueryUniversities(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]University, error)
		UpdateUniversity(ctx context.Context, uni University, exec ...core.DBExecutor) (University, error)
		DeleteUniversity(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkNameUniqueness(ctx context.Context, name string, exclID string) error {
	uni, err := svc.repo.GetUniversityByName(ctx, name)
	switch {
	case err == nil && uni.ID != exclID:
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	case err == nil, errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "checking university name")
	}
}

func (svc *Service) Create(ctx context.Context, nu NewUniversity) (University, error) {
	if err := svc.checkNameUniqueness(ctx, nu.Name, ""); err != nil {
		return University{}, err
	}
	now := core.NowFunc()
	return svc.repo.CreateUniversity(ctx, University{
		Name:      nu.Name,
		City:      nu.City,
		Lat:       nu.Lat,
		Lng:       nu.Lng,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Upsert creates the university named nu.Name or updates its city and coordinates.
func (svc *Service) Upsert(ctx context.Context, nu NewUniversity) (University, bool, error) {
	uni, err := svc.repo.GetUniversityByName(ctx, nu.Name)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return University{}, false, errors.Wrap(err, "finding university by name")
		}
		created, err := svc.Create(ctx, nu)
		return created, true, err
	}
	updated, err := svc.Update(ctx, uni, nu)
	return updated, false, err
}

func (svc *Service) Get(ctx context.Context, id string) (University, error) {
	return svc.repo.GetUniversity(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]University, error) {
	return svc.repo.QueryUniversities(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, uni University, data NewUniversity) (University, error) {
	if err := svc.checkNameUniqueness(ctx, data.Name, uni.ID); err != nil {
		return University{}, err
	}
	uni.Name = data.Name
	uni.City = data.City
	uni.Lat = data.Lat
	uni.Lng = data.Lng
	uni.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUniversity(ctx, uni)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteUniversity(ctx, id)
}

// Nearby returns the universities within radiusKm of the given one (itself included), closest first.
func (svc *Service) Nearby(ctx context.Context, id string, radiusKm float64, exec ...core.DBExecutor) ([]University, error) {
	center, err := svc.repo.GetUniversity(ctx, id, exec...)
	if err != nil {
		return nil, err
	}
	all, err := svc.repo.QueryUniversities(ctx, &QueryFilter{}, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying universities")
	}
	return GroupNearby(center, all, radiusKm), nil
}

// GroupNearby keeps the universities of all lying within radiusKm of center, closest first.
func GroupNearby(center University, all []University, radiusKm float64) []University {
	pts := make([]geo.Point, len(all))
	for i, u := range all {
		pts[i] = u.Point()
	}
	idxs := geo.GroupWithinRadius(center.Point(), pts, radiusKm)
	group := make([]University, 0, len(idxs))
	for _, i := range idxs {
		group = append(group, all[i])
	}
	return group
}
