package business

import (
	"context"
	"net/mail"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/geo"
	"github.com/trezcool/campusdeals/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("business not found")
	ErrLocationNotFound = core.NewNotFoundError("location not found")
	ErrNotOwner         = core.NewPermissionError("you do not manage this business")
	ErrNotApproved      = core.NewConflictError("business is not approved")
	ErrLastLocation     = core.NewConflictError("a business must keep at least one location")
)

type Repository interface {
	CreateBusiness(ctx context.Context, b Business, exec ...core.DBExecutor) (Business, error)
	// GetBusiness loads the business with its locations.
	GetBusiness(ctx context.Context, id string, exec ...core.DBExecutor) (Business, error)
	GetBusinessByStripeCustomer(ctx context.Context, customerID string, exec ...core.DBExecutor) (Business, error)
	// QueryBusinesses applies AND operation on available QueryFilter fields; locations are loaded.
	QueryBusinesses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Business, error)
	UpdateBusiness(ctx context.Context, b Business, exec ...core.DBExecutor) (Business, error)
	CreateLocation(ctx context.Context, loc Location, exec ...core.DBExecutor) (Location, error)
	DeleteLocation(ctx context.Context, businessID, locationID string, exec ...core.DBExecutor) error
}

type Service struct {
	db      core.DBTransactor
	repo    Repository
	usrSvc  user.Service
	mailSvc core.EmailService
}

func NewService(db core.DBTransactor, repo Repository, usrSvc user.Service, mailSvc core.EmailService) *Service {
	return &Service{db: db, repo: repo, usrSvc: usrSvc, mailSvc: mailSvc}
}

// Register creates the owner account and their business at once. Registration must be validated.
func (svc *Service) Register(ctx context.Context, reg Registration) (Business, user.User, error) {
	var (
		biz Business
		usr user.User
	)
	err := svc.db.Transaction(ctx, func(exec core.DBExecutor) error {
		var err error
		if usr, err = svc.usrSvc.Create(ctx, reg.Owner, exec); err != nil {
			return errors.Wrap(err, "creating owner")
		}
		biz, err = svc.create(ctx, usr, reg.Business, exec)
		return err
	})
	if err != nil {
		return Business{}, user.User{}, err
	}
	return biz, usr, nil
}

// Create adds a new business, pending review, owned by owner.
func (svc *Service) Create(ctx context.Context, owner user.User, nb NewBusiness) (Business, error) {
	return svc.create(ctx, owner, nb)
}

func (svc *Service) create(ctx context.Context, owner user.User, nb NewBusiness, exec ...core.DBExecutor) (Business, error) {
	now := core.NowFunc()
	biz := Business{
		OwnerID:            owner.ID,
		Name:               nb.Name,
		Description:        nb.Description,
		Category:           nb.Category,
		City:               nb.City,
		Status:             StatusPending,
		SubscriptionStatus: SubscriptionNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, nl := range nb.Locations {
		biz.Locations = append(biz.Locations, newLocation(nl, now))
	}
	return svc.repo.CreateBusiness(ctx, biz, exec...)
}

func newLocation(nl NewLocation, now time.Time) Location {
	return Location{
		Label:     nl.Label,
		Address:   nl.Address,
		City:      nl.City,
		Lat:       nl.Lat,
		Lng:       nl.Lng,
		CreatedAt: now,
	}
}

func (svc *Service) Get(ctx context.Context, id string, exec ...core.DBExecutor) (Business, error) {
	return svc.repo.GetBusiness(ctx, id, exec...)
}

// GetManaged returns the business only if usr is its owner or an admin.
func (svc *Service) GetManaged(ctx context.Context, id string, usr user.User) (Business, error) {
	biz, err := svc.repo.GetBusiness(ctx, id)
	if err != nil {
		return Business{}, err
	}
	if !biz.IsManagedBy(usr) {
		return Business{}, ErrNotOwner
	}
	return biz, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Business, error) {
	return svc.repo.QueryBusinesses(ctx, filter, ordering)
}

// ListOwned returns every business owned by usr.
func (svc *Service) ListOwned(ctx context.Context, usr user.User) ([]Business, error) {
	return svc.repo.QueryBusinesses(ctx, QueryFilter{OwnerID: usr.ID}, nil)
}

func (svc *Service) Update(ctx context.Context, biz Business, ub UpdateBusiness) (Business, error) {
	biz.Name = ub.Name
	biz.Description = ub.Description
	biz.Category = ub.Category
	biz.City = ub.City
	biz.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateBusiness(ctx, biz)
}

// SetStatus moderates biz and lets its owner know about the outcome.
func (svc *Service) SetStatus(ctx context.Context, biz Business, status Status) (Business, error) {
	if biz.Status == status {
		return biz, nil
	}
	biz.Status = status
	biz.UpdatedAt = core.NowFunc()
	biz, err := svc.repo.UpdateBusiness(ctx, biz)
	if err != nil {
		return Business{}, err
	}

	owner, err := svc.usrSvc.GetByID(ctx, biz.OwnerID)
	if err != nil {
		return Business{}, errors.Wrap(err, "loading owner")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: owner.Name, Address: owner.Email}},
		Subject:      "Your business is " + string(status),
		TemplateName: "business_status",
		TemplateData: map[string]string{
			"OwnerName":    owner.Name,
			"BusinessName": biz.Name,
			"Status":       string(status),
		},
	})
	return biz, nil
}

func (svc *Service) AddLocation(ctx context.Context, biz Business, nl NewLocation) (Location, error) {
	loc := newLocation(nl, core.NowFunc())
	loc.BusinessID = biz.ID
	return svc.repo.CreateLocation(ctx, loc)
}

func (svc *Service) RemoveLocation(ctx context.Context, biz Business, locationID string) error {
	var found bool
	for _, loc := range biz.Locations {
		if loc.ID == locationID {
			found = true
			break
		}
	}
	if !found {
		return ErrLocationNotFound
	}
	if len(biz.Locations) == 1 {
		return ErrLastLocation
	}
	return svc.repo.DeleteLocation(ctx, biz.ID, locationID)
}

// Nearby returns the approved businesses having a location within radiusKm of p, closest first.
func (svc *Service) Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]NearbyBusiness, error) {
	all, err := svc.repo.QueryBusinesses(ctx, QueryFilter{Status: string(StatusApproved)}, nil)
	if err != nil {
		return nil, err
	}
	return FilterNearby(all, p, radiusKm), nil
}

// FilterNearby keeps the businesses having a location within radiusKm of p, closest first.
func FilterNearby(all []Business, p geo.Point, radiusKm float64) []NearbyBusiness {
	nearby := make([]NearbyBusiness, 0)
	for _, biz := range all {
		if _, dist, ok := biz.NearestLocation(p); ok && dist <= radiusKm {
			nearby = append(nearby, NearbyBusiness{Business: biz, DistanceKm: dist})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	return nearby
}

// Approved returns every approved business with its locations.
func (svc *Service) Approved(ctx context.Context) ([]Business, error) {
	return svc.repo.QueryBusinesses(ctx, QueryFilter{Status: string(StatusApproved)}, []core.DBOrdering{{Field: "name", Ascending: true}})
}

// Subscription is the billing state of a business, as reported by the payment provider.
type Subscription struct {
	Status         SubscriptionStatus
	CustomerID     string
	SubscriptionID string
}

func (svc *Service) SetSubscription(ctx context.Context, biz Business, sub Subscription) (Business, error) {
	biz.SubscriptionStatus = sub.Status
	if sub.CustomerID != "" {
		biz.StripeCustomerID = sub.CustomerID
	}
	if sub.SubscriptionID != "" {
		biz.StripeSubscriptionID = sub.SubscriptionID
	}
	biz.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateBusiness(ctx, biz)
}

func (svc *Service) GetByStripeCustomer(ctx context.Context, customerID string) (Business, error) {
	return svc.repo.GetBusinessByStripeCustomer(ctx, customerID)
}
