package deal

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
	"github.com/trezcool/campusdeals/core/geo"
	"github.com/trezcool/campusdeals/core/ranking"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("deal not found")
	ErrUnavailable = core.NewConflictError("deal is not available")
)

type Repository interface {
	CreateDeal(ctx context.Context, d Deal, exec ...core.DBExecutor) (Deal, error)
	// GetDeal loads the deal together with its business and the business locations.
	GetDeal(ctx context.Context, id string, exec ...core.DBExecutor) (Deal, error)
	// QueryDeals applies AND operation on available QueryFilter fields; businesses and locations are loaded.
	QueryDeals(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Deal, error)
	UpdateDeal(ctx context.Context, d Deal, exec ...core.DBExecutor) (Deal, error)
	DeleteDeal(ctx context.Context, id string, exec ...core.DBExecutor) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a deal to biz, which must be approved. nd must be validated.
func (svc *Service) Create(ctx context.Context, biz business.Business, nd NewDeal) (Deal, error) {
	if !biz.IsApproved() {
		return Deal{}, business.ErrNotApproved
	}
	now := core.NowFunc()
	d := Deal{
		BusinessID:      biz.ID,
		Title:           nd.Title,
		Description:     nd.Description,
		Category:        nd.Category,
		DiscountPercent: nd.DiscountPercent,
		CooldownHours:   nd.CooldownHours,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if nd.ExpiresAt != nil {
		d.ExpiresAt = nd.ExpiresAt.UTC()
	}
	d, err := svc.repo.CreateDeal(ctx, d)
	if err != nil {
		return Deal{}, err
	}
	d.Business = &biz
	return d, nil
}

func (svc *Service) Get(ctx context.Context, id string, exec ...core.DBExecutor) (Deal, error) {
	return svc.repo.GetDeal(ctx, id, exec...)
}

// GetAvailable returns the deal only when students may see it.
func (svc *Service) GetAvailable(ctx context.Context, id string) (Deal, error) {
	d, err := svc.repo.GetDeal(ctx, id)
	if err != nil {
		return Deal{}, err
	}
	if !d.IsAvailable(core.NowFunc()) {
		return Deal{}, ErrNotFound
	}
	return d, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Deal, error) {
	return svc.repo.QueryDeals(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, d Deal, ud UpdateDeal) (Deal, error) {
	d.Title = ud.Title
	d.Description = ud.Description
	d.Category = ud.Category
	if ud.DiscountPercent != nil {
		d.DiscountPercent = *ud.DiscountPercent
	}
	if ud.ExpiresAt != nil {
		d.ExpiresAt = ud.ExpiresAt.UTC()
	}
	if ud.CooldownHours != nil {
		d.CooldownHours = *ud.CooldownHours
	}
	if ud.IsActive != nil {
		d.IsActive = *ud.IsActive
	}
	d.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateDeal(ctx, d)
}

func (svc *Service) SetPriority(ctx context.Context, d Deal, priority int) (Deal, error) {
	d.Priority = priority
	d.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateDeal(ctx, d)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteDeal(ctx, id)
}

// Feed returns the available deals ranked for the student described by profile.
func (svc *Service) Feed(ctx context.Context, profile ranking.Profile, filter QueryFilter, page core.Page) ([]RankedDeal, error) {
	now := core.NowFunc()
	filter.AvailableAt = now
	deals, err := svc.repo.QueryDeals(ctx, filter, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return nil, err
	}
	return RankFeed(deals, profile, now, page), nil
}

// RankFeed orders deals by relevance, highest first, then applies page.
func RankFeed(deals []Deal, profile ranking.Profile, now time.Time, page core.Page) []RankedDeal {
	cands := make([]ranking.Candidate, len(deals))
	for i, d := range deals {
		cands[i] = d.Candidate()
	}
	order, scores := ranking.Rank(cands, profile, now)

	feed := make([]RankedDeal, 0, len(order))
	for _, idx := range order {
		feed = append(feed, RankedDeal{Deal: deals[idx], Score: scores[idx]})
	}
	if page.Offset >= len(feed) {
		return []RankedDeal{}
	}
	feed = feed[page.Offset:]
	if page.Limit > 0 && page.Limit < len(feed) {
		feed = feed[:page.Limit]
	}
	return feed
}

// Nearby returns the available deals of businesses having a location within radiusKm of p, closest first.
func (svc *Service) Nearby(ctx context.Context, p geo.Point, radiusKm float64, filter QueryFilter) ([]NearbyDeal, error) {
	filter.AvailableAt = core.NowFunc()
	deals, err := svc.repo.QueryDeals(ctx, filter, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return nil, err
	}
	return FilterNearby(deals, p, radiusKm), nil
}

// FilterNearby keeps the deals whose business has a location within radiusKm of p, closest first.
func FilterNearby(deals []Deal, p geo.Point, radiusKm float64) []NearbyDeal {
	nearby := make([]NearbyDeal, 0)
	for _, d := range deals {
		if d.Business == nil {
			continue
		}
		if _, dist, ok := d.Business.NearestLocation(p); ok && dist <= radiusKm {
			nearby = append(nearby, NearbyDeal{Deal: d, DistanceKm: dist})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	return nearby
}
