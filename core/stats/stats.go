// Package stats serves the admin and business dashboards.
package stats

import (
	"context"
	"time"

	"github.com/trezcool/campusdeals/core"
	"github.com/trezcool/campusdeals/core/business"
)

// RecentWindow is the period covered by the "recent" counters.
const RecentWindow = 30 * 24 * time.Hour

type (
	AdminDashboard struct {
		UsersByRole         map[string]int `json:"users_by_role"`
		BusinessesByStatus  map[string]int `json:"businesses_by_status"`
		ActiveDeals         int            `json:"active_deals"`
		TicketsClaimed      int            `json:"tickets_claimed"`
		RecentRedemptions   int            `json:"recent_redemptions"`
		VouchersIssued      int            `json:"vouchers_issued"`
		PendingPushRequests int            `json:"pending_push_requests"`
		GeneratedAt         time.Time      `json:"generated_at"`
	}

	DealStats struct {
		DealID      string `json:"deal_id" db:"deal_id"`
		Title       string `json:"title" db:"title"`
		IsActive    bool   `json:"is_active" db:"is_active"`
		Claims      int    `json:"claims" db:"claims"`
		Redemptions int    `json:"redemptions" db:"redemptions"`
	}

	BusinessDashboard struct {
		BusinessID        string      `json:"business_id"`
		Deals             []DealStats `json:"deals"`
		TotalClaims       int         `json:"total_claims"`
		TotalRedemptions  int         `json:"total_redemptions"`
		RecentRedemptions int         `json:"recent_redemptions"`
		GeneratedAt       time.Time   `json:"generated_at"`
	}

	Repository interface {
		// AdminDashboard counts platform-wide figures; "recent" means since `since`.
		AdminDashboard(ctx context.Context, since, now time.Time) (AdminDashboard, error)
		// DealStats returns per-deal claims and redemptions of a business, deals by creation date.
		DealStats(ctx context.Context, businessID string) ([]DealStats, error)
		CountRedemptions(ctx context.Context, businessID string, since time.Time) (int, error)
	}
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Admin(ctx context.Context) (AdminDashboard, error) {
	now := core.NowFunc()
	dash, err := svc.repo.AdminDashboard(ctx, now.Add(-RecentWindow), now)
	if err != nil {
		return AdminDashboard{}, err
	}
	dash.GeneratedAt = now
	return dash, nil
}

func (svc *Service) Business(ctx context.Context, biz business.Business) (BusinessDashboard, error) {
	now := core.NowFunc()
	deals, err := svc.repo.DealStats(ctx, biz.ID)
	if err != nil {
		return BusinessDashboard{}, err
	}
	recent, err := svc.repo.CountRedemptions(ctx, biz.ID, now.Add(-RecentWindow))
	if err != nil {
		return BusinessDashboard{}, err
	}

	dash := BusinessDashboard{
		BusinessID:        biz.ID,
		Deals:             deals,
		RecentRedemptions: recent,
		GeneratedAt:       now,
	}
	for _, d := range deals {
		dash.TotalClaims += d.Claims
		dash.TotalRedemptions += d.Redemptions
	}
	return dash, nil
}
