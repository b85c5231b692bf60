// Package sqlxrepos holds the read-only reporting queries, written in plain SQL over sqlx.
package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campusdeals/core/stats"
)

type statsRepository struct {
	db *sqlx.DB
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(db *sqlx.DB) *statsRepository {
	return &statsRepository{db: db}
}

func (r statsRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(query), args...); err != nil {
		return 0, err
	}
	return n, nil
}

func (r statsRepository) groupCount(ctx context.Context, query string) (map[string]int, error) {
	var rows []struct {
		Key   string `db:"k"`
		Count int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

func (r statsRepository) usersByRole(ctx context.Context) (map[string]int, error) {
	var roles []string
	if err := r.db.SelectContext(ctx, &roles, `SELECT roles FROM users`); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, list := range roles {
		for _, role := range strings.Split(list, ",") {
			if role = strings.TrimSpace(role); role != "" {
				counts[role]++
			}
		}
	}
	return counts, nil
}

func (r statsRepository) AdminDashboard(ctx context.Context, since, now time.Time) (stats.AdminDashboard, error) {
	var (
		dash stats.AdminDashboard
		err  error
	)
	if dash.UsersByRole, err = r.usersByRole(ctx); err != nil {
		return stats.AdminDashboard{}, errors.Wrap(err, "counting users by role")
	}
	dash.BusinessesByStatus, err = r.groupCount(ctx, `SELECT status AS k, COUNT(*) AS n FROM businesses GROUP BY status`)
	if err != nil {
		return stats.AdminDashboard{}, errors.Wrap(err, "counting businesses by status")
	}

	counters := []struct {
		dest  *int
		what  string
		query string
		args  []interface{}
	}{
		{
			&dash.ActiveDeals, "active deals",
			`SELECT COUNT(*) FROM deals WHERE is_active = ? AND (expires_at IS NULL OR expires_at > ?)`,
			[]interface{}{true, now.UTC()},
		},
		{&dash.TicketsClaimed, "tickets", `SELECT COUNT(*) FROM tickets`, nil},
		{
			&dash.RecentRedemptions, "recent redemptions",
			`SELECT COUNT(*) FROM redemptions WHERE redeemed_at >= ?`,
			[]interface{}{since.UTC()},
		},
		{&dash.VouchersIssued, "vouchers", `SELECT COUNT(*) FROM vouchers`, nil},
		{
			&dash.PendingPushRequests, "pending push requests",
			`SELECT COUNT(*) FROM push_requests WHERE status = ?`,
			[]interface{}{"pending"},
		},
	}
	for _, c := range counters {
		if *c.dest, err = r.count(ctx, c.query, c.args...); err != nil {
			return stats.AdminDashboard{}, errors.Wrapf(err, "counting %s", c.what)
		}
	}
	return dash, nil
}

func (r statsRepository) DealStats(ctx context.Context, businessID string) ([]stats.DealStats, error) {
	query := r.db.Rebind(`
		SELECT d.id AS deal_id, d.title, d.is_active,
			(SELECT COUNT(*) FROM tickets t WHERE t.deal_id = d.id) AS claims,
			(SELECT COUNT(*) FROM redemptions rd WHERE rd.deal_id = d.id) AS redemptions
		FROM deals d
		WHERE d.business_id = ?
		ORDER BY d.created_at, d.id`)

	ds := make([]stats.DealStats, 0)
	if err := r.db.SelectContext(ctx, &ds, query, businessID); err != nil {
		return nil, errors.Wrap(err, "querying deal stats")
	}
	return ds, nil
}

func (r statsRepository) CountRedemptions(ctx context.Context, businessID string, since time.Time) (int, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM redemptions WHERE business_id = ? AND redeemed_at >= ?`, businessID, since.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "counting redemptions")
	}
	return n, nil
}
