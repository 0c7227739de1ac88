package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgxpool.Pool this module uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// PeriodTotals are the headline numbers for one reporting window.
type PeriodTotals struct {
	LeadsShared        int
	LeadsWon           int
	TotalJobValue      float64
	TotalCommission    float64
	AvgResponseMinutes *float64
}

func (r *Repository) Totals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (PeriodTotals, error) {
	var totals PeriodTotals
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'won'),
			COALESCE(SUM(job_value), 0),
			COALESCE(SUM(commission_amount), 0),
			AVG(response_time_minutes)
		FROM leads
		WHERE tenant_id = $1 AND shared_at >= $2 AND shared_at < $3
	`, tenantID, from, to).Scan(
		&totals.LeadsShared, &totals.LeadsWon,
		&totals.TotalJobValue, &totals.TotalCommission,
		&totals.AvgResponseMinutes,
	)
	return totals, err
}

// LeaderboardEntry is one contractor's standing in a reporting window.
type LeaderboardEntry struct {
	ContractorID uuid.UUID `json:"contractorId"`
	BusinessName string    `json:"businessName"`
	Value        float64   `json:"value"`
}

// TopReferrers ranks contractors by leads shared in the window.
func (r *Repository) TopReferrers(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]LeaderboardEntry, error) {
	return r.leaderboard(ctx, `
		SELECT l.referrer_id, c.business_name, COUNT(*)::float8
		FROM leads l
		JOIN contractors c ON c.id = l.referrer_id
		WHERE l.tenant_id = $1 AND l.shared_at >= $2 AND l.shared_at < $3
		GROUP BY l.referrer_id, c.business_name
		ORDER BY COUNT(*) DESC, c.business_name ASC
		LIMIT $4
	`, tenantID, from, to, limit)
}

// TopEarners ranks contractors by commission earned from referrals in the
// window.
func (r *Repository) TopEarners(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]LeaderboardEntry, error) {
	return r.leaderboard(ctx, `
		SELECT l.referrer_id, c.business_name, COALESCE(SUM(l.commission_amount), 0)
		FROM leads l
		JOIN contractors c ON c.id = l.referrer_id
		WHERE l.tenant_id = $1 AND l.shared_at >= $2 AND l.shared_at < $3 AND l.commission_amount IS NOT NULL
		GROUP BY l.referrer_id, c.business_name
		ORDER BY SUM(l.commission_amount) DESC, c.business_name ASC
		LIMIT $4
	`, tenantID, from, to, limit)
}

func (r *Repository) leaderboard(ctx context.Context, query string, args ...any) ([]LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]LeaderboardEntry, 0)
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.ContractorID, &entry.BusinessName, &entry.Value); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DailyActivity is one day's lead volume for activity charts.
type DailyActivity struct {
	Day         time.Time `json:"day"`
	LeadsShared int       `json:"leadsShared"`
	LeadsWon    int       `json:"leadsWon"`
}

func (r *Repository) DailyActivity(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyActivity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			date_trunc('day', shared_at) AS day,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'won')
		FROM leads
		WHERE tenant_id = $1 AND shared_at >= $2 AND shared_at < $3
		GROUP BY day
		ORDER BY day ASC
	`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DailyActivity, 0)
	for rows.Next() {
		var day DailyActivity
		if err := rows.Scan(&day.Day, &day.LeadsShared, &day.LeadsWon); err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, rows.Err()
}
