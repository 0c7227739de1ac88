package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const leaderboardSize = 10

// Metric is a headline number with its change against the previous window.
type Metric struct {
	Value        float64 `json:"value"`
	Previous     float64 `json:"previous"`
	TrendPercent float64 `json:"trendPercent"`
}

type Dashboard struct {
	PeriodDays         int                `json:"periodDays"`
	LeadsShared        Metric             `json:"leadsShared"`
	LeadsWon           Metric             `json:"leadsWon"`
	ConversionRate     Metric             `json:"conversionRate"`
	TotalJobValue      Metric             `json:"totalJobValue"`
	TotalCommission    Metric             `json:"totalCommission"`
	AvgResponseMinutes *float64           `json:"avgResponseMinutes,omitempty"`
	TopReferrers       []LeaderboardEntry `json:"topReferrers"`
	TopEarners         []LeaderboardEntry `json:"topEarners"`
	DailyActivity      []DailyActivity    `json:"dailyActivity"`
}

// Fetcher is the aggregate query surface the dashboard fans out over.
// *Repository satisfies it.
type Fetcher interface {
	Totals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (PeriodTotals, error)
	TopReferrers(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]LeaderboardEntry, error)
	TopEarners(ctx context.Context, tenantID uuid.UUID, from, to time.Time, limit int) ([]LeaderboardEntry, error)
	DailyActivity(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]DailyActivity, error)
}

type Service struct {
	repo Fetcher
	now  func() time.Time
}

func NewService(repo Fetcher) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Dashboard assembles the association dashboard. The previous period is the
// sliding window of the same length immediately before the current one, so
// trends compare like with like.
func (s *Service) Dashboard(ctx context.Context, tenantID uuid.UUID, days int) (Dashboard, error) {
	if days < 1 {
		days = 30
	}

	now := s.now()
	from := now.AddDate(0, 0, -days)
	prevFrom := from.AddDate(0, 0, -days)

	var (
		current            PeriodTotals
		previous           PeriodTotals
		referrers, earners []LeaderboardEntry
		daily              []DailyActivity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.repo.Totals(gctx, tenantID, from, now)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.repo.Totals(gctx, tenantID, prevFrom, from)
		return err
	})
	g.Go(func() error {
		var err error
		referrers, err = s.repo.TopReferrers(gctx, tenantID, from, now, leaderboardSize)
		return err
	})
	g.Go(func() error {
		var err error
		earners, err = s.repo.TopEarners(gctx, tenantID, from, now, leaderboardSize)
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = s.repo.DailyActivity(gctx, tenantID, from, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		PeriodDays:         days,
		LeadsShared:        metric(float64(current.LeadsShared), float64(previous.LeadsShared)),
		LeadsWon:           metric(float64(current.LeadsWon), float64(previous.LeadsWon)),
		ConversionRate:     metric(conversionRate(current), conversionRate(previous)),
		TotalJobValue:      metric(current.TotalJobValue, previous.TotalJobValue),
		TotalCommission:    metric(current.TotalCommission, previous.TotalCommission),
		AvgResponseMinutes: current.AvgResponseMinutes,
		TopReferrers:       referrers,
		TopEarners:         earners,
		DailyActivity:      daily,
	}, nil
}

func conversionRate(totals PeriodTotals) float64 {
	if totals.LeadsShared == 0 {
		return 0
	}
	return float64(totals.LeadsWon) / float64(totals.LeadsShared) * 100
}

func metric(current, previous float64) Metric {
	m := Metric{Value: current, Previous: previous}
	switch {
	case previous != 0:
		m.TrendPercent = (current - previous) / previous * 100
	case current != 0:
		m.TrendPercent = 100
	}
	return m
}
