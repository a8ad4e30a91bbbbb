package entity

import (
	"context"
	"time"
)

// TrendPoint is one calendar month of the launch-rate trend.
type TrendPoint struct {
	Month     string  `json:"month"`
	LaunchPct float64 `json:"launchPct"`
	Signed    int     `json:"signed"`
	Launched  int     `json:"launched"`
}

// OverdueDeal is one row of the missed-deadline report.
type OverdueDeal struct {
	DealID         int        `json:"deal_id"`
	Title          string     `json:"deal_title"`
	OrgName        string     `json:"org_name"`
	PlanDate       time.Time  `json:"plan_date"`
	FactLaunchDate *time.Time `json:"fact_launch_date,omitempty"`
	OverdueDays    int        `json:"overdue_days"`
	OwnerName      string     `json:"owner_name"`
	Link           string     `json:"link"`
}

// MetricsResult is the full funnel computation for one (owner, window) pair.
type MetricsResult struct {
	SignedCount   int           `json:"signedCount"`
	LaunchedCount int           `json:"launchedCount"`
	LaunchPct     float64       `json:"launchPct"`
	MissedCount   int           `json:"missedCount"`
	MissedPct     float64       `json:"missedPct"`
	AvgStageDays  float64       `json:"avgStageDays"`
	Trend         []TrendPoint  `json:"trend"`
	Overdue       []OverdueDeal `json:"overdue"`
}

// MetricsCache memoizes the aggregate for an exact (owner, from, to) key.
// It is always written as a whole and never mutated field-by-field. Trend
// and overdue rows are deliberately not cached: they decompose the window
// into sub-queries whose entries would multiply for little reuse.
type MetricsCache struct {
	OwnerID       int       `json:"owner_id"`
	FromDate      time.Time `json:"from_date"`
	ToDate        time.Time `json:"to_date"`
	SignedCount   int       `json:"signedCount"`
	LaunchedCount int       `json:"launchedCount"`
	LaunchPct     float64   `json:"launchPct"`
	MissedCount   int       `json:"missedCount"`
	MissedPct     float64   `json:"missedPct"`
	AvgStageDays  float64   `json:"avgStageDays"`
	ComputedAt    time.Time `json:"computed_at"`
}

type MetricsCacheRepository interface {
	// Get returns nil on a cache miss. The key is the exact triple; windows
	// differing by a day are different entries.
	Get(ctx context.Context, ownerID int, from, to time.Time) (*MetricsCache, error)
	Put(ctx context.Context, c *MetricsCache) error
}
