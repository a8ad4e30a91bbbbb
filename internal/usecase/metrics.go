package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

const dealLinkBase = "https://app.pipedrive.com/deal/%d"

// Metrics computes the windowed funnel statistics purely from the
// reconstructed event log and deal snapshots. It is side-effect-free:
// reading and writing the cache is the caller's business.
//
// All windows are half-open [from, to) in the operating timezone. The
// business day boundary is timezone-sensitive; naive UTC comparison shifts
// results near midnight.
type Metrics struct {
	Deals  entity.DealRepository
	Events entity.StageEventRepository
	Loc    *time.Location
	Now    func() time.Time
}

func NewMetrics(deals entity.DealRepository, events entity.StageEventRepository, loc *time.Location) *Metrics {
	return &Metrics{Deals: deals, Events: events, Loc: loc, Now: time.Now}
}

func (uc *Metrics) Compute(ctx context.Context, ownerID int, funnel entity.FunnelStages, from, to time.Time) (*entity.MetricsResult, error) {
	if err := validateFunnel(funnel); err != nil {
		return nil, err
	}

	signedIDs, signedEntry, err := uc.signedSet(ctx, ownerID, funnel.SignedStageID, from, to)
	if err != nil {
		return nil, err
	}

	deals, err := uc.dealsByID(ctx, signedIDs)
	if err != nil {
		return nil, err
	}

	result := &entity.MetricsResult{
		SignedCount: len(signedIDs),
		Trend:       []entity.TrendPoint{},
		Overdue:     []entity.OverdueDeal{},
	}

	// Launched is a point-in-time snapshot: a deal that launched and later
	// regressed no longer counts.
	for _, id := range signedIDs {
		if d, ok := deals[id]; ok && d.StageID == funnel.LaunchedStageID {
			result.LaunchedCount++
		}
	}
	result.LaunchPct = pct(result.LaunchedCount, result.SignedCount)

	now := uc.Now().In(uc.Loc)
	var durationSum, durationN int

	for _, id := range signedIDs {
		deal, ok := deals[id]
		if !ok {
			continue
		}

		events, err := uc.Events.ListByDeal(ctx, id)
		if err != nil {
			return nil, &StoreError{Op: "list events for deal", Err: err}
		}

		// Average signed-to-end duration counts only deals with both
		// milestone entries; incomplete pairs are excluded, not zeroed.
		if end := earliestEntry(events, funnel.DurationEndStageID); end != nil {
			durationSum += daysBetween(signedEntry[id], *end, uc.Loc)
			durationN++
		}

		plan := planDate(events, deal, funnel.MilestoneStageID)
		if plan == nil {
			// No snapshot and no live date: excluded from missed-deadline
			// consideration, not counted as on time.
			continue
		}

		factLaunch := earliestEntry(events, funnel.LaunchedStageID)
		fact := now
		if factLaunch != nil {
			fact = *factLaunch
		}

		overdue := daysBetween(*plan, fact, uc.Loc)
		if overdue > 0 {
			result.Overdue = append(result.Overdue, entity.OverdueDeal{
				DealID:         id,
				Title:          deal.Title,
				OrgName:        deal.OrgName,
				PlanDate:       *plan,
				FactLaunchDate: factLaunch,
				OverdueDays:    overdue,
				OwnerName:      deal.OwnerName,
				Link:           fmt.Sprintf(dealLinkBase, id),
			})
		}
	}

	result.MissedCount = len(result.Overdue)
	result.MissedPct = pct(result.MissedCount, result.SignedCount)

	if durationN > 0 {
		result.AvgStageDays = round1(float64(durationSum) / float64(durationN))
	}

	trend, err := uc.Trend(ctx, ownerID, funnel, from, to)
	if err != nil {
		return nil, err
	}
	result.Trend = trend

	return result, nil
}

// Trend applies the signed/launched computation to each calendar month
// overlapping [from, to), clamped to the window so the monthly signed
// counts partition the full-window count exactly. It is recomputed on every
// call and never cached.
func (uc *Metrics) Trend(ctx context.Context, ownerID int, funnel entity.FunnelStages, from, to time.Time) ([]entity.TrendPoint, error) {
	if err := validateFunnel(funnel); err != nil {
		return nil, err
	}

	points := []entity.TrendPoint{}
	month := startOfMonth(from.In(uc.Loc))
	for month.Before(to) {
		next := month.AddDate(0, 1, 0)
		subFrom, subTo := maxTime(month, from), minTime(next, to)

		signedIDs, _, err := uc.signedSet(ctx, ownerID, funnel.SignedStageID, subFrom, subTo)
		if err != nil {
			return nil, err
		}

		deals, err := uc.dealsByID(ctx, signedIDs)
		if err != nil {
			return nil, err
		}
		launched := 0
		for _, id := range signedIDs {
			if d, ok := deals[id]; ok && d.StageID == funnel.LaunchedStageID {
				launched++
			}
		}

		points = append(points, entity.TrendPoint{
			Month:     month.Format("2006-01"),
			LaunchPct: pct(launched, len(signedIDs)),
			Signed:    len(signedIDs),
			Launched:  launched,
		})
		month = next
	}
	return points, nil
}

// signedSet returns the deals whose event log enters the signed stage
// within [from, to), deduplicated to one entry per deal: the earliest
// qualifying one. Re-entries in the same window count once.
func (uc *Metrics) signedSet(ctx context.Context, ownerID, stageID int, from, to time.Time) ([]int, map[int]time.Time, error) {
	events, err := uc.Events.ListEntered(ctx, stageID, ownerID, from, to)
	if err != nil {
		return nil, nil, &StoreError{Op: "list signed entries", Err: err}
	}

	entry := make(map[int]time.Time)
	var ids []int
	for _, ev := range events {
		if prev, seen := entry[ev.DealID]; !seen || ev.EnteredAt.Before(prev) {
			if !seen {
				ids = append(ids, ev.DealID)
			}
			entry[ev.DealID] = ev.EnteredAt
		}
	}
	return ids, entry, nil
}

func (uc *Metrics) dealsByID(ctx context.Context, ids []int) (map[int]*entity.Deal, error) {
	out := make(map[int]*entity.Deal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	deals, err := uc.Deals.FindByIDs(ctx, ids)
	if err != nil {
		return nil, &StoreError{Op: "find deals", Err: err}
	}
	for _, d := range deals {
		out[d.ID] = d
	}
	return out, nil
}

// planDate prefers the snapshot frozen at the milestone-stage entry (the
// latest one, should the deal have re-entered); the live expected close
// date is only a fallback. Returns nil when the deal has neither.
func planDate(events []*entity.StageEvent, deal *entity.Deal, milestoneStageID int) *time.Time {
	var best *entity.StageEvent
	for _, ev := range events {
		if ev.StageID != milestoneStageID || ev.SnapshotExpectedCloseDate == nil {
			continue
		}
		if best == nil || ev.EnteredAt.After(best.EnteredAt) {
			best = ev
		}
	}
	if best != nil {
		return best.SnapshotExpectedCloseDate
	}
	return deal.ExpectedCloseDate
}

func earliestEntry(events []*entity.StageEvent, stageID int) *time.Time {
	var best *time.Time
	for _, ev := range events {
		if ev.StageID != stageID {
			continue
		}
		if best == nil || ev.EnteredAt.Before(*best) {
			t := ev.EnteredAt
			best = &t
		}
	}
	return best
}

func validateFunnel(f entity.FunnelStages) error {
	if f.SignedStageID == 0 || f.LaunchedStageID == 0 || f.MilestoneStageID == 0 || f.DurationEndStageID == 0 {
		return &ComputeError{Message: "funnel stages are not fully resolved"}
	}
	return nil
}

// daysBetween is the whole-calendar-day difference to - from in loc.
// Midnights are compared in UTC so a DST jump cannot skew the division.
func daysBetween(from, to time.Time, loc *time.Location) int {
	f, t := from.In(loc), to.In(loc)
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// pct is n/d as a percentage rounded to one decimal; defined as 0 when the
// denominator is 0.
func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 10
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
