package entity

// FunnelStages maps the configured stage roles to source stage ids.
// It is resolved once per run, right after reference sync, and passed
// around as a value: no component re-resolves names mid-flight.
//
// Signed marks funnel entry, Launched marks funnel completion, Milestone
// anchors the expected-close-date snapshot, DurationEnd closes the
// signed-to-DurationEnd duration measurement.
type FunnelStages struct {
	SignedStageID      int
	LaunchedStageID    int
	MilestoneStageID   int
	DurationEndStageID int
}
