package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

func newSyncDealsFixture() (*SyncDeals, *fakeCRM, *fakeDealRepo, *fakeEventRepo, *fakeSyncLogRepo) {
	crm := newFakeCRM()
	deals := newFakeDealRepo()
	events := newFakeEventRepo(deals)
	logs := &fakeSyncLogRepo{}
	uc := NewSyncDeals(crm, deals, events, logs, "pipedrive", zap.NewNop())
	return uc, crm, deals, events, logs
}

func crmDeal(id, ownerID int, updated time.Time) *entity.Deal {
	return &entity.Deal{
		ID:         id,
		Title:      fmt.Sprintf("Deal %d", id),
		OwnerID:    ownerID,
		PipelineID: testPipelineID,
		StageID:    signedStage,
		Status:     entity.DealStatusOpen,
		UpdateTime: updated,
	}
}

func TestSyncDealsFullModePaginatesAndStoresHistory(t *testing.T) {
	uc, crm, deals, events, _ := newSyncDealsFixture()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 1; i <= 150; i++ {
		crm.deals = append(crm.deals, crmDeal(i, testOwnerID, now))
	}
	crm.history[1] = []*entity.StageEvent{
		{StageID: signedStage, EnteredAt: now.Add(-48 * time.Hour)},
		{StageID: launchedStage, EnteredAt: now.Add(-24 * time.Hour)},
	}

	out, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeFull,
		Funnel:  testFunnel(),
	})

	require.NoError(t, err)
	assert.Equal(t, ModeFull, out.ModeUsed)
	assert.Equal(t, 150, out.DealsProcessed)
	assert.Equal(t, 150, deals.upserts)
	assert.Equal(t, 2, out.EventsInserted)
	assert.Equal(t, 0, out.HistoryFailures)

	stored, err := events.ListByDeal(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 1, stored[0].DealID)
	assert.Equal(t, entity.StageEventSourceFlow, stored[0].Source)
}

func TestSyncDealsIncrementalFallsBackToFullWithoutWatermark(t *testing.T) {
	uc, crm, _, _, _ := newSyncDealsFixture()
	crm.deals = append(crm.deals, crmDeal(1, testOwnerID, time.Now()))

	out, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeIncremental,
		Funnel:  testFunnel(),
	})

	require.NoError(t, err)
	assert.Equal(t, ModeFull, out.ModeUsed)
	assert.Empty(t, crm.sinceCalls)
	assert.Positive(t, crm.listDealsCalls)
}

func TestSyncDealsIncrementalUsesWatermarkStart(t *testing.T) {
	uc, crm, _, _, logs := newSyncDealsFixture()

	watermark := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, logs.Create(context.Background(), &entity.SyncLog{
		Source: "pipedrive", StartedAt: watermark, Status: entity.SyncStatusOK,
	}))

	crm.deals = append(crm.deals,
		crmDeal(1, testOwnerID, watermark.Add(-time.Hour)),
		crmDeal(2, testOwnerID, watermark.Add(time.Hour)),
	)

	out, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeIncremental,
		Funnel:  testFunnel(),
	})

	require.NoError(t, err)
	assert.Equal(t, ModeIncremental, out.ModeUsed)
	assert.Equal(t, 1, out.DealsProcessed)
	require.Len(t, crm.sinceCalls, 1)
	assert.True(t, crm.sinceCalls[0].Equal(watermark))
}

// The in-flight run's own (optimistically ok) log row must not become the
// watermark, or every incremental run would see an empty window.
func TestSyncDealsIncrementalIgnoresOwnRun(t *testing.T) {
	uc, crm, _, _, logs := newSyncDealsFixture()

	current := &entity.SyncLog{Source: "pipedrive", StartedAt: time.Now(), Status: entity.SyncStatusOK}
	require.NoError(t, logs.Create(context.Background(), current))
	crm.deals = append(crm.deals, crmDeal(1, testOwnerID, time.Now()))

	out, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeIncremental,
		Funnel:  testFunnel(),
		RunID:   current.ID,
	})

	require.NoError(t, err)
	assert.Equal(t, ModeFull, out.ModeUsed)
}

func TestSyncDealsSnapshotsExpectedCloseOnMilestone(t *testing.T) {
	uc, crm, _, events, _ := newSyncDealsFixture()

	expected := dateUTC(2025, 4, 15)
	deal := crmDeal(1, testOwnerID, time.Now())
	deal.ExpectedCloseDate = &expected
	crm.deals = append(crm.deals, deal)
	crm.history[1] = []*entity.StageEvent{
		{StageID: signedStage, EnteredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{StageID: milestoneStage, EnteredAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)},
	}

	_, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeFull,
		Funnel:  testFunnel(),
	})
	require.NoError(t, err)

	stored, err := events.ListByDeal(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Nil(t, stored[0].SnapshotExpectedCloseDate)
	require.NotNil(t, stored[1].SnapshotExpectedCloseDate)
	assert.True(t, stored[1].SnapshotExpectedCloseDate.Equal(expected))
}

// One deal with a broken flow endpoint is skipped and counted; the rest of
// the batch still lands.
func TestSyncDealsHistoryFailureSkipsDeal(t *testing.T) {
	uc, crm, deals, _, _ := newSyncDealsFixture()

	crm.deals = append(crm.deals,
		crmDeal(1, testOwnerID, time.Now()),
		crmDeal(2, testOwnerID, time.Now()),
	)
	crm.historyErr[1] = errors.New("flow endpoint 500")
	crm.history[2] = []*entity.StageEvent{
		{StageID: signedStage, EnteredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	out, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeFull,
		Funnel:  testFunnel(),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, out.DealsProcessed)
	assert.Equal(t, 1, out.HistoryFailures)
	assert.Equal(t, 1, out.EventsInserted)
	assert.Equal(t, 2, deals.upserts)
}

// Re-syncing the same history must not double-count: the idempotent insert
// reports duplicates and they stay out of the inserted tally.
func TestSyncDealsRerunInsertsNothingNew(t *testing.T) {
	uc, crm, _, events, _ := newSyncDealsFixture()

	crm.deals = append(crm.deals, crmDeal(1, testOwnerID, time.Now()))
	crm.history[1] = []*entity.StageEvent{
		{StageID: signedStage, EnteredAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	input := SyncDealsInput{OwnerID: testOwnerID, Mode: ModeFull, Funnel: testFunnel()}

	first, err := uc.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, first.EventsInserted)

	second, err := uc.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EventsInserted)
	assert.Len(t, events.events, 1)
}

type endlessCRM struct {
	fakeCRM
}

func (c *endlessCRM) ListDeals(_ context.Context, offset, limit, ownerID int) ([]*entity.Deal, error) {
	page := make([]*entity.Deal, limit)
	for i := range page {
		page[i] = crmDeal(offset+i+1, ownerID, time.Now())
	}
	return page, nil
}

func TestSyncDealsPageLimitGuard(t *testing.T) {
	deals := newFakeDealRepo()
	events := newFakeEventRepo(deals)
	uc := NewSyncDeals(&endlessCRM{}, deals, events, &fakeSyncLogRepo{}, "pipedrive", zap.NewNop())

	_, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeFull,
		Funnel:  testFunnel(),
	})

	require.ErrorIs(t, err, ErrPageLimit)
}

func TestSyncDealsSourceErrorAborts(t *testing.T) {
	uc, crm, _, _, _ := newSyncDealsFixture()
	crm.dealsErr = errors.New("api down")

	_, err := uc.Execute(context.Background(), SyncDealsInput{
		OwnerID: testOwnerID,
		Mode:    ModeFull,
		Funnel:  testFunnel(),
	})

	require.Error(t, err)
	assert.True(t, IsSourceError(err))
}
