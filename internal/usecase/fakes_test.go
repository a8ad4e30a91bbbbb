package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

// In-memory doubles for the store and the CRM gateway. They honor the same
// contracts as the Postgres repositories (idempotent event insert, half-open
// window filtering, case-insensitive name lookup) so the engines can be
// exercised end to end without a database.

type fakeUserRepo struct {
	users   map[int]*entity.User
	upserts int
	failOn  string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*entity.User{}}
}

func (r *fakeUserRepo) Upsert(_ context.Context, u *entity.User) error {
	if r.failOn == "upsert" {
		return errors.New("user upsert failed")
	}
	r.upserts++
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) FindByName(_ context.Context, name string) (*entity.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(strings.TrimSpace(u.Name), strings.TrimSpace(name)) {
			return u, nil
		}
	}
	return nil, nil
}

type fakePipelineRepo struct {
	pipelines map[int]*entity.Pipeline
	upserts   int
}

func newFakePipelineRepo() *fakePipelineRepo {
	return &fakePipelineRepo{pipelines: map[int]*entity.Pipeline{}}
}

func (r *fakePipelineRepo) Upsert(_ context.Context, p *entity.Pipeline) error {
	r.upserts++
	copied := *p
	r.pipelines[p.ID] = &copied
	return nil
}

func (r *fakePipelineRepo) FindByName(_ context.Context, name string) (*entity.Pipeline, error) {
	for _, p := range r.pipelines {
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return nil, nil
}

type fakeStageRepo struct {
	stages  map[int]*entity.Stage
	upserts int
}

func newFakeStageRepo() *fakeStageRepo {
	return &fakeStageRepo{stages: map[int]*entity.Stage{}}
}

func (r *fakeStageRepo) Upsert(_ context.Context, s *entity.Stage) error {
	r.upserts++
	copied := *s
	r.stages[s.ID] = &copied
	return nil
}

func (r *fakeStageRepo) FindByName(_ context.Context, pipelineID int, name string) (*entity.Stage, error) {
	for _, s := range r.stages {
		if s.PipelineID == pipelineID && strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return nil, nil
}

type fakeDealRepo struct {
	deals   map[int]*entity.Deal
	upserts int
}

func newFakeDealRepo() *fakeDealRepo {
	return &fakeDealRepo{deals: map[int]*entity.Deal{}}
}

func (r *fakeDealRepo) Upsert(_ context.Context, d *entity.Deal) error {
	r.upserts++
	copied := *d
	r.deals[d.ID] = &copied
	return nil
}

func (r *fakeDealRepo) FindByIDs(_ context.Context, ids []int) ([]*entity.Deal, error) {
	var out []*entity.Deal
	for _, id := range ids {
		if d, ok := r.deals[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	deals  *fakeDealRepo
	events []*entity.StageEvent
	nextID int64
}

func newFakeEventRepo(deals *fakeDealRepo) *fakeEventRepo {
	return &fakeEventRepo{deals: deals}
}

func (r *fakeEventRepo) Insert(_ context.Context, ev *entity.StageEvent) (bool, error) {
	for _, existing := range r.events {
		if existing.DealID == ev.DealID && existing.StageID == ev.StageID && existing.EnteredAt.Equal(ev.EnteredAt) {
			return false, nil
		}
	}
	r.nextID++
	copied := *ev
	copied.ID = r.nextID
	r.events = append(r.events, &copied)
	return true, nil
}

func (r *fakeEventRepo) ListByDeal(_ context.Context, dealID int) ([]*entity.StageEvent, error) {
	var out []*entity.StageEvent
	for _, ev := range r.events {
		if ev.DealID == dealID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnteredAt.Before(out[j].EnteredAt) })
	return out, nil
}

func (r *fakeEventRepo) ListEntered(_ context.Context, stageID, ownerID int, from, to time.Time) ([]*entity.StageEvent, error) {
	var out []*entity.StageEvent
	for _, ev := range r.events {
		deal, ok := r.deals.deals[ev.DealID]
		if !ok || deal.OwnerID != ownerID {
			continue
		}
		if ev.StageID != stageID {
			continue
		}
		if ev.EnteredAt.Before(from) || !ev.EnteredAt.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnteredAt.Before(out[j].EnteredAt) })
	return out, nil
}

type fakeSyncLogRepo struct {
	logs   []*entity.SyncLog
	nextID int64
}

func (r *fakeSyncLogRepo) Create(_ context.Context, l *entity.SyncLog) error {
	r.nextID++
	l.ID = r.nextID
	copied := *l
	r.logs = append(r.logs, &copied)
	return nil
}

func (r *fakeSyncLogRepo) Finalize(_ context.Context, id int64, status string, info json.RawMessage) error {
	for _, l := range r.logs {
		if l.ID == id {
			l.FinishedAt = time.Now()
			l.Status = status
			l.Info = info
			return nil
		}
	}
	return fmt.Errorf("sync log %d not found", id)
}

func (r *fakeSyncLogRepo) LastSuccessful(_ context.Context, source string, excludeID int64) (*entity.SyncLog, error) {
	var best *entity.SyncLog
	for _, l := range r.logs {
		if l.Source != source || l.Status != entity.SyncStatusOK || l.ID == excludeID {
			continue
		}
		if best == nil || l.StartedAt.After(best.StartedAt) {
			best = l
		}
	}
	return best, nil
}

func (r *fakeSyncLogRepo) ListRecent(_ context.Context, source string, limit int) ([]*entity.SyncLog, error) {
	var out []*entity.SyncLog
	for _, l := range r.logs {
		if l.Source == source {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCacheRepo struct {
	entries map[string]*entity.MetricsCache
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: map[string]*entity.MetricsCache{}}
}

func cacheKey(ownerID int, from, to time.Time) string {
	return fmt.Sprintf("%d|%d|%d", ownerID, from.UnixNano(), to.UnixNano())
}

func (r *fakeCacheRepo) Get(_ context.Context, ownerID int, from, to time.Time) (*entity.MetricsCache, error) {
	return r.entries[cacheKey(ownerID, from, to)], nil
}

func (r *fakeCacheRepo) Put(_ context.Context, c *entity.MetricsCache) error {
	r.entries[cacheKey(c.OwnerID, c.FromDate, c.ToDate)] = c
	return nil
}

type fakeCRM struct {
	users     []*entity.User
	pipelines []*entity.Pipeline
	stages    map[int][]*entity.Stage
	deals     []*entity.Deal
	history   map[int][]*entity.StageEvent

	historyErr map[int]error
	usersErr   error
	dealsErr   error

	listDealsCalls int
	sinceCalls     []time.Time
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		stages:     map[int][]*entity.Stage{},
		history:    map[int][]*entity.StageEvent{},
		historyErr: map[int]error{},
	}
}

func (c *fakeCRM) ListUsers(context.Context) ([]*entity.User, error) {
	return c.users, c.usersErr
}

func (c *fakeCRM) ListPipelines(context.Context) ([]*entity.Pipeline, error) {
	return c.pipelines, nil
}

func (c *fakeCRM) ListStages(_ context.Context, pipelineID int) ([]*entity.Stage, error) {
	return c.stages[pipelineID], nil
}

func (c *fakeCRM) ListDeals(_ context.Context, offset, limit, ownerID int) ([]*entity.Deal, error) {
	c.listDealsCalls++
	if c.dealsErr != nil {
		return nil, c.dealsErr
	}
	var owned []*entity.Deal
	for _, d := range c.deals {
		if d.OwnerID == ownerID {
			owned = append(owned, d)
		}
	}
	if offset >= len(owned) {
		return nil, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (c *fakeCRM) ListDealsSince(_ context.Context, since time.Time, ownerID int) ([]*entity.Deal, error) {
	c.sinceCalls = append(c.sinceCalls, since)
	if c.dealsErr != nil {
		return nil, c.dealsErr
	}
	var out []*entity.Deal
	for _, d := range c.deals {
		if d.OwnerID == ownerID && d.UpdateTime.After(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *fakeCRM) StageHistory(_ context.Context, dealID int) ([]*entity.StageEvent, error) {
	if err := c.historyErr[dealID]; err != nil {
		return nil, err
	}
	var out []*entity.StageEvent
	for _, ev := range c.history[dealID] {
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}
