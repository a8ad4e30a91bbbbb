package usecase

import (
	"context"
	"time"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

// CRMGateway is the source adapter: paginated listings plus a best-effort
// per-deal stage-transition log. The HTTP/pagination/rate-limit plumbing
// lives behind this interface.
type CRMGateway interface {
	ListUsers(ctx context.Context) ([]*entity.User, error)
	ListPipelines(ctx context.Context) ([]*entity.Pipeline, error)
	ListStages(ctx context.Context, pipelineID int) ([]*entity.Stage, error)
	// ListDeals returns one page of deals for the owner; an empty page ends
	// pagination.
	ListDeals(ctx context.Context, offset, limit, ownerID int) ([]*entity.Deal, error)
	// ListDealsSince returns deals updated after since.
	ListDealsSince(ctx context.Context, since time.Time, ownerID int) ([]*entity.Deal, error)
	// StageHistory returns the deal's stage transitions ordered by entry
	// time. The endpoint is best-effort: an empty result means "no new
	// information", not "no history".
	StageHistory(ctx context.Context, dealID int) ([]*entity.StageEvent, error)
}

// AlertSender delivers best-effort ops notifications about failed runs.
type AlertSender interface {
	SendSyncFailure(source, message string) error
}

// StageRole names a stage by (pipeline name, stage name). Resolution to ids
// happens once per run and is case-insensitive.
type StageRole struct {
	Pipeline string
	Stage    string
}

// FunnelRoles is the configured mapping of logical roles to stage names.
type FunnelRoles struct {
	Signed      StageRole
	Launched    StageRole
	Milestone   StageRole
	DurationEnd StageRole
}
