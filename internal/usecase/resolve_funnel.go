package usecase

import (
	"context"
	"fmt"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

// ResolveFunnel turns configured role names into source stage ids. It runs
// once per run, right after reference sync, and fails fast when any role is
// unresolvable: a sync that cannot name its stages must not produce metrics.
type ResolveFunnel struct {
	Users     entity.UserRepository
	Pipelines entity.PipelineRepository
	Stages    entity.StageRepository
}

func NewResolveFunnel(
	users entity.UserRepository,
	pipelines entity.PipelineRepository,
	stages entity.StageRepository,
) *ResolveFunnel {
	return &ResolveFunnel{Users: users, Pipelines: pipelines, Stages: stages}
}

func (uc *ResolveFunnel) Execute(ctx context.Context, roles FunnelRoles) (entity.FunnelStages, error) {
	var out entity.FunnelStages

	signed, err := uc.stageID(ctx, roles.Signed)
	if err != nil {
		return out, err
	}
	launched, err := uc.stageID(ctx, roles.Launched)
	if err != nil {
		return out, err
	}
	milestone, err := uc.stageID(ctx, roles.Milestone)
	if err != nil {
		return out, err
	}
	durationEnd, err := uc.stageID(ctx, roles.DurationEnd)
	if err != nil {
		return out, err
	}

	out.SignedStageID = signed
	out.LaunchedStageID = launched
	out.MilestoneStageID = milestone
	out.DurationEndStageID = durationEnd
	return out, nil
}

// Owner resolves an owner display name to the mirrored user.
func (uc *ResolveFunnel) Owner(ctx context.Context, name string) (*entity.User, error) {
	u, err := uc.Users.FindByName(ctx, name)
	if err != nil {
		return nil, &StoreError{Op: "find user by name", Err: err}
	}
	if u == nil {
		return nil, &ConfigError{Message: fmt.Sprintf("owner %q not found", name)}
	}
	return u, nil
}

func (uc *ResolveFunnel) stageID(ctx context.Context, role StageRole) (int, error) {
	p, err := uc.Pipelines.FindByName(ctx, role.Pipeline)
	if err != nil {
		return 0, &StoreError{Op: "find pipeline by name", Err: err}
	}
	if p == nil {
		return 0, &ConfigError{Message: fmt.Sprintf("pipeline %q not found", role.Pipeline)}
	}

	s, err := uc.Stages.FindByName(ctx, p.ID, role.Stage)
	if err != nil {
		return 0, &StoreError{Op: "find stage by name", Err: err}
	}
	if s == nil {
		return 0, &ConfigError{Message: fmt.Sprintf("stage %q not found in pipeline %q", role.Stage, role.Pipeline)}
	}
	return s.ID, nil
}
