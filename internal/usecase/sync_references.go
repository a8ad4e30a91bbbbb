package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/entity"
)

// SyncReferences mirrors users, pipelines and stages from the CRM into the
// store. Reference data is a prerequisite for everything downstream, so any
// fetch or write failure aborts the whole step: no partial-reference state.
type SyncReferences struct {
	CRM       CRMGateway
	Users     entity.UserRepository
	Pipelines entity.PipelineRepository
	Stages    entity.StageRepository
	Log       *zap.Logger
}

func NewSyncReferences(
	crm CRMGateway,
	users entity.UserRepository,
	pipelines entity.PipelineRepository,
	stages entity.StageRepository,
	log *zap.Logger,
) *SyncReferences {
	return &SyncReferences{CRM: crm, Users: users, Pipelines: pipelines, Stages: stages, Log: log}
}

func (uc *SyncReferences) Execute(ctx context.Context) error {
	users, err := uc.CRM.ListUsers(ctx)
	if err != nil {
		return &SourceError{Op: "list users", Err: err}
	}
	for _, u := range users {
		if err := uc.Users.Upsert(ctx, u); err != nil {
			return &StoreError{Op: "upsert user", Err: err}
		}
	}

	pipelines, err := uc.CRM.ListPipelines(ctx)
	if err != nil {
		return &SourceError{Op: "list pipelines", Err: err}
	}
	for _, p := range pipelines {
		if err := uc.Pipelines.Upsert(ctx, p); err != nil {
			return &StoreError{Op: "upsert pipeline", Err: err}
		}

		stages, err := uc.CRM.ListStages(ctx, p.ID)
		if err != nil {
			return &SourceError{Op: "list stages", Err: err}
		}
		for _, s := range stages {
			if err := uc.Stages.Upsert(ctx, s); err != nil {
				return &StoreError{Op: "upsert stage", Err: err}
			}
		}
	}

	uc.Log.Info("reference data synced",
		zap.Int("users", len(users)),
		zap.Int("pipelines", len(pipelines)))
	return nil
}
