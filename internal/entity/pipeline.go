package entity

import (
	"context"
	"encoding/json"
)

// Pipeline is a named funnel ("Sales CIS", "Clients CIS", ...). Names are
// unique case-insensitively within the mirrored set.
type Pipeline struct {
	ID   int             `json:"id"`
	Name string          `json:"name"`
	Raw  json.RawMessage `json:"-"`
}

// Stage is a step within a pipeline. OrderNo defines funnel progression but
// is not assumed to be contiguous.
type Stage struct {
	ID         int             `json:"id"`
	PipelineID int             `json:"pipeline_id"`
	Name       string          `json:"name"`
	OrderNo    int             `json:"order_no"`
	Raw        json.RawMessage `json:"-"`
}

type PipelineRepository interface {
	Upsert(ctx context.Context, p *Pipeline) error
	// FindByName is case-insensitive. Returns nil when no pipeline matches.
	FindByName(ctx context.Context, name string) (*Pipeline, error)
}

type StageRepository interface {
	Upsert(ctx context.Context, s *Stage) error
	// FindByName is case-insensitive within one pipeline. Returns nil on no match.
	FindByName(ctx context.Context, pipelineID int, name string) (*Stage, error)
}
