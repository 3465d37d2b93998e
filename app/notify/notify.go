// Package notify fans reconciled status changes out to downstream consumers.
package notify

import (
	"context"
	"errors"
	"time"
)

// Event kinds
const (
	KindFile     = "file"
	KindPipeline = "pipeline"
)

// Event describes one status change that was persisted.
type Event struct {
	Kind       string    `json:"kind"`
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	PipelineID string    `json:"pipeline_id,omitempty"`
	Progress   *int      `json:"progress,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events to one destination.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi publishes to every destination and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
