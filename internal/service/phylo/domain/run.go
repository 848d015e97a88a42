package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one pipeline execution.
type Run struct {
	ID         uuid.UUID
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	ResultsDir string
	Bundles    int
	Error      string
}

type RunRepository interface {
	Create(ctx context.Context, run Run) error
	Finish(ctx context.Context, id uuid.UUID, status RunStatus, bundles int, errMsg string, at time.Time) error
	Get(ctx context.Context, id uuid.UUID) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}
