package commands

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunsDirName holds one results directory per started run.
const RunsDirName = "runs"

var ErrShuttingDown = errors.New("runs: shutting down")

type StartRunCommand struct {
	Pipeline RunPipelineCommand
}

type StartRunResult struct {
	Run domain.Run
}

type StartRunHandler interface {
	Handle(ctx context.Context, cmd StartRunCommand) (result StartRunResult, err error)
	// Wait blocks until every started run has finished.
	Wait()
	// Shutdown refuses new runs and waits for started ones until ctx is
	// done, then cancels them and waits for their outcome to be recorded.
	Shutdown(ctx context.Context) error
}

func NewStartRunHandler(pipeline RunPipelineHandler, runs domain.RunRepository, logger *zap.Logger) StartRunHandler {
	lifetime, cancel := context.WithCancel(context.Background())
	return &startRunCmdHandler{
		pipeline: pipeline,
		runs:     runs,
		logger:   logger.Named("runs"),
		now:      time.Now,
		lifetime: lifetime,
		cancel:   cancel,
	}
}

type startRunCmdHandler struct {
	pipeline RunPipelineHandler
	runs     domain.RunRepository
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	lifetime context.Context
	cancel   context.CancelFunc
}

/*
Handle records a new run and executes the pipeline in the background, in
its own directory <ResultsDir>/runs/<id> so concurrent runs never share
outputs. The pipeline keeps running after the caller's context ends; its
outcome is written back to the run record.
*/
func (h *startRunCmdHandler) Handle(ctx context.Context, cmd StartRunCommand) (StartRunResult, error) {
	id := uuid.New()
	pipeline := cmd.Pipeline
	pipeline.ResultsDir = filepath.Join(cmd.Pipeline.ResultsDir, RunsDirName, id.String())
	if pipeline.Fetch.ServerURL != "" {
		pipeline.Fetch.OutputDir = filepath.Join(pipeline.ResultsDir, "fhir")
	}

	run := domain.Run{
		ID:         id,
		Status:     domain.RunStatusRunning,
		StartedAt:  h.now().UTC(),
		ResultsDir: pipeline.ResultsDir,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return StartRunResult{}, ErrShuttingDown
	}
	if err := h.runs.Create(ctx, run); err != nil {
		return StartRunResult{}, err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.execute(h.lifetime, run, pipeline)
	}()

	return StartRunResult{Run: run}, nil
}

func (h *startRunCmdHandler) execute(ctx context.Context, run domain.Run, cmd RunPipelineCommand) {
	logger := h.logger.With(zap.Stringer("run", run.ID))
	logger.Info("run started", zap.String("dir", cmd.ResultsDir))

	result, err := h.pipeline.Handle(ctx, cmd)

	status, msg := domain.RunStatusSucceeded, ""
	if err != nil {
		status, msg = domain.RunStatusFailed, err.Error()
		logger.Error("run failed", zap.Error(err))
	} else {
		logger.Info("run succeeded", zap.Int("bundles", len(result.Bundles)))
	}

	// recorded even when the run was cancelled by Shutdown
	err = h.runs.Finish(context.WithoutCancel(ctx), run.ID, status, len(result.Bundles), msg, h.now().UTC())
	if err != nil {
		logger.Error("recording run outcome failed", zap.Error(err))
	}
}

func (h *startRunCmdHandler) Wait() {
	h.wg.Wait()
}

func (h *startRunCmdHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	defer h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.logger.Warn("cancelling unfinished runs")
		h.cancel()
		<-done
		return ctx.Err()
	}
}
