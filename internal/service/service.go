package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cleo-Systems/tbphylo/internal/service/config"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/augur"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir"
	phyloHTTP "github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/http"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/store"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app/commands"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app/queries"
	"github.com/Cleo-Systems/tbphylo/internal/service/runtime"
	"go.uber.org/zap"
)

const (
	fhirRequestTimeout = 60 * time.Second
	shutdownTimeout    = 10 * time.Second
)

type Service struct {
	config config.Config
	logger *zap.Logger

	cmdBus app.CommandBus

	// set for the HTTP service only
	runs       *store.RunStore
	queryBus   app.QueryBus
	httpServer *http.Server
}

// NewPhyloService wires the command side only, for one-shot CLI use.
func NewPhyloService(cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		config: cfg,
		logger: logger,
		cmdBus: newCommandBus(cfg, logger, nil),
	}
}

/*
NewHTTPService wires the full service: run store, command and query buses
and the HTTP server. Augur is never run from the service because a failed
scipipe task exits the process.
*/
func NewHTTPService(cfg config.Config, logger *zap.Logger) (*Service, error) {
	cfg.Augur.Enabled = false

	runs, err := store.Open(cfg.RunsDBPath())
	if err != nil {
		return nil, err
	}

	cmdBus := newCommandBus(cfg, logger, runs)

	// init queries
	getRunHandler := queries.NewGetRunQueryHandler(runs)
	listRunsHandler := queries.NewListRunsQueryHandler(runs)
	queryBus := app.NewQueryBus(getRunHandler, listRunsHandler)

	svc := &Service{
		config:   cfg,
		logger:   logger,
		cmdBus:   cmdBus,
		runs:     runs,
		queryBus: queryBus,
	}

	// init http handler
	phyloHTTPServer := phyloHTTP.NewServer(cmdBus, queryBus, svc.PipelineCommand())

	httpServer, err := runtime.NewHTTPServer(cfg, phyloHTTPServer, logger)
	if err != nil {
		_ = runs.Close()
		return nil, err
	}
	svc.httpServer = httpServer

	return svc, nil
}

// runs may be nil, in which case the bus cannot start background runs.
func newCommandBus(cfg config.Config, logger *zap.Logger, runs *store.RunStore) app.CommandBus {
	httpClient := &http.Client{Timeout: fhirRequestTimeout}

	// init commands
	fetchHandler := commands.NewFetchBundlesHandler(httpClient, logger.Named("fetch"))
	consensusHandler := commands.NewBuildConsensusHandler(logger)
	phyloHandler := commands.NewBuildPhyloHandler(logger)

	var tree commands.TreeRunner
	if cfg.Augur.Enabled {
		tree = augur.NewRunner(augur.Options{
			Binary:         cfg.Augur.Binary,
			TreeMethod:     cfg.Augur.TreeMethod,
			EnableTimetree: cfg.Augur.EnableTimetree,
		}, logger)
	}
	pipelineHandler := commands.NewRunPipelineHandler(fetchHandler, consensusHandler, phyloHandler, tree, logger)

	var startRunHandler commands.StartRunHandler
	if runs != nil {
		startRunHandler = commands.NewStartRunHandler(pipelineHandler, runs, logger)
	}

	return app.NewCommandBus(fetchHandler, consensusHandler, phyloHandler, pipelineHandler, startRunHandler)
}

func (s *Service) Commands() app.CommandBus {
	return s.cmdBus
}

// FetchCommand builds a fetch from the configured FHIR server settings.
func (s *Service) FetchCommand() commands.FetchBundlesCommand {
	f := s.config.FHIR
	return commands.FetchBundlesCommand{
		ServerURL: f.ServerURL,
		Credentials: fhir.Credentials{
			APIKey:       f.APIKey,
			TokenURL:     f.TokenURL,
			ClientID:     f.ClientID,
			ClientSecret: f.ClientSecret,
			Scope:        f.Scope,
		},
		Since:     f.Since,
		OutputDir: s.config.FetchDir(),
	}
}

// PipelineCommand is the full run described by the configuration.
func (s *Service) PipelineCommand() commands.RunPipelineCommand {
	return commands.RunPipelineCommand{
		InputDir:     s.config.InputDir,
		Reference:    s.config.Reference,
		ResultsDir:   s.config.ResultsDir,
		Anchors:      s.config.Anchors,
		Workers:      s.config.Workers,
		SNPThreshold: s.config.SNPThreshold,
		Fetch:        s.FetchCommand(),
		RunAugur:     s.config.Augur.Enabled,
	}
}

// Start serves HTTP until ctx is done or SIGINT/SIGTERM arrives, then drains
// in-flight requests and background runs.
func (s *Service) Start(ctx context.Context) error {
	if s.httpServer == nil {
		return errors.New("service: no http server configured")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			s.Close()
			return err
		}
	}

	s.logger.Info("shutting down")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(timeoutCtx)
	s.Close()
	if err != nil {
		return err
	}

	s.logger.Info("server stopped")
	return nil
}

/*
Close gives background runs shutdownTimeout to finish, cancels the rest and
releases the run store once their outcome is recorded.
*/
func (s *Service) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.cmdBus.ShutdownRuns(ctx); err != nil {
		s.logger.Warn("unfinished runs cancelled", zap.Error(err))
	}
	if s.runs != nil {
		if err := s.runs.Close(); err != nil {
			s.logger.Warn("close run store", zap.Error(err))
		}
		s.runs = nil
	}
}
