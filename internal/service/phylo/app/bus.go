package app

import (
	"context"
	"errors"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app/commands"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/app/queries"
)

var errNoRunStore = errors.New("runs: no run store configured")

type CommandBus interface {
	FetchBundles(ctx context.Context, cmd commands.FetchBundlesCommand) (commands.FetchBundlesResult, error)
	BuildConsensus(ctx context.Context, cmd commands.BuildConsensusCommand) (commands.BuildConsensusResult, error)
	BuildPhylo(ctx context.Context, cmd commands.BuildPhyloCommand) (commands.BuildPhyloResult, error)
	RunPipeline(ctx context.Context, cmd commands.RunPipelineCommand) (commands.RunPipelineResult, error)
	StartRun(ctx context.Context, cmd commands.StartRunCommand) (commands.StartRunResult, error)
	WaitRuns()
	ShutdownRuns(ctx context.Context) error
}

type QueryBus interface {
	GetRun(ctx context.Context, q queries.GetRunQuery) (queries.GetRunResult, error)
	ListRuns(ctx context.Context, q queries.ListRunsQuery) (queries.ListRunsResult, error)
}

type commandBus struct {
	fetchBundles   commands.FetchBundlesHandler
	buildConsensus commands.BuildConsensusHandler
	buildPhylo     commands.BuildPhyloHandler
	runPipeline    commands.RunPipelineHandler
	startRun       commands.StartRunHandler
}

type queryBus struct {
	getRun   queries.GetRunQueryHandler
	listRuns queries.ListRunsQueryHandler
}

// startRun may be nil for buses that never serve HTTP.
func NewCommandBus(
	fetch commands.FetchBundlesHandler,
	consensus commands.BuildConsensusHandler,
	phylo commands.BuildPhyloHandler,
	pipeline commands.RunPipelineHandler,
	startRun commands.StartRunHandler,
) CommandBus {
	return &commandBus{
		fetchBundles:   fetch,
		buildConsensus: consensus,
		buildPhylo:     phylo,
		runPipeline:    pipeline,
		startRun:       startRun,
	}
}

func NewQueryBus(
	get queries.GetRunQueryHandler,
	list queries.ListRunsQueryHandler,
) QueryBus {
	return &queryBus{
		getRun:   get,
		listRuns: list,
	}
}

func (b *commandBus) FetchBundles(ctx context.Context, cmd commands.FetchBundlesCommand) (commands.FetchBundlesResult, error) {
	return b.fetchBundles.Handle(ctx, cmd)
}

func (b *commandBus) BuildConsensus(ctx context.Context, cmd commands.BuildConsensusCommand) (commands.BuildConsensusResult, error) {
	return b.buildConsensus.Handle(ctx, cmd)
}

func (b *commandBus) BuildPhylo(ctx context.Context, cmd commands.BuildPhyloCommand) (commands.BuildPhyloResult, error) {
	return b.buildPhylo.Handle(ctx, cmd)
}

func (b *commandBus) RunPipeline(ctx context.Context, cmd commands.RunPipelineCommand) (commands.RunPipelineResult, error) {
	return b.runPipeline.Handle(ctx, cmd)
}

func (b *commandBus) StartRun(ctx context.Context, cmd commands.StartRunCommand) (commands.StartRunResult, error) {
	if b.startRun == nil {
		return commands.StartRunResult{}, errNoRunStore
	}
	return b.startRun.Handle(ctx, cmd)
}

func (b *commandBus) WaitRuns() {
	if b.startRun != nil {
		b.startRun.Wait()
	}
}

func (b *commandBus) ShutdownRuns(ctx context.Context) error {
	if b.startRun == nil {
		return nil
	}
	return b.startRun.Shutdown(ctx)
}

func (b *queryBus) GetRun(ctx context.Context, q queries.GetRunQuery) (queries.GetRunResult, error) {
	return b.getRun.Handle(ctx, q)
}

func (b *queryBus) ListRuns(ctx context.Context, q queries.ListRunsQuery) (queries.ListRunsResult, error) {
	return b.listRuns.Handle(ctx, q)
}
