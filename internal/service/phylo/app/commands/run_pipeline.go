package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/augur"
	"go.uber.org/zap"
)

// TreeRunner hands the cohort alignment to an external tree builder.
type TreeRunner interface {
	Run(in augur.Inputs) error
}

type RunPipelineCommand struct {
	InputDir   string
	Reference  string
	ResultsDir string
	Anchors    []string
	Workers    int

	SNPThreshold int

	// Fetch runs first when Fetch.ServerURL is set; its bundles replace
	// the contents of InputDir.
	Fetch FetchBundlesCommand

	RunAugur bool
}

type RunPipelineResult struct {
	Bundles    []string
	Consensus  []string
	Phylo      BuildPhyloResult
	PhyloDir   string
	AugurRan   bool
	ResultsDir string
}

type RunPipelineHandler interface {
	Handle(ctx context.Context, cmd RunPipelineCommand) (result RunPipelineResult, err error)
}

// tree may be nil when Augur is not available.
func NewRunPipelineHandler(
	fetch FetchBundlesHandler,
	consensus BuildConsensusHandler,
	phylo BuildPhyloHandler,
	tree TreeRunner,
	logger *zap.Logger,
) RunPipelineHandler {
	return &runPipelineCmdHandler{
		fetch:     fetch,
		consensus: consensus,
		phylo:     phylo,
		tree:      tree,
		logger:    logger.Named("pipeline"),
	}
}

type runPipelineCmdHandler struct {
	fetch     FetchBundlesHandler
	consensus BuildConsensusHandler
	phylo     BuildPhyloHandler
	tree      TreeRunner
	logger    *zap.Logger
}

/*
Handle runs fetch -> consensus -> phylo -> augur. Any stage error stops the
run; later stages never see partial output of a failed stage.
*/
func (h *runPipelineCmdHandler) Handle(ctx context.Context, cmd RunPipelineCommand) (RunPipelineResult, error) {
	result := RunPipelineResult{
		ResultsDir: cmd.ResultsDir,
		PhyloDir:   filepath.Join(cmd.ResultsDir, "phylo"),
	}

	// 1) bundles
	if cmd.Fetch.ServerURL != "" {
		fetchCmd := cmd.Fetch
		if fetchCmd.OutputDir == "" {
			fetchCmd.OutputDir = filepath.Join(cmd.ResultsDir, "fhir")
		}
		fetched, err := h.fetch.Handle(ctx, fetchCmd)
		if err != nil {
			return result, fmt.Errorf("fetch: %w", err)
		}
		result.Bundles = fetched.Bundles
	} else {
		bundles, err := ListBundles(cmd.InputDir)
		if err != nil {
			return result, err
		}
		result.Bundles = bundles
	}

	if len(result.Bundles) == 0 {
		h.logger.Warn("no bundles to process")
		return result, nil
	}

	// 2) per-bundle consensus
	consensus, err := h.consensus.Handle(ctx, BuildConsensusCommand{
		Bundles:   result.Bundles,
		Reference: cmd.Reference,
		OutputDir: filepath.Join(cmd.ResultsDir, "consensus"),
		Workers:   cmd.Workers,
	})
	if err != nil {
		return result, fmt.Errorf("consensus: %w", err)
	}
	result.Consensus = consensus.Outputs

	// 3) cohort products
	phylo, err := h.phylo.Handle(ctx, BuildPhyloCommand{
		Inputs:       result.Bundles,
		Anchors:      cmd.Anchors,
		Reference:    cmd.Reference,
		OutputDir:    result.PhyloDir,
		SNPThreshold: cmd.SNPThreshold,
	})
	if err != nil {
		return result, fmt.Errorf("phylo: %w", err)
	}
	result.Phylo = phylo

	// 4) external tree
	if cmd.RunAugur && h.tree != nil {
		err := h.tree.Run(augur.Inputs{
			Alignment: filepath.Join(result.PhyloDir, FileCohortConsensus),
			Metadata:  filepath.Join(result.PhyloDir, FileAugurMetadata),
			OutputDir: filepath.Join(result.ResultsDir, "augur"),
		})
		if err != nil {
			return result, err
		}
		result.AugurRan = true
	}

	h.logger.Info("pipeline finished",
		zap.Int("bundles", len(result.Bundles)),
		zap.Int("clusters", result.Phylo.Clusters),
		zap.String("results", cmd.ResultsDir),
	)
	return result, nil
}
