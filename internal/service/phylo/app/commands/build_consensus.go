package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type BuildConsensusCommand struct {
	Bundles   []string
	Reference string
	OutputDir string
	Workers   int
}

type BuildConsensusResult struct {
	// Outputs[i] is the consensus FASTA for Bundles[i].
	Outputs []string
}

type BuildConsensusHandler interface {
	Handle(ctx context.Context, cmd BuildConsensusCommand) (result BuildConsensusResult, err error)
}

func NewBuildConsensusHandler(logger *zap.Logger) BuildConsensusHandler {
	return &buildConsensusCmdHandler{
		logger: logger.Named("consensus"),
	}
}

type buildConsensusCmdHandler struct {
	logger *zap.Logger
}

/*
Handle loads the reference once and builds one consensus per bundle in
parallel. The first failure cancels the remaining bundles.
*/
func (h *buildConsensusCmdHandler) Handle(ctx context.Context, cmd BuildConsensusCommand) (BuildConsensusResult, error) {
	ref, err := genome.LoadReference(cmd.Reference)
	if err != nil {
		return BuildConsensusResult{}, err
	}

	workers := cmd.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	outputs := make([]string, len(cmd.Bundles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, bundle := range cmd.Bundles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := genome.ConsensusPath(cmd.OutputDir, bundle)
			if err := BuildConsensusFile(bundle, ref, out); err != nil {
				return err
			}
			h.logger.Debug("consensus written", zap.String("bundle", bundle), zap.String("output", out))
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BuildConsensusResult{}, err
	}

	h.logger.Info("consensus built", zap.Int("bundles", len(cmd.Bundles)), zap.String("dir", cmd.OutputDir))
	return BuildConsensusResult{Outputs: outputs}, nil
}

/*
BuildConsensusFile builds the consensus for one bundle: parse its
variants, apply them to ref and write a single-record FASTA to out. Nothing
is written when the bundle cannot be read.
*/
func BuildConsensusFile(bundlePath string, ref genome.Record, out string) error {
	sample, err := fhir.LoadSample(bundlePath)
	if err != nil {
		return err
	}
	rec := genome.Record{
		Name: sample.ID,
		Nts:  genome.Consensus(ref.Nts, sample.Variants),
	}
	if err := genome.SaveFASTA(out, rec); err != nil {
		return fmt.Errorf("write consensus for %s: %w", bundlePath, err)
	}
	return nil
}

// ListBundles returns the *.json files directly under dir, sorted by name.
func ListBundles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	var ret []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == noDataFileName {
			continue
		}
		ret = append(ret, filepath.Join(dir, name))
	}
	return ret, nil
}
