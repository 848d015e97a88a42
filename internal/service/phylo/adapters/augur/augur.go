package augur

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/scipipe/scipipe"
	"go.uber.org/zap"
)

const (
	FileRawTree      = "tree_raw.nwk"
	FileRefinedTree  = "tree.nwk"
	FileBranchLength = "branch_lengths.json"

	// scipipe writes one next to every output
	auditSuffix = ".audit.json"
)

type Options struct {
	Binary         string
	TreeMethod     string
	EnableTimetree bool
}

type Inputs struct {
	Alignment string
	Metadata  string
	OutputDir string
}

type Runner struct {
	opts   Options
	logger *zap.Logger
}

func NewRunner(opts Options, logger *zap.Logger) *Runner {
	if opts.Binary == "" {
		opts.Binary = "augur"
	}
	if opts.TreeMethod == "" {
		opts.TreeMethod = "iqtree"
	}
	return &Runner{opts: opts, logger: logger.Named("augur")}
}

/*
Run builds and runs the scipipe workflow: "augur tree" on the cohort
alignment, followed by "augur refine --timetree" when enabled. Outputs of a
previous run in OutputDir are removed first, since scipipe skips tasks whose
outputs exist. scipipe exits the process when a task fails, so only setup
problems are reported as errors here.
*/
func (r *Runner) Run(in Inputs) error {
	if _, err := exec.LookPath(r.opts.Binary); err != nil {
		return fmt.Errorf("augur: %w", err)
	}

	aln, err := filepath.Abs(in.Alignment)
	if err != nil {
		return err
	}
	meta, err := filepath.Abs(in.Metadata)
	if err != nil {
		return err
	}
	outDir, err := filepath.Abs(in.OutputDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("augur: %w", err)
	}
	if err := removeOutputs(outDir); err != nil {
		return fmt.Errorf("augur: %w", err)
	}

	wf := scipipe.NewWorkflow("augur", 2)

	tree := wf.NewProc("augur_tree", TreeCommand(r.opts, aln))
	tree.SetOut("tree", filepath.Join(outDir, FileRawTree))

	if r.opts.EnableTimetree {
		refine := wf.NewProc("augur_refine", RefineCommand(r.opts, aln, meta))
		refine.In("tree").From(tree.Out("tree"))
		refine.SetOut("tree", filepath.Join(outDir, FileRefinedTree))
		refine.SetOut("node_data", filepath.Join(outDir, FileBranchLength))
	}

	r.logger.Info("running augur",
		zap.String("method", r.opts.TreeMethod),
		zap.Bool("timetree", r.opts.EnableTimetree),
		zap.String("dir", outDir),
	)
	wf.Run()
	return nil
}

func removeOutputs(dir string) error {
	for _, name := range []string{FileRawTree, FileRefinedTree, FileBranchLength} {
		for _, path := range []string{name, name + auditSuffix} {
			err := os.Remove(filepath.Join(dir, path))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}
	return nil
}

// TreeCommand is the scipipe command pattern for "augur tree".
func TreeCommand(opts Options, alignment string) string {
	return strings.Join([]string{
		opts.Binary, "tree",
		"--alignment", shellQuote(alignment),
		"--method", opts.TreeMethod,
		"--output", "{o:tree}",
	}, " ")
}

// RefineCommand is the scipipe command pattern for "augur refine --timetree".
func RefineCommand(opts Options, alignment, metadata string) string {
	return strings.Join([]string{
		opts.Binary, "refine",
		"--tree", "{i:tree}",
		"--alignment", shellQuote(alignment),
		"--metadata", shellQuote(metadata),
		"--metadata-id-columns", "strain",
		"--timetree",
		"--output-tree", "{o:tree}",
		"--output-node-data", "{o:node_data}",
	}, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
