package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	"github.com/Cleo-Systems/tbphylo/internal/service/phylo/adapters/fhir"
	"go.uber.org/zap"
)

const (
	FileMetadata          = "metadata.tsv"
	FileAugurMetadata     = "augur_metadata.tsv"
	FileDistanceMatrix    = "distance_matrix.tsv"
	FileTree              = "phylo_tree.nwk"
	FileCohortConsensus   = "consensus.fasta"
	FileTransmissionEdges = "transmission_edges.tsv"
	FileClusters          = "clusters.tsv"
)

type BuildPhyloCommand struct {
	Inputs       []string
	Anchors      []string
	Reference    string
	OutputDir    string
	SNPThreshold int
}

type BuildPhyloResult struct {
	Samples  int
	Sites    int
	Clusters int
}

type BuildPhyloHandler interface {
	Handle(ctx context.Context, cmd BuildPhyloCommand) (result BuildPhyloResult, err error)
}

func NewBuildPhyloHandler(logger *zap.Logger) BuildPhyloHandler {
	return &buildPhyloCmdHandler{
		logger: logger.Named("phylo"),
	}
}

type buildPhyloCmdHandler struct {
	logger *zap.Logger
}

func (h *buildPhyloCmdHandler) Handle(ctx context.Context, cmd BuildPhyloCommand) (BuildPhyloResult, error) {
	ref, err := genome.LoadReference(cmd.Reference)
	if err != nil {
		return BuildPhyloResult{}, err
	}

	samples, err := loadCohort(ctx, cmd.Anchors, cmd.Inputs)
	if err != nil {
		return BuildPhyloResult{}, err
	}

	// 1) metadata
	rows := make([]genome.Metadata, len(samples))
	for i, s := range samples {
		rows[i] = s.Metadata
	}
	if err := h.write(cmd.OutputDir, FileMetadata, func(w io.Writer) error {
		return genome.WriteMetadata(w, rows)
	}); err != nil {
		return BuildPhyloResult{}, err
	}
	if err := h.write(cmd.OutputDir, FileAugurMetadata, func(w io.Writer) error {
		return genome.WriteAugurMetadata(w, rows)
	}); err != nil {
		return BuildPhyloResult{}, err
	}

	// 2) SNP distances
	aln := genome.NewSNPAlignment(ref.Nts, samples)
	matrix := aln.Distances()
	if err := h.write(cmd.OutputDir, FileDistanceMatrix, matrix.WriteTSV); err != nil {
		return BuildPhyloResult{}, err
	}

	// 3) tree
	newick := "();"
	if aln.NumSites() > 0 {
		tree, err := genome.NeighborJoining(aln.IDs, aln.IdentityDistances())
		if err != nil {
			return BuildPhyloResult{}, err
		}
		newick = tree.Newick()
	}
	if err := h.write(cmd.OutputDir, FileTree, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, newick)
		return err
	}); err != nil {
		return BuildPhyloResult{}, err
	}

	// 4) full genomes
	records := make([]genome.Record, len(samples))
	for i, s := range samples {
		records[i] = genome.Record{Name: s.ID, Nts: genome.Consensus(ref.Nts, s.Variants)}
	}
	if err := genome.SaveFASTA(filepath.Join(cmd.OutputDir, FileCohortConsensus), records...); err != nil {
		return BuildPhyloResult{}, err
	}

	// 5) transmission network
	exclude := map[string]bool{genome.ReferenceID: true}
	for _, path := range cmd.Anchors {
		exclude[genome.SampleID(path)] = true
	}
	edges := genome.TransmissionEdges(matrix, cmd.SNPThreshold, exclude)
	clusters := genome.Clusters(edges)
	if err := h.write(cmd.OutputDir, FileTransmissionEdges, func(w io.Writer) error {
		return genome.WriteEdges(w, edges)
	}); err != nil {
		return BuildPhyloResult{}, err
	}
	if err := h.write(cmd.OutputDir, FileClusters, func(w io.Writer) error {
		return genome.WriteClusters(w, clusters)
	}); err != nil {
		return BuildPhyloResult{}, err
	}

	h.logger.Info("phylogeny built",
		zap.Int("samples", len(samples)),
		zap.Int("sites", aln.NumSites()),
		zap.Int("clusters", len(clusters)),
		zap.String("dir", cmd.OutputDir),
	)
	return BuildPhyloResult{
		Samples:  len(samples),
		Sites:    aln.NumSites(),
		Clusters: len(clusters),
	}, nil
}

func (h *buildPhyloCmdHandler) write(dir, name string, fill func(w io.Writer) error) error {
	path := filepath.Join(dir, name)
	if err := genome.WriteAtomic(path, fill); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

/*
loadCohort orders the samples as reference, anchors, inputs. A sample id
seen twice keeps its first position and takes the later bundle's content.
*/
func loadCohort(ctx context.Context, anchors, inputs []string) ([]genome.Sample, error) {
	samples := []genome.Sample{genome.ReferenceSample()}
	index := map[string]int{genome.ReferenceID: 0}

	add := func(s genome.Sample) {
		if i, ok := index[s.ID]; ok {
			samples[i] = s
			return
		}
		index[s.ID] = len(samples)
		samples = append(samples, s)
	}

	for _, path := range anchors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := fhir.LoadSample(path)
		if err != nil {
			return nil, err
		}
		add(s.AsAnchor())
	}
	for _, path := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := fhir.LoadSample(path)
		if err != nil {
			return nil, err
		}
		add(s)
	}
	return samples, nil
}
