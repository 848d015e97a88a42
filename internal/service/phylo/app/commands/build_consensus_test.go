package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestBuildConsensus(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	ref := writeReference(t, dir)
	in := filepath.Join(dir, "JSON")
	a := writeVariantBundle(t, in, "PA", "1>T", "20>A")
	b := writeVariantBundle(t, in, "PB")
	out := filepath.Join(dir, "results", "consensus")

	h := NewBuildConsensusHandler(zap.NewNop())
	res, err := h.Handle(context.Background(), BuildConsensusCommand{
		Bundles:   []string{a, b},
		Reference: ref,
		OutputDir: out,
		Workers:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(out, "PA.consensus.fasta"),
		filepath.Join(out, "PB.consensus.fasta"),
	}, res.Outputs)
	assert.Equal(t, ">PA\nTCGTACGTACGTACGTACGA\n", readFile(t, res.Outputs[0]))
	assert.Equal(t, ">PB\n"+testReference+"\n", readFile(t, res.Outputs[1]))
}

func TestBuildConsensusRerunSamePath(t *testing.T) {
	dir := t.TempDir()
	ref := writeReference(t, dir)
	bundle := writeVariantBundle(t, dir, "X", "2>G")
	out := filepath.Join(dir, "consensus")
	h := NewBuildConsensusHandler(zap.NewNop())
	cmd := BuildConsensusCommand{Bundles: []string{bundle}, Reference: ref, OutputDir: out}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	firstBody := readFile(t, first.Outputs[0])

	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, first.Outputs, second.Outputs)
	assert.Equal(t, firstBody, readFile(t, second.Outputs[0]))
}

func TestBuildConsensusMissingReference(t *testing.T) {
	dir := t.TempDir()
	bundle := writeVariantBundle(t, dir, "X", "2>G")
	out := filepath.Join(dir, "consensus")

	h := NewBuildConsensusHandler(zap.NewNop())
	_, err := h.Handle(context.Background(), BuildConsensusCommand{
		Bundles:   []string{bundle},
		Reference: filepath.Join(dir, "missing.fasta"),
		OutputDir: out,
	})

	assert.ErrorIs(t, err, genome.ErrMissingInput)
	assert.NoFileExists(t, filepath.Join(out, "X.consensus.fasta"))
}

func TestBuildConsensusMissingBundle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	ref := writeReference(t, dir)
	out := filepath.Join(dir, "consensus")

	h := NewBuildConsensusHandler(zap.NewNop())
	_, err := h.Handle(context.Background(), BuildConsensusCommand{
		Bundles:   []string{filepath.Join(dir, "ghost.fhir.json")},
		Reference: ref,
		OutputDir: out,
	})

	assert.ErrorIs(t, err, genome.ErrMissingInput)
	assert.NoFileExists(t, filepath.Join(out, "ghost.consensus.fasta"))
}

func TestBuildConsensusFileMalformedBundle(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "bad.fhir.json")
	require.NoError(t, os.WriteFile(bundle, []byte("not json"), 0o644))
	out := filepath.Join(dir, "bad.consensus.fasta")

	err := BuildConsensusFile(bundle, genome.Record{Name: "ref", Nts: []byte("ACGT")}, out)

	assert.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestListBundles(t *testing.T) {
	dir := t.TempDir()
	writeVariantBundle(t, dir, "B")
	writeVariantBundle(t, dir, "A")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fhir_no_data.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	bundles, err := ListBundles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "A.fhir.json"), filepath.Join(dir, "B.fhir.json")}, bundles)

	_, err = ListBundles(filepath.Join(dir, "absent"))
	assert.Error(t, err)
}
