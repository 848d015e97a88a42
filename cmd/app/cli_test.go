package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Cleo-Systems/tbphylo/internal/service/genome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReference = "ACGTACGTACGTACGTACGT"

func setup(t *testing.T) (dir, ref string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("RESULTS_DIR", filepath.Join(dir, "results"))
	t.Setenv("INPUT_DIR", filepath.Join(dir, "JSON"))
	t.Setenv("LOG_LEVEL", "error")

	ref = filepath.Join(dir, "H37Rv.fasta")
	require.NoError(t, os.WriteFile(ref, []byte(">NC_000962.3\n"+testReference+"\n"), 0o644))
	return dir, ref
}

func writeBundle(t *testing.T, dir, id string, pos int, alt string) string {
	t.Helper()
	body := `{"resourceType":"Bundle","type":"transaction","entry":[` +
		`{"resource":{"resourceType":"Patient","id":"` + id + `"}},` +
		`{"resource":{"resourceType":"Observation","code":{"coding":[{"code":"69548-6"}]},` +
		`"valueCodeableConcept":{"coding":[{"code":"NC_000962.3:g.` + strconv.Itoa(pos) + `N>` + alt + `"}]}}}]}`
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, id+".fhir.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConsensusCommand(t *testing.T) {
	dir, ref := setup(t)
	bundle := writeBundle(t, filepath.Join(dir, "JSON"), "P001", 3, "T")

	out, err := execute(t, "consensus", "--input", bundle, "--reference", ref)
	require.NoError(t, err)

	want := filepath.Join(dir, "results", "consensus", "P001.consensus.fasta")
	assert.Equal(t, want+"\n", out)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, ">P001\nACTTACGTACGTACGTACGT\n", string(data))
}

func TestConsensusMissingReference(t *testing.T) {
	dir, _ := setup(t)
	bundle := writeBundle(t, dir, "P001", 3, "T")

	_, err := execute(t, "consensus", "--input", bundle, "--reference", filepath.Join(dir, "absent.fasta"))
	require.Error(t, err)
	assert.ErrorIs(t, err, genome.ErrMissingInput)
	assert.Equal(t, exitMissingInput, exitCode(err))
}

func TestConsensusRequiresInput(t *testing.T) {
	setup(t)

	_, err := execute(t, "consensus")
	require.Error(t, err)
	assert.Equal(t, exitError, exitCode(err))
}

func TestPhyloCommand(t *testing.T) {
	dir, ref := setup(t)
	a := writeBundle(t, filepath.Join(dir, "JSON"), "A", 2, "T")
	b := writeBundle(t, filepath.Join(dir, "JSON"), "B", 5, "G")

	out, err := execute(t, "phylo", "--reference", ref, a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "samples=3")

	phyloDir := filepath.Join(dir, "results", "phylo")
	for _, name := range []string{"metadata.tsv", "distance_matrix.tsv", "phylo_tree.nwk", "clusters.tsv"} {
		assert.FileExists(t, filepath.Join(phyloDir, name))
	}
}

func TestRunCommandLocalBundles(t *testing.T) {
	dir, ref := setup(t)
	writeBundle(t, filepath.Join(dir, "JSON"), "A", 2, "T")
	writeBundle(t, filepath.Join(dir, "JSON"), "B", 5, "G")

	out, err := execute(t, "run", "--reference", ref, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "bundles=2")

	assert.FileExists(t, filepath.Join(dir, "results", "consensus", "A.consensus.fasta"))
	assert.FileExists(t, filepath.Join(dir, "results", "consensus", "B.consensus.fasta"))
	assert.FileExists(t, filepath.Join(dir, "results", "phylo", "phylo_tree.nwk"))
}

func TestRunCommandIgnoresNonPositiveWorkers(t *testing.T) {
	dir, ref := setup(t)
	writeBundle(t, filepath.Join(dir, "JSON"), "A", 2, "T")

	out, err := execute(t, "run", "--reference", ref, "--workers", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "bundles=1")
	assert.FileExists(t, filepath.Join(dir, "results", "consensus", "A.consensus.fasta"))
}

func TestRunCommandRejectsBadSince(t *testing.T) {
	_, ref := setup(t)

	_, err := execute(t, "run", "--reference", ref, "--since", "01/02/2024")
	assert.Error(t, err)
}
