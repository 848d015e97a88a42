package genome

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFASTA(t *testing.T) {
	in := ">NC_000962.3 Mycobacterium tuberculosis H37Rv\nacgt\nACGT\n\n>second\nTTTT"

	records, err := ReadFASTA(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "NC_000962.3", records[0].Name)
	assert.Equal(t, "ACGTACGT", string(records[0].Nts))
	assert.Equal(t, "second", records[1].Name)
	assert.Equal(t, "TTTT", string(records[1].Nts))
}

func TestFASTARoundTripKeepsNames(t *testing.T) {
	var buf bytes.Buffer
	in := []Record{
		{Name: "H37Rv", Nts: bytes.Repeat([]byte("ACGT"), 20)},
		{Name: "P001", Nts: []byte("ACTTN")},
	}
	require.NoError(t, WriteFASTA(&buf, in...))

	out, err := ReadFASTA(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteFASTAWrapsAt60(t *testing.T) {
	var buf bytes.Buffer
	nts := bytes.Repeat([]byte("A"), 130)

	require.NoError(t, WriteFASTA(&buf, Record{Name: "s1", Nts: nts}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, ">s1", lines[0])
	assert.Len(t, lines[1], 60)
	assert.Len(t, lines[2], 60)
	assert.Len(t, lines[3], 10)
}

func TestLoadReference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.fasta")
	require.NoError(t, os.WriteFile(path, []byte(">ref\nacgt\n"), 0o644))

	ref, err := LoadReference(path)
	require.NoError(t, err)
	assert.Equal(t, "ref", ref.Name)
	assert.Equal(t, "ACGT", string(ref.Nts))
}

func TestLoadReferenceGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.fasta.gz")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(">ref\nACGTN\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	ref, err := LoadReference(path)
	require.NoError(t, err)
	assert.Equal(t, "ACGTN", string(ref.Nts))
}

func TestLoadReferenceMissing(t *testing.T) {
	_, err := LoadReference(filepath.Join(t.TempDir(), "nope.fasta"))
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestLoadReferenceMultiRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.fasta")
	require.NoError(t, os.WriteFile(path, []byte(">a\nA\n>b\nC\n"), 0o644))

	_, err := LoadReference(path)
	assert.Error(t, err)
}

func TestSaveFASTACreatesDirAndLeavesNoTemp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "consensus")
	path := filepath.Join(dir, "X.consensus.fasta")

	require.NoError(t, SaveFASTA(path, Record{Name: "X", Nts: []byte("ACGT")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ">X\nACGT\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
