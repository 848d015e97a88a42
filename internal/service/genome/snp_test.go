package genome

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSamples() []Sample {
	return []Sample{
		ReferenceSample(),
		{ID: "s1", Variants: Variants{2: "T", 4: "A"}},
		{ID: "s2", Variants: Variants{2: "T", 20: "G"}},
	}
}

func TestNewSNPAlignment(t *testing.T) {
	ref := []byte("ACGTACGT")

	aln := NewSNPAlignment(ref, testSamples())

	assert.Equal(t, []int{2, 4, 20}, aln.Positions)
	assert.Equal(t, []string{"H37Rv", "s1", "s2"}, aln.IDs)
	assert.Equal(t, "CTN", string(aln.Rows[0]))
	assert.Equal(t, "TAN", string(aln.Rows[1]))
	assert.Equal(t, "TTN", string(aln.Rows[2]))
}

func TestDistances(t *testing.T) {
	aln := NewSNPAlignment([]byte("ACGTACGT"), testSamples())

	m := aln.Distances()

	assert.Equal(t, [][]int{
		{0, 2, 1},
		{2, 0, 1},
		{1, 1, 0},
	}, m.D)
	for i := range m.D {
		for j := range m.D {
			assert.Equal(t, m.D[i][j], m.D[j][i])
		}
	}
}

func TestSNPDistanceIgnoresN(t *testing.T) {
	assert.Equal(t, 1, SNPDistance([]byte("ANCG"), []byte("TTNG")))
}

func TestIdentityDistancesCountN(t *testing.T) {
	aln := SNPAlignment{
		Positions: []int{1, 2},
		IDs:       []string{"a", "b"},
		Rows:      [][]byte{[]byte("AN"), []byte("AC")},
	}
	d := aln.IdentityDistances()
	assert.InDelta(t, 0.5, d[0][1], 1e-9)
	assert.InDelta(t, 0.5, d[1][0], 1e-9)
}

func TestIdentityDistancesNoSites(t *testing.T) {
	aln := NewSNPAlignment([]byte("ACGT"), []Sample{ReferenceSample(), {ID: "x"}})
	assert.Equal(t, [][]float64{{0, 0}, {0, 0}}, aln.IdentityDistances())
}

func TestDistanceMatrixWriteTSV(t *testing.T) {
	m := DistanceMatrix{IDs: []string{"a", "b"}, D: [][]int{{0, 3}, {3, 0}}}

	var buf bytes.Buffer
	require.NoError(t, m.WriteTSV(&buf))

	assert.Equal(t, "snp-dists\ta\tb\na\t0\t3\nb\t3\t0\n", buf.String())
}
