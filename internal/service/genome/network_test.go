package genome

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransmissionEdgesAndClusters(t *testing.T) {
	m := DistanceMatrix{
		IDs: []string{"H37Rv", "a", "b", "c", "d", "e"},
		D: [][]int{
			{0, 1, 1, 1, 1, 1},
			{1, 0, 3, 50, 50, 50},
			{1, 3, 0, 12, 50, 50},
			{1, 50, 12, 0, 50, 50},
			{1, 50, 50, 50, 0, 5},
			{1, 50, 50, 50, 5, 0},
		},
	}

	edges := TransmissionEdges(m, 12, map[string]bool{"H37Rv": true})
	wantEdges := []Edge{
		{From: "a", To: "b", Distance: 3},
		{From: "b", To: "c", Distance: 12},
		{From: "d", To: "e", Distance: 5},
	}
	if diff := cmp.Diff(wantEdges, edges); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}

	clusters := Clusters(edges)
	want := [][]string{{"a", "b", "c"}, {"d", "e"}}
	if diff := cmp.Diff(want, clusters); diff != "" {
		t.Fatalf("clusters mismatch (-want +got):\n%s", diff)
	}
}

func TestClustersEmpty(t *testing.T) {
	assert.Empty(t, Clusters(nil))
}

func TestWriteClusters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteClusters(&buf, [][]string{{"a", "b"}}))
	assert.Equal(t, "cluster_id\tsample_id\ncluster_1\ta\ncluster_1\tb\n", buf.String())
}

func TestWriteMetadata(t *testing.T) {
	var buf bytes.Buffer
	md := NewMetadata("s1")
	md.Latitude = "51.5"

	require.NoError(t, WriteMetadata(&buf, []Metadata{ReferenceSample().Metadata, md}))

	assert.Equal(t,
		"sample_id\tpatient_id\tlatitude\tlongitude\tconclusion\n"+
			"H37Rv\tReference\tNA\tNA\tReference Genome\n"+
			"s1\tNA\t51.5\tNA\tNA\n",
		buf.String())
}

func TestWriteAugurMetadata(t *testing.T) {
	var buf bytes.Buffer
	md := NewMetadata("s1")
	md.Date = "2024-03-XX"

	require.NoError(t, WriteAugurMetadata(&buf, []Metadata{ReferenceSample().Metadata, md}))

	assert.Equal(t, "strain\tdate\nH37Rv\tXXXX-XX-XX\ns1\t2024-03-XX\n", buf.String())
}

func TestAsAnchor(t *testing.T) {
	s := Sample{ID: "anc", Metadata: NewMetadata("anc")}
	assert.Equal(t, "Anchor", s.AsAnchor().Metadata.Conclusion)

	s.Metadata.Conclusion = "Lineage 4"
	anchored := s.AsAnchor()
	assert.Equal(t, "Lineage 4 (Anchor)", anchored.Metadata.Conclusion)
	assert.Equal(t, "Reference", anchored.Metadata.PatientID)
}
