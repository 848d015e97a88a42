package genome

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

const DefaultSNPThreshold = 12

type Edge struct {
	From     string
	To       string
	Distance int
}

// TransmissionEdges links every pair of samples within threshold SNPs.
// Samples named in exclude (reference, anchors) never get an edge.
func TransmissionEdges(m DistanceMatrix, threshold int, exclude map[string]bool) []Edge {
	var ret []Edge
	for i := range m.IDs {
		if exclude[m.IDs[i]] {
			continue
		}
		for j := i + 1; j < len(m.IDs); j++ {
			if exclude[m.IDs[j]] {
				continue
			}
			if m.D[i][j] <= threshold {
				ret = append(ret, Edge{From: m.IDs[i], To: m.IDs[j], Distance: m.D[i][j]})
			}
		}
	}
	return ret
}

/*
Clusters returns the connected components of the edge graph with at least
two members. Members are sorted and clusters are ordered by their first
member.
*/
func Clusters(edges []Edge) [][]string {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		p, ok := parent[x]
		if !ok {
			parent[x] = x
			return x
		}
		if p == x {
			return x
		}
		root := find(p)
		parent[x] = root
		return root
	}

	for _, e := range edges {
		a, b := find(e.From), find(e.To)
		if a != b {
			parent[max(a, b)] = min(a, b)
		}
	}

	groups := make(map[string][]string)
	for x := range parent {
		root := find(x)
		groups[root] = append(groups[root], x)
	}

	var ret [][]string
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		slices.Sort(g)
		ret = append(ret, g)
	}
	slices.SortFunc(ret, func(a, b []string) int {
		return strings.Compare(a[0], b[0])
	})
	return ret
}

func WriteEdges(w io.Writer, edges []Edge) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "source\ttarget\tsnp_distance")
	for _, e := range edges {
		fmt.Fprintf(bw, "%s\t%s\t%d\n", e.From, e.To, e.Distance)
	}
	return bw.Flush()
}

func WriteClusters(w io.Writer, clusters [][]string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "cluster_id\tsample_id")
	for i, c := range clusters {
		for _, id := range c {
			fmt.Fprintf(bw, "cluster_%d\t%s\n", i+1, id)
		}
	}
	return bw.Flush()
}
