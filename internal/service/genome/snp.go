package genome

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
)

// SNPAlignment holds one row per sample over the union of variant sites.
type SNPAlignment struct {
	Positions []int
	IDs       []string
	Rows      [][]byte
}

/*
NewSNPAlignment builds the site-only alignment for samples against ref.
Sites past the end of ref are 'N' for every sample.
*/
func NewSNPAlignment(ref []byte, samples []Sample) SNPAlignment {
	sites := make(map[int]struct{})
	for _, s := range samples {
		for pos := range s.Variants {
			sites[pos] = struct{}{}
		}
	}
	positions := slices.Sorted(maps.Keys(sites))

	ret := SNPAlignment{
		Positions: positions,
		IDs:       make([]string, len(samples)),
		Rows:      make([][]byte, len(samples)),
	}
	for i, s := range samples {
		row := make([]byte, len(positions))
		for k, pos := range positions {
			switch {
			case pos < 1 || pos > len(ref):
				row[k] = 'N'
			case s.Variants[pos] != "":
				row[k] = s.Variants[pos][0]
			default:
				row[k] = ref[pos-1]
			}
		}
		ret.IDs[i] = s.ID
		ret.Rows[i] = row
	}
	return ret
}

func (a SNPAlignment) NumSites() int {
	return len(a.Positions)
}

// SNPDistance counts sites where both rows are called and differ.
func SNPDistance(a, b []byte) int {
	var d int
	for k := range a {
		if a[k] == 'N' || b[k] == 'N' {
			continue
		}
		if a[k] != b[k] {
			d++
		}
	}
	return d
}

// DistanceMatrix is symmetric with a zero diagonal.
type DistanceMatrix struct {
	IDs []string
	D   [][]int
}

func (a SNPAlignment) Distances() DistanceMatrix {
	n := len(a.Rows)
	d := make([][]int, n)
	for i := range d {
		d[i] = make([]int, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := SNPDistance(a.Rows[i], a.Rows[j])
			d[i][j] = v
			d[j][i] = v
		}
	}
	return DistanceMatrix{IDs: slices.Clone(a.IDs), D: d}
}

/*
IdentityDistances is the mismatch fraction between rows, counting every
differing character, 'N' included. It is 0 everywhere when there are no sites.
*/
func (a SNPAlignment) IdentityDistances() [][]float64 {
	n := len(a.Rows)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	sites := a.NumSites()
	if sites == 0 {
		return d
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var diff int
			for k := 0; k < sites; k++ {
				if a.Rows[i][k] != a.Rows[j][k] {
					diff++
				}
			}
			v := float64(diff) / float64(sites)
			d[i][j] = v
			d[j][i] = v
		}
	}
	return d
}

// WriteTSV writes the matrix in snp-dists layout.
func (m DistanceMatrix) WriteTSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "snp-dists")
	for _, id := range m.IDs {
		fmt.Fprintf(bw, "\t%s", id)
	}
	fmt.Fprintln(bw)

	for i, row := range m.D {
		fmt.Fprint(bw, m.IDs[i])
		for _, v := range row {
			bw.WriteByte('\t')
			bw.WriteString(strconv.Itoa(v))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
