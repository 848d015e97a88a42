package genome

import (
	"fmt"
	"strconv"
	"strings"
)

type TreeNode struct {
	Name     string
	Length   float64
	Children []*TreeNode
}

func (n *TreeNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Leaves returns the leaf names in depth-first order.
func (n *TreeNode) Leaves() []string {
	if n.IsLeaf() {
		return []string{n.Name}
	}
	var ret []string
	for _, c := range n.Children {
		ret = append(ret, c.Leaves()...)
	}
	return ret
}

/*
NeighborJoining builds an unrooted tree from a symmetric distance matrix,
returned rooted at the last internal node created. Internal nodes are named
Inner1, Inner2, ...; a two-taxon tree is rooted at a node named Inner.
Negative branch lengths are kept as computed. Ties in the Q matrix go to the
lowest (i, j).
*/
func NeighborJoining(names []string, dist [][]float64) (*TreeNode, error) {
	n := len(names)
	if n == 0 {
		return nil, fmt.Errorf("neighbor joining: no taxa")
	}
	if len(dist) != n {
		return nil, fmt.Errorf("neighbor joining: %d names but %dx%d matrix", n, len(dist), len(dist))
	}

	nodes := make([]*TreeNode, n)
	for i, name := range names {
		nodes[i] = &TreeNode{Name: name}
	}
	if n == 1 {
		return nodes[0], nil
	}

	d := make([][]float64, n)
	for i := range dist {
		if len(dist[i]) != n {
			return nil, fmt.Errorf("neighbor joining: row %d has %d columns", i, len(dist[i]))
		}
		d[i] = append([]float64(nil), dist[i]...)
	}

	var inner int
	for len(nodes) > 2 {
		m := len(nodes)
		r := make([]float64, m)
		for i := 0; i < m; i++ {
			for j := 0; j < m; j++ {
				r[i] += d[i][j]
			}
		}

		bi, bj := 0, 1
		best := 0.0
		first := true
		for i := 0; i < m; i++ {
			for j := i + 1; j < m; j++ {
				q := float64(m-2)*d[i][j] - r[i] - r[j]
				if first || q < best {
					best, bi, bj = q, i, j
					first = false
				}
			}
		}

		li := d[bi][bj]/2 + (r[bi]-r[bj])/float64(2*(m-2))
		lj := d[bi][bj] - li
		nodes[bi].Length = li
		nodes[bj].Length = lj

		inner++
		u := &TreeNode{
			Name:     "Inner" + strconv.Itoa(inner),
			Children: []*TreeNode{nodes[bi], nodes[bj]},
		}

		du := make([]float64, 0, m-1)
		var (
			nextNodes []*TreeNode
			keep      []int
		)
		for k := 0; k < m; k++ {
			if k == bi || k == bj {
				continue
			}
			keep = append(keep, k)
			nextNodes = append(nextNodes, nodes[k])
			du = append(du, (d[bi][k]+d[bj][k]-d[bi][bj])/2)
		}

		nd := make([][]float64, len(keep)+1)
		for a, ka := range keep {
			nd[a] = make([]float64, len(keep)+1)
			for b, kb := range keep {
				nd[a][b] = d[ka][kb]
			}
			nd[a][len(keep)] = du[a]
		}
		nd[len(keep)] = append(du, 0)

		nodes = append(nextNodes, u)
		d = nd
	}

	// Two nodes left: hang the other one off the most recent internal node.
	a, b := nodes[0], nodes[1]
	if b.IsLeaf() && !a.IsLeaf() {
		a, b = b, a
	}
	if b.IsLeaf() {
		a.Length = d[0][1] / 2
		b.Length = d[0][1] / 2
		return &TreeNode{Name: "Inner", Children: []*TreeNode{a, b}}, nil
	}
	a.Length = d[0][1]
	b.Children = append(b.Children, a)
	b.Length = 0
	return b, nil
}

// Newick renders the tree with five-decimal branch lengths.
func (n *TreeNode) Newick() string {
	var sb strings.Builder
	n.writeNewick(&sb, true)
	sb.WriteByte(';')
	return sb.String()
}

func (n *TreeNode) writeNewick(sb *strings.Builder, root bool) {
	if !n.IsLeaf() {
		sb.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteByte(',')
			}
			c.writeNewick(sb, false)
		}
		sb.WriteByte(')')
	}
	sb.WriteString(newickLabel(n.Name))
	if !root {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(n.Length, 'f', 5, 64))
	}
}

func newickLabel(name string) string {
	if strings.ContainsAny(name, " ():;,[]'") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
