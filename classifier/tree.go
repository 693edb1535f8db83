package classifier

import (
	"fmt"
	"sort"
)

// node is one node of a regression tree. Leaves carry Value; inner nodes
// send x to Left when x[Feature] <= Threshold.
type node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *node   `json:"left,omitempty"`
	Right     *node   `json:"right,omitempty"`
}

func (n *node) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// check rejects trees that predict could not walk.
func (n *node) check(width int) error {
	if n == nil {
		return fmt.Errorf("missing node")
	}
	if n.Leaf {
		return nil
	}
	if n.Feature < 0 || n.Feature >= width {
		return fmt.Errorf("split on feature %d outside %d features", n.Feature, width)
	}
	if err := n.Left.check(width); err != nil {
		return err
	}
	return n.Right.check(width)
}

func (n *node) depth() int {
	if n.Leaf {
		return 0
	}
	l, r := n.Left.depth(), n.Right.depth()
	if l > r {
		return l + 1
	}
	return r + 1
}

// treeBuilder grows one tree on the current residuals. Splits minimise the
// squared error of the residuals; leaves take the Newton step
// sum(residual) / sum(p(1-p)) of the logistic loss.
type treeBuilder struct {
	x         [][]float64
	residual  []float64
	hessian   []float64
	maxDepth  int
	minSplit  int
	minLeaf   int
	nFeatures int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (s *split) partition(x [][]float64, idx []int) {
	for _, i := range idx {
		if x[i][s.feature] <= s.threshold {
			s.left = append(s.left, i)
		} else {
			s.right = append(s.right, i)
		}
	}
}

func (b *treeBuilder) build(idx []int, depth int) *node {
	if depth >= b.maxDepth || len(idx) < b.minSplit {
		return b.leaf(idx)
	}
	best, ok := b.bestSplit(idx)
	if !ok {
		return b.leaf(idx)
	}
	return &node{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      b.build(best.left, depth+1),
		Right:     b.build(best.right, depth+1),
	}
}

func (b *treeBuilder) leaf(idx []int) *node {
	var num, den float64
	for _, i := range idx {
		num += b.residual[i]
		den += b.hessian[i]
	}
	if den < 1e-12 {
		return &node{Leaf: true}
	}
	return &node{Leaf: true, Value: num / den}
}

func (b *treeBuilder) bestSplit(idx []int) (split, bool) {
	var total float64
	for _, i := range idx {
		total += b.residual[i]
	}
	n := float64(len(idx))
	parent := total * total / n

	best := split{gain: 1e-12}
	found := false
	order := make([]int, len(idx))

	for f := 0; f < b.nFeatures; f++ {
		f := f
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.x[order[a]][f] < b.x[order[c]][f]
		})

		var leftSum float64
		for k := 0; k < len(order)-1; k++ {
			leftSum += b.residual[order[k]]
			cur, next := b.x[order[k]][f], b.x[order[k+1]][f]
			if cur == next {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			if int(nl) < b.minLeaf || int(nr) < b.minLeaf {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/nl + rightSum*rightSum/nr - parent
			if gain > best.gain {
				best = split{feature: f, threshold: (cur + next) / 2, gain: gain}
				found = true
			}
		}
	}
	if found {
		best.partition(b.x, idx)
	}
	return best, found
}
