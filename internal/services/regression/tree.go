package regression

import (
	"math"
	"math/rand"
	"sort"
)

const leaf = -1

// node is one entry of a flattened binary tree. Leaves have Feature == -1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v"`
}

// Tree is a regression tree stored in pre-order.
type Tree struct {
	Nodes []node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth is the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature == leaf {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

type treeParams struct {
	maxDepth        int // 0 grows until leaves are pure
	minSamplesSplit int
	minSamplesLeaf  int
	// lambda is the L2 penalty on leaf values; zero gives plain variance reduction.
	lambda float64
	// maxFeatures bounds the features tried per split; 0 tries all of them.
	maxFeatures int
}

type grower struct {
	x      [][]float64
	y      []float64
	params treeParams
	rng    *rand.Rand
	nodes  []node
	work   []int
	feats  []int
}

// growTree fits a tree on the samples listed in idx. idx may repeat rows.
func growTree(x [][]float64, y []float64, idx []int, params treeParams, rng *rand.Rand) *Tree {
	if params.minSamplesSplit < 2 {
		params.minSamplesSplit = 2
	}
	if params.minSamplesLeaf < 1 {
		params.minSamplesLeaf = 1
	}
	width := 0
	if len(x) > 0 {
		width = len(x[0])
	}
	g := &grower{
		x:      x,
		y:      y,
		params: params,
		rng:    rng,
		work:   make([]int, len(idx)),
		feats:  make([]int, width),
	}
	for i := range g.feats {
		g.feats[i] = i
	}
	samples := append([]int(nil), idx...)
	g.grow(samples, 0)
	return &Tree{Nodes: g.nodes}
}

func (g *grower) grow(idx []int, depth int) int {
	sum := 0.0
	for _, i := range idx {
		sum += g.y[i]
	}
	n := float64(len(idx))
	self := len(g.nodes)
	g.nodes = append(g.nodes, node{Feature: leaf, Value: sum / (n + g.params.lambda)})

	if len(idx) < g.params.minSamplesSplit || (g.params.maxDepth > 0 && depth >= g.params.maxDepth) {
		return self
	}

	feature, threshold, split, ok := g.bestSplit(idx, sum)
	if !ok {
		return self
	}
	left := make([]int, 0, split)
	right := make([]int, 0, len(idx)-split)
	for _, i := range idx {
		if g.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.grow(left, depth+1)
	r := g.grow(right, depth+1)
	g.nodes[self] = node{Feature: feature, Threshold: threshold, Left: l, Right: r, Value: g.nodes[self].Value}
	return self
}

// bestSplit scans every candidate feature for the threshold with the largest
// score gain sum_L^2/(n_L+lambda) + sum_R^2/(n_R+lambda) - sum^2/(n+lambda).
func (g *grower) bestSplit(idx []int, sum float64) (feature int, threshold float64, leftSize int, ok bool) {
	lambda := g.params.lambda
	minLeaf := g.params.minSamplesLeaf
	n := len(idx)
	parent := sum * sum / (float64(n) + lambda)

	feats := g.feats
	if k := g.params.maxFeatures; k > 0 && k < len(feats) {
		g.rng.Shuffle(len(feats), func(a, b int) { feats[a], feats[b] = feats[b], feats[a] })
		feats = feats[:k]
	}

	best := 1e-12 * math.Max(1, math.Abs(parent))
	sorted := g.work[:n]
	for _, f := range feats {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return g.x[sorted[a]][f] < g.x[sorted[b]][f] })

		leftSum := 0.0
		for k := 0; k < n-1; k++ {
			leftSum += g.y[sorted[k]]
			lo, hi := g.x[sorted[k]][f], g.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			rightSum := sum - leftSum
			gain := leftSum*leftSum/(float64(nl)+lambda) + rightSum*rightSum/(float64(nr)+lambda) - parent
			if gain > best {
				best = gain
				feature, leftSize, ok = f, nl, true
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
			}
		}
	}
	return feature, threshold, leftSize, ok
}
