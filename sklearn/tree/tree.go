// Package tree implements CART decision trees for classification and
// regression. Trees are stored as flat node slices so a fitted tree
// gob-encodes without custom marshaling.
package tree

import (
	"encoding/gob"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

func init() {
	gob.Register(&DecisionTreeClassifier{})
	gob.Register(&DecisionTreeRegressor{})
}

const (
	CriterionGini         = "gini"
	CriterionEntropy      = "entropy"
	CriterionSquaredError = "squared_error"
)

// Node is one entry of a flattened tree. Leaves have Feature == -1.
// Samples with x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // regression: [mean]; classification: class fractions
	NSamples  int
	Impurity  float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a fitted CART tree; Nodes[0] is the root.
type Tree struct {
	Nodes     []Node
	NFeatures int
}

// Config holds the growth limits shared by classifiers, regressors and
// the ensembles built on them. Zero MaxDepth / MaxFeatures mean unlimited.
type Config struct {
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
}

// Apply returns the index of the leaf row falls into.
func (t *Tree) Apply(row []float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Value returns the leaf value for row.
func (t *Tree) Value(row []float64) []float64 {
	return t.Nodes[t.Apply(row)].Value
}

// Depth is the length of the longest root-to-leaf path (a stump has depth 0).
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return d
		}
		l := walk(n.Left, d+1)
		r := walk(n.Right, d+1)
		if l > r {
			return l
		}
		return r
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

// NLeaves counts leaf nodes.
func (t *Tree) NLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Importances returns the impurity decrease attributed to each feature,
// normalized to sum to 1 (all zeros for a stump).
func (t *Tree) Importances() []float64 {
	imp := make([]float64, t.NFeatures)
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			continue
		}
		l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
		imp[n.Feature] += float64(n.NSamples)*n.Impurity -
			float64(l.NSamples)*l.Impurity - float64(r.NSamples)*r.Impurity
	}
	var total float64
	for _, v := range imp {
		total += v
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

// GrowClassifier fits a classification tree on the rows listed in idx
// (duplicates allowed, as produced by bootstrap sampling). labels are 0..k-1.
func GrowClassifier(X *mat.Dense, labels []int, k int, idx []int, cfg Config, rng *rand.Rand) *Tree {
	b := &builder{X: X, labels: labels, k: k, cfg: cfg.normalized(), rng: rng}
	return b.grow(idx)
}

// GrowRegressor fits a squared-error regression tree on the rows in idx.
func GrowRegressor(X *mat.Dense, y []float64, idx []int, cfg Config, rng *rand.Rand) *Tree {
	b := &builder{X: X, y: y, cfg: cfg.normalized(), rng: rng}
	return b.grow(idx)
}

func (c Config) normalized() Config {
	if c.MinSamplesSplit < 2 {
		c.MinSamplesSplit = 2
	}
	if c.MinSamplesLeaf < 1 {
		c.MinSamplesLeaf = 1
	}
	return c
}

type builder struct {
	X      *mat.Dense
	labels []int // classification when non-nil
	k      int
	y      []float64
	cfg    Config
	rng    *rand.Rand
	tree   *Tree
}

type split struct {
	feature   int
	threshold float64
	score     float64 // weighted child impurity, lower is better
}

func (b *builder) grow(idx []int) *Tree {
	_, p := b.X.Dims()
	b.tree = &Tree{NFeatures: p}
	work := append([]int(nil), idx...)
	b.build(work, 0)
	return b.tree
}

func (b *builder) build(idx []int, depth int) int {
	value, impurity := b.leafValue(idx)
	nodeID := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:  -1,
		Value:    value,
		NSamples: len(idx),
		Impurity: impurity,
	})

	n := len(idx)
	if (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) ||
		n < b.cfg.MinSamplesSplit ||
		n < 2*b.cfg.MinSamplesLeaf ||
		impurity <= 1e-12 {
		return nodeID
	}

	best, ok := b.bestSplit(idx)
	if !ok {
		return nodeID
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, i := range idx {
		if b.X.At(i, best.feature) <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	node := &b.tree.Nodes[nodeID]
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = l
	node.Right = r
	return nodeID
}

func (b *builder) features() []int {
	_, p := b.X.Dims()
	if b.cfg.MaxFeatures <= 0 || b.cfg.MaxFeatures >= p || b.rng == nil {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(p)[:b.cfg.MaxFeatures]
}

func (b *builder) bestSplit(idx []int) (split, bool) {
	best := split{score: math.Inf(1)}
	found := false
	sorted := append([]int(nil), idx...)
	minLeaf := b.cfg.MinSamplesLeaf
	n := len(sorted)

	for _, f := range b.features() {
		sort.Slice(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], f) < b.X.At(sorted[c], f)
		})
		acc := b.newAccumulator(sorted)
		for j := 0; j < n-1; j++ {
			acc.moveLeft(sorted[j])
			xj := b.X.At(sorted[j], f)
			xn := b.X.At(sorted[j+1], f)
			if xj == xn || j+1 < minLeaf || n-j-1 < minLeaf {
				continue
			}
			score := acc.score()
			if score < best.score {
				thr := xj + (xn-xj)/2
				if thr >= xn {
					thr = xj
				}
				best = split{feature: f, threshold: thr, score: score}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) leafValue(idx []int) ([]float64, float64) {
	if b.labels != nil {
		counts := make([]float64, b.k)
		for _, i := range idx {
			counts[b.labels[i]]++
		}
		imp := classImpurity(b.cfg.Criterion, counts, float64(len(idx)))
		for c := range counts {
			counts[c] /= float64(len(idx))
		}
		return counts, imp
	}
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	nf := float64(len(idx))
	mean := sum / nf
	var ss float64
	for _, i := range idx {
		d := b.y[i] - mean
		ss += d * d
	}
	return []float64{mean}, ss / nf
}

// accumulator tracks left/right statistics while sweeping a sorted feature.
type accumulator struct {
	b                 *builder
	nLeft, nRight     float64
	leftCnt, rightCnt []float64
	leftSum, rightSum float64
	leftSq, rightSq   float64
}

func (b *builder) newAccumulator(idx []int) *accumulator {
	acc := &accumulator{b: b, nRight: float64(len(idx))}
	if b.labels != nil {
		acc.leftCnt = make([]float64, b.k)
		acc.rightCnt = make([]float64, b.k)
		for _, i := range idx {
			acc.rightCnt[b.labels[i]]++
		}
		return acc
	}
	for _, i := range idx {
		acc.rightSum += b.y[i]
		acc.rightSq += b.y[i] * b.y[i]
	}
	return acc
}

func (a *accumulator) moveLeft(i int) {
	a.nLeft++
	a.nRight--
	if a.b.labels != nil {
		c := a.b.labels[i]
		a.leftCnt[c]++
		a.rightCnt[c]--
		return
	}
	v := a.b.y[i]
	a.leftSum += v
	a.rightSum -= v
	a.leftSq += v * v
	a.rightSq -= v * v
}

func (a *accumulator) score() float64 {
	if a.b.labels != nil {
		crit := a.b.cfg.Criterion
		return a.nLeft*classImpurity(crit, a.leftCnt, a.nLeft) +
			a.nRight*classImpurity(crit, a.rightCnt, a.nRight)
	}
	// 二乗誤差の合計 = Σy² - (Σy)²/n
	return (a.leftSq - a.leftSum*a.leftSum/a.nLeft) +
		(a.rightSq - a.rightSum*a.rightSum/a.nRight)
}

func classImpurity(criterion string, counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if criterion == CriterionEntropy {
		var h float64
		for _, c := range counts {
			if c > 0 {
				p := c / n
				h -= p * math.Log2(p)
			}
		}
		return h
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}
