package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a flattened CART tree. Leaves have Left == Right == -1
// and carry the class distribution of the training samples that reached them.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Samples   int       `json:"n"`
	Probs     []float64 `json:"p,omitempty"`
}

// IsLeaf reports whether n is a leaf.
func (n *Node) IsLeaf() bool { return n.Left < 0 }

// Tree is a binary classification tree stored as a node slice with the root at 0.
// Importance holds the total weighted gini decrease contributed by each feature.
type Tree struct {
	Nodes      []Node    `json:"nodes"`
	Importance []float64 `json:"importance"`
}

// predict walks x down to a leaf: x[feature] <= threshold goes left.
func (t *Tree) predict(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Probs
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// check verifies structural consistency against the forest dimensions.
func (t *Tree) check(nFeatures, nClasses int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("tree has no nodes")
	}
	if len(t.Importance) != nFeatures {
		return fmt.Errorf("tree importance has %d entries, expected %d", len(t.Importance), nFeatures)
	}
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			if n.Right >= 0 {
				return fmt.Errorf("node %d has only one child", i)
			}
			if len(n.Probs) != nClasses {
				return fmt.Errorf("leaf %d has %d class probabilities, expected %d", i, len(n.Probs), nClasses)
			}
			if err := checkDistribution(n.Probs); err != nil {
				return fmt.Errorf("leaf %d: %w", i, err)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d, only %d features", i, n.Feature, nFeatures)
		}
		if !isFinite(n.Threshold) {
			return fmt.Errorf("node %d has threshold %v", i, n.Threshold)
		}
		// children are always appended after their parent, which also rules out cycles
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	for f, v := range t.Importance {
		if !isFinite(v) || v < 0 {
			return fmt.Errorf("importance of feature %d is %v", f, v)
		}
	}
	return nil
}

// probTolerance bounds the rounding error allowed in a stored distribution.
const probTolerance = 1e-6

// checkDistribution requires every component in [0,1] and a total of 1.
func checkDistribution(p []float64) error {
	sum := 0.0
	for k, v := range p {
		if !isFinite(v) || v < 0 || v > 1 {
			return fmt.Errorf("class probability %d is %v", k, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > probTolerance {
		return fmt.Errorf("class probabilities sum to %v", sum)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type treeBuilder struct {
	X        [][]float64
	y        []int
	nClasses int
	cfg      ForestConfig
	rnd      *rand.Rand
	tree     *Tree
	total    float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	ok        bool
}

// growTree fits one tree on the rows listed in sample (duplicates allowed).
func growTree(X [][]float64, y []int, sample []int, nClasses int, cfg ForestConfig, rnd *rand.Rand) *Tree {
	nFeatures := len(X[0])
	b := &treeBuilder{
		X:        X,
		y:        y,
		nClasses: nClasses,
		cfg:      cfg,
		rnd:      rnd,
		tree:     &Tree{Importance: make([]float64, nFeatures)},
		total:    float64(len(sample)),
	}
	b.build(sample, 0)
	return b.tree
}

func (b *treeBuilder) build(idx []int, depth int) int {
	counts := make([]int, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}

	self := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1, Left: -1, Right: -1, Samples: len(idx)})

	stop := isPure(counts) ||
		len(idx) < b.cfg.MinSamplesSplit ||
		len(idx) < 2*b.cfg.MinSamplesLeaf ||
		(b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth)

	var best split
	if !stop {
		best = b.bestSplit(idx, counts)
	}
	if !best.ok {
		b.tree.Nodes[self].Probs = countsToProbs(counts)
		return self
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.tree.Importance[best.feature] += best.gain * float64(len(idx)) / b.total

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &b.tree.Nodes[self]
	n.Feature = best.feature
	n.Threshold = best.threshold
	n.Left = l
	n.Right = r
	return self
}

// bestSplit searches a random subset of features for the threshold with the
// largest gini decrease. As in the usual random-forest recipe the search keeps
// drawing features past MaxFeatures until at least one valid split exists.
func (b *treeBuilder) bestSplit(idx []int, counts []int) split {
	nFeatures := len(b.X[0])
	maxFeatures := b.cfg.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > nFeatures {
		maxFeatures = nFeatures
	}

	n := float64(len(idx))
	parent := gini(counts, len(idx))
	best := split{feature: -1}

	sorted := make([]int, len(idx))
	leftCounts := make([]int, b.nClasses)
	rightCounts := make([]int, b.nClasses)

	visited := 0
	for _, f := range b.rnd.Perm(nFeatures) {
		if visited >= maxFeatures && best.ok {
			break
		}

		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })
		if b.X[sorted[0]][f] == b.X[sorted[len(sorted)-1]][f] {
			continue // constant here, does not count towards MaxFeatures
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
			rightCounts[k] = counts[k]
		}
		for s := 1; s < len(sorted); s++ {
			c := b.y[sorted[s-1]]
			leftCounts[c]++
			rightCounts[c]--

			lo, hi := b.X[sorted[s-1]][f], b.X[sorted[s]][f]
			if lo == hi {
				continue
			}
			nl, nr := s, len(sorted)-s
			if nl < b.cfg.MinSamplesLeaf || nr < b.cfg.MinSamplesLeaf {
				continue
			}
			weighted := float64(nl)/n*gini(leftCounts, nl) + float64(nr)/n*gini(rightCounts, nr)
			gain := parent - weighted
			if gain > best.gain+1e-12 || (!best.ok && gain >= 0) {
				thr := lo + (hi-lo)/2
				if thr >= hi {
					thr = lo
				}
				best = split{feature: f, threshold: thr, gain: math.Max(gain, 0), ok: true}
			}
		}
	}
	return best
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		sum += p * p
	}
	return 1 - sum
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func countsToProbs(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	p := make([]float64, len(counts))
	if total == 0 {
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return p
	}
	for i, c := range counts {
		p[i] = float64(c) / float64(total)
	}
	return p
}
