// Package model_selection partitions a feature table and its target into
// disjoint train and test sets.
package model_selection

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/mlplayground/core/frame"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
)

// Split holds the four partitions and the source rows of each.
type Split struct {
	XTrain, XTest *frame.Frame
	YTrain, YTest *frame.Series

	TrainIndex []int
	TestIndex  []int
}

type splitConfig struct {
	seed     int64
	stratify bool
}

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

// WithRandomState seeds the shuffle.
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) { c.seed = seed }
}

// WithStratify preserves the class proportions of y in both partitions.
func WithStratify(stratify bool) SplitOption {
	return func(c *splitConfig) { c.stratify = stratify }
}

// TestCount returns ceil(testSize·n), tolerant to floating error in the product.
func TestCount(n int, testSize float64) int {
	return int(math.Ceil(testSize*float64(n) - 1e-9))
}

// TrainTestSplit shuffles the rows under the seed and assigns the first
// ceil(testSize·N) to the test partition. Both partitions must be non-empty.
func TrainTestSplit(X *frame.Frame, y *frame.Series, testSize float64, opts ...SplitOption) (*Split, error) {
	cfg := splitConfig{seed: 42}
	for _, opt := range opts {
		opt(&cfg)
	}
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n := X.NRows()
	if y.Len() != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}
	nTest := TestCount(n, testSize)
	nTrain := n - nTest
	if nTrain < 1 || nTest < 1 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%g one partition would be empty", n, testSize))
	}

	rng := rand.New(rand.NewSource(cfg.seed))
	var train, test []int
	if cfg.stratify {
		var err error
		train, test, err = stratified(y, nTrain, nTest, rng)
		if err != nil {
			return nil, err
		}
	} else {
		perm := rng.Perm(n)
		test, train = perm[:nTest], perm[nTest:]
	}

	return &Split{
		XTrain:     X.Take(train),
		XTest:      X.Take(test),
		YTrain:     y.Take(train),
		YTest:      y.Take(test),
		TrainIndex: train,
		TestIndex:  test,
	}, nil
}

// stratified allocates per-class train counts by largest remainder, shuffles
// each class and orders both partitions by a final global permutation.
func stratified(y *frame.Series, nTrain, nTest int, rng *rand.Rand) ([]int, []int, error) {
	if y.MissingCount() > 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "cannot stratify on a target with missing values")
	}
	n := y.Len()
	classes := y.Unique()
	k := len(classes)
	if nTrain < k || nTest < k {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("train (%d) and test (%d) sizes must be at least the number of classes (%d)", nTrain, nTest, k))
	}

	members := make(map[string][]int, k)
	for i := 0; i < n; i++ {
		v := y.Value(i)
		members[v] = append(members[v], i)
	}
	for _, c := range classes {
		if len(members[c]) < 2 {
			return nil, nil, errors.NewValueError("TrainTestSplit",
				fmt.Sprintf("class %q has fewer than 2 members; stratification needs at least 2", c))
		}
	}

	alloc := largestRemainder(classes, members, nTrain, n)

	var train, test []int
	for ci, c := range classes {
		idx := append([]int(nil), members[c]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		train = append(train, idx[:alloc[ci]]...)
		test = append(test, idx[alloc[ci]:]...)
	}

	pos := rng.Perm(n)
	byPos := func(s []int) {
		sort.Slice(s, func(i, j int) bool { return pos[s[i]] < pos[s[j]] })
	}
	byPos(train)
	byPos(test)
	return train, test, nil
}

// largestRemainder splits total across classes in proportion to their sizes.
// Ties in the fractional part go to the larger class, then to the earlier one.
func largestRemainder(classes []string, members map[string][]int, total, n int) []int {
	alloc := make([]int, len(classes))
	frac := make([]float64, len(classes))
	assigned := 0
	for i, c := range classes {
		q := float64(len(members[c])) * float64(total) / float64(n)
		alloc[i] = int(math.Floor(q))
		frac[i] = q - float64(alloc[i])
		assigned += alloc[i]
	}
	order := make([]int, len(classes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if frac[i] != frac[j] {
			return frac[i] > frac[j]
		}
		return len(members[classes[i]]) > len(members[classes[j]])
	})
	for r := 0; assigned < total; r++ {
		alloc[order[r%len(order)]]++
		assigned++
	}
	return alloc
}
