package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelize_CoversEveryItemOnce(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100} {
		seen := make([]int32, items)
		ParallelizeN(items, 3, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, n := range seen {
			assert.Equal(t, int32(1), n, "item %d of %d", i, items)
		}
	}
}

func TestParallelizeWithThreshold_Sequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(5, 10, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, 1, calls)
}

func TestForEach_LowestIndexErrorWins(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	err := ForEach(20, 4, func(i int) error {
		switch i {
		case 3:
			return errA
		case 15:
			return errB
		}
		return nil
	})
	assert.Equal(t, errA, err)

	assert.NoError(t, ForEach(10, 0, func(int) error { return nil }))
}
