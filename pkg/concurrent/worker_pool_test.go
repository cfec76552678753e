package concurrent

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	var calls atomic.Int32
	workers := NewWorkerPool[int, int](4, 100)
	for i := 0; i < 100; i++ {
		workers.AddJob(i)
	}
	workers.Close()
	workers.Start(func(job int) int {
		calls.Add(1)
		return job * 2
	})
	workers.Wait()

	sum := 0
	for r := range workers.CollectResults() {
		sum += r
	}
	assert.Equal(t, int32(100), calls.Load())
	assert.Equal(t, 2*99*100/2, sum)
}

func TestMapKeepsOrder(t *testing.T) {
	items := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	lens := Map(3, items, func(s string) int { return len(s) })
	assert.Equal(t, []int{1, 2, 3, 4, 5}, lens)

	assert.Empty(t, Map(0, []string{}, func(s string) int { return len(s) }))
	assert.Equal(t, []int{1}, Map(0, []string{"x"}, func(s string) int { return len(s) }))
}
