package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeCoversEveryIndexOnce(t *testing.T) {
	configs := []Config{
		{Enabled: false},
		{Enabled: true, NumWorkers: 4, MinChunkSize: 1},
		{Enabled: true, NumWorkers: 3, MinChunkSize: 10},
		DefaultConfig(),
	}
	for _, cfg := range configs {
		for _, n := range []int{1, 7, 100, 1001} {
			seen := make([]int, n)
			var mu sync.Mutex
			Range(n, cfg, func(lo, hi int) {
				assert.LessOrEqual(t, lo, hi)
				mu.Lock()
				defer mu.Unlock()
				for i := lo; i < hi; i++ {
					seen[i]++
				}
			})
			for i, c := range seen {
				assert.Equal(t, 1, c, "index %d with n=%d cfg=%+v", i, n, cfg)
			}
		}
	}
}

func TestRangeSequentialFallback(t *testing.T) {
	calls := 0
	Range(50, Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}, func(lo, hi int) {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 50, hi)
	})
	assert.Equal(t, 1, calls)
}

func TestRangeEmpty(t *testing.T) {
	Range(0, DefaultConfig(), func(lo, hi int) {
		t.Fatal("f must not be called for n=0")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.NumWorkers, 1)
	assert.Equal(t, cfg.NumWorkers > 1, cfg.Enabled)
}
