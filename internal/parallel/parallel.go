// Package parallel provides goroutine chunking for data-parallel loops in
// the compute backends.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // whether to fan out at all
	NumWorkers   int  // goroutines to use
	MinChunkSize int  // minimum items per goroutine to amortize overhead
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// For executes f(i) for i in [0, n), fanning out across goroutines when the
// workload is large enough. Iterations must be independent.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForRows is For over the rows of a [rows, cols] matrix, scaling the
// sequential-fallback threshold by the row width so small matrices stay on
// one goroutine.
func ForRows(rows, cols int, f func(row int), cfg Config) {
	if cols > 0 {
		cfg.MinChunkSize = max(cfg.MinChunkSize/cols, 1)
	}
	For(rows, f, cfg)
}
