package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForSequentialFallback(t *testing.T) {
	cfg := Config{Enabled: false}
	var count int
	For(10, func(i int) { count++ }, cfg)
	if count != 10 {
		t.Errorf("sequential For ran %d iterations, want 10", count)
	}
}

func TestForParallelCoversAllIndices(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	n := 1000
	seen := make([]atomic.Int32, n)

	For(n, func(i int) { seen[i].Add(1) }, cfg)

	for i := range seen {
		if got := seen[i].Load(); got != 1 {
			t.Fatalf("index %d visited %d times", i, got)
		}
	}
}

func TestForSmallWorkloadStaysSequential(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}
	var count int // safe only if execution is sequential
	For(10, func(i int) { count++ }, cfg)
	if count != 10 {
		t.Errorf("For ran %d iterations, want 10", count)
	}
}

func TestForRows(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 2, MinChunkSize: 64}
	rows := 100
	seen := make([]atomic.Int32, rows)

	ForRows(rows, 512, func(r int) { seen[r].Add(1) }, cfg)

	for i := range seen {
		if got := seen[i].Load(); got != 1 {
			t.Fatalf("row %d visited %d times", i, got)
		}
	}
}
