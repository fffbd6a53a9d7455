package utils

import (
	"runtime"
	"sync"
)

// ForEachChunk fans n independent iterations out over worker goroutines and
// joins before returning. Each worker receives a disjoint half-open range
// [start, end); f must only write to output slots owned by its range.
// With a single item or GOMAXPROCS == 1 the loop runs on the calling
// goroutine.
func ForEachChunk(n int, f func(start, end int)) {

	workers := Min(runtime.GOMAXPROCS(0), n)

	if workers <= 1 || n <= 1 {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers

	for start := 0; start < n; start += chunk {
		end := Min(start+chunk, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			f(start, end)
		}(start, end)
	}

	wg.Wait()
}
