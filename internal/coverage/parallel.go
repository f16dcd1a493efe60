package coverage

import "sync"

// minChunk keeps tiny inputs on one goroutine.
const minChunk = 256

// parallelFor splits [0, n) into contiguous chunks and runs fn on up to
// workers goroutines. Each index is visited exactly once, so fn may write
// to its own slots of a shared slice without locking.
func parallelFor(n, workers int, fn func(lo, hi int)) {
	if n == 0 {
		return
	}
	if workers < 1 {
		workers = 1
	}
	chunks := (n + minChunk - 1) / minChunk
	if workers > chunks {
		workers = chunks
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	size := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(lo, hi)
		}()
	}
	wg.Wait()
}
