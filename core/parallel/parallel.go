// Package parallel splits row ranges across CPU cores.
package parallel

import (
	"runtime"
	"sync"
)

// Range is a half-open interval [Start, End) of row indices.
type Range struct {
	Start, End int
}

// Chunks divides items into at most workers contiguous ranges of nearly equal
// size (ceiling division), in ascending order. A non-positive workers value
// means runtime.NumCPU().
func Chunks(items, workers int) []Range {
	if items <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}
	chunkSize := (items + workers - 1) / workers

	ranges := make([]Range, 0, workers)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	var wg sync.WaitGroup
	for _, r := range Chunks(items, 0) {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(r.Start, r.End)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// MapChunks runs fn on every chunk and returns the per-chunk results in
// chunk order. Below threshold a single chunk is processed on the calling
// goroutine.
func MapChunks[T any](items, threshold int, fn func(start, end int) T) []T {
	if items <= 0 {
		return nil
	}
	if items <= threshold {
		return []T{fn(0, items)}
	}
	return MapRanges(Chunks(items, 0), fn)
}

// MapRanges runs fn on every range concurrently and returns the results in
// the order of ranges, so a caller that folds them left to right gets the
// same answer however the goroutines were scheduled.
func MapRanges[T any](ranges []Range, fn func(start, end int) T) []T {
	results := make([]T, len(ranges))
	var wg sync.WaitGroup
	for i, r := range ranges {
		wg.Add(1)
		go func(i int, r Range) {
			defer wg.Done()
			results[i] = fn(r.Start, r.End)
		}(i, r)
	}
	wg.Wait()
	return results
}
