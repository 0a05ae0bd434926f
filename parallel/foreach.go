// Package parallel contains a bounded ForEach worker pool and row chunking helpers.
package parallel

import "sync"

import "github.com/klauspost/cpuid/v2"

// Workers reports the default number of concurrent goroutines, the number of physical cores.
// Can't return 0.
func Workers() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return 1
}

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length.
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = Workers()
	}
	if length <= 0 {
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			body(i)
		}(i)
	}

	wg.Wait()
}

// Chunks splits rows 0..n into consecutive chunks of at most size rows and calls body
// concurrently for each [lo, hi) range. The first error returned by body is reported.
func Chunks(n, size int, body func(lo, hi int) error) error {
	if size <= 0 {
		size = n
	}
	if n <= 0 {
		return nil
	}
	count := (n + size - 1) / size
	var once sync.Once
	var first error
	ForEach(count, Workers(), func(c int) {
		lo := c * size
		hi := lo + size
		if hi > n {
			hi = n
		}
		if err := body(lo, hi); err != nil {
			once.Do(func() { first = err })
		}
	})
	return first
}
