// Copyright (C) 2026 The pyramid-scheme authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package parallel

import (
	"runtime"
	"sync"
)

// Returns the number of worker goroutines to use for the given thread limit.
// Limits below one mean one thread per logical CPU
func Threads(maxThreads int) int {
	if maxThreads < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return maxThreads
}

// Calls fn(i) for every i in [0, n), running at most maxThreads calls concurrently.
// Returns once all calls have completed
func For(n, maxThreads int, fn func(i int)) {
	threads := Threads(maxThreads)
	if threads == 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	limiter := make(chan bool, threads)
	wg := sync.WaitGroup{}
	for i := 0; i < n; i++ {
		limiter <- true
		wg.Add(1)
		go func(i int) {
			defer func() { <-limiter; wg.Done() }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// Splits [0, n) into at most maxThreads contiguous bands of roughly equal size and calls
// fn(start, end) for each band concurrently. Returns once all bands are done
func Bands(n, maxThreads int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	threads := Threads(maxThreads)
	if threads > n {
		threads = n
	}
	if threads == 1 {
		fn(0, n)
		return
	}

	step := (n + threads - 1) / threads
	wg := sync.WaitGroup{}
	for start := 0; start < n; start += step {
		end := start + step
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}
