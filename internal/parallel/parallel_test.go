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
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	for _, threads := range []int{0, 1, 3, 16} {
		n := 100
		hits := make([]int32, n)
		For(n, threads, func(i int) { atomic.AddInt32(&hits[i], 1) })
		for i, h := range hits {
			if h != 1 {
				t.Errorf("threads %d: index %d visited %d times; want 1", threads, i, h)
			}
		}
	}
}

func TestBands(t *testing.T) {
	for _, tc := range []struct{ n, threads int }{{0, 4}, {1, 4}, {7, 3}, {10, 4}, {100, 1}, {5, 16}} {
		hits := make([]int32, tc.n)
		Bands(tc.n, tc.threads, func(start, end int) {
			if start >= end {
				t.Errorf("n %d threads %d: empty band [%d, %d)", tc.n, tc.threads, start, end)
			}
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Errorf("n %d threads %d: index %d covered %d times; want 1", tc.n, tc.threads, i, h)
			}
		}
	}
}
