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

package pyramid

// Default parameter of the generating kernel. Yields a kernel with positive weights
// and slightly more center weight than the binomial kernel, which is a=0.375
const DefaultA = 0.4

// Size of the generating kernel along each axis
const KernelSize = 5

// The separable 5x5 smoothing kernel used by all convolutions, generated from a single parameter a.
// The 2D kernel is the outer product of the row [0.25-a/2, 0.25, a, 0.25, 0.25-a/2] with itself.
// Kernels are immutable values and safe for concurrent use
type Kernel struct {
	a   float32
	row [KernelSize]float32
}

// Generates the kernel for parameter a. No validation is performed
func NewKernel(a float32) Kernel {
	return Kernel{
		a:   a,
		row: [KernelSize]float32{0.25 - a/2, 0.25, a, 0.25, 0.25 - a/2},
	}
}

// Returns the kernel for DefaultA
func DefaultKernel() Kernel { return NewKernel(DefaultA) }

// Returns the generating parameter
func (k Kernel) A() float32 { return k.a }

// Returns a copy of the 1D generating row
func (k Kernel) Row() []float32 { return append([]float32(nil), k.row[:]...) }

// Returns the 2D kernel weight at row y, column x, both in [0, KernelSize)
func (k Kernel) At(y, x int) float32 { return k.row[y] * k.row[x] }

// Returns the full 2D kernel
func (k Kernel) Weights() (w [KernelSize][KernelSize]float32) {
	for y := 0; y < KernelSize; y++ {
		for x := 0; x < KernelSize; x++ {
			w[y][x] = k.At(y, x)
		}
	}
	return w
}

// Returns the total weight of the 2D kernel, which is 1 whenever the row sums to 1
func (k Kernel) Sum() float32 {
	rowSum := float32(0)
	for _, r := range k.row {
		rowSum += r
	}
	return rowSum * rowSum
}

// Returns the row scaled by the given factor, for upsampling
func (k Kernel) scaledRow(factor float32) []float32 {
	res := k.Row()
	for i := range res {
		res[i] *= factor
	}
	return res
}
