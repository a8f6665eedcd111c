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

// Maps an out of bounds coordinate back into [0, size-1] by mirroring at the edges without
// repeating the edge sample, i.e. -1 maps to 1 and size maps to size-2.
// Coordinates further out than one image size are folded repeatedly
func Reflect101(size, x int) int {
	if size <= 1 {
		return 0
	}
	for x < 0 || x >= size {
		if x < 0 {
			x = -x
		}
		if x >= size {
			x = 2*size - 2 - x
		}
	}
	return x
}

// Convolve the given 2D image provided by data and width with the given 1D kernel along the x axis, and store the result in res
func Convolve1DX(res, data []float32, width int, kernel []float32) {
	height := len(data) / width
	k := len(kernel) / 2
	for y := 0; y < height; y++ {
		row := data[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			sum := float32(0)
			if x >= k && x+k < width {
				for i, kv := range kernel {
					sum += row[x-k+i] * kv
				}
			} else {
				for i := -k; i <= k; i++ {
					sum += row[Reflect101(width, x+i)] * kernel[i+k]
				}
			}
			res[y*width+x] = sum
		}
	}
}

// Convolve the given 2D image provided by data and width with the given 1D kernel along the y axis, and store the result in res
func Convolve1DY(res, data []float32, width int, kernel []float32) {
	height := len(data) / width
	k := len(kernel) / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := float32(0)
			for i := -k; i <= k; i++ {
				y1 := Reflect101(height, y+i)
				sum += data[y1*width+x] * kernel[i+k]
			}
			res[y*width+x] = sum
		}
	}
}

// Convolves the 2D image given by data and width with the separable kernel, rows first.
// Overwrites tmp and returns the result in res. res and data must not alias
func ConvolvePlane(res, tmp, data []float32, width int, k Kernel) {
	convolveSeparable(res, tmp, data, width, k.row[:])
}

func convolveSeparable(res, tmp, data []float32, width int, row []float32) {
	Convolve1DX(tmp, data, width, row)
	Convolve1DY(res, tmp, width, row)
}
