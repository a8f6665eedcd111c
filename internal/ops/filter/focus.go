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

package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/djkaty/pyramid-scheme/internal/pyramid"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Selects the weights of the red, green and blue channels for the gray conversion
type Luma int

const (
	// ITU-R BT.601 weights 0.299, 0.587, 0.114
	LumaRec601 Luma = iota
	// ITU-R BT.709 weights, from the Y row of the linear sRGB to XYZ matrix
	LumaRec709
)

var lumaNames = []string{"rec601", "rec709"}

func (l Luma) String() string {
	if int(l) >= 0 && int(l) < len(lumaNames) {
		return lumaNames[l]
	}
	return fmt.Sprintf("Luma(%d)", int(l))
}

// Parses a luma mode from its name, case insensitive
func ParseLuma(s string) (Luma, error) {
	for i, name := range lumaNames {
		if strings.EqualFold(s, name) {
			return Luma(i), nil
		}
	}
	return LumaRec601, fmt.Errorf("unknown luma '%s', expected one of %s", s, strings.Join(lumaNames, ", "))
}

func (l Luma) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Luma) UnmarshalText(b []byte) (err error) {
	*l, err = ParseLuma(string(b))
	return err
}

var rec601 = [3]float32{0.299, 0.587, 0.114}
var rec709 = rec709Weights()

func rec709Weights() [3]float32 {
	_, yr, _ := colorful.LinearRgb(1, 0, 0).Xyz()
	_, yg, _ := colorful.LinearRgb(0, 1, 0).Xyz()
	_, yb, _ := colorful.LinearRgb(0, 0, 1).Xyz()
	sum := yr + yg + yb
	return [3]float32{float32(yr / sum), float32(yg / sum), float32(yb / sum)}
}

// Returns the red, green and blue weights, which sum to 1
func (l Luma) Weights() [3]float32 {
	if l == LumaRec709 {
		return rec709
	}
	return rec601
}

// Smoothing kernel of the focus measure, the binomial [1 4 6 4 1]/16
var binomial = pyramid.NewKernel(0.375)

// Second derivative and smoothing rows of the 5x5 Laplacian operator
var (
	laplaceD2     = []float32{1, 0, -2, 0, 1}
	laplaceSmooth = []float32{1, 4, 6, 4, 1}
)

// Converts the image to 8 bit gray levels, as float. Three channel images are weighted by luma,
// all others use their first channel. Values are scaled from the image value range to [0, 255] and rounded
func Gray(f *frame.Image, luma Luma) []float32 {
	scale := float32(1)
	if f.MaxValue > 0 {
		scale = 255 / f.MaxValue
	}
	gray := make([]float32, f.Width()*f.Height())
	if f.Channels() == 3 {
		r, g, b := f.Plane(0), f.Plane(1), f.Plane(2)
		w := luma.Weights()
		for i := range gray {
			gray[i] = toByte((w[0]*r[i] + w[1]*g[i] + w[2]*b[i]) * scale)
		}
	} else {
		for i, v := range f.Plane(0) {
			gray[i] = toByte(v * scale)
		}
	}
	return gray
}

func toByte(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 255 {
		return 255
	}
	return float32(math.Floor(float64(v) + 0.5))
}

// Computes the focus value of an image: the squared standard deviation of the 5x5 Laplacian
// of the blurred gray image, scaled by 1/25 before squaring. Larger values mean more in focus
func FocusValue(f *frame.Image, luma Luma) float32 {
	width, height := f.Width(), f.Height()
	gray := Gray(f, luma)
	tmp, blurred := make([]float32, len(gray)), make([]float32, len(gray))
	pyramid.ConvolvePlane(blurred, tmp, gray, width, binomial)
	for i, v := range blurred {
		blurred[i] = toByte(v)
	}

	dxx, dyy := make([]float32, len(gray)), make([]float32, len(gray))
	pyramid.Convolve1DX(tmp, blurred, width, laplaceD2)
	pyramid.Convolve1DY(dxx, tmp, width, laplaceSmooth)
	pyramid.Convolve1DX(tmp, blurred, width, laplaceSmooth)
	pyramid.Convolve1DY(dyy, tmp, width, laplaceD2)

	lap := make([]float64, width*height)
	for i := range lap {
		lap[i] = float64(dxx[i]) + float64(dyy[i])
	}
	_, std := stat.PopMeanStdDev(lap, nil)
	std /= 25
	return float32(std * std)
}

// Decides which layers to keep based on their focus values: all at or above threshold, unless
// fewer than minLayers pass. Then all with at least ratio times the maximum focus value are kept
func Select(values []float32, threshold float32, minLayers int, ratio float32) []bool {
	if len(values) == 0 {
		return nil
	}
	keep, numKept := make([]bool, len(values)), 0
	for i, v := range values {
		if v >= threshold {
			keep[i] = true
			numKept++
		}
	}
	if numKept >= minLayers {
		return keep
	}
	limit := float32(floats.Max(toFloat64(values))) * ratio
	for i, v := range values {
		keep[i] = v >= limit
	}
	return keep
}

// Returns the index of the first maximum focus value
func MaxIndex(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	return floats.MaxIdx(toFloat64(values))
}

func toFloat64(values []float32) []float64 {
	res := make([]float64, len(values))
	for i, v := range values {
		res[i] = float64(v)
	}
	return res
}
