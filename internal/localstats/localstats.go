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

package localstats

import (
	"fmt"
	"math"
	"strings"

	"github.com/djkaty/pyramid-scheme/internal/parallel"
	"github.com/djkaty/pyramid-scheme/internal/pyramid"
	"github.com/djkaty/pyramid-scheme/internal/stats"
)

// Number of discrete gray levels used for histograms
const NumLevels = stats.NumLevels

// Default side length of the square window for local statistics
const DefaultWindowSize = 5

// Selects the formula for local entropy
type EntropyMode int

const (
	// Negative sum over window samples of level*log(p[level]). Weights by gray level
	EntropyWeighted EntropyMode = iota
	// Negative sum over window samples of p[level]*log(p[level])
	EntropyShannon
)

var entropyModeNames = []string{"weighted", "shannon"}

func (m EntropyMode) String() string {
	if int(m) >= 0 && int(m) < len(entropyModeNames) {
		return entropyModeNames[m]
	}
	return fmt.Sprintf("EntropyMode(%d)", int(m))
}

// Parses an entropy mode from its name, case insensitive
func ParseEntropyMode(s string) (EntropyMode, error) {
	for i, name := range entropyModeNames {
		if strings.EqualFold(s, name) {
			return EntropyMode(i), nil
		}
	}
	return EntropyWeighted, fmt.Errorf("unknown entropy mode '%s', expected one of %s", s, strings.Join(entropyModeNames, ", "))
}

func (m EntropyMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *EntropyMode) UnmarshalText(b []byte) (err error) {
	*m, err = ParseEntropyMode(string(b))
	return err
}

// Returns the distribution of gray levels in the image, normalized to sum to 1.
// Levels absent from the image have probability 0
func Probabilities(levels []uint8) (p [NumLevels]float32) {
	if len(levels) == 0 {
		return p
	}
	counts := stats.LevelHistogram(levels)
	total := float32(len(levels))
	for i, c := range counts {
		p[i] = float32(c) / total
	}
	return p
}

// Per-level entropy contribution of a single window sample
func entropyTerms(p *[NumLevels]float32, mode EntropyMode) (terms [NumLevels]float64) {
	for l, pl := range p {
		if pl <= 0 {
			continue // level does not occur in the image, hence never in a window
		}
		logP := math.Log(float64(pl))
		if mode == EntropyShannon {
			terms[l] = -float64(pl) * logP
		} else {
			terms[l] = -float64(l) * logP
		}
	}
	return terms
}

// Computes local entropy and local deviation for every pixel of a single channel gray image of the given width.
// Windows are windowSize x windowSize and centered on the pixel, borders are mirrored without repeating the edge.
// The deviation is the population variance of the window. Probabilities are taken over the whole image
func EntropyDeviation(levels []uint8, width, windowSize int, mode EntropyMode) (entropy, deviation []float32) {
	entropy, deviation = make([]float32, len(levels)), make([]float32, len(levels))
	if len(levels) == 0 || width <= 0 {
		return entropy, deviation
	}
	height := len(levels) / width
	pad := windowSize / 2
	pw, ph := width+2*pad, height+2*pad
	padded := make([]uint8, pw*ph)
	for y := 0; y < ph; y++ {
		sy := pyramid.Reflect101(height, y-pad)
		for x := 0; x < pw; x++ {
			padded[y*pw+x] = levels[sy*width+pyramid.Reflect101(width, x-pad)]
		}
	}

	p := Probabilities(levels)
	terms := entropyTerms(&p, mode)
	n := int64(windowSize * windowSize)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			e, sum, sumSq := float64(0), int64(0), int64(0)
			for wy := 0; wy < windowSize; wy++ {
				row := padded[(y+wy)*pw+x : (y+wy)*pw+x+windowSize]
				for _, l := range row {
					e += terms[l]
					sum += int64(l)
					sumSq += int64(l) * int64(l)
				}
			}
			entropy[y*width+x] = float32(e)
			deviation[y*width+x] = float32(float64(n*sumSq-sum*sum) / float64(n*n))
		}
	}
	return entropy, deviation
}

// Computes the local entropy map, see EntropyDeviation
func LocalEntropy(levels []uint8, width, windowSize int, mode EntropyMode) []float32 {
	e, _ := EntropyDeviation(levels, width, windowSize, mode)
	return e
}

// Computes the local population variance map, see EntropyDeviation
func LocalDeviation(levels []uint8, width, windowSize int) []float32 {
	_, d := EntropyDeviation(levels, width, windowSize, EntropyWeighted)
	return d
}

// Computes the region energy of a detail band: the kernel convolution of its squared values
func RegionEnergy(band []float32, width int, k pyramid.Kernel) []float32 {
	sq := make([]float32, len(band))
	for i, v := range band {
		sq[i] = v * v
	}
	res, tmp := make([]float32, len(band)), make([]float32, len(band))
	pyramid.ConvolvePlane(res, tmp, sq, width, k)
	return res
}

// Computes entropy and deviation maps for several gray images of identical width, one per layer,
// with at most maxThreads goroutines. Each layer writes only its own output slot
func EntropyDeviationLayers(layers [][]uint8, width, windowSize int, mode EntropyMode, maxThreads int) (entropies, deviations [][]float32) {
	entropies, deviations = make([][]float32, len(layers)), make([][]float32, len(layers))
	parallel.For(len(layers), maxThreads, func(i int) {
		entropies[i], deviations[i] = EntropyDeviation(layers[i], width, windowSize, mode)
	})
	return entropies, deviations
}

// Computes region energy maps for several detail bands of identical width, one per layer
func RegionEnergyLayers(bands [][]float32, width int, k pyramid.Kernel, maxThreads int) [][]float32 {
	res := make([][]float32, len(bands))
	parallel.For(len(bands), maxThreads, func(i int) {
		res[i] = RegionEnergy(bands[i], width, k)
	})
	return res
}
