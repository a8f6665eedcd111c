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

package fusion

import (
	"fmt"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/djkaty/pyramid-scheme/internal/localstats"
	"github.com/djkaty/pyramid-scheme/internal/parallel"
	"github.com/djkaty/pyramid-scheme/internal/pyramid"
)

// Returns, for every pixel, the index of the map holding the largest value.
// Ties go to the lowest index. All maps must have the same length
func SelectFirstMax(maps [][]float32) []int {
	if len(maps) == 0 {
		return nil
	}
	best := make([]int, len(maps[0]))
	for i := range best {
		best[i] = firstMaxAt(maps, i)
	}
	return best
}

// Returns the index of the first map with the largest value at pixel i
func firstMaxAt(maps [][]float32, i int) int {
	bestIndex, bestValue := 0, maps[0][i]
	for l := 1; l < len(maps); l++ {
		if maps[l][i] > bestValue {
			bestIndex, bestValue = l, maps[l][i]
		}
	}
	return bestIndex
}

// Fuses the coarsest level. Per channel and pixel, picks the layer with the highest local entropy and
// the layer with the highest local deviation on the quantized band, and averages their values
func FuseBase(level pyramid.Level, o Options) (*frame.Image, error) {
	if err := frame.ValidateStack(level); err != nil {
		return nil, err
	}
	ref := level[0]
	width, channels, layers := ref.Width(), ref.Channels(), len(level)

	res := frame.NewImageLike(ref, width, ref.Height())
	quantized := make([][]uint8, layers)
	for c := 0; c < channels; c++ {
		parallel.For(layers, o.Threads, func(l int) {
			quantized[l] = level[l].Quantize(c)
		})
		es, ds := localstats.EntropyDeviationLayers(quantized, width, o.WindowSize, o.Entropy, o.Threads)
		dest := res.Plane(c)
		parallel.Bands(len(dest), o.Threads, func(start, end int) {
			for i := start; i < end; i++ {
				bestE, bestD := firstMaxAt(es, i), firstMaxAt(ds, i)
				dest[i] = (level[bestE].Plane(c)[i] + level[bestD].Plane(c)[i]) / 2
			}
		})
	}
	return res, nil
}

// Fuses a detail level. Per channel and pixel, selects the value of the layer with the highest region energy
func FuseDetail(level pyramid.Level, o Options) (*frame.Image, error) {
	if err := frame.ValidateStack(level); err != nil {
		return nil, err
	}
	ref := level[0]
	width, channels, layers := ref.Width(), ref.Channels(), len(level)

	res := frame.NewImageLike(ref, width, ref.Height())
	planes := make([][]float32, layers)
	for c := 0; c < channels; c++ {
		for l, f := range level {
			planes[l] = f.Plane(c)
		}
		es := localstats.RegionEnergyLayers(planes, width, o.Kernel, o.Threads)
		dest := res.Plane(c)
		parallel.Bands(len(dest), o.Threads, func(start, end int) {
			for i := start; i < end; i++ {
				dest[i] = level[firstMaxAt(es, i)].Plane(c)[i]
			}
		})
	}
	return res, nil
}

// Fuses all levels of a Laplacian pyramid into one band per level, finest first.
// The coarsest level is fused as base band, all others as detail bands
func FusePyramid(lap pyramid.Pyramid, o Options) ([]*frame.Image, error) {
	if len(lap) == 0 {
		return nil, frame.ErrEmptyStack
	}
	fused := make([]*frame.Image, len(lap))
	depth := lap.Depth()
	base, err := FuseBase(lap.Base(), o)
	if err != nil {
		return nil, fmt.Errorf("level %d: %w", depth, err)
	}
	fused[depth] = base
	for l := depth - 1; l >= 0; l-- {
		if fused[l], err = FuseDetail(lap[l], o); err != nil {
			return nil, fmt.Errorf("level %d: %w", l, err)
		}
	}
	return fused, nil
}
