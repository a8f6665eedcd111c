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

package stats

import (
	"fmt"
	"math"
)

// Basic statistics on a data array
type Stats struct {
	min    float32 // Minimum
	max    float32 // Maximum
	mean   float32 // Mean (average)
	stdDev float32 // Standard deviation (norm 2, sigma)
}

// Calculate basic statistics for a data array. Empty arrays yield all zeros
func NewStats(data []float32) *Stats {
	s := &Stats{}
	if len(data) == 0 {
		return s
	}
	s.min, s.mean, s.max = calcMinMeanMax(data)
	s.stdDev = float32(math.Sqrt(calcVariance(data, s.mean)))
	return s
}

// Calculate basic statistics for one plane of a planar multi-channel data array
func NewStatsForChannel(data []float32, channel, numChannels int) *Stats {
	if numChannels < 1 {
		return NewStats(nil)
	}
	l := len(data) / numChannels
	return NewStats(data[channel*l : (channel+1)*l])
}

func (s *Stats) Min() float32    { return s.min }
func (s *Stats) Max() float32    { return s.max }
func (s *Stats) Mean() float32   { return s.mean }
func (s *Stats) StdDev() float32 { return s.stdDev }

// Pretty print basic stats to string
func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g", s.min, s.max, s.mean, s.stdDev)
}

// Calculate minimum, mean and maximum of given data
func calcMinMeanMax(data []float32) (min, mean, max float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	sum := float64(0)
	for _, d := range data {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		sum += float64(d)
	}
	return min, float32(sum / float64(len(data))), max
}

// Calculate population variance of given data from provided mean
func calcVariance(data []float32, mean float32) float64 {
	sum := float64(0)
	for _, d := range data {
		diff := float64(d - mean)
		sum += diff * diff
	}
	return sum / float64(len(data))
}
