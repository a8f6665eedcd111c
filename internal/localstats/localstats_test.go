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
	"encoding/json"
	"math"
	"testing"

	"github.com/djkaty/pyramid-scheme/internal/pyramid"
	"github.com/valyala/fastrand"
)

func TestProbabilities(t *testing.T) {
	epsilon := 1e-6
	p := Probabilities([]uint8{0, 0, 0, 10, 255, 255, 255, 255})
	want := map[int]float32{0: 0.375, 10: 0.125, 255: 0.5}
	sum := float32(0)
	for l, pl := range p {
		sum += pl
		if math.Abs(float64(pl-want[l])) > epsilon {
			t.Errorf("p[%d]=%f; want %f", l, pl, want[l])
		}
	}
	if math.Abs(float64(sum-1)) > epsilon {
		t.Errorf("sum=%f; want 1", sum)
	}

	empty := Probabilities(nil)
	for l, pl := range empty {
		if pl != 0 {
			t.Errorf("empty p[%d]=%f; want 0", l, pl)
		}
	}
}

// 3x3 image, all zero except for a center of 10. With a 5x5 window and mirrored borders,
// the center window sees the bright pixel 9 times, a corner window 4 times
func centerImage() []uint8 {
	return []uint8{0, 0, 0, 0, 10, 0, 0, 0, 0}
}

func TestEntropyWeighted(t *testing.T) {
	epsilon := 1e-4
	e := LocalEntropy(centerImage(), 3, 5, EntropyWeighted)
	ln9 := math.Log(9)
	tcs := []struct {
		index int
		want  float64
	}{
		{4, 90 * ln9},
		{0, 40 * ln9},
		{8, 40 * ln9},
		{1, 60 * ln9},
	}
	for _, tc := range tcs {
		if math.Abs(float64(e[tc.index])-tc.want) > epsilon*tc.want {
			t.Errorf("entropy[%d]=%f; want %f", tc.index, e[tc.index], tc.want)
		}
	}
}

func TestEntropyShannon(t *testing.T) {
	epsilon := 1e-4
	e := LocalEntropy(centerImage(), 3, 5, EntropyShannon)
	want := math.Log(9) + 16*(8.0/9.0)*math.Log(9.0/8.0)
	if math.Abs(float64(e[4])-want) > epsilon {
		t.Errorf("center entropy=%f; want %f", e[4], want)
	}
}

func TestEntropyOfConstantImage(t *testing.T) {
	levels := make([]uint8, 7*4)
	for i := range levels {
		levels[i] = 200
	}
	for _, mode := range []EntropyMode{EntropyWeighted, EntropyShannon} {
		e, d := EntropyDeviation(levels, 7, 5, mode)
		for i := range e {
			if e[i] != 0 || d[i] != 0 {
				t.Fatalf("%v: entropy[%d]=%f deviation[%d]=%f; want 0", mode, i, e[i], i, d[i])
			}
		}
	}
}

func TestLocalDeviation(t *testing.T) {
	epsilon := 1e-4
	d := LocalDeviation(centerImage(), 3, 5)
	// 25 samples, 9 of them 10: mean 3.6, mean of squares 36
	if math.Abs(float64(d[4]-23.04)) > epsilon {
		t.Errorf("center deviation=%f; want 23.04", d[4])
	}
	// 25 samples, 4 of them 10: mean 1.6, mean of squares 16
	if math.Abs(float64(d[0]-13.44)) > epsilon {
		t.Errorf("corner deviation=%f; want 13.44", d[0])
	}
}

func directDeviation(levels []uint8, width, windowSize, x, y int) float64 {
	height, pad := len(levels)/width, windowSize/2
	var vals []float64
	for wy := -pad; wy <= pad; wy++ {
		for wx := -pad; wx <= pad; wx++ {
			sy, sx := pyramid.Reflect101(height, y+wy), pyramid.Reflect101(width, x+wx)
			vals = append(vals, float64(levels[sy*width+sx]))
		}
	}
	mean := float64(0)
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	sq := float64(0)
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return sq / float64(len(vals))
}

func TestDeviationMatchesDirectWindow(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(3)
	width, height := 11, 8
	levels := make([]uint8, width*height)
	for i := range levels {
		levels[i] = uint8(rng.Uint32n(256))
	}
	for _, windowSize := range []int{1, 3, 5, 7} {
		d := LocalDeviation(levels, width, windowSize)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				want := directDeviation(levels, width, windowSize, x, y)
				if math.Abs(float64(d[y*width+x])-want) > 1e-2 {
					t.Errorf("window %d deviation at %d,%d=%f; want %f", windowSize, x, y, d[y*width+x], want)
				}
			}
		}
	}
}

func TestRegionEnergy(t *testing.T) {
	epsilon := 1e-4
	band := make([]float32, 6*5)
	for i := range band {
		band[i] = -3
	}
	for i, v := range RegionEnergy(band, 6, pyramid.DefaultKernel()) {
		if math.Abs(float64(v-9)) > epsilon {
			t.Errorf("energy[%d]=%f; want 9", i, v)
		}
	}

	impulse := make([]float32, 7*7)
	impulse[3*7+3] = 2
	e := RegionEnergy(impulse, 7, pyramid.DefaultKernel())
	if math.Abs(float64(e[3*7+3]-4*0.16)) > epsilon {
		t.Errorf("impulse center energy=%f; want %f", e[3*7+3], 4*0.16)
	}
	if e[0] != 0 {
		t.Errorf("impulse corner energy=%f; want 0", e[0])
	}
}

func TestLayersHelpers(t *testing.T) {
	layers := [][]uint8{centerImage(), make([]uint8, 9), centerImage()}
	es, ds := EntropyDeviationLayers(layers, 3, 5, EntropyWeighted, 2)
	if len(es) != 3 || len(ds) != 3 {
		t.Fatalf("got %d entropy and %d deviation maps; want 3", len(es), len(ds))
	}
	if es[0][4] != es[2][4] || es[1][4] != 0 {
		t.Errorf("layer entropies %f %f %f; want equal outer layers and zero middle", es[0][4], es[1][4], es[2][4])
	}
	bands := [][]float32{make([]float32, 9), {0, 0, 0, 0, 1, 0, 0, 0, 0}}
	en := RegionEnergyLayers(bands, 3, pyramid.DefaultKernel(), 2)
	if en[0][4] != 0 || en[1][4] <= 0 {
		t.Errorf("energies %f %f; want zero and positive", en[0][4], en[1][4])
	}
}

func TestEntropyModeText(t *testing.T) {
	for _, m := range []EntropyMode{EntropyWeighted, EntropyShannon} {
		parsed, err := ParseEntropyMode(m.String())
		if err != nil || parsed != m {
			t.Errorf("parse %s=%v, %v; want %v", m, parsed, err, m)
		}
	}
	if _, err := ParseEntropyMode("boltzmann"); err == nil {
		t.Errorf("unknown mode err=nil; want error")
	}

	var s struct {
		Mode EntropyMode `json:"mode"`
	}
	if err := json.Unmarshal([]byte(`{"mode":"Shannon"}`), &s); err != nil || s.Mode != EntropyShannon {
		t.Errorf("json mode=%v, err=%v; want shannon", s.Mode, err)
	}
}
