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

import (
	"errors"
	"math"
	"math/bits"
	"testing"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/valyala/fastrand"
)

func TestKernel(t *testing.T) {
	epsilon := 1e-6
	k := DefaultKernel()
	want := []float32{0.05, 0.25, 0.4, 0.25, 0.05}
	for i, w := range want {
		if math.Abs(float64(k.Row()[i]-w)) > epsilon {
			t.Errorf("row[%d]=%f; want %f", i, k.Row()[i], w)
		}
	}
	w := k.Weights()
	for y := 0; y < KernelSize; y++ {
		for x := 0; x < KernelSize; x++ {
			if w[y][x] != w[KernelSize-1-y][x] || w[y][x] != w[y][KernelSize-1-x] || w[y][x] != w[x][y] {
				t.Errorf("kernel not symmetric at %d,%d", y, x)
			}
		}
	}
	sum := float32(0)
	for y := range w {
		for x := range w[y] {
			sum += w[y][x]
		}
	}
	if math.Abs(float64(sum-1)) > epsilon || math.Abs(float64(k.Sum()-1)) > epsilon {
		t.Errorf("kernel sum=%f Sum()=%f; want 1", sum, k.Sum())
	}
	if k.A() != DefaultA {
		t.Errorf("a=%f; want %f", k.A(), DefaultA)
	}

	binomial := NewKernel(0.375)
	for i, w := range []float32{1, 4, 6, 4, 1} {
		if math.Abs(float64(binomial.Row()[i]-w/16)) > epsilon {
			t.Errorf("binomial row[%d]=%f; want %f", i, binomial.Row()[i], w/16)
		}
	}
}

func TestReflect101(t *testing.T) {
	tcs := []struct{ size, x, want int }{
		{5, 0, 0}, {5, 4, 4}, {5, -1, 1}, {5, -2, 2}, {5, 5, 3}, {5, 6, 2},
		{2, -1, 1}, {2, -2, 0}, {2, 2, 0}, {2, 3, 1},
		{3, -4, 0}, {3, 5, 1},
		{1, -2, 0}, {1, 3, 0},
	}
	for _, tc := range tcs {
		if got := Reflect101(tc.size, tc.x); got != tc.want {
			t.Errorf("Reflect101(%d, %d)=%d; want %d", tc.size, tc.x, got, tc.want)
		}
	}
}

func TestDepth(t *testing.T) {
	tcs := []struct{ width, height, minBandSize, want int }{
		{512, 512, 32, 4},
		{40, 40, 32, 0},
		{10, 10, 32, 0},
		{64, 64, 32, 1},
		{63, 64, 32, 0},
		{1000, 300, 32, 3},
		{300, 1000, 32, 3},
		{16, 16, 1, 4},
		{100, 100, 100, 0},
		{100, 100, 50, 1},
		{100, 100, math.MaxInt/2 + 1, 0},
		{100, 100, math.MaxInt, 0},
		{math.MaxInt, math.MaxInt, 1, bits.UintSize - 2},
	}
	for _, tc := range tcs {
		if got := Depth(tc.width, tc.height, tc.minBandSize); got != tc.want {
			t.Errorf("Depth(%d, %d, %d)=%d; want %d", tc.width, tc.height, tc.minBandSize, got, tc.want)
		}
	}
}

func constantImage(width, height, channels int, value float32) *frame.Image {
	f := frame.NewImage(width, height, channels)
	for i := range f.Data {
		f.Data[i] = value
	}
	return f
}

func randomImage(rng *fastrand.RNG, width, height, channels int) *frame.Image {
	f := frame.NewImage(width, height, channels)
	for i := range f.Data {
		f.Data[i] = float32(rng.Uint32n(256))
	}
	return f
}

func checkConstant(t *testing.T, name string, f *frame.Image, value float32) {
	epsilon := 1e-4
	for i, v := range f.Data {
		if math.Abs(float64(v-value)) > epsilon {
			t.Errorf("%s data[%d]=%f; want %f", name, i, v, value)
			return
		}
	}
}

func TestConstantPreserved(t *testing.T) {
	tr := NewTransform(DefaultKernel(), 2)
	for _, size := range [][2]int{{7, 5}, {1, 1}, {2, 3}, {16, 16}} {
		f := constantImage(size[0], size[1], 2, 3)
		checkConstant(t, "convolve", tr.Convolve(f), 3)
		checkConstant(t, "down", tr.Down(f), 3)
		up, err := tr.Up(f, 2*size[0]-1, 2*size[1])
		if err != nil {
			t.Fatalf("up err=%v", err)
		}
		checkConstant(t, "up", up, 3)
	}
}

func TestConvolveImpulse(t *testing.T) {
	epsilon := 1e-6
	k := DefaultKernel()
	tr := NewTransform(k, 2)
	f := frame.NewImage(9, 9, 2)
	f.Plane(1)[4*9+4] = 1
	res := tr.Convolve(f)
	w := k.Weights()
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			want := float32(0)
			if y >= 2 && y < 7 && x >= 2 && x < 7 {
				want = w[y-2][x-2]
			}
			if got := res.Plane(1)[y*9+x]; math.Abs(float64(got-want)) > epsilon {
				t.Errorf("channel 1 at %d,%d=%f; want %f", x, y, got, want)
			}
			if got := res.Plane(0)[y*9+x]; got != 0 {
				t.Errorf("channel 0 at %d,%d=%f; want 0", x, y, got)
			}
		}
	}
	// downsampling keeps the even samples of the convolution
	d := tr.Down(f)
	if got, want := d.Plane(1)[2*5+2], res.Plane(1)[4*9+4]; got != want {
		t.Errorf("down center=%f; want %f", got, want)
	}
}

func TestDownUpShapes(t *testing.T) {
	tr := NewTransform(DefaultKernel(), 1)
	f := frame.NewImage(7, 5, 3)
	d := tr.Down(f)
	if d.Width() != 4 || d.Height() != 3 || d.Channels() != 3 {
		t.Errorf("down of 7x5x3 is %s; want 4x3x3", d.DimensionsToString())
	}
	if d1 := tr.Down(frame.NewImage(1, 1, 1)); d1.Width() != 1 || d1.Height() != 1 {
		t.Errorf("down of 1x1 is %s; want 1x1", d1.DimensionsToString())
	}

	u, err := tr.Up(d, 7, 5)
	if err != nil {
		t.Fatalf("up err=%v", err)
	}
	if !u.SameShape(f) {
		t.Errorf("up is %s; want %s", u.DimensionsToString(), f.DimensionsToString())
	}
	if _, err := tr.Up(d, 9, 5); !errors.Is(err, frame.ErrShapeMismatch) {
		t.Errorf("up beyond double size err=%v; want ErrShapeMismatch", err)
	}
}

func TestUpInterpolates(t *testing.T) {
	// a single bright sample spreads symmetrically, with its total preserved times four
	tr := NewTransform(DefaultKernel(), 1)
	f := frame.NewImage(5, 5, 1)
	f.Data[2*5+2] = 1
	u, err := tr.Up(f, 10, 10)
	if err != nil {
		t.Fatalf("up err=%v", err)
	}
	epsilon := 1e-5
	sum := float32(0)
	for _, v := range u.Data {
		sum += v
	}
	if math.Abs(float64(sum-4)) > epsilon {
		t.Errorf("sum=%f; want 4", sum)
	}
	if c := u.Data[4*10+4]; math.Abs(float64(c-0.64)) > epsilon {
		t.Errorf("center=%f; want 0.64", c)
	}
	if u.Data[4*10+3] != u.Data[4*10+5] || u.Data[3*10+4] != u.Data[5*10+4] {
		t.Errorf("spread is not symmetric")
	}
}

func TestLaplacianRoundTrip(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(42)
	tcs := []struct{ width, height, channels, layers, depth int }{
		{37, 53, 3, 2, 3},
		{64, 64, 1, 3, 2},
		{9, 4, 1, 1, 0},
		{33, 17, 2, 2, 4},
	}
	epsilon := 1e-3
	for _, tc := range tcs {
		stack := make([]*frame.Image, tc.layers)
		for i := range stack {
			stack[i] = randomImage(&rng, tc.width, tc.height, tc.channels)
		}
		tr := NewTransform(DefaultKernel(), 4)
		lap, err := tr.Laplacian(stack, tc.depth)
		if err != nil {
			t.Fatalf("laplacian err=%v", err)
		}
		if len(lap) != tc.depth+1 || len(lap[0]) != tc.layers {
			t.Fatalf("pyramid has %d levels of %d layers; want %d of %d", len(lap), len(lap[0]), tc.depth+1, tc.layers)
		}
		if !lap[0][0].SameShape(stack[0]) {
			t.Errorf("finest band is %s; want %s", lap[0][0].DimensionsToString(), stack[0].DimensionsToString())
		}
		res, err := tr.CollapsePyramid(lap)
		if err != nil {
			t.Fatalf("collapse err=%v", err)
		}
		for i, f := range res {
			if !f.SameShape(stack[i]) {
				t.Fatalf("layer %d is %s; want %s", i, f.DimensionsToString(), stack[i].DimensionsToString())
			}
			for j, v := range f.Data {
				if math.Abs(float64(v-stack[i].Data[j])) > epsilon {
					t.Errorf("%dx%d depth %d layer %d data[%d]=%f; want %f", tc.width, tc.height, tc.depth, i, j, v, stack[i].Data[j])
					break
				}
			}
		}
	}
}

func TestGaussianLeavesInputUntouched(t *testing.T) {
	rng := fastrand.RNG{}
	rng.Seed(7)
	f := randomImage(&rng, 20, 20, 1)
	orig := f.Clone()
	tr := NewTransform(DefaultKernel(), 1)
	g, err := tr.Gaussian([]*frame.Image{f}, 2)
	if err != nil {
		t.Fatalf("gaussian err=%v", err)
	}
	if g[0][0] == f {
		t.Errorf("level 0 aliases the input")
	}
	if w := g[2][0].Width(); w != 5 {
		t.Errorf("level 2 width=%d; want 5", w)
	}
	for i := range f.Data {
		if f.Data[i] != orig.Data[i] {
			t.Fatalf("input modified at %d", i)
		}
	}
}

func TestPyramidErrors(t *testing.T) {
	tr := NewTransform(DefaultKernel(), 1)
	if _, err := tr.Laplacian(nil, 2); !errors.Is(err, frame.ErrEmptyStack) {
		t.Errorf("empty stack err=%v; want ErrEmptyStack", err)
	}
	stack := []*frame.Image{frame.NewImage(8, 8, 1), frame.NewImage(8, 9, 1)}
	if _, err := tr.Gaussian(stack, 1); !errors.Is(err, frame.ErrShapeMismatch) {
		t.Errorf("mismatched stack err=%v; want ErrShapeMismatch", err)
	}
	if _, err := tr.Collapse(nil); !errors.Is(err, frame.ErrEmptyStack) {
		t.Errorf("collapse of no bands err=%v; want ErrEmptyStack", err)
	}
}
