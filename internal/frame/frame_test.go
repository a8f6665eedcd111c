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

package frame

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateStack(t *testing.T) {
	if err := ValidateStack(nil); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("empty stack err=%v; want ErrEmptyStack", err)
	}

	a, b := NewImage(8, 6, 3), NewImage(8, 6, 3)
	if err := ValidateStack([]*Image{a, b}); err != nil {
		t.Errorf("matching stack err=%v; want nil", err)
	}

	mismatches := []*Image{NewImage(8, 7, 3), NewImage(7, 6, 3), NewImage(8, 6, 1)}
	for _, m := range mismatches {
		if err := ValidateStack([]*Image{a, b, m}); !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("layer %s err=%v; want ErrShapeMismatch", m.DimensionsToString(), err)
		}
	}
}

func TestChannelsAndPlanes(t *testing.T) {
	mono := NewImage(4, 3, 1)
	if len(mono.Naxisn) != 2 || mono.Channels() != 1 {
		t.Errorf("mono naxisn=%v channels=%d; want 2 axes and 1 channel", mono.Naxisn, mono.Channels())
	}
	rgb := NewImage(4, 3, 3)
	if rgb.Channels() != 3 || rgb.Pixels != 36 {
		t.Errorf("rgb channels=%d pixels=%d; want 3 and 36", rgb.Channels(), rgb.Pixels)
	}
	rgb.Plane(2)[0] = 7
	if rgb.Data[24] != 7 {
		t.Errorf("plane 2 does not alias data offset 24")
	}
}

func TestCrop(t *testing.T) {
	f := NewImage(5, 4, 2)
	for i := range f.Data {
		f.Data[i] = float32(i)
	}
	c, err := f.Crop(3, 2)
	if err != nil {
		t.Fatalf("crop err=%v", err)
	}
	if c.Width() != 3 || c.Height() != 2 || c.Channels() != 2 {
		t.Fatalf("crop dims %s; want 3x2x2", c.DimensionsToString())
	}
	want := []float32{0, 1, 2, 5, 6, 7, 20, 21, 22, 25, 26, 27}
	for i, w := range want {
		if c.Data[i] != w {
			t.Errorf("crop data[%d]=%f; want %f", i, c.Data[i], w)
		}
	}
	if same, _ := f.Crop(5, 4); same != f {
		t.Errorf("crop to own size does not return the image itself")
	}
	if _, err := f.Crop(6, 4); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("crop to larger size err=%v; want ErrShapeMismatch", err)
	}
}

func TestQuantize(t *testing.T) {
	f := NewImage(5, 1, 1)
	copy(f.Data, []float32{-3, 0.9, 17.5, 255, 300})
	q := f.Quantize(0)
	want := []uint8{0, 0, 17, 255, 255}
	for i, w := range want {
		if q[i] != w {
			t.Errorf("8 bit q[%d]=%d; want %d", i, q[i], w)
		}
	}

	f.MaxValue = 65535
	copy(f.Data, []float32{0, 257, 32768, 65535, 70000})
	q = f.Quantize(0)
	want = []uint8{0, 1, 127, 255, 255}
	for i, w := range want {
		if q[i] != w {
			t.Errorf("16 bit q[%d]=%d; want %d", i, q[i], w)
		}
	}
}

func TestWriteReadPNG(t *testing.T) {
	f := NewImage(3, 2, 3)
	for i := range f.Data {
		f.Data[i] = float32(i * 10)
	}
	f.Data[0] = -5  // clamped to 0
	f.Data[1] = 999 // clamped to 255

	fileName := filepath.Join(t.TempDir(), "out.png")
	if err := f.WriteFile(fileName, 95); err != nil {
		t.Fatalf("write err=%v", err)
	}
	g, err := NewImageFromFile(fileName, 4, os.Stdout)
	if err != nil {
		t.Fatalf("read err=%v", err)
	}
	if !g.SameShape(f) || g.ID != 4 || g.MaxValue != 255 {
		t.Fatalf("read back %s id %d max %f; want 3x2x3 id 4 max 255", g.DimensionsToString(), g.ID, g.MaxValue)
	}
	for i := range f.Data {
		want := f.Data[i]
		if want < 0 {
			want = 0
		} else if want > 255 {
			want = 255
		}
		if g.Data[i] != want {
			t.Errorf("data[%d]=%f; want %f", i, g.Data[i], want)
		}
	}
}

func TestFromGoImageGray16(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 1))
	img.SetGray16(0, 0, color.Gray16{1000})
	img.SetGray16(1, 0, color.Gray16{65535})
	f := &Image{}
	f.FromGoImage(img)
	if f.Channels() != 1 || f.MaxValue != 65535 {
		t.Fatalf("channels=%d max=%f; want 1 and 65535", f.Channels(), f.MaxValue)
	}
	if f.Data[0] != 1000 || f.Data[1] != 65535 {
		t.Errorf("data=%v; want [1000 65535]", f.Data)
	}
}

func TestWriteUnknownSuffix(t *testing.T) {
	f := NewImage(2, 2, 1)
	if err := f.WriteFile(filepath.Join(t.TempDir(), "out.xyz"), 95); err == nil {
		t.Errorf("unknown suffix err=nil; want error")
	}
}
