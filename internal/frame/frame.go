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
	"fmt"
	"strings"

	"github.com/djkaty/pyramid-scheme/internal/stats"
)

var (
	ErrEmptyStack    = errors.New("empty image stack")
	ErrShapeMismatch = errors.New("image shape mismatch")
)

// A single image of a focus or exposure stack, or one band of its pyramid.
// Pixel data is stored in planes, one per channel, each plane in row-major order.
type Image struct {
	ID       int    // Sequential ID number within the stack, for log output
	FileName string // Original file name, if any, for log output

	Naxisn   []int32 // Axis dimensions. Most quickly varying dimension first, i.e. width, height[, channels]
	Pixels   int32   // Number of samples in the image. Product of Naxisn[]
	MaxValue float32 // Full scale sample value of the source, e.g. 255 for 8 bit or 65535 for 16 bit

	Data []float32 // The image data, in planes

	Stats *stats.Stats // Basic image statistics, calculated on load
}

// Creates an image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := int32(1)
	for _, naxis := range naxisn {
		numPixels *= naxis
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	return &Image{
		Naxisn:   append([]int32(nil), naxisn...), // clone slice
		Pixels:   numPixels,
		MaxValue: 255,
		Data:     data,
	}
}

// Creates an empty image with the given dimensions. Single channel images have two axes only
func NewImage(width, height, channels int) *Image {
	if channels <= 1 {
		return NewImageFromNaxisn([]int32{int32(width), int32(height)}, nil)
	}
	return NewImageFromNaxisn([]int32{int32(width), int32(height), int32(channels)}, nil)
}

// Creates an empty image of the given size, with ID, file name, channel count and value range copied from f
func NewImageLike(f *Image, width, height int) *Image {
	res := NewImage(width, height, f.Channels())
	res.ID, res.FileName, res.MaxValue = f.ID, f.FileName, f.MaxValue
	return res
}

// Returns a deep copy of the image. Stats are shared, as they are immutable
func (f *Image) Clone() *Image {
	res := NewImageFromNaxisn(f.Naxisn, append([]float32(nil), f.Data...))
	res.ID, res.FileName, res.MaxValue, res.Stats = f.ID, f.FileName, f.MaxValue, f.Stats
	return res
}

func (f *Image) Width() int  { return int(f.Naxisn[0]) }
func (f *Image) Height() int { return int(f.Naxisn[1]) }

// Number of channels, 1 for images with two axes
func (f *Image) Channels() int {
	if len(f.Naxisn) < 3 {
		return 1
	}
	return int(f.Naxisn[2])
}

// Returns the plane of the given channel. The result aliases the image data
func (f *Image) Plane(channel int) []float32 {
	l := f.Width() * f.Height()
	return f.Data[channel*l : (channel+1)*l]
}

// Returns true if both images have identical width, height and channel count
func (f *Image) SameShape(o *Image) bool {
	return f.Width() == o.Width() && f.Height() == o.Height() && f.Channels() == o.Channels()
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// Calculates basic statistics over all channels and stores them in f.Stats
func (f *Image) UpdateStats() {
	f.Stats = stats.NewStats(f.Data)
}

// Crops the image to the given width and height, keeping the top left corner.
// Returns f itself if the size already matches. Never pads
func (f *Image) Crop(width, height int) (*Image, error) {
	if width == f.Width() && height == f.Height() {
		return f, nil
	}
	if width > f.Width() || height > f.Height() || width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: cannot crop %s to %dx%d", ErrShapeMismatch, f.DimensionsToString(), width, height)
	}
	res := NewImageLike(f, width, height)
	srcWidth := f.Width()
	for c := 0; c < f.Channels(); c++ {
		src, dest := f.Plane(c), res.Plane(c)
		for y := 0; y < height; y++ {
			copy(dest[y*width:(y+1)*width], src[y*srcWidth:y*srcWidth+width])
		}
	}
	return res, nil
}

// Quantizes one channel to 256 levels, scaling the full value range of the source to [0, 255].
// Values are truncated towards zero and clamped
func (f *Image) Quantize(channel int) []uint8 {
	plane := f.Plane(channel)
	res := make([]uint8, len(plane))
	rescale := f.MaxValue > 0 && f.MaxValue != 255
	for i, v := range plane {
		if rescale {
			v = v * 255 / f.MaxValue
		}
		if v < 0 || v != v {
			v = 0
		} else if v > 255 {
			v = 255
		}
		res[i] = uint8(v)
	}
	return res
}

// Checks that the stack is non-empty and that all layers share the shape of the first one
func ValidateStack(layers []*Image) error {
	if len(layers) == 0 {
		return ErrEmptyStack
	}
	ref := layers[0]
	if ref.Width() < 1 || ref.Height() < 1 || ref.Channels() < 1 {
		return fmt.Errorf("%w: layer 0 has degenerate shape %s", ErrShapeMismatch, ref.DimensionsToString())
	}
	for i, l := range layers[1:] {
		if !l.SameShape(ref) {
			return fmt.Errorf("%w: layer %d (%s) is %s, expected %s like layer 0 (%s)", ErrShapeMismatch,
				i+1, l.FileName, l.DimensionsToString(), ref.DimensionsToString(), ref.FileName)
		}
	}
	return nil
}
