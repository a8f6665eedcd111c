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
	"fmt"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/djkaty/pyramid-scheme/internal/parallel"
)

// One resolution band for all layers of a stack, indexed by layer
type Level []*frame.Image

// A multi-resolution decomposition of a stack. Level 0 is the finest, the last level is the coarsest
type Pyramid []Level

// Number of decomposition steps, i.e. one less than the number of levels
func (p Pyramid) Depth() int { return len(p) - 1 }

// Returns the coarsest level
func (p Pyramid) Base() Level { return p[len(p)-1] }

// Returns the bands of the given layer across all levels, finest first
func (p Pyramid) Layer(layer int) []*frame.Image {
	res := make([]*frame.Image, len(p))
	for l, level := range p {
		res[l] = level[layer]
	}
	return res
}

// Returns the number of decomposition steps for an image of the given size, such that
// the coarsest band is at least minBandSize on its shortest side.
// This is floor(log2(min(width,height)/minBandSize)), clamped to zero for small images
func Depth(width, height, minBandSize int) int {
	if minBandSize < 1 {
		minBandSize = 1
	}
	side := width
	if height < side {
		side = height
	}
	depth := 0
	for side>>(depth+1) >= minBandSize {
		depth++
	}
	return depth
}

// Pyramid transform with a given kernel. Threads bounds the number of goroutines
// used across layers and channels, values below one use all logical CPUs
type Transform struct {
	Kernel  Kernel
	Threads int
}

func NewTransform(k Kernel, threads int) *Transform {
	return &Transform{Kernel: k, Threads: threads}
}

// Returns a copy of the transform for use inside an already parallel loop
func (t *Transform) sequential() *Transform {
	return &Transform{Kernel: t.Kernel, Threads: 1}
}

// Convolves all channels of the image with the kernel, using reflect-101 borders
func (t *Transform) Convolve(f *frame.Image) *frame.Image {
	width, height := f.Width(), f.Height()
	res := frame.NewImageLike(f, width, height)
	parallel.For(f.Channels(), t.Threads, func(c int) {
		tmp := make([]float32, width*height)
		ConvolvePlane(res.Plane(c), tmp, f.Plane(c), width, t.Kernel)
	})
	return res
}

// Low-pass filters the image and keeps every second row and column, starting with the first.
// The result is ceil(width/2) x ceil(height/2)
func (t *Transform) Down(f *frame.Image) *frame.Image {
	width, height := f.Width(), f.Height()
	dw, dh := (width+1)/2, (height+1)/2
	blurred := t.Convolve(f)
	res := frame.NewImageLike(f, dw, dh)
	for c := 0; c < f.Channels(); c++ {
		src, dest := blurred.Plane(c), res.Plane(c)
		for y := 0; y < dh; y++ {
			for x := 0; x < dw; x++ {
				dest[y*dw+x] = src[2*y*width+2*x]
			}
		}
	}
	return res
}

// Doubles the image size by inserting zero rows and columns and smoothing with four times the kernel,
// then crops trailing rows and columns down to the given width and height. Never pads: a target larger
// than twice the source size is a shape mismatch
func (t *Transform) Up(f *frame.Image, width, height int) (*frame.Image, error) {
	sw, sh := f.Width(), f.Height()
	uw, uh := 2*sw, 2*sh
	if width > uw || height > uh || width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: cannot upsample %s to %dx%d", frame.ErrShapeMismatch, f.DimensionsToString(), width, height)
	}
	row := t.Kernel.scaledRow(2)
	res := frame.NewImageLike(f, width, height)
	parallel.For(f.Channels(), t.Threads, func(c int) {
		up, tmp, smooth := make([]float32, uw*uh), make([]float32, uw*uh), make([]float32, uw*uh)
		src := f.Plane(c)
		for y := 0; y < sh; y++ {
			for x := 0; x < sw; x++ {
				up[2*y*uw+2*x] = src[y*sw+x]
			}
		}
		convolveSeparable(smooth, tmp, up, uw, row)
		dest := res.Plane(c)
		for y := 0; y < height; y++ {
			copy(dest[y*width:(y+1)*width], smooth[y*uw:y*uw+width])
		}
	})
	return res, nil
}

// Builds a Gaussian pyramid with depth+1 levels. Level 0 holds copies of the input layers,
// each further level the downsampled previous one
func (t *Transform) Gaussian(stack []*frame.Image, depth int) (Pyramid, error) {
	if err := frame.ValidateStack(stack); err != nil {
		return nil, err
	}
	if depth < 0 {
		depth = 0
	}
	p := make(Pyramid, depth+1)
	p[0] = make(Level, len(stack))
	for i, f := range stack {
		p[0][i] = f.Clone()
	}
	inner := t.sequential()
	for l := 1; l <= depth; l++ {
		prev, cur := p[l-1], make(Level, len(stack))
		parallel.For(len(stack), t.Threads, func(i int) {
			cur[i] = inner.Down(prev[i])
		})
		p[l] = cur
	}
	return p, nil
}

// Builds a Laplacian pyramid with depth+1 levels, finest first. The coarsest level is the Gaussian
// base band, every finer level the difference of the Gaussian level and the upsampled next coarser one
func (t *Transform) Laplacian(stack []*frame.Image, depth int) (Pyramid, error) {
	g, err := t.Gaussian(stack, depth)
	if err != nil {
		return nil, err
	}
	depth = g.Depth()
	p := make(Pyramid, len(g))
	p[depth] = g[depth]
	inner := t.sequential()
	for l := depth - 1; l >= 0; l-- {
		cur, errs := make(Level, len(stack)), make([]error, len(stack))
		parallel.For(len(stack), t.Threads, func(i int) {
			cur[i], errs[i] = inner.detail(g[l][i], g[l+1][i])
		})
		if err := firstError(errs); err != nil {
			return nil, err
		}
		p[l] = cur
	}
	return p, nil
}

// Returns fine minus the upsampled coarse image
func (t *Transform) detail(fine, coarse *frame.Image) (*frame.Image, error) {
	up, err := t.Up(coarse, fine.Width(), fine.Height())
	if err != nil {
		return nil, err
	}
	if !up.SameShape(fine) {
		return nil, fmt.Errorf("%w: band %s vs expanded %s", frame.ErrShapeMismatch, fine.DimensionsToString(), up.DimensionsToString())
	}
	for i, v := range fine.Data {
		up.Data[i] = v - up.Data[i]
	}
	return up, nil
}

// Reconstructs a single image from its Laplacian bands, finest first. Starts from the coarsest band,
// and repeatedly upsamples to the size of the next finer band and adds it
func (t *Transform) Collapse(bands []*frame.Image) (*frame.Image, error) {
	if len(bands) == 0 {
		return nil, frame.ErrEmptyStack
	}
	img := bands[len(bands)-1].Clone()
	for l := len(bands) - 2; l >= 0; l-- {
		band := bands[l]
		up, err := t.Up(img, band.Width(), band.Height())
		if err != nil {
			return nil, err
		}
		if !up.SameShape(band) {
			return nil, fmt.Errorf("%w: band %d is %s, expanded %s", frame.ErrShapeMismatch, l, band.DimensionsToString(), up.DimensionsToString())
		}
		for i, v := range band.Data {
			up.Data[i] += v
		}
		img = up
	}
	return img, nil
}

// Reconstructs every layer of a Laplacian pyramid. Inverse of Laplacian
func (t *Transform) CollapsePyramid(p Pyramid) (Level, error) {
	if len(p) == 0 || len(p[0]) == 0 {
		return nil, frame.ErrEmptyStack
	}
	res, errs := make(Level, len(p[0])), make([]error, len(p[0]))
	inner := t.sequential()
	parallel.For(len(res), t.Threads, func(i int) {
		res[i], errs[i] = inner.Collapse(p.Layer(i))
	})
	if err := firstError(errs); err != nil {
		return nil, err
	}
	return res, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
