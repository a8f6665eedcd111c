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
	"io"
	"time"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/djkaty/pyramid-scheme/internal/pyramid"
)

// Fuses a stack of aligned images into one all-in-focus image of the same shape. Validates options and
// stack before any computation, decomposes every layer into a Laplacian pyramid whose depth follows from
// the size of the first layer, fuses each level and collapses the result. Progress goes to logWriter
// if not nil
func Fuse(stack []*frame.Image, o Options, logWriter io.Writer) (*frame.Image, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := frame.ValidateStack(stack); err != nil {
		return nil, err
	}
	start := time.Now()
	ref := stack[0]
	depth := pyramid.Depth(ref.Width(), ref.Height(), o.MinBandSize)
	logf(logWriter, "Fusing %d layers of %s pixels with pyramid depth %d, %v\n",
		len(stack), ref.DimensionsToString(), depth, o)

	tr := pyramid.NewTransform(o.Kernel, o.Threads)
	lap, err := tr.Laplacian(stack, depth)
	if err != nil {
		return nil, err
	}
	fused, err := FusePyramid(lap, o)
	if err != nil {
		return nil, err
	}

	res, err := tr.Collapse(fused)
	if err != nil {
		return nil, err
	}
	if res, err = res.Crop(ref.Width(), ref.Height()); err != nil {
		return nil, err
	}
	res.ID, res.FileName, res.MaxValue = ref.ID, "", ref.MaxValue
	res.UpdateStats()
	logf(logWriter, "Fused image has %v. Fusion took %v\n", res.Stats, time.Since(start))
	return res, nil
}

func logf(w io.Writer, format string, args ...interface{}) {
	if w != nil {
		fmt.Fprintf(w, format, args...)
	}
}
