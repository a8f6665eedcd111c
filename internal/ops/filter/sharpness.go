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
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/djkaty/pyramid-scheme/internal/ops"
	"github.com/djkaty/pyramid-scheme/internal/parallel"
)

// Drops out of focus layers from a stack. Takes n inputs, produces n outputs, of which dropped ones
// materialize to nil. Stack order is preserved
type OpSharpness struct {
	ops.OpBase
	Threshold     float32 `json:"threshold"`
	MinLayers     int     `json:"minLayers"`
	FallbackRatio float32 `json:"fallbackRatio"`
	Luma          Luma    `json:"luma"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpSharpnessDefault() }) } // register the operator for JSON decoding

func NewOpSharpnessDefault() *OpSharpness { return NewOpSharpness(1.0, 5, 0.66) }

func NewOpSharpness(threshold float32, minLayers int, fallbackRatio float32) *OpSharpness {
	return &OpSharpness{
		OpBase:        ops.OpBase{Type: "sharpness", Active: true},
		Threshold:     threshold,
		MinLayers:     minLayers,
		FallbackRatio: fallbackRatio,
	}
}

// Unmarshal the type from JSON. Missing entries keep the values of an initialized receiver,
// and take the default values otherwise
func (op *OpSharpness) UnmarshalJSON(data []byte) error {
	type defaults OpSharpness
	def := defaults(*op)
	if op.Type == "" {
		def = defaults(*NewOpSharpnessDefault())
	}
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSharpness(def)
	return nil
}

// Scoring needs all layers, so the first output promise to be materialized loads and scores the whole stack
func (op *OpSharpness) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%s operator needs inputs", op.Type)
	}
	var once sync.Once
	var fs []*frame.Image
	var errs []error
	materialize := func() { fs, errs = op.Apply(ins, c) }

	outs = make([]ops.Promise, len(ins))
	for i := range ins {
		i := i
		outs[i] = func() (*frame.Image, error) {
			once.Do(materialize)
			return fs[i], errs[i]
		}
	}
	return outs, nil
}

// Materializes all inputs, computes their focus values and returns the kept images in their
// original slots. Dropped or failed slots are nil
func (op *OpSharpness) Apply(ins []ops.Promise, c *ops.Context) (fs []*frame.Image, errs []error) {
	fs, errs = make([]*frame.Image, len(ins)), make([]error, len(ins))
	values := make([]float32, len(ins))
	parallel.For(len(ins), c.MaxThreads, func(i int) {
		if fs[i], errs[i] = ins[i](); fs[i] != nil {
			values[i] = FocusValue(fs[i], op.Luma)
		}
	})

	// only score what loaded
	idx := []int{}
	for i, f := range fs {
		if f != nil {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return fs, errs
	}
	loaded := make([]float32, len(idx))
	for j, i := range idx {
		loaded[j] = values[i]
	}

	b := strings.Builder{}
	for j, v := range loaded {
		if j > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%.2f", v)
	}
	fmt.Fprintf(c.Log, "Focus values [%s]\n", b.String())
	maxIndex := MaxIndex(loaded)
	fmt.Fprintf(c.Log, "Max at %d/%d (%d%%)\n", maxIndex, len(loaded), 100*maxIndex/len(loaded))

	keep, numKept := Select(loaded, op.Threshold, op.MinLayers, op.FallbackRatio), 0
	for j, i := range idx {
		if keep[j] {
			numKept++
			continue
		}
		fmt.Fprintf(c.Log, "%d: Focus value %.2f too low, skipping frame\n", fs[i].ID, loaded[j])
		fs[i] = nil
	}
	fmt.Fprintf(c.Log, "Keeping %d of %d frames\n", numKept, len(idx))
	return fs, errs
}
