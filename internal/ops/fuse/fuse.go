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

package fuse

import (
	"encoding/json"
	"fmt"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/djkaty/pyramid-scheme/internal/fusion"
	"github.com/djkaty/pyramid-scheme/internal/localstats"
	"github.com/djkaty/pyramid-scheme/internal/ops"
	"github.com/djkaty/pyramid-scheme/internal/pyramid"
)

// Fuses a focus or exposure stack into a single image with a Laplacian pyramid. Takes n inputs, produces one output
type OpFuse struct {
	ops.OpBase
	A           float32                `json:"a"`
	MinBandSize int                    `json:"minBandSize"`
	WindowSize  int                    `json:"windowSize"`
	EntropyMode localstats.EntropyMode `json:"entropyMode"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpFuseDefault() }) } // register the operator for JSON decoding

func NewOpFuseDefault() *OpFuse {
	return NewOpFuse(pyramid.DefaultA, fusion.DefaultMinBandSize, localstats.DefaultWindowSize, localstats.EntropyWeighted)
}

func NewOpFuse(a float32, minBandSize, windowSize int, entropyMode localstats.EntropyMode) *OpFuse {
	return &OpFuse{
		OpBase:      ops.OpBase{Type: "fuse", Active: true},
		A:           a,
		MinBandSize: minBandSize,
		WindowSize:  windowSize,
		EntropyMode: entropyMode,
	}
}

// Creates the operator from fusion options
func NewOpFuseFromOptions(o fusion.Options) *OpFuse {
	return NewOpFuse(o.Kernel.A(), o.MinBandSize, o.WindowSize, o.Entropy)
}

// Unmarshal the type from JSON. Missing entries keep the values of an initialized receiver,
// and take the default values otherwise
func (op *OpFuse) UnmarshalJSON(data []byte) error {
	type defaults OpFuse
	def := defaults(*op)
	if op.Type == "" {
		def = defaults(*NewOpFuseDefault())
	}
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFuse(def)
	return nil
}

// Returns the fusion options for the operator, using up to maxThreads goroutines
func (op *OpFuse) Options(maxThreads int) fusion.Options {
	return fusion.Options{
		Kernel:      pyramid.NewKernel(op.A),
		MinBandSize: op.MinBandSize,
		WindowSize:  op.WindowSize,
		Entropy:     op.EntropyMode,
		Threads:     maxThreads,
	}
}

func (op *OpFuse) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("%s operator needs inputs", op.Type)
	}
	if err := op.Options(c.MaxThreads).Validate(); err != nil {
		return nil, err
	}

	out := func() (f *frame.Image, err error) {
		fs, err := ops.MaterializeAll(ins, c.MaxThreads, false) // materialize all input promises
		if err != nil {
			return nil, err
		}
		return op.Apply(fs, c)
	}
	return []ops.Promise{out}, nil
}

// Fuses the given stack. The result takes the ID of the first layer
func (op *OpFuse) Apply(fs []*frame.Image, c *ops.Context) (result *frame.Image, err error) {
	if len(fs) == 0 {
		return nil, fmt.Errorf("%w: no frames left to fuse", frame.ErrEmptyStack)
	}
	return fusion.Fuse(fs, op.Options(c.MaxThreads), c.Log)
}
