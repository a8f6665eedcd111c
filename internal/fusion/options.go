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
	"errors"
	"fmt"

	"github.com/djkaty/pyramid-scheme/internal/localstats"
	"github.com/djkaty/pyramid-scheme/internal/pyramid"
)

var ErrInvalidOptions = errors.New("invalid fusion options")

// Parameters of a pyramid fusion
type Options struct {
	Kernel      pyramid.Kernel         // Generating kernel for pyramids and region energy
	MinBandSize int                    // Minimum size of the coarsest band, controls pyramid depth
	WindowSize  int                    // Side length of the local entropy and deviation windows. Odd
	Entropy     localstats.EntropyMode // Local entropy formula for base band selection
	Threads     int                    // Maximum number of goroutines, values below one use all CPUs
}

const DefaultMinBandSize = 32

// Upper bounds for the size options. Larger values only serve to exhaust memory or time
const (
	MaxMinBandSize = 1 << 16
	MaxWindowSize  = 255
)

func DefaultOptions() Options {
	return Options{
		Kernel:      pyramid.DefaultKernel(),
		MinBandSize: DefaultMinBandSize,
		WindowSize:  localstats.DefaultWindowSize,
		Entropy:     localstats.EntropyWeighted,
	}
}

// Checks window size and minimum band size. The kernel parameter is not validated
func (o Options) Validate() error {
	if o.WindowSize < 1 || o.WindowSize%2 == 0 || o.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w: window size %d must be odd and within [1, %d]", ErrInvalidOptions, o.WindowSize, MaxWindowSize)
	}
	if o.MinBandSize < 1 || o.MinBandSize > MaxMinBandSize {
		return fmt.Errorf("%w: minimum band size %d must be within [1, %d]", ErrInvalidOptions, o.MinBandSize, MaxMinBandSize)
	}
	return nil
}

func (o Options) String() string {
	return fmt.Sprintf("a=%g minBandSize=%d window=%d entropy=%s", o.Kernel.A(), o.MinBandSize, o.WindowSize, o.Entropy)
}
