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


package config

import (
	"github.com/djkaty/pyramid-scheme/internal/ops"
	"github.com/djkaty/pyramid-scheme/internal/ops/batch"
	"github.com/djkaty/pyramid-scheme/internal/ops/filter"
	"github.com/djkaty/pyramid-scheme/internal/ops/fuse"
)

// SharpnessOperator returns the pre-filter operator for the filter section. It is inactive if the filter is off
func (cfg *Config) SharpnessOperator() (*filter.OpSharpness, error) {
	luma, err := filter.ParseLuma(cfg.Filter.Luma)
	if err != nil {
		return nil, err
	}
	op := filter.NewOpSharpness(cfg.Filter.Threshold, cfg.Filter.MinLayers, cfg.Filter.FallbackRatio)
	op.Active = cfg.Filter.Active
	op.Luma = luma
	return op, nil
}

// FuseOperator returns the fusion operator for the fusion section
func (cfg *Config) FuseOperator() (*fuse.OpFuse, error) {
	o, err := cfg.FusionOptions()
	if err != nil {
		return nil, err
	}
	return fuse.NewOpFuseFromOptions(o), nil
}

// SaveOperator returns a save operator with the output quality, writing to the given file pattern
func (cfg *Config) SaveOperator(filePattern string) *ops.OpSave {
	return ops.NewOpSave(filePattern, cfg.Output.Quality)
}

// BatchOperator returns the batch operator over stack directories matching the pattern,
// with the batch section and the filter and fusion operators of this configuration
func (cfg *Config) BatchOperator(pattern string) (*batch.OpBatch, error) {
	opSharpness, err := cfg.SharpnessOperator()
	if err != nil {
		return nil, err
	}
	opFuse, err := cfg.FuseOperator()
	if err != nil {
		return nil, err
	}
	return batch.NewOpBatch(pattern, cfg.Batch.OutDir, cfg.Batch.Processes, cfg.Batch.Overwrite,
		cfg.Output.Quality, opSharpness, opFuse), nil
}
