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

// Package config loads and saves pyramidscheme settings as YAML, with defaults for anything not given.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/djkaty/pyramid-scheme/internal/fusion"
	"github.com/djkaty/pyramid-scheme/internal/localstats"
	"github.com/djkaty/pyramid-scheme/internal/ops/filter"
	"github.com/djkaty/pyramid-scheme/internal/pyramid"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Pyramid fusion parameters
	Fusion struct {
		// A is the generating kernel parameter
		A float32 `yaml:"a"`

		// MinBandSize is the minimum size of the coarsest pyramid band on its shortest side
		MinBandSize int `yaml:"minBandSize"`

		// WindowSize is the odd side length of the local entropy and deviation windows
		WindowSize int `yaml:"windowSize"`

		// EntropyMode is "weighted" or "shannon"
		EntropyMode string `yaml:"entropyMode"`

		// MaxThreads bounds the goroutines of one fusion, 0 uses all CPUs
		MaxThreads int `yaml:"maxThreads"`
	} `yaml:"fusion"`

	// Sharpness pre-filter parameters
	Filter struct {
		Active bool `yaml:"active"`

		// Threshold is the minimum focus value of a layer to be kept
		Threshold float32 `yaml:"threshold"`

		// MinLayers is the number of layers below which the relative fallback applies
		MinLayers int `yaml:"minLayers"`

		// FallbackRatio is the fraction of the maximum focus value used by the fallback
		FallbackRatio float32 `yaml:"fallbackRatio"`

		// Luma is the gray conversion of color layers, "rec601" or "rec709"
		Luma string `yaml:"luma"`
	} `yaml:"filter"`

	// Directory batch parameters
	Batch struct {
		// Processes is the number of stacks fused in parallel
		Processes int `yaml:"processes"`

		// Overwrite replaces existing outputs instead of skipping their stacks
		Overwrite bool `yaml:"overwrite"`

		// OutDir receives the outputs, empty puts each next to its stack directory
		OutDir string `yaml:"outDir"`
	} `yaml:"batch"`

	// Output parameters
	Output struct {
		// Quality is the JPEG quality
		Quality int `yaml:"quality"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Fusion.A = pyramid.DefaultA
	cfg.Fusion.MinBandSize = fusion.DefaultMinBandSize
	cfg.Fusion.WindowSize = localstats.DefaultWindowSize
	cfg.Fusion.EntropyMode = localstats.EntropyWeighted.String()
	cfg.Fusion.MaxThreads = 0

	cfg.Filter.Active = true
	cfg.Filter.Threshold = 1.0
	cfg.Filter.MinLayers = 5
	cfg.Filter.FallbackRatio = 0.66
	cfg.Filter.Luma = filter.LumaRec601.String()

	cfg.Batch.Processes = 4
	cfg.Batch.Overwrite = true

	cfg.Output.Quality = 95

	return cfg
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// FusionOptions converts the fusion section into options for fusion.Fuse
func (cfg *Config) FusionOptions() (fusion.Options, error) {
	mode, err := localstats.ParseEntropyMode(cfg.Fusion.EntropyMode)
	if err != nil {
		return fusion.Options{}, err
	}
	return fusion.Options{
		Kernel:      pyramid.NewKernel(cfg.Fusion.A),
		MinBandSize: cfg.Fusion.MinBandSize,
		WindowSize:  cfg.Fusion.WindowSize,
		Entropy:     mode,
		Threads:     cfg.Fusion.MaxThreads,
	}, nil
}

// Validate checks all sections for values outside their valid range
func (cfg *Config) Validate() error {
	o, err := cfg.FusionOptions()
	if err != nil {
		return err
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if cfg.Filter.MinLayers < 0 {
		return fmt.Errorf("filter minLayers %d must not be negative", cfg.Filter.MinLayers)
	}
	if cfg.Filter.FallbackRatio < 0 || cfg.Filter.FallbackRatio > 1 {
		return fmt.Errorf("filter fallbackRatio %g must be within [0, 1]", cfg.Filter.FallbackRatio)
	}
	if _, err := filter.ParseLuma(cfg.Filter.Luma); err != nil {
		return fmt.Errorf("filter %w", err)
	}
	if cfg.Batch.Processes < 1 {
		return fmt.Errorf("batch processes %d must be positive", cfg.Batch.Processes)
	}
	if cfg.Output.Quality < 1 || cfg.Output.Quality > 100 {
		return fmt.Errorf("output quality %d must be within [1, 100]", cfg.Output.Quality)
	}
	return nil
}
