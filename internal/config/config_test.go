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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/djkaty/pyramid-scheme/internal/fusion"
	"github.com/djkaty/pyramid-scheme/internal/localstats"
	"github.com/djkaty/pyramid-scheme/internal/ops/filter"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config err=%v", err)
	}
	o, err := cfg.FusionOptions()
	if err != nil {
		t.Fatalf("fusion options err=%v", err)
	}
	def := fusion.DefaultOptions()
	if o.Kernel.A() != def.Kernel.A() || o.MinBandSize != def.MinBandSize || o.WindowSize != def.WindowSize || o.Entropy != def.Entropy {
		t.Errorf("options %v; want %v", o, def)
	}
	if !cfg.Filter.Active || cfg.Filter.Threshold != 1 || cfg.Filter.MinLayers != 5 || cfg.Filter.FallbackRatio != 0.66 || cfg.Filter.Luma != "rec601" {
		t.Errorf("filter defaults %+v", cfg.Filter)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load err=%v", err)
	}
	if cfg.Fusion.WindowSize != 5 || cfg.Batch.Processes != 4 {
		t.Errorf("missing file did not yield defaults: %+v", cfg)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	yml := "fusion:\n  windowSize: 7\n  entropyMode: shannon\nbatch:\n  overwrite: false\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load err=%v", err)
	}
	if cfg.Fusion.WindowSize != 7 || cfg.Batch.Overwrite {
		t.Errorf("window=%d overwrite=%v; want 7 and false", cfg.Fusion.WindowSize, cfg.Batch.Overwrite)
	}
	if cfg.Fusion.MinBandSize != 32 || cfg.Output.Quality != 95 {
		t.Errorf("unset values lost their defaults: %+v", cfg)
	}
	o, _ := cfg.FusionOptions()
	if o.Entropy != localstats.EntropyShannon {
		t.Errorf("entropy=%v; want shannon", o.Entropy)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("fusion:\n  windowSize: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, fusion.ErrInvalidOptions) {
		t.Errorf("even window err=%v; want ErrInvalidOptions", err)
	}
	if err := os.WriteFile(path, []byte("fusion: [1, 2"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("malformed yaml err=nil; want error")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "pyramidscheme.yaml")
	cfg := DefaultConfig()
	cfg.Fusion.A = 0.375
	cfg.Batch.OutDir = "fused"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save err=%v", err)
	}
	back, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload err=%v", err)
	}
	if back.Fusion.A != 0.375 || back.Batch.OutDir != "fused" {
		t.Errorf("reloaded a=%f outDir=%q; want 0.375 and fused", back.Fusion.A, back.Batch.OutDir)
	}
}

func TestValidateRanges(t *testing.T) {
	for name, mod := range map[string]func(*Config){
		"entropy":   func(c *Config) { c.Fusion.EntropyMode = "renyi" },
		"band":      func(c *Config) { c.Fusion.MinBandSize = 0 },
		"fallback":  func(c *Config) { c.Filter.FallbackRatio = 1.5 },
		"luma":      func(c *Config) { c.Filter.Luma = "srgb" },
		"processes": func(c *Config) { c.Batch.Processes = 0 },
		"quality":   func(c *Config) { c.Output.Quality = 101 },
	} {
		cfg := DefaultConfig()
		mod(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: err=nil; want error", name)
		}
	}
}

func TestOperators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter.Active = false
	cfg.Filter.Threshold = 7.5
	cfg.Filter.Luma = "rec709"
	cfg.Fusion.WindowSize = 7
	cfg.Fusion.EntropyMode = "shannon"
	cfg.Batch.OutDir = "fused"
	cfg.Batch.Processes = 3
	cfg.Output.Quality = 77

	s, err := cfg.SharpnessOperator()
	if err != nil {
		t.Fatalf("sharpness err=%v", err)
	}
	if s.Active || s.Threshold != 7.5 || s.Luma != filter.LumaRec709 {
		t.Errorf("sharpness %+v; want inactive with threshold 7.5 and rec709", s)
	}
	f, err := cfg.FuseOperator()
	if err != nil {
		t.Fatalf("fuse err=%v", err)
	}
	if f.WindowSize != 7 || f.EntropyMode != localstats.EntropyShannon || f.MinBandSize != 32 {
		t.Errorf("fuse %+v; want window 7 with shannon entropy", f)
	}
	if sv := cfg.SaveOperator("out.jpg"); sv.Quality != 77 || sv.FilePattern != "out.jpg" || !sv.Active {
		t.Errorf("save %+v; want out.jpg at quality 77", sv)
	}
	b, err := cfg.BatchOperator("shots/*")
	if err != nil {
		t.Fatalf("batch err=%v", err)
	}
	if b.Pattern != "shots/*" || b.OutDir != "fused" || b.Processes != 3 || b.Quality != 77 ||
		b.Sharpness.Threshold != 7.5 || b.Fuse.WindowSize != 7 {
		t.Errorf("batch %+v; want the configured sections", b)
	}

	cfg.Fusion.EntropyMode = "renyi"
	if _, err := cfg.FuseOperator(); err == nil {
		t.Errorf("unknown entropy mode err=nil; want error")
	}
	if _, err := cfg.BatchOperator("shots/*"); err == nil {
		t.Errorf("batch with unknown entropy mode err=nil; want error")
	}
}
