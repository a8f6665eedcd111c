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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	ps "github.com/djkaty/pyramid-scheme/internal"
	"github.com/djkaty/pyramid-scheme/internal/config"
	"github.com/djkaty/pyramid-scheme/internal/ops"
	"github.com/djkaty/pyramid-scheme/internal/rest"
)

const version = "0.1.0"

var defaults = config.DefaultConfig()

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var cfgFile = flag.String("config", "", "load settings from YAML `file`. Flags given on the command line take precedence")
var out = flag.String("out", "fused.jpg", "save fused output to `file`. Suffix selects the format: .jpg, .png or .tif")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")
var quality = flag.Int("quality", defaults.Output.Quality, "JPEG quality for outputs, 1..100")

var a = flag.Float64("a", float64(defaults.Fusion.A), "generating kernel parameter, 0.4 is Gaussian-like, 0.375 is binomial")
var minBandSize = flag.Int("minBandSize", defaults.Fusion.MinBandSize, "minimum size of the coarsest pyramid band on its shortest side")
var window = flag.Int("window", defaults.Fusion.WindowSize, "odd side length of the local entropy and deviation windows")
var entropy = flag.String("entropy", defaults.Fusion.EntropyMode, "local entropy mode, weighted or shannon")
var threads = flag.Int("threads", defaults.Fusion.MaxThreads, "maximum number of threads, 0=number of logical cores")

var noFilter = flag.Bool("noFilter", false, "keep all layers, skipping the sharpness pre-filter")
var threshold = flag.Float64("threshold", float64(defaults.Filter.Threshold), "minimum focus value of a layer to be kept")
var minLayers = flag.Int("minLayers", defaults.Filter.MinLayers, "if fewer layers pass the threshold, keep those above a fraction of the best focus value")
var fallback = flag.Float64("fallback", float64(defaults.Filter.FallbackRatio), "fraction of the best focus value used when too few layers pass the threshold")
var luma = flag.String("luma", defaults.Filter.Luma, "gray conversion of color layers for the focus measure, rec601 or rec709")

var outDir = flag.String("outDir", defaults.Batch.OutDir, "batch: write outputs into `dir` instead of next to each stack directory")
var processes = flag.Int("processes", defaults.Batch.Processes, "batch: number of stacks fused in parallel")
var overwrite = flag.Bool("overwrite", defaults.Batch.Overwrite, "batch: replace existing outputs instead of skipping their stacks")

var addr = flag.String("addr", ":8080", "serve: listen on `address`")
var chroot = flag.String("chroot", "", "serve: change filesystem root to `dir` before serving (requires root)")
var setuid = flag.Int("setuid", -1, "serve: change user ID before serving, -1=keep")

func main() {
	logWriter := ps.LogWriter()
	debug.SetGCPercent(10)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Pyramid Scheme Copyright (c) 2026 The pyramid-scheme authors
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (fuse|batch|serve|config|legal|version|help) (args)

Commands:
  fuse    Fuse the given images of a focus or exposure stack into one
  batch   Fuse every directory matching <glob> as one stack. Usage: batch <glob> [outdir] [processes]
  serve   Serve the REST API
  config  Write default settings to the given YAML file
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if *out != "" && args[0] == "fuse" {
			*log = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		} else {
			*log = ""
		}
	}
	if *log != "" {
		if err := ps.LogAlsoToFile(*log); err != nil {
			ps.LogFatalf("Unable to open logfile '%s'\n", *log)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			ps.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			ps.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	var err error
	switch args[0] {
	case "fuse":
		err = cmdFuse(args[1:])

	case "batch":
		err = cmdBatch(args[1:])

	case "serve":
		err = cmdServe()

	case "config":
		fileName := *cfgFile
		if len(args) > 1 {
			fileName = args[1]
		}
		if fileName == "" {
			fileName = "pyramidscheme.yaml"
		}
		if err = config.CreateDefaultConfigFile(fileName); err == nil {
			ps.LogPrintf("Wrote default settings to %s\n", fileName)
		}

	case "legal":
		ps.LogPrint(legal)

	case "version":
		ps.LogPrintf("Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	if args[0] == "fuse" || args[0] == "batch" {
		ps.LogPrintf("\nDone after %v\n", time.Since(start))
	}

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			ps.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			ps.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		ps.LogFatalf("Error: %s\n", err.Error())
	}
	ps.LogSync()
}

// Loads settings from the config file if given, and applies the flags set on the command line on top
func loadSettings() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *cfgFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*cfgFile); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "quality":
			cfg.Output.Quality = *quality
		case "a":
			cfg.Fusion.A = float32(*a)
		case "minBandSize":
			cfg.Fusion.MinBandSize = *minBandSize
		case "window":
			cfg.Fusion.WindowSize = *window
		case "entropy":
			cfg.Fusion.EntropyMode = *entropy
		case "threads":
			cfg.Fusion.MaxThreads = *threads
		case "noFilter":
			cfg.Filter.Active = !*noFilter
		case "threshold":
			cfg.Filter.Threshold = float32(*threshold)
		case "minLayers":
			cfg.Filter.MinLayers = *minLayers
		case "fallback":
			cfg.Filter.FallbackRatio = float32(*fallback)
		case "luma":
			cfg.Filter.Luma = *luma
		case "outDir":
			cfg.Batch.OutDir = *outDir
		case "processes":
			cfg.Batch.Processes = *processes
		case "overwrite":
			cfg.Batch.Overwrite = *overwrite
		}
	})
	return cfg, cfg.Validate()
}

// Creates the operator context and logs the machine it runs on
func newContext(cfg *config.Config) *ops.Context {
	c := ops.NewContext(ps.LogWriter(), cfg.Fusion.MaxThreads)
	fmt.Fprintf(c.Log, "Running on %s\n", c.Machine())
	return c
}

// Fuses the images matching the given file patterns into the output file
func cmdFuse(patterns []string) error {
	if len(patterns) == 0 {
		return fmt.Errorf("fuse needs at least one input file")
	}
	if *out == "" {
		return fmt.Errorf("fuse needs an output file")
	}
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	opSharpness, err := cfg.SharpnessOperator()
	if err != nil {
		return err
	}
	opFuse, err := cfg.FuseOperator()
	if err != nil {
		return err
	}
	c := newContext(cfg)

	seq := ops.NewOpSequence(ops.NewOpLoadMany(patterns), opSharpness, opFuse, cfg.SaveOperator(*out))

	m, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "\nFusing with these settings:\n%s\n", string(m))

	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

// Fuses every directory matching a glob as one stack. Optional arguments override outDir and processes
func cmdBatch(args []string) error {
	if len(args) < 1 || len(args) > 3 {
		return fmt.Errorf("usage: batch <glob> [outdir] [processes]")
	}
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	if len(args) > 1 {
		cfg.Batch.OutDir = args[1]
	}
	if len(args) > 2 {
		p, err := strconv.Atoi(args[2])
		if err != nil || p < 1 {
			return fmt.Errorf("invalid number of processes '%s'", args[2])
		}
		cfg.Batch.Processes = p
	}
	opBatch, err := cfg.BatchOperator(args[0])
	if err != nil {
		return err
	}
	c := newContext(cfg)

	_, err = opBatch.Apply(c)
	return err
}

// Serves the REST API, optionally from within a sandbox
func cmdServe() error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	c := newContext(cfg)
	if err := rest.MakeSandbox(*chroot, *setuid, c.Log); err != nil {
		return err
	}
	s := &rest.Server{MaxThreads: c.MaxThreads, Log: c.Log, Config: cfg}
	return s.Serve(*addr)
}
