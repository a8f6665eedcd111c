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

package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/djkaty/pyramid-scheme/internal/frame"
	"github.com/djkaty/pyramid-scheme/internal/ops"
	"github.com/djkaty/pyramid-scheme/internal/ops/filter"
	"github.com/djkaty/pyramid-scheme/internal/ops/fuse"
)

// Fuses every directory matching a pattern as one stack, writing one JPEG per directory.
// Stacks run on a bounded pool, and a failing stack does not affect the others
type OpBatch struct {
	Pattern   string              `json:"pattern"`
	OutDir    string              `json:"outDir"`
	Processes int                 `json:"processes"`
	Overwrite bool                `json:"overwrite"`
	Quality   int                 `json:"quality"`
	Sharpness *filter.OpSharpness `json:"sharpness"`
	Fuse      *fuse.OpFuse        `json:"fuse"`
}

// Outcome of a batch, listing stack directories by result
type Result struct {
	Fused   []string `json:"fused"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

func NewOpBatchDefault() *OpBatch {
	return NewOpBatch("", "", 4, true, 95, filter.NewOpSharpnessDefault(), fuse.NewOpFuseDefault())
}

func NewOpBatch(pattern, outDir string, processes int, overwrite bool, quality int,
	opSharpness *filter.OpSharpness, opFuse *fuse.OpFuse) *OpBatch {
	return &OpBatch{
		Pattern:   pattern,
		OutDir:    outDir,
		Processes: processes,
		Overwrite: overwrite,
		Quality:   quality,
		Sharpness: opSharpness,
		Fuse:      opFuse,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpBatch) UnmarshalJSON(data []byte) error {
	type defaults OpBatch
	def := defaults(*NewOpBatchDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpBatch(def)
	return nil
}

// Returns true if the pattern contains glob wildcards
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// Returns the stack directories for the batch. A pattern without wildcards names a single directory
func (op *OpBatch) Dirs() ([]string, error) {
	if !IsPattern(op.Pattern) {
		info, err := os.Stat(op.Pattern)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", op.Pattern)
		}
		return []string{op.Pattern}, nil
	}
	matches, err := filepath.Glob(op.Pattern)
	if err != nil {
		return nil, err
	}
	dirs := []string{}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

// Returns the output file for a stack directory: next to it if outDir is empty, else inside outDir
func Destination(dir, outDir string) string {
	dir = filepath.Clean(dir)
	if outDir == "" {
		return dir + ".jpg"
	}
	return filepath.Join(outDir, filepath.Base(dir)+".jpg")
}

// Returns the readable image files in a directory, sorted by name
func StackFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if !e.IsDir() && frame.IsReadable(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// Estimates the working memory of one stack in MB from the size of its first image
func estimateStackMB(files []string) int {
	if len(files) == 0 {
		return 0
	}
	width, height, err := frame.ReadConfig(files[0])
	if err != nil {
		return 0
	}
	// three float32 channels per layer, held by the input, the Laplacian pyramid and its statistics
	bytesPerLayer := int64(width) * int64(height) * 3 * 4 * 4
	return int(bytesPerLayer * int64(len(files)) / 1024 / 1024)
}

// Returns the number of stacks to fuse in parallel, bounded by the stacking memory budget
func (op *OpBatch) processes(dirs []string, c *ops.Context) int {
	processes := op.Processes
	if processes < 1 {
		processes = 1
	}
	maxMB := 0
	for _, dir := range dirs {
		files, err := StackFiles(dir)
		if err != nil {
			continue
		}
		if mb := estimateStackMB(files); mb > maxMB {
			maxMB = mb
		}
	}
	if maxMB > 0 && c.StackMemoryMB > 0 {
		if byMemory := c.StackMemoryMB / maxMB; byMemory < processes {
			fmt.Fprintf(c.Log, "Stacks need up to %d MB each, limiting to %d parallel stacks for %d MB stacking memory\n",
				maxMB, byMemory, c.StackMemoryMB)
			processes = byMemory
		}
	}
	if processes < 1 {
		processes = 1
	}
	if processes > len(dirs) && len(dirs) > 0 {
		processes = len(dirs)
	}
	return processes
}

// Fuses all stacks of the batch. Returns the per-directory outcome, and a combined error naming each failed stack
func (op *OpBatch) Apply(c *ops.Context) (res *Result, err error) {
	dirs, err := op.Dirs()
	if err != nil {
		return nil, err
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no stack directories match %s", op.Pattern)
	}
	if op.OutDir != "" {
		if err := os.MkdirAll(op.OutDir, 0755); err != nil {
			return nil, err
		}
	}

	processes := op.processes(dirs, c)
	threads := c.MaxThreads / processes
	if threads < 1 {
		threads = 1
	}
	fmt.Fprintf(c.Log, "Fusing %d stacks with %d processes of %d threads each\n", len(dirs), processes, threads)

	res = &Result{}
	errs := make([]error, len(dirs))
	skipped := make([]bool, len(dirs))
	logLock := sync.Mutex{}
	limiter := make(chan bool, processes)
	for i, dir := range dirs {
		limiter <- true
		go func(i int, dir string) {
			defer func() { <-limiter }()

			buf := &bytes.Buffer{}
			sc := *c
			sc.Log, sc.MaxThreads = buf, threads
			skipped[i], errs[i] = op.applyDir(dir, &sc)
			if errs[i] != nil {
				fmt.Fprintf(buf, "Error fusing %s: %s\n", dir, errs[i].Error())
			}

			logLock.Lock()
			c.Log.Write(buf.Bytes())
			logLock.Unlock()
		}(i, dir)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}

	msgs := []string{}
	for i, dir := range dirs {
		switch {
		case errs[i] != nil:
			res.Failed = append(res.Failed, dir)
			msgs = append(msgs, fmt.Sprintf("%s: %s", dir, errs[i].Error()))
		case skipped[i]:
			res.Skipped = append(res.Skipped, dir)
		default:
			res.Fused = append(res.Fused, dir)
		}
	}
	fmt.Fprintf(c.Log, "Fused %d stacks, skipped %d, failed %d\n", len(res.Fused), len(res.Skipped), len(res.Failed))
	if len(msgs) > 0 {
		return res, errors.New(strings.Join(msgs, "; "))
	}
	return res, nil
}

// Fuses a single stack directory unless its output exists and overwriting is off.
// Panics are turned into errors, so one broken stack cannot take down the batch
func (op *OpBatch) applyDir(dir string, c *ops.Context) (skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	dest := Destination(dir, op.OutDir)
	if !op.Overwrite {
		if _, err := os.Stat(dest); err == nil {
			fmt.Fprintf(c.Log, "Skipping %s, output %s exists\n", dir, dest)
			return true, nil
		}
	}
	return false, op.FuseDir(dir, dest, c)
}

// Loads all images of a directory, filters them for sharpness, fuses and saves the result to dest
func (op *OpBatch) FuseDir(dir, dest string, c *ops.Context) error {
	fmt.Fprintf(c.Log, "Reading %s\n", dir)
	files, err := StackFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no images in %s", frame.ErrEmptyStack, dir)
	}

	ins := make([]ops.Promise, 0, len(files))
	for i, file := range files {
		promises, err := ops.NewOpLoad(i, file).MakePromises(nil, c)
		if err != nil {
			return err
		}
		ins = append(ins, promises...)
	}

	seq := ops.NewOpSequence()
	if op.Sharpness != nil {
		seq.Append(op.Sharpness)
	}
	if op.Fuse == nil {
		return errors.New("missing fusion parameters")
	}
	seq.Append(op.Fuse, ops.NewOpSave(dest, op.Quality))

	outs, err := seq.MakePromises(ins, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(outs, 1, true)
	debug.FreeOSMemory()
	return err
}
