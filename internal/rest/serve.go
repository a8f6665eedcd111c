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

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/djkaty/pyramid-scheme/internal/config"
	"github.com/djkaty/pyramid-scheme/internal/ops"
	"github.com/djkaty/pyramid-scheme/internal/ops/batch"
	"github.com/djkaty/pyramid-scheme/internal/ops/filter"
	"github.com/djkaty/pyramid-scheme/internal/ops/fuse"
	"github.com/gin-gonic/gin"
)

// Server settings shared by all requests
type Server struct {
	MaxThreads int            // Threads per request, 0 uses all logical cores
	Log        io.Writer      // Server log, request logs go to the response
	Config     *config.Config // Defaults for missing request entries, nil uses the built-in defaults
}

func (s *Server) defaults() *config.Config {
	if s.Config == nil {
		return config.DefaultConfig()
	}
	return s.Config
}

// Creates the router with all API endpoints. Request paths are restricted to the current directory tree
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(s.Log), gin.Recovery())
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/fuse", s.postFuse)
			v1.POST("/batch", s.postBatch)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func (s *Server) Serve(addr string) error {
	fmt.Fprintf(s.Log, "Serving API on %s\n", addr)
	return s.Router().Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Starts a streamed plain text response, and returns an operator context logging into it
func (s *Server) startLog(c *gin.Context, args interface{}) (*ops.Context, bool) {
	logWriter := c.Writer
	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return nil, false
	}
	ctx := ops.NewContext(logWriter, s.MaxThreads)
	ctx.RestrictPaths = true
	return ctx, true
}

type postFuseArgs struct {
	FilePatterns []string            `json:"filePatterns"`
	Sharpness    *filter.OpSharpness `json:"sharpness"`
	Fuse         *fuse.OpFuse        `json:"fuse"`
	Save         *ops.OpSave         `json:"save"`
}

func newPostFuseArgs(cfg *config.Config) (*postFuseArgs, error) {
	opSharpness, err := cfg.SharpnessOperator()
	if err != nil {
		return nil, err
	}
	opFuse, err := cfg.FuseOperator()
	if err != nil {
		return nil, err
	}
	return &postFuseArgs{Sharpness: opSharpness, Fuse: opFuse, Save: cfg.SaveOperator("")}, nil
}

// Request body of the batch endpoint. Decodes over the configured operator, keeping its values for missing entries
type postBatchArgs batch.OpBatch

func (s *Server) postFuse(c *gin.Context) {
	args, err := newPostFuseArgs(s.defaults())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := c.ShouldBindJSON(args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(args.FilePatterns) == 0 || args.Fuse == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filePatterns and fuse are required"})
		return
	}
	ctx, ok := s.startLog(c, args)
	if !ok {
		return
	}

	seq := ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns))
	if args.Sharpness != nil {
		seq.Append(args.Sharpness)
	}
	seq.Append(args.Fuse)
	if args.Save != nil {
		seq.Append(args.Save)
	}
	promises, err := seq.MakePromises(nil, ctx)
	if err == nil {
		_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	}
	if err != nil {
		fmt.Fprintf(ctx.Log, "error: %s\n", err.Error())
	}
	c.Writer.Flush()
}

func (s *Server) postBatch(c *gin.Context) {
	opBatch, err := s.defaults().BatchOperator("")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := c.ShouldBindJSON((*postBatchArgs)(opBatch)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	args := opBatch
	if !ops.IsPathAllowed(args.Pattern) || (args.OutDir != "" && !ops.IsPathAllowed(args.OutDir)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "paths must be relative and within the current directory tree"})
		return
	}
	ctx, ok := s.startLog(c, args)
	if !ok {
		return
	}

	if _, err := args.Apply(ctx); err != nil {
		fmt.Fprintf(ctx.Log, "error: %s\n", err.Error())
	}
	c.Writer.Flush()
}
