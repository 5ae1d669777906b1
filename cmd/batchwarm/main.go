// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command batchwarm loads every shader and texture of a skin tree, batches
// a grid of quads over them and renders a number of frames, reporting
// cache and batching statistics.
//
// Usage:
//
//	batchwarm -root ./skins -skin night -fallback default -frames 60
//	batchwarm -root ./skins -watch -interval 100ms -frames 600
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/drawbatch"
	"github.com/gogpu/drawbatch/asset"
	"github.com/gogpu/drawbatch/backend"
	"github.com/gogpu/drawbatch/backend/native"
	"github.com/gogpu/drawbatch/gpucore"
	"github.com/gogpu/drawbatch/resource"
)

// maxDeviceRecoveries bounds how often a lost device is reopened per run.
const maxDeviceRecoveries = 3

type config struct {
	root       string
	skin       string
	fallbacks  []string
	frames     int
	backend    string
	headless   bool
	maxTexture uint
	workers    int
	watch      bool
	interval   time.Duration
	verbose    bool
}

func main() {
	var (
		cfg      config
		fallback string
	)
	flag.StringVar(&cfg.root, "root", ".", "skin tree root directory")
	flag.StringVar(&cfg.skin, "skin", "default", "active skin")
	flag.StringVar(&fallback, "fallback", "", "comma-separated fallback skins")
	flag.IntVar(&cfg.frames, "frames", 60, "frames to render")
	flag.StringVar(&cfg.backend, "backend", "auto", "backend: auto, native or software")
	flag.BoolVar(&cfg.headless, "headless", true, "open the native backend on the noop HAL")
	flag.UintVar(&cfg.maxTexture, "max-texture", 0, "downscale textures larger than this (0 = device limit)")
	flag.IntVar(&cfg.workers, "workers", 0, "preload goroutines (0 = GOMAXPROCS)")
	flag.BoolVar(&cfg.watch, "watch", false, "reload assets whose files change while frames run")
	flag.DurationVar(&cfg.interval, "interval", 0, "delay between frames")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	if fallback != "" {
		cfg.fallbacks = strings.Split(fallback, ",")
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	drawbatch.SetLogger(logger)
	backend.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("batchwarm failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	ncfg := native.DefaultConfig()
	if cfg.headless {
		ncfg.API = noop.API{}
	}
	native.Register(ncfg)

	var (
		dev backend.Backend
		err error
	)
	if cfg.backend == "auto" {
		dev, err = backend.InitDefault()
	} else {
		dev, err = backend.Init(cfg.backend)
	}
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	defer dev.Close()
	logger.Info("backend ready", "backend", dev.Name(), "available", backend.Available())

	fsys := os.DirFS(cfg.root)
	manifest, err := resource.ReadManifest(fsys, cfg.skin)
	if err != nil {
		return err
	}
	// Flags override the skin manifest.
	opts := manifest.Options()
	if len(cfg.fallbacks) > 0 {
		opts = append(opts, resource.WithFallbackSkins(cfg.fallbacks...))
	}
	if cfg.maxTexture > 0 {
		opts = append(opts, resource.WithMaxTextureSize(uint32(cfg.maxTexture))) //nolint:gosec // flag value
	}
	res := resource.NewResolver(fsys, cfg.skin, opts...)
	reg := asset.NewRegistry()
	resource.Register(reg, res, dev, opts...)

	pipe := drawbatch.NewPipeline(dev, drawbatch.WithRegistry(reg))
	defer pipe.Close()

	shaders, err := discover(fsys, res.Skins(), resource.ShaderDir)
	if err != nil {
		return err
	}
	textures, err := discover(fsys, res.Skins(), resource.MediaDir)
	if err != nil {
		return err
	}
	logger.Info("skin scanned", "skins", res.Skins(), "shaders", len(shaders), "textures", len(textures))

	if err := reg.Preload(ctx, assetKeys(shaders, textures), cfg.workers); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("some assets failed to load; they draw with fallbacks", "error", err)
	}

	for _, prim := range buildScene(reg, shaders, textures) {
		pipe.Add(prim)
	}

	if cfg.watch {
		w, err := resource.NewWatcher(cfg.root, res, reg)
		if err != nil {
			return err
		}
		defer w.Close()
		go func() {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("watcher stopped", "error", err)
			}
		}()
	}

	recoveries := 0
	for frame := 0; frame < cfg.frames; frame++ {
		if frame > 0 && cfg.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.interval):
			}
		}
		err := renderFrame(ctx, dev, pipe)
		if err == nil {
			continue
		}
		if !errors.Is(err, gpucore.ErrDeviceLost) || recoveries == maxDeviceRecoveries {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		recoveries++
		logger.Warn("device lost, reopening", "frame", frame, "attempt", recoveries, "error", err)
		if err := recoverDevice(dev, pipe); err != nil {
			return fmt.Errorf("frame %d: recover device: %w", frame, err)
		}
	}

	ps := pipe.Stats()
	rs := reg.Stats()
	logger.Info("done",
		"frames", ps.Frames,
		"batches", ps.Batches,
		"primitives", ps.Primitives,
		"draw_calls", ps.DrawCalls,
		"rebuilds", ps.Rebuilds,
		"invalidated", ps.InvalidatedBatches,
		"assets", rs.Len,
		"allocated", rs.Allocated,
	)
	return nil
}

// recoverDevice frees every asset, reopens dev and leaves pipe to rebuild
// its batches and reload its assets on the next frame.
func recoverDevice(dev backend.Backend, pipe *drawbatch.Pipeline) error {
	pipe.DeviceLost()
	dev.Close()
	return dev.Init()
}

func renderFrame(ctx context.Context, dev backend.Backend, pipe *drawbatch.Pipeline) error {
	if err := dev.BeginFrame(); err != nil {
		return err
	}
	if err := pipe.Render(ctx); err != nil {
		_ = dev.EndFrame()
		return err
	}
	return dev.EndFrame()
}

// discover lists the resource names under dir across the skin chain.
// A skin without the directory is skipped.
func discover(fsys fs.FS, skins []string, dir string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, skin := range skins {
		root := path.Join(skin, dir)
		err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && p == root {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			name := strings.TrimPrefix(p, root+"/")
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	slices.Sort(names)
	return names, nil
}

func assetKeys(shaders, textures []string) []asset.Key {
	keys := make([]asset.Key, 0, len(shaders)+len(textures))
	for _, name := range shaders {
		keys = append(keys, asset.Key{Kind: asset.KindShader, Name: name})
	}
	for _, name := range textures {
		keys = append(keys, asset.Key{Kind: asset.KindTexture, Name: name})
	}
	return keys
}

// buildScene lays out one quad per (shader, texture) pair plus one plain
// quad, in a grid covering clip space.
func buildScene(reg *asset.Registry, shaders, textures []string) []*drawbatch.Primitive {
	bindings := []drawbatch.Binding{{}}
	for _, s := range shaders {
		for _, tex := range append([]string{""}, textures...) {
			b := drawbatch.Binding{Effect: drawbatch.EffectRef{Program: reg.Shader(s)}}
			if tex != "" {
				b.Texture = reg.Texture(tex)
			}
			bindings = append(bindings, b)
		}
	}
	for _, tex := range textures {
		bindings = append(bindings, drawbatch.Binding{Texture: reg.Texture(tex)})
	}

	cols := 1
	for cols*cols < len(bindings) {
		cols++
	}
	cell := 2 / float32(cols)
	white := drawbatch.PackRGBA(255, 255, 255, 255)

	prims := make([]*drawbatch.Primitive, 0, len(bindings))
	for i, b := range bindings {
		x := -1 + float32(i%cols)*cell
		y := -1 + float32(i/cols)*cell
		prim, err := drawbatch.NewPrimitive(b, drawbatch.TriangleStrip, []drawbatch.Vertex{
			{X: x, Y: y, Color: white},
			{X: x + cell, Y: y, Color: white, U: 1},
			{X: x, Y: y + cell, Color: white, V: 1},
			{X: x + cell, Y: y + cell, Color: white, U: 1, V: 1},
		})
		if err != nil {
			continue
		}
		prims = append(prims, prim)
	}
	return prims
}
