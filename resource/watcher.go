// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/drawbatch/asset"
)

// Watcher invalidates registered assets when their files change on disk,
// so that the next frame loads the new version.
//
// A Watcher observes the shaders and media directories of every skin in
// the resolver's search chain below an OS directory root. The resolver is
// expected to read from os.DirFS(root).
type Watcher struct {
	root string
	res  *Resolver
	reg  *asset.Registry
	fw   *fsnotify.Watcher
}

// NewWatcher creates a watcher for the skin tree at root and starts
// watching the resolver's current search chain.
func NewWatcher(root string, res *Resolver, reg *asset.Registry) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("resource: watcher: %w", err)
	}
	w := &Watcher{root: root, res: res, reg: reg, fw: fw}
	if err := w.Rescan(); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Rescan adds watches for the resolver's search chain. Call it after
// Resolver.SetSkin. Missing skin directories are skipped.
func (w *Watcher) Rescan() error {
	for _, skin := range w.res.Skins() {
		for _, dir := range []string{ShaderDir, MediaDir} {
			if err := w.addTree(filepath.Join(w.root, skin, dir)); err != nil {
				return err
			}
		}
	}
	return nil
}

// addTree watches dir and its subdirectories. fsnotify watches are not
// recursive.
func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fw.Add(p); err != nil {
			return fmt.Errorf("resource: watch %s: %w", p, err)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// keyFor maps a path relative to the skin root, in slash form, to the key
// of the asset it backs.
func keyFor(rel string) (asset.Key, bool) {
	parts := strings.SplitN(rel, "/", 3)
	if len(parts) != 3 || parts[2] == "" {
		return asset.Key{}, false
	}
	var kind asset.Kind
	switch parts[1] {
	case ShaderDir:
		kind = asset.KindShader
	case MediaDir:
		kind = asset.KindTexture
	default:
		return asset.Key{}, false
	}
	return asset.Key{Kind: kind, Name: norm.NFC.String(parts[2])}, true
}

// handle applies one file system event and reports the invalidated key.
func (w *Watcher) handle(ev fsnotify.Event) (asset.Key, bool) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return asset.Key{}, false
	}

	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				slogger().Warn("resource: watch new directory", "path", ev.Name, "err", err)
			}
			return asset.Key{}, false
		}
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return asset.Key{}, false
	}
	key, ok := keyFor(filepath.ToSlash(rel))
	if !ok || !w.reg.Invalidate(key) {
		return asset.Key{}, false
	}
	slogger().Info("resource: asset changed on disk", "asset", key.String(), "op", ev.Op.String())
	return key, true
}

// Run processes file system events until ctx is done or the watcher is
// closed. It returns ctx.Err() on cancellation and nil after Close.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slogger().Warn("resource: watcher error", "err", err)
		}
	}
}

// Close stops watching. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
