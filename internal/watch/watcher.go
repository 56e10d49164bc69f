// Package watch rebuilds a songbook whenever its descriptor or its song
// sources change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/songbuilder/internal/logfields"
)

// DefaultDebounce is the quiet period before a rebuild starts.
const DefaultDebounce = 500 * time.Millisecond

// Subdirectories of each datadir that feed the build.
var sourceSubdirs = []string{"songs", "templates"}

// RebuildFunc runs one build. It returns the datadirs the build used so the
// watcher can follow changes to the descriptor's search path. A failed build
// is logged and watching continues.
type RebuildFunc func(ctx context.Context) (datadirs []string, err error)

// Watcher watches a descriptor file and the song sources of its datadirs.
type Watcher struct {
	descriptorPath string
	rebuild        RebuildFunc
	debounce       time.Duration
	logger         *slog.Logger

	fsw     *fsnotify.Watcher
	watched map[string]bool
	// roots are datadirs watched only for their source subdirectories
	// appearing; sources are directories inside songs/ and templates/.
	roots   map[string]bool
	sources map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a rebuild.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New returns a watcher for the descriptor at path.
func New(path string, rebuild RebuildFunc, opts ...Option) (*Watcher, error) {
	if rebuild == nil {
		return nil, errors.New("watch: nil rebuild func")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve descriptor path: %w", err)
	}
	w := &Watcher{
		descriptorPath: abs,
		rebuild:        rebuild,
		debounce:       DefaultDebounce,
		logger:         slog.Default(),
		watched:        make(map[string]bool),
		roots:          make(map[string]bool),
		sources:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run builds once, then rebuilds after every debounced change until ctx is
// done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsw = fsw
	defer func() {
		if cerr := fsw.Close(); cerr != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(cerr))
		}
	}()

	// The directory is watched rather than the file so editors that replace
	// the file on save keep triggering events.
	if err := w.add(filepath.Dir(w.descriptorPath)); err != nil {
		return fmt.Errorf("failed to watch descriptor directory: %w", err)
	}
	w.logger.Info("Watching songbook", logfields.Descriptor(w.descriptorPath))
	w.runBuild(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Change detected", logfields.Path(event.Name), "op", event.Op.String())
			if event.Op.Has(fsnotify.Create) {
				w.followNewDir(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.runBuild(ctx)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context) {
	datadirs, err := w.rebuild(ctx)
	if err != nil {
		w.logger.Error("Rebuild failed; waiting for changes", logfields.Error(err))
	}
	for _, dir := range datadirs {
		w.addRoot(dir)
		for _, sub := range sourceSubdirs {
			w.addTree(filepath.Join(dir, sub))
		}
	}
}

// relevant reports whether event touches the descriptor, a source
// subdirectory of a datadir, or a file inside a watched source tree.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if event.Name == w.descriptorPath {
		return true
	}
	parent := filepath.Dir(event.Name)
	if w.roots[parent] && isSourceSubdir(filepath.Base(event.Name)) {
		return true
	}
	return w.sources[parent]
}

func isSourceSubdir(name string) bool {
	for _, sub := range sourceSubdirs {
		if name == sub {
			return true
		}
	}
	return false
}

// addRoot watches an existing datadir so songs/ or templates/ created later
// are noticed. Missing datadirs are ignored.
func (w *Watcher) addRoot(dir string) {
	if w.roots[dir] {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return
	}
	if err := w.add(dir); err != nil {
		w.logger.Warn("Could not watch datadir", logfields.DataDir([]string{dir}), logfields.Error(err))
		return
	}
	w.roots[dir] = true
}

func (w *Watcher) followNewDir(path string) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		w.addTree(path)
	}
}

// addTree watches root and every directory below it. Missing roots are ignored.
func (w *Watcher) addTree(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.add(path); err != nil {
			return err
		}
		w.sources[path] = true
		return nil
	})
	if err != nil {
		w.logger.Warn("Could not watch directory", logfields.Path(root), logfields.Error(err))
	}
}

func (w *Watcher) add(dir string) error {
	if w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	return nil
}
