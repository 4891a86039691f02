// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teradata-labs/graphbus/pkg/observability"
)

// ChangeSet lists artifact files that changed during one debounce window.
type ChangeSet struct {
	Dir   string
	Files []string // base names, sorted
}

// ChangeCallback is called once per debounce window with the files that
// changed. It runs on a timer goroutine; implementations typically reload
// the artifact set and build a fresh runtime.
type ChangeCallback func(ctx context.Context, changes ChangeSet)

// WatcherConfig configures the artifact directory watcher.
type WatcherConfig struct {
	DebounceMs int            // debounce delay in milliseconds (default: 500ms)
	Logger     *zap.Logger    // logger for events
	OnChange   ChangeCallback // required
}

// Watcher reports changes to the artifact files of a directory. It never
// touches a loaded Model.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	config  WatcherConfig
	logger  *zap.Logger
	tracer  observability.Tracer

	debounceMu sync.Mutex
	timer      *time.Timer
	pending    map[string]struct{}

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	stopMu  sync.Mutex
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, config WatcherConfig) (*Watcher, error) {
	if config.OnChange == nil {
		return nil, fmt.Errorf("artifact watcher requires an OnChange callback")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifact path %s is not a directory", dir)
	}

	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.DebounceMs <= 0 {
		config.DebounceMs = 500
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		dir:     dir,
		watcher: fw,
		config:  config,
		logger:  config.Logger,
		tracer:  observability.NewNoOpTracer(),
		pending: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// WithTracer sets the observability tracer for the watcher.
func (w *Watcher) WithTracer(tracer observability.Tracer) *Watcher {
	if tracer != nil {
		w.tracer = tracer
	}
	return w
}

// Start begins watching. The watch loop ends when ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	if w.started || w.stopped {
		return fmt.Errorf("artifact watcher already started")
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch artifact directory: %w", err)
	}
	w.started = true

	w.logger.Info("Artifact watcher started",
		zap.String("directory", w.dir),
		zap.Int("debounce_ms", w.config.DebounceMs))

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and cancels any pending notification.
func (w *Watcher) Stop() error {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	if w.started {
		<-w.doneCh
	}

	w.debounceMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.debounceMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			w.logger.Debug("Artifact watcher stopped")
			return

		case <-ctx.Done():
			w.logger.Debug("Artifact watcher context cancelled")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Warn("Artifact watcher events channel closed")
				return
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.logger.Warn("Artifact watcher errors channel closed")
				return
			}
			w.logger.Error("Artifact watcher error", zap.Error(err))
		}
	}
}

// isArtifactFile reports whether name is one of the files the runtime reads.
func isArtifactFile(name string) bool {
	switch filepath.Base(name) {
	case AgentsFile, GraphFile, TopicsFile:
		return true
	}
	return false
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !isArtifactFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	w.pending[filepath.Base(event.Name)] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(time.Duration(w.config.DebounceMs)*time.Millisecond, func() {
		w.flush(ctx)
	})
}

// flush delivers the pending change set.
func (w *Watcher) flush(ctx context.Context) {
	w.debounceMu.Lock()
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.debounceMu.Unlock()

	if len(files) == 0 {
		return
	}
	sort.Strings(files)

	select {
	case <-w.stopCh:
		return
	default:
	}

	_, span := w.tracer.StartSpan(ctx, observability.SpanArtifactWatchEvent)
	defer w.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrArtifactDir, w.dir)
	span.SetAttribute("files", files)

	w.logger.Info("Artifact files changed",
		zap.String("directory", w.dir),
		zap.Strings("files", files))

	w.config.OnChange(ctx, ChangeSet{Dir: w.dir, Files: files})
}
