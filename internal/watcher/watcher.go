// Package watcher provides debounced file watching for component sources.
// Rapid editor save bursts collapse into one change batch so the server
// retransforms each file once per burst.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeEvent represents a file change event.
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType represents the type of file change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType.
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched.
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of file change events.
type ChangeHandler func(events []ChangeEvent)

// SourceFilter accepts the component source extensions the pipeline
// handles.
func SourceFilter(path string) bool {
	switch filepath.Ext(path) {
	case ".tsx", ".ts", ".jsx", ".html":
		return true
	default:
		return false
	}
}

// FileWatcher watches for file changes with debouncing.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	ignore   []string

	mutex    sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler
}

// New creates a FileWatcher with the given debounce window. Directory names
// in ignore are skipped during recursive registration.
func New(debounce time.Duration, ignore []string) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &FileWatcher{
		watcher:  w,
		debounce: debounce,
		ignore:   ignore,
	}, nil
}

// AddFilter registers a file filter; a path must pass every filter to be
// reported.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler registers a change handler.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every non-ignored subdirectory.
func (fw *FileWatcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		for _, ig := range fw.ignore {
			if d.Name() == ig {
				return filepath.SkipDir
			}
		}
		return fw.watcher.Add(path)
	})
}

// Start runs the watch loop until ctx is cancelled.
func (fw *FileWatcher) Start(ctx context.Context) {
	var (
		mu      sync.Mutex
		pending []ChangeEvent
		timer   *time.Timer
	)

	flush := func() {
		mu.Lock()
		batch := pending
		pending = nil
		mu.Unlock()
		if len(batch) == 0 {
			return
		}
		fw.mutex.RLock()
		handlers := fw.handlers
		fw.mutex.RUnlock()
		for _, handler := range handlers {
			handler(batch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			change, accepted := fw.accept(event)
			if !accepted {
				continue
			}
			mu.Lock()
			pending = append(pending, change)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fw.debounce, flush)
			mu.Unlock()
		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			// fsnotify errors are transient; the loop keeps running.
		}
	}
}

func (fw *FileWatcher) accept(event fsnotify.Event) (ChangeEvent, bool) {
	path := filepath.ToSlash(event.Name)
	for _, ig := range fw.ignore {
		if strings.Contains(path, "/"+ig+"/") {
			return ChangeEvent{}, false
		}
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()
	for _, filter := range filters {
		if !filter(event.Name) {
			return ChangeEvent{}, false
		}
	}

	change := ChangeEvent{Path: event.Name}
	switch {
	case event.Op.Has(fsnotify.Create):
		change.Type = EventTypeCreated
	case event.Op.Has(fsnotify.Write):
		change.Type = EventTypeModified
	case event.Op.Has(fsnotify.Remove):
		change.Type = EventTypeDeleted
	case event.Op.Has(fsnotify.Rename):
		change.Type = EventTypeRenamed
	default:
		return ChangeEvent{}, false
	}
	return change, true
}

// Close stops the underlying fsnotify watcher.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
