package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher constants
const (
	WatcherBufferSize  = 10
	WatcherStopTimeout = 2 * time.Second
)

// FileWatcher reports writes to local copies as soon as they happen, so an
// upload does not have to wait for the next watch tick
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	events   chan string
	dirs     map[string]bool
	stopChan chan struct{}
	doneChan chan struct{}
	log      zerolog.Logger
}

// NewFileWatcher starts an fsnotify watcher with no directories
func NewFileWatcher(log zerolog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  watcher,
		events:   make(chan string, WatcherBufferSize),
		dirs:     make(map[string]bool),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		log:      log.With().Str("component", "watcher").Logger(),
	}
	go fw.run()
	return fw, nil
}

// Add watches the directory holding path. Editors often replace a file
// instead of writing it in place, which only the directory sees.
func (fw *FileWatcher) Add(path string) error {
	dir := filepath.Dir(path)
	if fw.dirs[dir] {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	fw.dirs[dir] = true
	fw.log.Debug().Str("dir", dir).Msg("Watching directory")
	return nil
}

// Events delivers the paths of written or created files
func (fw *FileWatcher) Events() <-chan string {
	return fw.events
}

func (fw *FileWatcher) run() {
	defer func() {
		if r := recover(); r != nil {
			fw.log.Error().Interface("panic", r).Msg("File watcher panic recovered")
		}
		close(fw.doneChan)
	}()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			select {
			case fw.events <- event.Name:
			default:
				// Full; the periodic watch tick picks the change up
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn().Err(err).Msg("File watcher error")

		case <-fw.stopChan:
			return
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit
func (fw *FileWatcher) Close() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	err := fw.watcher.Close()
	select {
	case <-fw.doneChan:
	case <-time.After(WatcherStopTimeout):
		fw.log.Warn().Msg("File watcher goroutine did not exit in time")
	}
	return err
}
