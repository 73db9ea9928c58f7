package events

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher posts a KindManifest event on the bus whenever the manifest
// file changes on disk. Editors often replace files by rename, so the
// parent directory is watched and events are filtered to the manifest
// path, with a short debounce to collapse write bursts.
type Watcher struct {
	path     string
	bus      *Bus
	fsw      *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
}

// Watch starts watching the manifest file. Close the returned Watcher to
// stop.
func Watch(path string, bus *Bus) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		bus:      bus,
		fsw:      fsw,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			w.bus.Post(Event{Kind: KindManifest, Value: w.path})
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}
