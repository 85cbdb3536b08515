package layouts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/l0p7/pitwall/internal/config"
)

const watchDebounce = 25 * time.Millisecond

// Watcher reloads a Catalog when its folder changes. Stop must be called to
// release filesystem resources.
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch monitors the catalog folder and reloads it after a burst of changes
// settles. onChange receives the circuits whose documents were added,
// modified or removed. onError may be nil.
func (c *Catalog) Watch(ctx context.Context, onChange func([]string), onError func(error)) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("layouts: watch requires a change callback")
	}
	if c.folder == "" {
		return nil, errors.New("layouts: no folder configured for watching")
	}
	root, err := filepath.Abs(c.folder)
	if err != nil {
		return nil, fmt.Errorf("layouts: resolve folder: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("layouts: watch: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("layouts: watch add %s: %w", root, err)
	}

	report := func(err error) {
		if err != nil && onError != nil {
			onError(err)
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w := &Watcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil {
				report(fmt.Errorf("layouts: watch close: %w", err))
			}
		}()

		reload := func() {
			changed, err := c.Load()
			report(err)
			if len(changed) > 0 {
				onChange(changed)
			}
		}

		var timer *time.Timer
		var signal <-chan time.Time
		schedule := func() {
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}
			signal = timer.C
		}
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-watchCtx.Done():
				return
			case <-signal:
				signal = nil
				reload()
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !config.IsSupportedDocument(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				schedule()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				report(fmt.Errorf("layouts: watch error: %w", err))
			}
		}
	}()

	return w, nil
}
