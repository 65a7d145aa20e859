package config

import (
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Burst writes (editors save in several syscalls) coalesce into one reload.
const reloadDebounce = 300 * time.Millisecond

// Watcher follows a config file and delivers each successfully reloaded
// Config on C. A reload that fails to parse or validate is logged and
// dropped, so the previous config stays in effect. The channel holds only
// the latest config; an undelivered stale one is replaced.
type Watcher struct {
	C <-chan *Config

	path string
	fsw  *fsnotify.Watcher
	out  chan *Config
	done chan struct{}
}

// WatchConfig starts following path. Callers receive reloads on C and must
// Close the watcher when done; C is closed on Close.
func WatchConfig(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path: path,
		fsw:  fsw,
		out:  make(chan *Config, 1),
		done: make(chan struct{}),
	}
	w.C = w.out
	go w.run()

	slog.Info("config watcher started", "path", path)
	return w, nil
}

// Close stops the watcher. Safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.out)

	var pending *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if pending != nil {
				pending.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(reloadDebounce)
				fire = pending.C
			} else {
				if !pending.Stop() {
					select {
					case <-pending.C:
					default:
					}
				}
				pending.Reset(reloadDebounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "path", w.path, "error", err)

		case <-fire:
			pending = nil
			fire = nil
			cfg, err := Load(w.path)
			if err != nil {
				slog.Error("config reload failed", "path", w.path, "error", err)
				continue
			}
			// Only this goroutine sends, so after the drain the buffered
			// slot is free and the send cannot block.
			select {
			case <-w.out:
			default:
			}
			w.out <- cfg
			slog.Info("config reloaded", "path", w.path)
		}
	}
}
