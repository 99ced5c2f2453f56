package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultWatchDebounce = 100 * time.Millisecond

// Change describes one external modification of the backing file.
type Change struct {
	// SnapshotID is the id of the snapshot now on disk, empty when the
	// file was unreadable or carries no id.
	SnapshotID string
	At         time.Time
}

// Watcher surfaces writes to the backing file made by other processes. It
// never mutates the tree; receivers decide when to Sync.
type Watcher struct {
	changes chan Change
	cancel  context.CancelFunc
	done    chan struct{}
}

// Changes is the notification stream. When the receiver lags, bursts are
// dropped rather than queued; one pending change is always retained.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Close stops the watch loop and closes the change stream.
func (w *Watcher) Close() {
	w.cancel()
	<-w.done
}

// Watch starts observing the backing file for external writes, debounced
// by the configured interval. Only file backends are watchable. Flushes
// made through this facade are recognized by snapshot id and filtered
// out. Calling Watch again replaces the previous watcher.
func (s *Settings) Watch(ctx context.Context) (*Watcher, error) {
	fb, ok := s.backend.(*FileBackend)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotWatchable, s.backend)
	}
	if s.watch != nil {
		s.watch.Close()
		s.watch = nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWatchable, err)
	}
	// Watch the parent directory. Atomic saves replace the file inode,
	// which makes a watch on the path itself go stale after one event.
	dir := filepath.Dir(fb.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("%w: watching %s: %v", ErrNotWatchable, dir, err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		changes: make(chan Change, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.watchLoop(wctx, fsw, fb, w)
	s.watch = w
	return w, nil
}

func (s *Settings) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, fb *FileBackend, w *Watcher) {
	defer close(w.done)
	defer fsw.Close()
	defer close(w.changes)

	target := fb.Path()
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.watchDebounce)
				pending = timer.C
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.watchDebounce)
		case <-pending:
			timer = nil
			pending = nil
			s.dispatchChange(ctx, fb, w)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			s.logger.Debug("settings: watch error", "path", target, "error", err)
		}
	}
}

func (s *Settings) dispatchChange(ctx context.Context, fb *FileBackend, w *Watcher) {
	snap, err := fb.Load(ctx)
	if err != nil {
		// Unreadable is still a change worth reporting; the id stays
		// empty and Sync will surface the real error.
		s.logger.Debug("settings: watched file unreadable", "path", fb.Path(), "error", err)
		snap = Snapshot{}
	}
	if snap.ID != "" && snap.ID == s.lastWriteID() {
		return
	}
	select {
	case w.changes <- Change{SnapshotID: snap.ID, At: time.Now()}:
	default:
		s.logger.Debug("settings: change signal dropped, receiver busy", "path", fb.Path())
	}
}
