package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
)

// Watcher signals when new batch files may be available in a drop
// directory. Signals are coalesced: a pending wake-up absorbs later events.
type Watcher struct {
	dir     *DropDir
	watcher *fsnotify.Watcher
	wake    chan struct{}
	logger  *slog.Logger
}

// NewWatcher starts watching the drop directory.
func NewWatcher(dir *DropDir, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir.Dir()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir.Dir(), err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:     dir,
		watcher: fw,
		wake:    make(chan struct{}, 1),
		logger:  logger.With(logging.Component("watcher"), logging.Path(dir.Dir())),
	}, nil
}

// Wake returns the channel receiving coalesced wake-ups.
func (w *Watcher) Wake() <-chan struct{} {
	return w.wake
}

// Run forwards relevant filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.dir.Accepts(event.Name) {
				continue
			}
			w.logger.DebugContext(ctx, "drop directory changed", slog.String("file", event.Name), slog.String("op", event.Op.String()))
			select {
			case w.wake <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "watcher error", logging.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
