// Package watch reloads the view server's state when the workspace database
// changes on disk without a refresh RPC, e.g. a mutation from a CLI built
// without the RPC channel or a restored backup. Events are debounced since
// SQLite produces bursts of writes per transaction.
package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounceInterval = 500 * time.Millisecond

// Watcher observes a workspace directory and invokes a callback after
// write activity settles.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func()
	files    map[string]bool
	logger   zerolog.Logger
	done     chan struct{}
}

// New creates a watcher over the given workspace directory. Only the named
// files trigger the callback; WAL and journal noise for other files is
// ignored.
func New(workspaceDir string, files []string, onChange func(), logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(workspaceDir); err != nil {
		fsw.Close()
		return nil, err
	}

	watched := make(map[string]bool, len(files))
	for _, f := range files {
		watched[f] = true
		// A WAL checkpoint touches the side files, not the database itself.
		watched[f+"-wal"] = true
	}

	return &Watcher{
		fsw:      fsw,
		onChange: onChange,
		files:    watched,
		logger:   logger.With().Str("subsystem", "watch").Logger(),
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until Close is called. It blocks; run it on its own
// goroutine.
func (w *Watcher) Run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !w.files[filepath.Base(ev.Name)] {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceInterval)
				timerC = timer.C
			} else {
				timer.Reset(debounceInterval)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watch error")

		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Debug().Msg("workspace changed on disk")
			w.onChange()
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
