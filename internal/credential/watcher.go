package credential

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const watchDebounce = 500 * time.Millisecond

// Watcher re-scans a credential directory when files change and submits
// the result. The receiver is expected to dedupe by refresh token, so
// submitting the whole directory on every change is safe.
type Watcher struct {
	dir    string
	submit func([]GoogleCredential)
}

// NewWatcher creates a watcher for dir. submit is invoked with the full
// directory contents after each settled burst of filesystem events.
func NewWatcher(dir string, submit func([]GoogleCredential)) *Watcher {
	return &Watcher{dir: filepath.Clean(dir), submit: submit}
}

// Start begins watching in a background goroutine until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return err
	}
	go w.loop(ctx, watcher)
	log.Infof("watching %s for credential changes", w.dir)
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevantEvent(evt) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(watchDebounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			w.rescan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("credential watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) rescan() {
	creds, err := LoadDir(w.dir)
	if err != nil {
		log.WithError(err).Warnf("credential rescan of %s failed", w.dir)
		return
	}
	if len(creds) == 0 {
		return
	}
	log.Infof("credential rescan found %d entries", len(creds))
	w.submit(creds)
}

func relevantEvent(evt fsnotify.Event) bool {
	if !evt.Op.Has(fsnotify.Create) && !evt.Op.Has(fsnotify.Write) && !evt.Op.Has(fsnotify.Rename) {
		return false
	}
	return strings.HasSuffix(strings.ToLower(evt.Name), ".json")
}
