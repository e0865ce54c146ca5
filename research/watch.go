package research

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Watcher processes PDFs as they appear in a directory. A file is handled
// once no event has touched it for the settle period, so partially copied
// files are not read.
type Watcher struct {
	dir    string
	proc   *Processor
	settle time.Duration
	log    *logrus.Logger

	pending  map[string]time.Time
	produced map[string]bool
}

func NewWatcher(dir string, proc *Processor, settle time.Duration, log *logrus.Logger) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		dir:      dir,
		proc:     proc,
		settle:   settle,
		log:      log,
		pending:  make(map[string]time.Time),
		produced: make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled or the converter becomes unusable.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "watcher Run failed")
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return errors.Wrap(err, "watcher Run failed")
	}
	w.log.WithField("Dir", w.dir).Info("Watching directory.")

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev, time.Now())
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watch error.")
		case now := <-ticker.C:
			if err := w.flush(ctx, now); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event, now time.Time) {
	name := filepath.Clean(ev.Name)
	if !IsPDF(name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(w.pending, name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if w.produced[name] {
			if ev.Has(fsnotify.Create) {
				delete(w.produced, name)
			}
			return
		}
		w.pending[name] = now
	}
}

// flush processes every pending file that has settled.
func (w *Watcher) flush(ctx context.Context, now time.Time) error {
	var ready []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	sort.Strings(ready)
	report, err := w.proc.Process(ctx, ready)
	for _, fr := range report.Files {
		if fr.Outcome == OutcomeRenamed && w.proc.renamer != nil && !w.proc.renamer.dryRun {
			w.produced[filepath.Clean(fr.NewPath)] = true
		}
	}
	if IsFatal(err) {
		return err
	}
	if err != nil {
		w.log.WithError(err).Warn("Some files failed.")
	}
	return nil
}
