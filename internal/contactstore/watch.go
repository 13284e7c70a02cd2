package contactstore

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/contacts/internal/checksum"
	"github.com/starford/contacts/internal/storage"
)

const reloadDebounce = 150 * time.Millisecond

// Watch reloads s whenever the contacts file behind file is changed by
// something other than s itself. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, because atomic
// writes replace the file's inode on every save.
func Watch(ctx context.Context, s *Store, file *storage.JSONFile, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := file.Path()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("path", target))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(reloadDebounce)
			timerCh = timer.C
		} else {
			timer.Reset(reloadDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			reloadIfForeign(ctx, s, file, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reloadIfForeign reloads the store unless the file still holds the bytes
// the store itself last wrote or read.
func reloadIfForeign(ctx context.Context, s *Store, file *storage.JSONFile, logger *slog.Logger) {
	sum, err := checksum.File(file.Path())
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("watcher: contacts file removed, reloading as empty", slog.String("path", file.Path()))
	case err != nil:
		logger.Warn("watcher: read failed", slog.String("path", file.Path()), slog.String("error", err.Error()))
		return
	case sum == file.Checksum():
		return
	}

	if err := s.Reload(ctx); err != nil {
		logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
		return
	}
	logger.Debug("watcher: reloaded", slog.Int("contacts", s.Len()))
}
