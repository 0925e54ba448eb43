package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchDir monitors dir (recursively) for changes to files with extension
// ext and calls onChange after each write, create, remove or rename.
// Directories created later are watched too. It runs until ctx is cancelled.
//
// onChange errors are logged; watching continues with the previous state.
func WatchDir(ctx context.Context, dir, ext string, onChange func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if _, err := addTree(watcher, dir, ext); err != nil {
		return err
	}

	slog.Info("watch: watching for changes", "dir", dir, "ext", ext)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				// Files written before the watch was added produce no event.
				found, err := addTree(watcher, event.Name, ext)
				if err != nil {
					slog.Error("watch: adding directory failed", "dir", event.Name, "err", err)
					continue
				}
				slog.Info("watch: directory added", "dir", event.Name)
				if found {
					if err := onChange(); err != nil {
						slog.Error("watch: reload failed, keeping previous state", "err", err)
					}
				}
				continue
			}
			if filepath.Ext(event.Name) != ext {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			slog.Info("watch: change detected", "file", event.Name, "op", event.Op.String())
			if err := onChange(); err != nil {
				slog.Error("watch: reload failed, keeping previous state", "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch: watcher error", "err", err)
		}
	}
}

// addTree watches root and every directory below it. It reports whether the
// tree already holds a file with extension ext.
func addTree(watcher *fsnotify.Watcher, root, ext string) (bool, error) {
	found := false
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		if filepath.Ext(path) == ext {
			found = true
		}
		return nil
	})
	return found, err
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
