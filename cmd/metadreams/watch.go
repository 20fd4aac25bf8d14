package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/archangelproject/metadreams/pkg/metadreams"
	"github.com/archangelproject/metadreams/pkg/pngmeta"
)

// settle is how long the folder must stay quiet before a rebuild.
var settle = 2 * time.Second

// watch rebuilds the catalog, and the prompts file when dreams is set, after images change.
// Rebuilds run on this goroutine, so passes never overlap.
func watch(ctx context.Context, c *metadreams.Config, r pngmeta.Reader, dreams bool) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	dirs, err := metadreams.Dirs(c.Root, c.Recursive)
	if err != nil {
		return fmt.Errorf("dirs: %w", err)
	}

	klog.Infof("watching %d dirs ...", len(dirs))
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			klog.V(1).Infof("event: %s", event)

			if c.Recursive && event.Has(fsnotify.Create) && isVisibleDir(event.Name) {
				if err := w.Add(event.Name); err != nil {
					klog.Warningf("unable to watch %s: %v", event.Name, err)
				}
			}

			if !strings.EqualFold(filepath.Ext(event.Name), ".png") {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("watch error: %v", err)
		case <-timer.C:
			rebuild(c, r, dreams)
		}
	}
}

func rebuild(c *metadreams.Config, r pngmeta.Reader, dreams bool) {
	klog.Infof("images changed in %s, rebuilding ...", c.Root)
	if _, err := metadreams.Generate(c, r, metadreams.Always); err != nil {
		klog.Errorf("rebuild failed: %v", err)
		return
	}
	if !dreams {
		return
	}
	if _, err := metadreams.WritePrompts(c, r); err != nil {
		klog.Errorf("prompts failed: %v", err)
	}
}

func isVisibleDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
