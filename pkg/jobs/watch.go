package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a new file must stay unmodified before it is
// handed off, so half-written images are not uploaded.
const DefaultSettle = 500 * time.Millisecond

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp"}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path)))
}

type watchConfig struct {
	settle time.Duration
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.settle = d
		}
	}
}

// Watch calls fn once for every image file created in dir after Watch starts.
// fn runs on the watching goroutine. Watch returns when ctx is done or the
// watcher fails.
func Watch(ctx context.Context, dir string, fn func(path string), opts ...WatchOption) error {
	cfg := watchConfig{settle: DefaultSettle}
	for _, opt := range opts {
		opt(&cfg)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating folder watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	pending := make(map[string]time.Time)
	seen := make(map[string]struct{})

	ticker := time.NewTicker(max(cfg.settle/4, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if !IsImage(path) {
				continue
			}
			if _, done := seen[path]; done {
				continue
			}
			pending[path] = time.Now()

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < cfg.settle {
					continue
				}
				delete(pending, path)
				seen[path] = struct{}{}
				fn(path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("folder watcher error: %w", err)
		}
	}
}
