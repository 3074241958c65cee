package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kingdombarber/insight/pkg/dataset"
)

// CachedProvider keeps the first successful fetch until Invalidate is
// called. Callers always receive a clone.
type CachedProvider struct {
	next   Provider
	logger *slog.Logger

	mu       sync.Mutex
	cached   *dataset.Dataset
	loadedAt time.Time

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewCachedProvider wraps next.
func NewCachedProvider(next Provider, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedProvider{next: next, logger: logger}
}

// FetchDataset implements Provider.
func (c *CachedProvider) FetchDataset(ctx context.Context) (*dataset.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		return c.cached.Clone(), nil
	}
	ds, err := c.next.FetchDataset(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = ds
	c.loadedAt = time.Now()
	return ds.Clone(), nil
}

// Invalidate drops the cached dataset.
func (c *CachedProvider) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
}

// LoadedAt reports when the cached dataset was fetched. It is zero when
// nothing is cached.
func (c *CachedProvider) LoadedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return time.Time{}
	}
	return c.loadedAt
}

// WatchFile invalidates the cache whenever path is written, created or
// renamed. The watch ends when ctx is done or Close is called.
func (c *CachedProvider) WatchFile(ctx context.Context, path string) error {
	if c.watcher != nil {
		return fmt.Errorf("already watching")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors often replace files instead of writing them.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	c.watcher = watcher
	c.done = make(chan struct{})
	go c.watchLoop(ctx, abs)
	return nil
}

func (c *CachedProvider) watchLoop(ctx context.Context, path string) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			c.logger.Info("dataset file changed, dropping cache", slog.String("path", path), slog.String("op", event.Op.String()))
			c.Invalidate()
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops any file watch and closes the wrapped provider if it holds
// resources.
func (c *CachedProvider) Close() error {
	if c.watcher != nil {
		_ = c.watcher.Close()
		<-c.done
		c.watcher = nil
	}
	if closer, ok := c.next.(Closer); ok {
		return closer.Close()
	}
	return nil
}
