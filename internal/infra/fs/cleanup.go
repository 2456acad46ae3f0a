// Package fs provides supervised cleanup of temporary download files.
package fs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RemoteStore abstracts the remote result store's retention operation.
// Satisfied by r2.Client.
type RemoteStore interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// Cleaner deletes stale local temp files and expired remote results on
// periodic tickers. Errors never abort a sweep.
type Cleaner struct {
	localDir      string
	localMaxAge   time.Duration
	localInterval time.Duration

	remote         RemoteStore
	remoteMaxAge   time.Duration
	remoteInterval time.Duration

	stopCh chan struct{}
}

// CleanerConfig holds configuration for the cleaner.
type CleanerConfig struct {
	LocalDir      string
	LocalMaxAge   time.Duration
	LocalInterval time.Duration

	Remote         RemoteStore
	RemoteMaxAge   time.Duration
	RemoteInterval time.Duration
}

// NewCleaner creates a new Cleaner.
func NewCleaner(cfg *CleanerConfig) *Cleaner {
	return &Cleaner{
		localDir:       cfg.LocalDir,
		localMaxAge:    cfg.LocalMaxAge,
		localInterval:  cfg.LocalInterval,
		remote:         cfg.Remote,
		remoteMaxAge:   cfg.RemoteMaxAge,
		remoteInterval: cfg.RemoteInterval,
		stopCh:         make(chan struct{}),
	}
}

// Start starts the cleanup goroutines.
func (c *Cleaner) Start(ctx context.Context) {
	if c.localDir != "" && c.localInterval > 0 {
		go c.localLoop(ctx)
	}
	if c.remote != nil && c.remoteInterval > 0 {
		go c.remoteLoop(ctx)
	}
}

// Stop stops the cleanup goroutines.
func (c *Cleaner) Stop() {
	close(c.stopCh)
}

func (c *Cleaner) localLoop(ctx context.Context) {
	slog.Info("Starting local cleanup",
		"dir", c.localDir,
		"max_age", c.localMaxAge,
		"interval", c.localInterval,
	)

	ticker := time.NewTicker(c.localInterval)
	defer ticker.Stop()

	// Run immediately on start
	c.CleanupLocalNow()

	for {
		select {
		case <-ticker.C:
			c.CleanupLocalNow()
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// CleanupLocalNow removes local files older than the max age. Per-file
// errors are logged and skipped so one bad entry cannot stop the sweep.
func (c *Cleaner) CleanupLocalNow() {
	threshold := time.Now().Add(-c.localMaxAge)
	deleted := 0

	err := filepath.Walk(c.localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			slog.Warn("Cleanup walk error", "path", path, "error", err)
			return nil
		}

		if info.IsDir() {
			return nil
		}

		if info.ModTime().Before(threshold) {
			if err := os.Remove(path); err != nil {
				slog.Warn("Failed to delete local file",
					"path", path,
					"error", err,
				)
			} else {
				deleted++
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Local cleanup error",
			"dir", c.localDir,
			"error", err,
		)
	}

	if deleted > 0 {
		slog.Info("Local cleanup completed",
			"deleted", deleted,
			"max_age", c.localMaxAge,
		)
	}
}

func (c *Cleaner) remoteLoop(ctx context.Context) {
	slog.Info("Starting remote cleanup",
		"max_age", c.remoteMaxAge,
		"interval", c.remoteInterval,
	)

	ticker := time.NewTicker(c.remoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupRemoteNow(ctx)
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		}
	}
}

// CleanupRemoteNow removes expired remote results.
func (c *Cleaner) CleanupRemoteNow(ctx context.Context) {
	deleted, err := c.remote.DeleteOlderThan(ctx, c.remoteMaxAge)
	if err != nil {
		slog.Error("Remote cleanup error", "error", err)
		return
	}

	if deleted > 0 {
		slog.Info("Remote cleanup completed",
			"deleted", deleted,
			"max_age", c.remoteMaxAge,
		)
	}
}
