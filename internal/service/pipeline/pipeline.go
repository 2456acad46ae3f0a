// Package pipeline wires scraping, transfer, watermark removal and result
// storage into the execution unit run by the scheduler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

var (
	// ErrNothingDownloaded is returned when no media item could be fetched.
	ErrNothingDownloaded = errors.New("failed to download any content")
)

// MediaResolver resolves a raw target to media descriptors. Satisfied by
// scrape.Service.
type MediaResolver interface {
	Resolve(ctx context.Context, rawTarget string) ([]domain.MediaDescriptor, error)
}

// Downloader fetches a batch of descriptors. Satisfied by transfer.Manager.
type Downloader interface {
	DownloadBatch(ctx context.Context, descriptors []domain.MediaDescriptor, requesterID int64) []string
}

// Processor strips the watermark from one file. Satisfied by process.Remover.
type Processor interface {
	Remove(ctx context.Context, inputPath string) (string, error)
}

// ResultStore uploads processed files for link-based delivery. Satisfied by
// r2.Client.
type ResultStore interface {
	Upload(ctx context.Context, localPath, key string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config holds pipeline configuration.
type Config struct {
	TempDir string
	// MaxInlineSize is the total-bytes threshold above which results are
	// uploaded to the store instead of staying on local disk for inline
	// chat delivery.
	MaxInlineSize int64
	PresignExpiry time.Duration
}

// Pipeline is the end-to-end execution for one job. Processor and store are
// optional stages.
type Pipeline struct {
	config    *Config
	resolver  MediaResolver
	transfers Downloader
	processor Processor
	store     ResultStore
}

// New creates a Pipeline. processor and store may be nil.
func New(config *Config, resolver MediaResolver, transfers Downloader, processor Processor, store ResultStore) *Pipeline {
	if config.PresignExpiry <= 0 {
		config.PresignExpiry = 15 * time.Minute
	}
	return &Pipeline{
		config:    config,
		resolver:  resolver,
		transfers: transfers,
		processor: processor,
		store:     store,
	}
}

// Execute resolves the job target, downloads the media batch, strips
// watermarks and returns the result location. It matches
// scheduler.Executor.
func (p *Pipeline) Execute(ctx context.Context, job domain.Job) (string, error) {
	descriptors, err := p.resolver.Resolve(ctx, job.Target)
	if err != nil {
		return "", err
	}
	// Nothing to download is not a transfer failure; it just yields an
	// empty job result.
	if len(descriptors) == 0 {
		return "", nil
	}

	if job.Kind != domain.MediaKindAuto && job.Kind != "" {
		descriptors = filterKind(descriptors, job.Kind)
	}

	paths := p.transfers.DownloadBatch(ctx, descriptors, job.RequesterID)
	if len(paths) == 0 {
		return "", ErrNothingDownloaded
	}

	jobDir := filepath.Join(p.config.TempDir, job.ID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}

	var total int64
	var results []string
	for _, path := range paths {
		final := p.processOne(ctx, path)

		dest := filepath.Join(jobDir, filepath.Base(final))
		if err := os.Rename(final, dest); err != nil {
			slog.Warn("Failed to move result file",
				"job_id", job.ID,
				"path", final,
				"error", err,
			)
			continue
		}
		if info, err := os.Stat(dest); err == nil {
			total += info.Size()
		}
		results = append(results, dest)
	}

	if len(results) == 0 {
		return "", ErrNothingDownloaded
	}

	if p.store != nil && p.config.MaxInlineSize > 0 && total > p.config.MaxInlineSize {
		return p.uploadResults(ctx, job.ID, results)
	}
	return jobDir, nil
}

// processOne applies watermark removal to a single file, falling back to the
// raw download when removal fails. The raw file is deleted once a processed
// copy replaces it.
func (p *Pipeline) processOne(ctx context.Context, path string) string {
	if p.processor == nil {
		return path
	}

	processed, err := p.processor.Remove(ctx, path)
	if err != nil {
		slog.Warn("Watermark removal failed, keeping original",
			"path", path,
			"error", err,
		)
		return path
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Debug("Failed to remove raw download", "path", path, "error", err)
	}
	return processed
}

// uploadResults pushes result files to the store under the job id prefix.
// Single-file jobs resolve to a presigned URL; multi-file jobs resolve to
// the key prefix.
func (p *Pipeline) uploadResults(ctx context.Context, jobID string, results []string) (string, error) {
	var keys []string
	for _, path := range results {
		key := jobID + "/" + filepath.Base(path)
		if err := p.store.Upload(ctx, path, key); err != nil {
			return "", fmt.Errorf("result upload: %w", err)
		}
		keys = append(keys, key)

		if err := os.Remove(path); err != nil {
			slog.Debug("Failed to remove uploaded file", "path", path, "error", err)
		}
	}

	if len(keys) == 1 {
		url, err := p.store.PresignedURL(ctx, keys[0], p.config.PresignExpiry)
		if err != nil {
			return "", fmt.Errorf("presign result: %w", err)
		}
		return url, nil
	}
	return jobID + "/", nil
}

func filterKind(descriptors []domain.MediaDescriptor, kind domain.MediaKind) []domain.MediaDescriptor {
	var out []domain.MediaDescriptor
	for _, d := range descriptors {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	// An over-strict filter should not turn a resolvable target into an
	// empty batch.
	if len(out) == 0 {
		return descriptors
	}
	return out
}
