// Package transfer downloads batches of media descriptors concurrently under
// a fixed worker cap, with per-file size enforcement and an aggregate batch
// timeout.
package transfer

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

const chunkSize = 8192

var (
	// ErrFileTooLarge is returned when a download exceeds the size ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	// ErrEmptyFile is returned when a completed download has zero bytes.
	ErrEmptyFile = errors.New("downloaded file is empty")
)

// Getter issues a single streaming GET. Satisfied by fetch.Client.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Config holds transfer manager configuration.
type Config struct {
	MaxConcurrent  int           // worker pool size
	MaxFileSize    int64         // per-file byte ceiling
	RequestTimeout time.Duration // per-item fetch timeout
	BatchTimeout   time.Duration // aggregate wall-clock deadline
	TempDir        string
}

// DefaultConfig returns the default transfer configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:  5,
		MaxFileSize:    100 * 1024 * 1024,
		RequestTimeout: 30 * time.Second,
		BatchTimeout:   300 * time.Second,
		TempDir:        "./tmp",
	}
}

// Manager downloads media descriptors under a bounded worker pool.
type Manager struct {
	config *Config
	client Getter
	slots  chan struct{}
}

// New creates a Manager with the given configuration and HTTP client.
func New(config *Config, client Getter) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}

	return &Manager{
		config: config,
		client: client,
		slots:  make(chan struct{}, config.MaxConcurrent),
	}
}

// DownloadBatch downloads all descriptors concurrently and returns the local
// paths of the items that succeeded, in no particular order. Individual
// failures only shrink the result set; if the aggregate deadline elapses the
// whole batch reports empty.
func (m *Manager) DownloadBatch(ctx context.Context, descriptors []domain.MediaDescriptor, requesterID int64) []string {
	if len(descriptors) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.BatchTimeout)
	defer cancel()

	results := make([]domain.TransferResult, len(descriptors))
	var wg sync.WaitGroup

	for i, desc := range descriptors {
		wg.Add(1)
		go func(idx int, d domain.MediaDescriptor) {
			defer wg.Done()
			res, err := m.downloadOne(ctx, d, requesterID, idx)
			if err != nil {
				slog.Debug("Item download failed",
					"url", d.URL,
					"index", idx,
					"error", err,
				)
				return
			}
			results[idx] = res
		}(i, desc)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Batch download timed out",
			"requester_id", requesterID,
			"items", len(descriptors),
			"timeout", m.config.BatchTimeout,
		)
		return nil
	}

	var paths []string
	for _, res := range results {
		if !res.Succeeded {
			continue
		}
		if _, err := os.Stat(res.LocalPath); err != nil {
			continue
		}
		paths = append(paths, res.LocalPath)
	}

	slog.Info("Batch download finished",
		"requester_id", requesterID,
		"requested", len(descriptors),
		"succeeded", len(paths),
	)
	return paths
}

// downloadOne fetches a single descriptor to a uniquely named temp file.
// The pool slot is released on every exit path.
func (m *Manager) downloadOne(ctx context.Context, desc domain.MediaDescriptor, requesterID int64, index int) (domain.TransferResult, error) {
	var zero domain.TransferResult

	if err := validateDescriptor(desc); err != nil {
		return zero, err
	}

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-m.slots }()

	if err := os.MkdirAll(m.config.TempDir, 0755); err != nil {
		return zero, fmt.Errorf("failed to create temp directory: %w", err)
	}

	path := filepath.Join(m.config.TempDir, m.filename(desc, requesterID, index))

	reqCtx := ctx
	if m.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, m.config.RequestTimeout)
		defer cancel()
	}

	resp, err := m.client.Get(reqCtx, desc.URL)
	if err != nil {
		return zero, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	written, err := m.streamToFile(resp.Body, path)
	if err != nil {
		// No partial files survive a failed write.
		os.Remove(path)
		return zero, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return zero, fmt.Errorf("downloaded file not found: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(path)
		return zero, ErrEmptyFile
	}

	return domain.TransferResult{
		LocalPath: path,
		ByteSize:  written,
		Succeeded: true,
	}, nil
}

// streamToFile writes body to path in fixed-size chunks, aborting once the
// cumulative size passes the ceiling.
func (m *Manager) streamToFile(body io.Reader, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				return written, fmt.Errorf("write failed: %w", err)
			}
			written += int64(n)
			if m.config.MaxFileSize > 0 && written > m.config.MaxFileSize {
				f.Close()
				return written, ErrFileTooLarge
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			return written, fmt.Errorf("read failed: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close failed: %w", err)
	}
	return written, nil
}

// filename derives a name unique across concurrent requesters and batch
// items: requester id, coarse timestamp, short URL hash and batch index.
func (m *Manager) filename(desc domain.MediaDescriptor, requesterID int64, index int) string {
	hash := fmt.Sprintf("%x", md5.Sum([]byte(desc.URL)))[:8]
	return fmt.Sprintf("%d_%d_%s_%d%s",
		requesterID,
		time.Now().Unix(),
		hash,
		index,
		extension(desc),
	)
}

// extension infers the file extension from the URL path, falling back to a
// default for the declared media kind.
func extension(desc domain.MediaDescriptor) string {
	if u, err := url.Parse(desc.URL); err == nil {
		path := strings.ToLower(u.Path)
		for _, ext := range []string{".mp4", ".mov", ".jpg", ".jpeg", ".png", ".gif"} {
			if strings.HasSuffix(path, ext) {
				if ext == ".jpeg" {
					return ".jpg"
				}
				return ext
			}
		}
	}

	if desc.Kind == domain.MediaKindVideo {
		return ".mp4"
	}
	return ".jpg"
}

func validateDescriptor(desc domain.MediaDescriptor) error {
	if strings.TrimSpace(desc.URL) == "" {
		return domain.ErrInvalidDescriptor
	}
	u, err := url.Parse(desc.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domain.ErrInvalidDescriptor
	}
	return nil
}
