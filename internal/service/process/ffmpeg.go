// Package process strips overlay watermarks from downloaded media by
// shelling out to ffmpeg.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedMedia is returned for files the remover cannot handle.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrProcessingFailed is returned when every removal strategy failed.
	ErrProcessingFailed = errors.New("watermark removal failed")
)

var (
	videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".avi": true}
	imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}
)

// Filter chains tried in order. Crop shaves the overlay band off the edges;
// delogo/blur degrade the region when cropping is rejected by the stream.
const (
	videoCropFilter = "crop=iw-50:ih-50:25:25"
	videoBlurFilter = "boxblur=5:5"
	imageDelogo     = "delogo=x=iw-100:y=ih-50:w=80:h=30"
	imageCropFilter = "crop=iw:ih-50:0:0"
)

// Config holds watermark remover configuration.
type Config struct {
	FFmpegPath string
	OutputDir  string
	Timeout    time.Duration
}

// DefaultConfig returns the default remover configuration.
func DefaultConfig() *Config {
	return &Config{
		FFmpegPath: "ffmpeg",
		OutputDir:  "./tmp",
		Timeout:    2 * time.Minute,
	}
}

// Remover removes overlay watermarks from images and videos.
type Remover struct {
	config *Config
}

// New creates a Remover with the given configuration.
func New(config *Config) *Remover {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	return &Remover{config: config}
}

// CheckFFmpeg verifies that ffmpeg is installed and accessible.
func (r *Remover) CheckFFmpeg() error {
	cmd := exec.Command(r.config.FFmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// Remove strips the watermark from the file at inputPath and returns the
// path of the processed copy. The input file is left in place; the caller
// owns both files.
func (r *Remover) Remove(ctx context.Context, inputPath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(inputPath))

	var filters []string
	switch {
	case videoExtensions[ext]:
		filters = []string{videoCropFilter, videoBlurFilter}
	case imageExtensions[ext]:
		filters = []string{imageDelogo, imageCropFilter}
	default:
		return "", ErrUnsupportedMedia
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(r.config.OutputDir, uuid.New().String()+ext)

	var lastErr error
	for _, filter := range filters {
		if err := r.runFFmpeg(ctx, inputPath, outputPath, filter, videoExtensions[ext]); err != nil {
			lastErr = err
			os.Remove(outputPath)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		info, err := os.Stat(outputPath)
		if err != nil || info.Size() == 0 {
			lastErr = ErrProcessingFailed
			os.Remove(outputPath)
			continue
		}
		return outputPath, nil
	}

	if lastErr == nil {
		lastErr = ErrProcessingFailed
	}
	return "", lastErr
}

func (r *Remover) runFFmpeg(ctx context.Context, input, output, filter string, copyAudio bool) error {
	args := []string{"-i", input, "-vf", filter}
	if copyAudio {
		args = append(args, "-c:a", "copy")
	}
	args = append(args, "-y", output)

	cmd := exec.CommandContext(ctx, r.config.FFmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %s", truncate(string(out), 200))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
