// Package scrape resolves usernames and Spotlight links to downloadable
// media descriptors by fetching the public page and trying progressively
// cruder extraction strategies.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

// ErrNoMedia is returned when a page yields no downloadable media.
var ErrNoMedia = errors.New("no public media found")

// PageFetcher retrieves a page body. Satisfied by fetch.Client.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// StoryCache caches resolved descriptors per username. Satisfied by
// cache.StoryCache.
type StoryCache interface {
	Get(username string) ([]domain.MediaDescriptor, bool)
	Set(username string, stories []domain.MediaDescriptor)
}

// Config holds scrape service configuration.
type Config struct {
	StoryURL     string // format string taking the username
	SpotlightURL string // format string taking the video id
	MaxItems     int    // cap on descriptors per page
}

// DefaultConfig returns the default endpoints.
func DefaultConfig() *Config {
	return &Config{
		StoryURL:     "https://story.snapchat.com/s/%s",
		SpotlightURL: "https://www.snapchat.com/spotlight/%s",
		MaxItems:     10,
	}
}

// Service turns page fetches into lists of media descriptors.
type Service struct {
	config  *Config
	fetcher PageFetcher
	cache   StoryCache
}

// New creates a scrape Service. The cache may be nil.
func New(config *Config, fetcher PageFetcher, cache StoryCache) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config:  config,
		fetcher: fetcher,
		cache:   cache,
	}
}

// UserStories fetches all public stories for a username. Results are served
// from the cache when fresh. An empty page is not an error to the pipeline
// caller, but is reported as ErrNoMedia so the job surfaces a useful message.
func (s *Service) UserStories(ctx context.Context, username string) ([]domain.MediaDescriptor, error) {
	if s.cache != nil {
		if stories, ok := s.cache.Get(username); ok {
			slog.Debug("Story cache hit", "username", username, "items", len(stories))
			return stories, nil
		}
	}

	url := fmt.Sprintf(s.config.StoryURL, username)
	html, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("story page fetch: %w", err)
	}

	stories := s.extract(html)
	if len(stories) == 0 {
		return nil, ErrNoMedia
	}

	if s.cache != nil {
		s.cache.Set(username, stories)
	}

	slog.Info("Resolved stories",
		"username", username,
		"items", len(stories),
	)
	return stories, nil
}

// extract runs discovery strategies from most to least structured and
// merges their contributions, deduplicated by URL.
func (s *Service) extract(html []byte) []domain.MediaDescriptor {
	if stories := dedupe(parseJSONLD(html), s.config.MaxItems); len(stories) > 0 {
		return stories
	}
	if stories := dedupe(parseInitialState(html), s.config.MaxItems); len(stories) > 0 {
		return stories
	}
	return dedupe(parseRawPatterns(html), s.config.MaxItems)
}

// SpotlightVideo fetches a single Spotlight video by id.
func (s *Service) SpotlightVideo(ctx context.Context, videoID string) (*domain.MediaDescriptor, error) {
	url := fmt.Sprintf(s.config.SpotlightURL, videoID)
	html, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("spotlight page fetch: %w", err)
	}

	for _, re := range spotlightPatternsHTML {
		if m := re.FindSubmatch(html); m != nil {
			return &domain.MediaDescriptor{
				URL:      string(m[1]),
				Kind:     domain.MediaKindVideo,
				Metadata: &domain.MediaMetadata{SourceID: videoID},
			}, nil
		}
	}

	return nil, ErrNoMedia
}

// Resolve classifies a raw target and returns its media descriptors.
func (s *Service) Resolve(ctx context.Context, rawTarget string) ([]domain.MediaDescriptor, error) {
	target, err := ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}

	switch target.Kind {
	case TargetSpotlight:
		desc, err := s.SpotlightVideo(ctx, target.Value)
		if err != nil {
			return nil, err
		}
		return []domain.MediaDescriptor{*desc}, nil
	default:
		return s.UserStories(ctx, target.Value)
	}
}
