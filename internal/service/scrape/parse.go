package scrape

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

// flexInt accepts JSON numbers and numeric strings; structured-data markup
// is inconsistent about which it emits for dimensions.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

type jsonLDItem struct {
	Type       string  `json:"@type"`
	ContentURL string  `json:"contentUrl"`
	Duration   string  `json:"duration"`
	UploadDate string  `json:"uploadDate"`
	Width      flexInt `json:"width"`
	Height     flexInt `json:"height"`
}

// parseJSONLD extracts media from JSON-LD structured data blocks.
func parseJSONLD(html []byte) []domain.MediaDescriptor {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	var out []domain.MediaDescriptor
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		var items []jsonLDItem
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			var single jsonLDItem
			if err := json.Unmarshal([]byte(raw), &single); err != nil {
				return
			}
			items = []jsonLDItem{single}
		}

		for _, item := range items {
			if item.ContentURL == "" {
				continue
			}
			kind := domain.MediaKindImage
			if item.Type == "VideoObject" {
				kind = domain.MediaKindVideo
			} else if item.Type != "ImageObject" {
				continue
			}
			out = append(out, domain.MediaDescriptor{
				URL:  item.ContentURL,
				Kind: kind,
				Metadata: &domain.MediaMetadata{
					Width:     int(item.Width),
					Height:    int(item.Height),
					Duration:  item.Duration,
					Timestamp: item.UploadDate,
				},
			})
		}
	})
	return out
}

var initialStateRe = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\});`)

type stateItem struct {
	ID       string `json:"id"`
	MediaURL string `json:"mediaUrl"`
	VideoURL string `json:"videoUrl"`
	ImageURL string `json:"imageUrl"`
}

func (i stateItem) url() string {
	switch {
	case i.MediaURL != "":
		return i.MediaURL
	case i.VideoURL != "":
		return i.VideoURL
	default:
		return i.ImageURL
	}
}

// parseInitialState extracts media from an embedded JavaScript state blob.
func parseInitialState(html []byte) []domain.MediaDescriptor {
	m := initialStateRe.FindSubmatch(html)
	if m == nil {
		return nil
	}

	var state map[string]json.RawMessage
	if err := json.Unmarshal(m[1], &state); err != nil {
		return nil
	}

	var out []domain.MediaDescriptor
	for _, key := range []string{"story", "stories", "media", "items"} {
		raw, ok := state[key]
		if !ok {
			continue
		}

		var items []stateItem
		if err := json.Unmarshal(raw, &items); err != nil {
			var single stateItem
			if err := json.Unmarshal(raw, &single); err != nil {
				continue
			}
			items = []stateItem{single}
		}

		for _, item := range items {
			u := item.url()
			if u == "" {
				continue
			}
			kind := domain.MediaKindImage
			if strings.Contains(u, "video") {
				kind = domain.MediaKindVideo
			}
			desc := domain.MediaDescriptor{URL: u, Kind: kind}
			if item.ID != "" {
				desc.Metadata = &domain.MediaMetadata{SourceID: item.ID}
			}
			out = append(out, desc)
		}
	}
	return out
}

var (
	videoURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"videoUrl":"(https://[^"]+\.mp4[^"]*)"`),
		regexp.MustCompile(`(?i)src="(https://[^"]+\.mp4[^"]*)"`),
		regexp.MustCompile(`(?i)data-video-url="(https://[^"]+\.mp4[^"]*)"`),
	}
	imageURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"imageUrl":"(https://[^"]+\.jpg[^"]*)"`),
		regexp.MustCompile(`(?i)src="(https://[^"]+\.jpg[^"]*)"`),
		regexp.MustCompile(`(?i)data-image-url="(https://[^"]+\.jpg[^"]*)"`),
	}
	spotlightPatternsHTML = []*regexp.Regexp{
		regexp.MustCompile(`"videoUrl":"(https://[^"]+\.mp4[^"]*)"`),
		regexp.MustCompile(`property="og:video" content="(https://[^"]+\.mp4[^"]*)"`),
		regexp.MustCompile(`<video[^>]+src="(https://[^"]+\.mp4[^"]*)"`),
	}
)

// parseRawPatterns is the last-resort scraper: bare URL patterns in page
// source.
func parseRawPatterns(html []byte) []domain.MediaDescriptor {
	var out []domain.MediaDescriptor
	for _, re := range videoURLPatterns {
		for _, m := range re.FindAllSubmatch(html, -1) {
			out = append(out, domain.MediaDescriptor{URL: string(m[1]), Kind: domain.MediaKindVideo})
		}
	}
	for _, re := range imageURLPatterns {
		for _, m := range re.FindAllSubmatch(html, -1) {
			out = append(out, domain.MediaDescriptor{URL: string(m[1]), Kind: domain.MediaKindImage})
		}
	}
	return out
}

// dedupe suppresses duplicate URLs contributed by multiple discovery
// strategies, preserving first-seen order, and caps the result at limit.
func dedupe(items []domain.MediaDescriptor, limit int) []domain.MediaDescriptor {
	seen := make(map[string]bool, len(items))
	var out []domain.MediaDescriptor
	for _, item := range items {
		if item.URL == "" || seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		out = append(out, item)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
