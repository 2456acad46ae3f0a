package scrape

import (
	"testing"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

const jsonLDPage = `<html><head>
<script type="application/ld+json">
[
  {"@type":"VideoObject","contentUrl":"https://cdn.sc.com/story1.mp4","duration":"PT10S","width":720,"height":1280},
  {"@type":"ImageObject","contentUrl":"https://cdn.sc.com/story2.jpg","width":"1080","height":"1920"},
  {"@type":"Organization","name":"ignored"}
]
</script>
</head><body></body></html>`

const jsonLDSinglePage = `<html><head>
<script type="application/ld+json">
{"@type":"VideoObject","contentUrl":"https://cdn.sc.com/only.mp4","uploadDate":"2024-01-01"}
</script>
</head></html>`

const initialStatePage = `<html><body>
<script>
window.__INITIAL_STATE__ = {"stories":[
  {"id":"s1","mediaUrl":"https://cdn.sc.com/video/a.mp4"},
  {"id":"s2","imageUrl":"https://cdn.sc.com/b.jpg"},
  {"id":"s3"}
]};
</script>
</body></html>`

const rawPatternPage = `<html><body>
<video src="https://cdn.sc.com/raw1.mp4?sig=x"></video>
<img src="https://cdn.sc.com/raw2.jpg" />
<div data-video-url="https://cdn.sc.com/raw1.mp4?sig=x"></div>
</body></html>`

func TestParseJSONLD(t *testing.T) {
	items := parseJSONLD([]byte(jsonLDPage))
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	if items[0].URL != "https://cdn.sc.com/story1.mp4" || items[0].Kind != domain.MediaKindVideo {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[0].Metadata == nil || items[0].Metadata.Width != 720 || items[0].Metadata.Duration != "PT10S" {
		t.Fatalf("video metadata not extracted: %+v", items[0].Metadata)
	}

	// Numeric strings in markup must parse like numbers.
	if items[1].Kind != domain.MediaKindImage || items[1].Metadata.Width != 1080 {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestParseJSONLDSingleObject(t *testing.T) {
	items := parseJSONLD([]byte(jsonLDSinglePage))
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Metadata.Timestamp != "2024-01-01" {
		t.Fatalf("upload date not carried: %+v", items[0].Metadata)
	}
}

func TestParseJSONLDNoScript(t *testing.T) {
	if items := parseJSONLD([]byte("<html><body>nothing here</body></html>")); items != nil {
		t.Fatalf("expected nil, got %+v", items)
	}
}

func TestParseInitialState(t *testing.T) {
	items := parseInitialState([]byte(initialStatePage))
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Kind != domain.MediaKindVideo {
		t.Fatalf("url containing 'video' should classify as video: %+v", items[0])
	}
	if items[0].Metadata == nil || items[0].Metadata.SourceID != "s1" {
		t.Fatalf("source id not carried: %+v", items[0].Metadata)
	}
	if items[1].Kind != domain.MediaKindImage {
		t.Fatalf("expected image kind: %+v", items[1])
	}
}

func TestParseInitialStateAbsent(t *testing.T) {
	if items := parseInitialState([]byte("<html></html>")); items != nil {
		t.Fatalf("expected nil, got %+v", items)
	}
}

func TestParseRawPatterns(t *testing.T) {
	items := parseRawPatterns([]byte(rawPatternPage))

	var videos, images int
	for _, item := range items {
		switch item.Kind {
		case domain.MediaKindVideo:
			videos++
		case domain.MediaKindImage:
			images++
		}
	}
	if videos < 1 || images < 1 {
		t.Fatalf("expected both kinds, got %d videos and %d images", videos, images)
	}
}

func TestDedupe(t *testing.T) {
	items := []domain.MediaDescriptor{
		{URL: "https://a/1.mp4", Kind: domain.MediaKindVideo},
		{URL: "https://a/2.jpg", Kind: domain.MediaKindImage},
		{URL: "https://a/1.mp4", Kind: domain.MediaKindVideo},
		{URL: ""},
		{URL: "https://a/3.jpg", Kind: domain.MediaKindImage},
	}

	out := dedupe(items, 10)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique items, got %d", len(out))
	}
	if out[0].URL != "https://a/1.mp4" || out[2].URL != "https://a/3.jpg" {
		t.Fatalf("first-seen order not preserved: %+v", out)
	}
}

func TestDedupeCap(t *testing.T) {
	var items []domain.MediaDescriptor
	for i := 0; i < 25; i++ {
		items = append(items, domain.MediaDescriptor{URL: string(rune('a'+i)) + ".mp4"})
	}

	if out := dedupe(items, 10); len(out) != 10 {
		t.Fatalf("expected cap at 10, got %d", len(out))
	}
}
