package scrape

import (
	"errors"
	"regexp"
	"strings"
)

// TargetKind classifies what a raw chat input refers to.
type TargetKind string

const (
	TargetUsername  TargetKind = "username"
	TargetProfile   TargetKind = "profile"
	TargetSpotlight TargetKind = "spotlight"
)

// ErrUnrecognizedTarget is returned when input is neither a username nor a
// known Snapchat URL shape.
var ErrUnrecognizedTarget = errors.New("unrecognized target")

// Target is a classified request target.
type Target struct {
	Kind  TargetKind
	Value string // username or spotlight video id
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,20}$`)

	profilePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)snapchat\.com/add/([a-zA-Z0-9_.-]+)`),
		regexp.MustCompile(`(?i)snapchat\.com/s/([a-zA-Z0-9_.-]+)`),
		regexp.MustCompile(`(?i)snapchat\.com/([a-zA-Z0-9_.-]+)$`),
	}

	spotlightPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)spotlight/([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`(?i)video/([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`(?i)v=([a-zA-Z0-9_-]+)`),
	}
)

// ParseTarget classifies raw user input as a username, profile URL or
// Spotlight URL.
func ParseTarget(raw string) (Target, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Target{}, ErrUnrecognizedTarget
	}

	lower := strings.ToLower(text)

	if strings.Contains(lower, "snapchat.com/spotlight/") {
		for _, re := range spotlightPatterns {
			if m := re.FindStringSubmatch(text); len(m) > 1 {
				return Target{Kind: TargetSpotlight, Value: m[1]}, nil
			}
		}
		return Target{}, ErrUnrecognizedTarget
	}

	if strings.Contains(lower, "snapchat.com/") {
		for _, re := range profilePatterns {
			if m := re.FindStringSubmatch(text); len(m) > 1 {
				return Target{Kind: TargetProfile, Value: m[1]}, nil
			}
		}
		return Target{}, ErrUnrecognizedTarget
	}

	if usernameRe.MatchString(text) {
		return Target{Kind: TargetUsername, Value: text}, nil
	}

	return Target{}, ErrUnrecognizedTarget
}
