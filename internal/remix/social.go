// internal/remix/social.go
package remix

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Platform is a social network a post can be written for.
type Platform string

const (
	PlatformX        Platform = "x"
	PlatformLinkedIn Platform = "linkedin"
	PlatformThreads  Platform = "threads"
	PlatformBluesky  Platform = "bluesky"
	PlatformMastodon Platform = "mastodon"
)

type platformSpec struct {
	title string
	limit int // characters
	style string
}

var platforms = map[Platform]platformSpec{
	PlatformX:        {"X", 280, "punchy, one idea, at most two hashtags"},
	PlatformLinkedIn: {"LinkedIn", 3000, "professional, short paragraphs, a closing question"},
	PlatformThreads:  {"Threads", 500, "conversational, light on hashtags"},
	PlatformBluesky:  {"Bluesky", 300, "friendly and direct, no hashtags"},
	PlatformMastodon: {"Mastodon", 500, "plain and informative, CamelCase hashtags"},
}

// AllPlatforms lists every supported platform in display order.
func AllPlatforms() []Platform {
	return []Platform{PlatformX, PlatformLinkedIn, PlatformThreads, PlatformBluesky, PlatformMastodon}
}

// ParsePlatform accepts a platform id or title, case-insensitively. "twitter"
// is accepted for X.
func ParsePlatform(s string) (Platform, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "twitter" {
		return PlatformX, nil
	}
	for p, spec := range platforms {
		if key == string(p) || key == strings.ToLower(spec.title) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Title is the display name of p.
func (p Platform) Title() string {
	if spec, ok := platforms[p]; ok {
		return spec.title
	}
	return string(p)
}

// Limit is the maximum post length in characters, or 0 if unknown.
func (p Platform) Limit() int {
	return platforms[p].limit
}

// BuildSocialPrompt asks for one post per platform, each under its own
// "### <Title>" heading so ParseSocialPosts can split them.
func BuildSocialPrompt(source string, targets []Platform) string {
	if len(targets) == 0 {
		targets = AllPlatforms()
	}

	var sb strings.Builder
	sb.WriteString("Rewrite the content below as social media posts, one for each platform listed.\n")
	sb.WriteString("Write each post under a heading of the form \"### <Platform>\" and output nothing else.\n")
	sb.WriteString("Respect each character limit strictly.\n\nPlatforms:\n")
	for _, p := range targets {
		spec := platforms[p]
		fmt.Fprintf(&sb, "- %s: at most %d characters; %s\n", p.Title(), spec.limit, spec.style)
	}
	sb.WriteString("\nContent:\n")
	sb.WriteString(strings.TrimSpace(source))
	return sb.String()
}

// ParseSocialPosts splits a model reply into posts by heading. Posts over
// the platform limit are truncated. Headings for unknown platforms are
// ignored.
func ParseSocialPosts(text string) map[Platform]string {
	posts := make(map[Platform]string)
	var current Platform
	var body []string

	flush := func() {
		if current == "" {
			return
		}
		post := strings.TrimSpace(strings.Join(body, "\n"))
		if post != "" {
			posts[current] = Truncate(post, current.Limit())
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			heading = strings.Trim(heading, "*: ")
			if p, err := ParsePlatform(heading); err == nil {
				flush()
				current, body = p, nil
				continue
			}
		}
		if current != "" {
			body = append(body, line)
		}
	}
	flush()
	return posts
}

// Truncate shortens s to at most limit runes, ending with an ellipsis when
// cut. A limit of 0 or less leaves s unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimRight(string(runes[:limit-1]), " \n")
	return cut + "…"
}
