package context

import (
	"fmt"
	"strings"

	"threex/internal/models"
)

// Set is the context attached to the next prompts: files, directory trees,
// images and an optional system prompt. The zero value is empty.
type Set struct {
	SystemPrompt string
	items        []Attachment
}

// Add loads path and attaches it, replacing an earlier load of the same path.
func (s *Set) Add(path string) (Attachment, error) {
	att, err := Load(path)
	if err != nil {
		return Attachment{}, err
	}
	for i, existing := range s.items {
		if existing.Path == att.Path {
			s.items[i] = att
			return att, nil
		}
	}
	if att.Kind == KindImage && s.imageCount() >= models.MaxImages {
		return Attachment{}, fmt.Errorf("at most %d images can be attached", models.MaxImages)
	}
	s.items = append(s.items, att)
	return att, nil
}

// Remove drops the attachment whose path ends with suffix.
func (s *Set) Remove(suffix string) bool {
	for i, att := range s.items {
		if att.Path == suffix || strings.HasSuffix(att.Path, "/"+suffix) {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops all attachments; the system prompt is kept.
func (s *Set) Clear() {
	s.items = nil
}

// Items returns a copy of the attachments in load order.
func (s *Set) Items() []Attachment {
	return append([]Attachment(nil), s.items...)
}

func (s *Set) imageCount() int {
	n := 0
	for _, att := range s.items {
		if att.Kind == KindImage {
			n++
		}
	}
	return n
}

// ChatContext renders the set for a request, or nil when nothing is attached.
func (s *Set) ChatContext() *models.ChatContext {
	ctx := &models.ChatContext{SystemPrompt: s.SystemPrompt}
	var blocks []string
	for _, att := range s.items {
		switch att.Kind {
		case KindImage:
			ctx.Images = append(ctx.Images, models.Image{MimeType: att.MimeType, Data: att.Data})
		default:
			blocks = append(blocks, att.Text)
		}
	}
	ctx.Text = strings.Join(blocks, "\n")
	if ctx.IsEmpty() {
		return nil
	}
	return ctx
}

// Summary lists the attachments for display.
func (s *Set) Summary() string {
	if len(s.items) == 0 && s.SystemPrompt == "" {
		return "No context attached."
	}
	var sb strings.Builder
	if s.SystemPrompt != "" {
		fmt.Fprintf(&sb, "System prompt: %s\n", s.SystemPrompt)
	}
	for _, att := range s.items {
		switch att.Kind {
		case KindImage:
			fmt.Fprintf(&sb, "[%s] %s (%s, %d bytes)\n", att.Kind, att.Path, att.MimeType, att.Size)
		case KindDir:
			fmt.Fprintf(&sb, "[%s] %s\n", att.Kind, att.Path)
		default:
			fmt.Fprintf(&sb, "[%s] %s (%d bytes)\n", att.Kind, att.Path, att.Size)
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
