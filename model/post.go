// Package model holds the content types shared by the storage, service and
// HTTP layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation is returned when a post or meta record is missing required fields.
var ErrValidation = errors.New("validation failed")

// Post is a single blog post. ID is assigned on create and never changes.
type Post struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Date          time.Time  `json:"date"`
	Summary       string     `json:"summary,omitempty"`
	Author        string     `json:"author,omitempty"`
	OriginalID    string     `json:"originalId,omitempty"`
	Slug          string     `json:"slug,omitempty"`
	Cover         string     `json:"cover,omitempty"`
	Tags          string     `json:"tags,omitempty"`
	DatePublished *time.Time `json:"datePublished,omitempty"`
}

// Validate checks the fields a post must carry before it is written.
func (p Post) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(p.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	return nil
}

// GroupKey is the identity used when collapsing re-imported copies of the
// same source post: the original id when set, the post's own id otherwise.
func (p Post) GroupKey() string {
	if p.OriginalID != "" {
		return p.OriginalID
	}
	return p.ID
}

// EffectiveDate is the publish date when known, else the modification date.
func (p Post) EffectiveDate() time.Time {
	if p.DatePublished != nil {
		return *p.DatePublished
	}
	return p.Date
}

// TagList splits the comma-separated tag string into trimmed, non-empty tags.
func (p Post) TagList() []string {
	var out []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// BlogMeta is the per-user settings record.
type BlogMeta struct {
	Title    string         `json:"title"`
	Settings map[string]any `json:"settings,omitempty"`
}

// DefaultBlogTitle is the title used when a user's meta has none.
func DefaultBlogTitle(username string) string {
	return username + " 블로그"
}
