package hashnode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// Document is one source post before normalization: its front matter
// fields and body, plus the name used as a fallback original id.
type Document struct {
	Name   string
	Fields map[string]any
	Body   string
}

// Source yields the documents to import.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// DirSource reads every *.md file directly inside Dir.
type DirSource struct {
	Dir string
	Log zerolog.Logger
}

// Documents implements Source. Files without a front matter block are
// skipped.
func (s DirSource) Documents(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	s.Log.Info().Int("files", len(names)).Str("dir", s.Dir).Msg("found markdown files")

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.Dir, name))
		if err != nil {
			s.Log.Warn().Err(err).Str("file", name).Msg("read source file")
			continue
		}
		header, body, ok := SplitFrontMatter(string(data))
		if !ok {
			s.Log.Warn().Str("file", name).Msg("no front matter, skipped")
			continue
		}
		docs = append(docs, Document{
			Name:   strings.TrimSuffix(name, filepath.Ext(name)),
			Fields: ParseFrontMatter(header),
			Body:   body,
		})
	}
	return docs, nil
}

// FeedSource reads the posts published in a blog's RSS or Atom feed. Item
// bodies are HTML; their <img> sources are downloaded like markdown images.
type FeedSource struct {
	URL    string
	Client *http.Client
}

// Documents implements Source.
func (s FeedSource) Documents(ctx context.Context) ([]Document, error) {
	fp := gofeed.NewParser()
	if s.Client != nil {
		fp.Client = s.Client
	}
	feed, err := fp.ParseURLWithContext(s.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.URL, err)
	}

	docs := make([]Document, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		fields := map[string]any{"title": it.Title}
		if it.GUID != "" {
			fields["cuid"] = it.GUID
		}
		if slug := slugFromLink(it.Link); slug != "" {
			fields["slug"] = slug
		}
		if len(it.Categories) > 0 {
			tags := make([]any, 0, len(it.Categories))
			for _, c := range it.Categories {
				tags = append(tags, c)
			}
			fields["tags"] = tags
		}
		if it.PublishedParsed != nil {
			fields["datePublished"] = it.PublishedParsed.UTC().Format(time.RFC3339)
		}
		body := it.Content
		if body == "" {
			body = it.Description
		}
		// gofeed falls back to the first <img> of the body for Image.
		if it.Image != nil && it.Image.URL != "" && !strings.Contains(body, it.Image.URL) {
			fields["cover"] = it.Image.URL
		}
		name := it.GUID
		if name == "" {
			name = it.Link
		}
		docs = append(docs, Document{Name: name, Fields: fields, Body: strings.TrimSpace(body)})
	}
	return docs, nil
}

func slugFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	return path.Base(strings.TrimSuffix(u.Path, "/"))
}
