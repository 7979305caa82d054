package poststore

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slogengine/slogengine/model"
)

// DateLayout is the timestamp-with-offset format used in front matter.
const DateLayout = "2006-01-02T15:04:05Z07:00"

// Supported storage formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

var errNoFrontMatter = errors.New("front matter not found")

// Codec converts a post to and from its file representation.
type Codec interface {
	Ext() string
	Encode(p model.Post) ([]byte, error)
	Decode(data []byte) (model.Post, error)
}

// CodecFor returns the codec for a storage format name.
func CodecFor(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatMarkdown, "md", "":
		return MarkdownCodec{}, nil
	case FormatJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown post format %q", format)
	}
}

// JSONCodec stores the whole post as indented JSON.
type JSONCodec struct{}

func (JSONCodec) Ext() string { return ".json" }

func (JSONCodec) Encode(p model.Post) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

func (JSONCodec) Decode(data []byte) (model.Post, error) {
	var p model.Post
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Post{}, err
	}
	return p, nil
}

// MarkdownCodec stores a YAML front matter block followed by the raw body.
type MarkdownCodec struct{}

func (MarkdownCodec) Ext() string { return ".md" }

var reFrontMatter = regexp.MustCompile(`(?s)^---[ \t]*\r?\n(.*?)\r?\n---[ \t]*\r?\n(.*)$`)

// frontMatter fixes the key order of the written header.
type frontMatter struct {
	Title         string `yaml:"title"`
	Date          string `yaml:"date"`
	Summary       string `yaml:"summary"`
	Author        string `yaml:"author"`
	OriginalID    string `yaml:"originalId"`
	Slug          string `yaml:"slug"`
	Cover         string `yaml:"cover"`
	Tags          string `yaml:"tags"`
	DatePublished string `yaml:"datePublished,omitempty"`
}

func (MarkdownCodec) Encode(p model.Post) ([]byte, error) {
	fm := frontMatter{
		Title:      p.Title,
		Date:       p.Date.Format(DateLayout),
		Summary:    p.Summary,
		Author:     p.Author,
		OriginalID: p.OriginalID,
		Slug:       p.Slug,
		Cover:      p.Cover,
		Tags:       p.Tags,
	}
	if p.DatePublished != nil {
		fm.DatePublished = p.DatePublished.Format(DateLayout)
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n")
	b.WriteString(p.Content)
	return []byte(b.String()), nil
}

func (MarkdownCodec) Decode(data []byte) (model.Post, error) {
	m := reFrontMatter.FindSubmatch(data)
	if m == nil {
		return model.Post{}, errNoFrontMatter
	}
	fields := map[string]any{}
	if err := yaml.Unmarshal(m[1], &fields); err != nil {
		return model.Post{}, fmt.Errorf("decode front matter: %w", err)
	}
	p := model.Post{
		Title:      StringField(fields, "title"),
		Content:    string(m[2]),
		Summary:    StringField(fields, "summary"),
		Author:     StringField(fields, "author"),
		OriginalID: StringField(fields, "originalId"),
		Slug:       StringField(fields, "slug"),
		Cover:      StringField(fields, "cover"),
		Tags:       StringField(fields, "tags"),
	}
	if d, ok := TimeField(fields, "date"); ok {
		p.Date = d
	}
	if d, ok := TimeField(fields, "datePublished"); ok {
		p.DatePublished = &d
	}
	return p, nil
}

// StringField reads key from a loosely typed front matter map. Missing keys
// and nulls yield ""; scalars are formatted; lists are joined with ", ".
func StringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(DateLayout)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// TimeField reads key as a timestamp, accepting YAML timestamps and the
// common string layouts. ok is false when the key is absent or unparseable.
func TimeField(fields map[string]any, key string) (time.Time, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	return ParseTime(StringField(fields, key))
}

var timeLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime tries the layouts posts have been written with over time.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
