package poststore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slogengine/slogengine/model"
)

func setupTestStore(t *testing.T, codec Codec) *Store {
	t.Helper()
	return NewStore(Layout{Root: t.TempDir()}, codec, zerolog.Nop())
}

func samplePost() model.Post {
	published := time.Date(2021, 5, 23, 3, 28, 51, 0, time.UTC)
	return model.Post{
		ID:            "3f1c0c2e-8d7a-4a4e-9f1b-0a7f3d3c2b10",
		Title:         `Hello: "quoted" world`,
		Content:       "\n# Heading\n\nBody with ![img](/blogs/u/posts/x/a.png)\n---\nafter rule\n",
		Date:          time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Summary:       "A summary",
		Author:        "u",
		OriginalID:    "ckp0abc",
		Slug:          "hello-world",
		Cover:         "/blogs/u/posts/x/cover.jpg",
		Tags:          "go, testing",
		DatePublished: &published,
	}
}

func TestSaveAndGetPostRoundTrip(t *testing.T) {
	for _, codec := range []Codec{MarkdownCodec{}, JSONCodec{}} {
		t.Run(codec.Ext(), func(t *testing.T) {
			s := setupTestStore(t, codec)
			post := samplePost()

			require.NoError(t, s.SavePost("u", post))
			got, err := s.GetPost("u", post.ID)
			require.NoError(t, err)

			assert.Equal(t, post.ID, got.ID)
			assert.Equal(t, post.Title, got.Title)
			assert.Equal(t, post.Content, got.Content)
			assert.Equal(t, post.Tags, got.Tags)
			assert.Equal(t, post.Summary, got.Summary)
			assert.Equal(t, post.OriginalID, got.OriginalID)
			assert.Equal(t, post.Cover, got.Cover)
			assert.True(t, post.Date.Equal(got.Date))
			require.NotNil(t, got.DatePublished)
			assert.True(t, post.DatePublished.Equal(*got.DatePublished))
		})
	}
}

func TestMarkdownFileLayout(t *testing.T) {
	s := setupTestStore(t, MarkdownCodec{})
	post := samplePost()
	post.DatePublished = nil
	require.NoError(t, s.SavePost("u", post))

	data, err := os.ReadFile(filepath.Join(s.Layout().PostsDir("u"), post.ID+".md"))
	require.NoError(t, err)
	text := string(data)

	assert.Regexp(t, `^---\ntitle: `, text)
	assert.Contains(t, text, "date: \"2024-01-15T10:30:00Z\"")
	assert.NotContains(t, text, "datePublished")
	assert.Contains(t, text, "---\n"+post.Content)
}

func TestGetPostNotFound(t *testing.T) {
	s := setupTestStore(t, MarkdownCodec{})
	_, err := s.GetPost("u", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPostMalformedIsNotFound(t *testing.T) {
	s := setupTestStore(t, MarkdownCodec{})
	dir := s.Layout().PostsDir("u")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte("no front matter"), 0o644))

	_, err := s.GetPost("u", "bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPostRejectsTraversal(t *testing.T) {
	s := setupTestStore(t, MarkdownCodec{})
	_, err := s.GetPost("u", "../meta")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetPost("..", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPostsSkipsUnparseable(t *testing.T) {
	s := setupTestStore(t, MarkdownCodec{})
	post := samplePost()
	require.NoError(t, s.SavePost("u", post))

	dir := s.Layout().PostsDir("u")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.md"), []byte("---\ntitle: [unterminated\n---\nbody"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, post.ID), 0o755))

	posts, err := s.ListPosts("u")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)
}

func TestListPostsNoUser(t *testing.T) {
	s := setupTestStore(t, JSONCodec{})
	posts, err := s.ListPosts("nobody")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSavePostOverwrites(t *testing.T) {
	s := setupTestStore(t, MarkdownCodec{})
	post := samplePost()
	require.NoError(t, s.SavePost("u", post))

	post.Title = "Updated"
	require.NoError(t, s.SavePost("u", post))

	got, err := s.GetPost("u", post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.Title)

	entries, err := os.ReadDir(s.Layout().PostsDir("u"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDeletePostIdempotent(t *testing.T) {
	s := setupTestStore(t, JSONCodec{})
	post := samplePost()
	require.NoError(t, s.SavePost("u", post))

	require.NoError(t, s.DeletePost("u", post.ID))
	assert.False(t, s.Exists("u", post.ID))
	require.NoError(t, s.DeletePost("u", post.ID))
}

func TestMarkdownDecodeLooseTypes(t *testing.T) {
	raw := "---\ntitle: 42\ndate: 2024-03-01T09:00:00Z\ntags:\n  - go\n  - yaml\n---\nbody"
	p, err := MarkdownCodec{}.Decode([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "42", p.Title)
	assert.Equal(t, "go, yaml", p.Tags)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), p.Date.UTC())
	assert.Equal(t, "body", p.Content)
	assert.Nil(t, p.DatePublished)
}

func TestCodecFor(t *testing.T) {
	c, err := CodecFor("json")
	require.NoError(t, err)
	assert.Equal(t, ".json", c.Ext())

	c, err = CodecFor("")
	require.NoError(t, err)
	assert.Equal(t, ".md", c.Ext())

	_, err = CodecFor("xml")
	assert.Error(t, err)
}
