package blog

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slogengine/slogengine/model"
	"github.com/slogengine/slogengine/poststore"
)

func TestMetaGetCreatesDefault(t *testing.T) {
	layout := poststore.Layout{Root: t.TempDir()}
	m := NewMetaStore(layout, zerolog.Nop())

	meta, err := m.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice 블로그", meta.Title)
	assert.FileExists(t, layout.MetaFile("alice"))
}

func TestMetaSetThenGet(t *testing.T) {
	layout := poststore.Layout{Root: t.TempDir()}
	m := NewMetaStore(layout, zerolog.Nop())

	want := model.BlogMeta{Title: "My Blog", Settings: map[string]any{"theme": "dark"}}
	require.NoError(t, m.Set("alice", want))

	got, err := m.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMetaEmptyTitleFallsBack(t *testing.T) {
	layout := poststore.Layout{Root: t.TempDir()}
	m := NewMetaStore(layout, zerolog.Nop())
	require.NoError(t, m.Set("bob", model.BlogMeta{Title: ""}))

	got, err := m.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob 블로그", got.Title)
}

func TestMetaCorruptFileFallsBack(t *testing.T) {
	layout := poststore.Layout{Root: t.TempDir()}
	m := NewMetaStore(layout, zerolog.Nop())
	require.NoError(t, os.MkdirAll(layout.UserDir("bob"), 0o755))
	require.NoError(t, os.WriteFile(layout.MetaFile("bob"), []byte("{broken"), 0o644))

	got, err := m.Get("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob 블로그", got.Title)
}

func TestMetaRejectsBadUser(t *testing.T) {
	m := NewMetaStore(poststore.Layout{Root: t.TempDir()}, zerolog.Nop())
	_, err := m.Get("../x")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.ErrorIs(t, m.Set("a/b", model.BlogMeta{}), model.ErrValidation)
}
