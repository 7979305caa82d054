package blog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slogengine/slogengine/images"
	"github.com/slogengine/slogengine/model"
	"github.com/slogengine/slogengine/poststore"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	store  *poststore.Store
	layout poststore.Layout
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout := poststore.Layout{Root: t.TempDir()}
	store := poststore.NewStore(layout, poststore.MarkdownCodec{}, zerolog.Nop())
	rec := images.NewReconciler(layout, 0, zerolog.Nop())
	f := &fixture{
		svc:    NewService(store, rec, zerolog.Nop()),
		store:  store,
		layout: layout,
		clock:  baseTime,
	}
	f.svc.now = func() time.Time { return f.clock }
	n := 0
	f.svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return f
}

func (f *fixture) seed(t *testing.T, user string, p model.Post) {
	t.Helper()
	require.NoError(t, f.store.SavePost(user, p))
}

func TestCreateAssignsIDAndDate(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Create("u", model.Post{Title: "T", Content: "C", Author: "u"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.True(t, baseTime.Equal(got.Date))

	stored, err := f.svc.Get("u", "id-1")
	require.NoError(t, err)
	assert.Equal(t, "T", stored.Title)
	assert.True(t, baseTime.Equal(stored.Date))
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create("u", model.Post{Title: " ", Content: "C"})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.Create("..", model.Post{Title: "T", Content: "C"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateAdoptsTempImages(t *testing.T) {
	f := newFixture(t)
	tmp := filepath.Join(f.layout.TempDir("u"), "temp_pic.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(tmp), 0o755))
	require.NoError(t, os.WriteFile(tmp, []byte("img"), 0o644))

	got, err := f.svc.Create("u", model.Post{
		Title:   "T",
		Content: "![p](/blogs/u/images/temp/temp_pic.png)",
		Cover:   "/blogs/u/images/temp/temp_pic.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "![p](/blogs/u/posts/id-1/pic.png)", got.Content)
	assert.Equal(t, "/blogs/u/posts/id-1/pic.png", got.Cover)
	assert.FileExists(t, filepath.Join(f.layout.PostImagesDir("u", "id-1"), "pic.png"))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create("u", model.Post{Title: "T", Content: "C"})
	require.NoError(t, err)

	f.clock = baseTime.Add(time.Hour)
	created.Title = "T2"
	updated, err := f.svc.Update("u", created)
	require.NoError(t, err)
	assert.True(t, f.clock.Equal(updated.Date))

	stored, err := f.svc.Get("u", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "T2", stored.Title)
}

func TestUpdateMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update("u", model.Post{ID: "nope", Title: "T", Content: "C"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRemovesDroppedImages(t *testing.T) {
	f := newFixture(t)
	dir := f.layout.PostImagesDir("u", "p1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0o644))
	f.seed(t, "u", model.Post{ID: "p1", Title: "T", Content: "![a](/blogs/u/posts/p1/a.png)", Date: baseTime})

	_, err := f.svc.Update("u", model.Post{ID: "p1", Title: "T", Content: "text only"})
	require.NoError(t, err)
	assert.NoDirExists(t, dir)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create("u", model.Post{Title: "T", Content: "C"})
	require.NoError(t, err)
	dir := f.layout.PostImagesDir("u", created.ID)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	require.NoError(t, f.svc.Delete("u", created.ID))
	assert.False(t, f.svc.Exists("u", created.ID))
	assert.NoDirExists(t, dir)

	require.NoError(t, f.svc.Delete("u", created.ID))
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u", model.Post{ID: "a", Title: "A", Content: "c", Date: baseTime})
	f.seed(t, "u", model.Post{ID: "b", Title: "B", Content: "c", Date: baseTime.Add(2 * time.Hour)})
	f.seed(t, "u", model.Post{ID: "c", Title: "C", Content: "c", Date: baseTime.Add(time.Hour)})

	posts, err := f.svc.List("u")
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})

	empty, err := f.svc.List("nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestListPagedDedupsAndPages(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u", model.Post{ID: "old", OriginalID: "src", Title: "Old copy", Content: "c", Date: baseTime})
	f.seed(t, "u", model.Post{ID: "new", OriginalID: "src", Title: "New copy", Content: "c", Date: baseTime.Add(time.Hour)})
	for i := 0; i < 11; i++ {
		f.seed(t, "u", model.Post{
			ID:      fmt.Sprintf("p%02d", i),
			Title:   fmt.Sprintf("Post %d", i),
			Content: "c",
			Date:    baseTime.Add(-time.Duration(i+1) * time.Minute),
		})
	}

	page, err := f.svc.ListPaged("u", model.PagedRequest{Page: 1, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages())
	require.Len(t, page.Items, 5)
	assert.Equal(t, "new", page.Items[0].ID)

	last, err := f.svc.ListPaged("u", model.PagedRequest{Page: 3, PageSize: 5})
	require.NoError(t, err)
	require.Len(t, last.Items, 2)
	assert.Equal(t, "p10", last.Items[1].ID)
	assert.False(t, last.HasNextPage())
}

func TestListPagedFilters(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u", model.Post{ID: "a", Title: "Go tips", Content: "x", Tags: "go, backend", Date: baseTime})
	f.seed(t, "u", model.Post{ID: "b", Title: "Cooking", Content: "about GO stones", Tags: "life", Date: baseTime.Add(time.Minute)})
	f.seed(t, "u", model.Post{ID: "c", Title: "Misc", Content: "x", Summary: "nothing", Tags: "Backend", Date: baseTime.Add(2 * time.Minute)})

	res, err := f.svc.ListPaged("u", model.PagedRequest{Search: "go"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, "b", res.Items[0].ID)

	res, err = f.svc.ListPaged("u", model.PagedRequest{Tag: "backend"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)

	res, err = f.svc.ListPaged("u", model.PagedRequest{Search: "go", Tag: "backend"})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalCount)
	assert.Equal(t, "a", res.Items[0].ID)
}

func TestDedupKeepsLatest(t *testing.T) {
	posts := []model.Post{
		{ID: "1", OriginalID: "x", Date: baseTime.Add(time.Hour)},
		{ID: "2", OriginalID: "x", Date: baseTime},
		{ID: "3", Date: baseTime},
		{ID: "4", OriginalID: "x", Date: baseTime.Add(2 * time.Hour)},
	}
	got := Dedup(posts)
	require.Len(t, got, 2)
	assert.Equal(t, "4", got[0].ID)
	assert.Equal(t, "3", got[1].ID)
}
