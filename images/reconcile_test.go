package images

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slogengine/slogengine/poststore"
)

const (
	testUser = "u"
	testPost = "p1"
)

func setupReconciler(t *testing.T) (*Reconciler, poststore.Layout) {
	t.Helper()
	layout := poststore.Layout{Root: t.TempDir()}
	return NewReconciler(layout, 0, zerolog.Nop()), layout
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
}

func TestReconcileAdoptsTempImage(t *testing.T) {
	r, layout := setupReconciler(t)
	writeFile(t, filepath.Join(layout.TempDir(testUser), "temp_X.png"))

	content := "see ![x](/blogs/u/images/temp/temp_X.png) and again <img src=\"/blogs/u/images/temp/temp_X.png\">"
	got, _ := r.Reconcile(testUser, testPost, content, "")

	assert.Equal(t, "see ![x](/blogs/u/posts/p1/X.png) and again <img src=\"/blogs/u/posts/p1/X.png\">", got)
	assert.FileExists(t, filepath.Join(layout.PostImagesDir(testUser, testPost), "X.png"))
	assert.NoFileExists(t, filepath.Join(layout.TempDir(testUser), "temp_X.png"))

	again, _ := r.Reconcile(testUser, testPost, got, "")
	assert.Equal(t, got, again)
	assert.FileExists(t, filepath.Join(layout.PostImagesDir(testUser, testPost), "X.png"))
}

func TestReconcileMissingTempLeftAsIs(t *testing.T) {
	r, layout := setupReconciler(t)
	content := "![x](/blogs/u/images/temp/temp_gone.png)"

	got, _ := r.Reconcile(testUser, testPost, content, "")

	assert.Equal(t, content, got)
	assert.NoDirExists(t, layout.PostImagesDir(testUser, testPost))
}

func TestReconcileRemovesOrphans(t *testing.T) {
	r, layout := setupReconciler(t)
	dir := layout.PostImagesDir(testUser, testPost)
	writeFile(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "b.png"))

	content := "only ![b](/blogs/u/posts/p1/b.png)"
	got, _ := r.Reconcile(testUser, testPost, content, "")

	assert.Equal(t, content, got)
	assert.NoFileExists(t, filepath.Join(dir, "a.png"))
	assert.FileExists(t, filepath.Join(dir, "b.png"))
}

func TestReconcileRemovesEmptyFolder(t *testing.T) {
	r, layout := setupReconciler(t)
	dir := layout.PostImagesDir(testUser, testPost)
	writeFile(t, filepath.Join(dir, "a.png"))

	r.Reconcile(testUser, testPost, "no images any more", "")

	assert.NoDirExists(t, dir)
}

func TestReconcileKeepsAndAdoptsCover(t *testing.T) {
	r, layout := setupReconciler(t)
	dir := layout.PostImagesDir(testUser, testPost)
	writeFile(t, filepath.Join(dir, "cover.jpg"))
	writeFile(t, filepath.Join(layout.TempDir(testUser), "temp_new.jpg"))

	_, cover := r.Reconcile(testUser, testPost, "body", "/blogs/u/posts/p1/cover.jpg")
	assert.Equal(t, "/blogs/u/posts/p1/cover.jpg", cover)
	assert.FileExists(t, filepath.Join(dir, "cover.jpg"))

	_, cover = r.Reconcile(testUser, testPost, "body", "/blogs/u/images/temp/temp_new.jpg")
	assert.Equal(t, "/blogs/u/posts/p1/new.jpg", cover)
	assert.FileExists(t, filepath.Join(dir, "new.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "cover.jpg"))
}

func TestReconcileIgnoresOtherPostsAndUsers(t *testing.T) {
	r, layout := setupReconciler(t)
	other := filepath.Join(layout.PostImagesDir(testUser, "p2"), "keep.png")
	writeFile(t, other)
	foreign := filepath.Join(layout.TempDir("v"), "temp_f.png")
	writeFile(t, foreign)

	content := "![a](/blogs/u/posts/p2/keep.png) ![b](/blogs/v/images/temp/temp_f.png)"
	got, _ := r.Reconcile(testUser, testPost, content, "")

	assert.Equal(t, content, got)
	assert.FileExists(t, other)
	assert.FileExists(t, foreign)
}

func TestSweepTempRemovesExpired(t *testing.T) {
	r, layout := setupReconciler(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	oldFile := filepath.Join(layout.TempDir(testUser), "temp_old.png")
	freshFile := filepath.Join(layout.TempDir(testUser), "temp_fresh.png")
	writeFile(t, oldFile)
	writeFile(t, freshFile)
	old := now.Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, old, old))
	fresh := now.Add(-time.Hour)
	require.NoError(t, os.Chtimes(freshFile, fresh, fresh))

	r.Reconcile(testUser, "unrelated", "nothing here", "")

	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, freshFile)
}

func TestSweepTempNoPool(t *testing.T) {
	r, _ := setupReconciler(t)
	assert.Equal(t, 0, r.SweepTemp("nobody"))
}

func TestRemovePostImages(t *testing.T) {
	r, layout := setupReconciler(t)
	dir := layout.PostImagesDir(testUser, testPost)
	writeFile(t, filepath.Join(dir, "a.png"))

	require.NoError(t, r.RemovePostImages(testUser, testPost))
	assert.NoDirExists(t, dir)
	require.NoError(t, r.RemovePostImages(testUser, testPost))
}

func TestReconcileAdoptsEscapedHTMLSource(t *testing.T) {
	r, layout := setupReconciler(t)
	writeFile(t, filepath.Join(layout.TempDir(testUser), "temp_a.png"))

	content := `<img src="/blogs/u/images/temp/temp_a.png?v=1&amp;w=2">`
	got, _ := r.Reconcile(testUser, testPost, content, "")

	assert.Equal(t, `<img src="/blogs/u/posts/p1/a.png">`, got)
	assert.FileExists(t, filepath.Join(layout.PostImagesDir(testUser, testPost), "a.png"))
	assert.NoFileExists(t, filepath.Join(layout.TempDir(testUser), "temp_a.png"))
}

func TestReconcileKeepsExistingImageOnNameClash(t *testing.T) {
	r, layout := setupReconciler(t)
	postDir := layout.PostImagesDir(testUser, testPost)
	require.NoError(t, os.MkdirAll(postDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(postDir, "x.png"), []byte("old"), 0o644))
	writeFile(t, filepath.Join(layout.TempDir(testUser), "temp_x.png"))

	content := "![old](/blogs/u/posts/p1/x.png) ![new](/blogs/u/images/temp/temp_x.png)"
	got, _ := r.Reconcile(testUser, testPost, content, "")

	assert.Equal(t, "![old](/blogs/u/posts/p1/x.png) ![new](/blogs/u/posts/p1/x_1.png)", got)
	old, err := os.ReadFile(filepath.Join(postDir, "x.png"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
	assert.FileExists(t, filepath.Join(postDir, "x_1.png"))
}

func TestReplaceRef(t *testing.T) {
	assert.Equal(t, "![a](/n.png?a=1&b=2) <img src=\"/n.png?a=1&amp;b=2\">",
		ReplaceRef("![a](/o.png?a=1&b=2) <img src=\"/o.png?a=1&amp;b=2\">", "/o.png?a=1&b=2", "/n.png?a=1&b=2"))
	assert.Equal(t, "x /n.png x", ReplaceRef("x /o.png x", "/o.png", "/n.png"))
	assert.True(t, ContainsRef(`src="/o.png?a&amp;b"`, "/o.png?a&b"))
	assert.False(t, ContainsRef("nothing", "/o.png"))
}
