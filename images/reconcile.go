package images

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine/poststore"
)

// DefaultTempRetention is how long an unadopted upload survives in the pool.
const DefaultTempRetention = 24 * time.Hour

// Reconciler makes a post's image folder hold exactly the images its saved
// content references. It never fails a save: file errors are logged and the
// affected image is left as it was.
type Reconciler struct {
	layout    poststore.Layout
	log       zerolog.Logger
	retention time.Duration
	now       func() time.Time
}

// NewReconciler creates a Reconciler. retention <= 0 selects DefaultTempRetention.
func NewReconciler(layout poststore.Layout, retention time.Duration, log zerolog.Logger) *Reconciler {
	if retention <= 0 {
		retention = DefaultTempRetention
	}
	return &Reconciler{
		layout:    layout,
		log:       log,
		retention: retention,
		now:       time.Now,
	}
}

// Reconcile adopts the temp images content and cover reference into the
// post's folder, rewrites those references, deletes adopted images the post
// no longer references, and sweeps expired temp files for user. It returns
// the rewritten content and cover.
func (r *Reconciler) Reconcile(user, postID, content, cover string) (string, string) {
	log := r.log.With().Str("user", user).Str("post", postID).Logger()

	refs := ExtractImageURLs(content)
	if strings.HasPrefix(cover, URLPrefix) {
		refs = append(refs, cover)
	}

	postDir := r.layout.PostImagesDir(user, postID)
	seen := make(map[string]struct{})
	for _, ref := range refs {
		if !IsTempURL(user, ref) {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}

		if ref != cover && !ContainsRef(content, ref) {
			log.Debug().Str("ref", ref).Msg("reference not found in content, left as is")
			continue
		}
		name := FileName(ref)
		if !poststore.ValidName(name) {
			continue
		}
		src := filepath.Join(r.layout.TempDir(user), name)
		if _, err := os.Stat(src); err != nil {
			log.Debug().Str("ref", ref).Msg("temp image missing, reference left as is")
			continue
		}
		if err := os.MkdirAll(postDir, 0o755); err != nil {
			log.Warn().Err(err).Msg("create post image folder")
			continue
		}
		adopted := freeName(postDir, AdoptedName(name))
		if err := os.Rename(src, filepath.Join(postDir, adopted)); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("adopt temp image")
			continue
		}
		newRef := PostImageURL(user, postID, adopted)
		content = ReplaceRef(content, ref, newRef)
		if cover == ref {
			cover = newRef
		}
		log.Debug().Str("from", ref).Str("to", newRef).Msg("adopted temp image")
	}

	r.removeOrphans(log, user, postID, content, cover)
	r.SweepTemp(user)
	return content, cover
}

// freeName returns name, or name with a numeric suffix, such that no file of
// that name exists in dir.
func freeName(dir, name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(dir, candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

// UsedImages returns the file names in postID's folder that content and
// cover reference after adoption.
func UsedImages(user, postID, content, cover string) map[string]struct{} {
	used := make(map[string]struct{})
	refs := ExtractImageURLs(content)
	if cover != "" {
		refs = append(refs, cover)
	}
	for _, ref := range refs {
		if IsPostURL(user, postID, ref) {
			used[FileName(ref)] = struct{}{}
		}
	}
	return used
}

func (r *Reconciler) removeOrphans(log zerolog.Logger, user, postID, content, cover string) {
	postDir := r.layout.PostImagesDir(user, postID)
	entries, err := os.ReadDir(postDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("list post image folder")
		}
		return
	}
	used := UsedImages(user, postID, content, cover)
	remaining := 0
	for _, e := range entries {
		if e.IsDir() {
			remaining++
			continue
		}
		if _, ok := used[e.Name()]; ok {
			remaining++
			continue
		}
		if err := os.Remove(filepath.Join(postDir, e.Name())); err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("remove orphaned image")
			remaining++
			continue
		}
		log.Debug().Str("file", e.Name()).Msg("removed orphaned image")
	}
	if remaining == 0 {
		if err := os.Remove(postDir); err != nil {
			log.Warn().Err(err).Msg("remove empty post image folder")
		}
	}
}

// SweepTemp deletes files in user's temp pool last modified before the
// retention window. It returns the number of files removed.
func (r *Reconciler) SweepTemp(user string) int {
	dir := r.layout.TempDir(user)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := r.now().Add(-r.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			r.log.Warn().Err(err).Str("user", user).Str("file", e.Name()).Msg("remove expired temp image")
			continue
		}
		removed++
	}
	if removed > 0 {
		r.log.Info().Str("user", user).Int("removed", removed).Msg("swept expired temp images")
	}
	return removed
}

// RemovePostImages deletes postID's whole image folder.
func (r *Reconciler) RemovePostImages(user, postID string) error {
	if !poststore.ValidName(user) || !poststore.ValidName(postID) {
		return nil
	}
	return os.RemoveAll(r.layout.PostImagesDir(user, postID))
}
