package hashnode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine/images"
	"github.com/slogengine/slogengine/ledger"
	"github.com/slogengine/slogengine/model"
	"github.com/slogengine/slogengine/poststore"
)

// Ledger remembers which source posts were imported. *ledger.Ledger
// implements it.
type Ledger interface {
	ImportedPostID(user, originalID string) (string, bool, error)
	RecordImport(imp ledger.Import) error
	RecordDownload(d ledger.Download) error
}

// Options controls one import run.
type Options struct {
	User string
	// Force re-imports source posts the ledger already knows.
	Force bool
}

// Report summarizes an import run.
type Report struct {
	Found        int
	Imported     int
	Skipped      int
	Failed       int
	ImagesSaved  int
	ImagesFailed int
}

// Importer turns source documents into posts in a user's blog.
type Importer struct {
	store      *poststore.Store
	downloader *Downloader
	ledger     Ledger
	log        zerolog.Logger
	newID      func() string
	now        func() time.Time
}

// NewImporter creates an Importer. ledger may be nil, in which case nothing
// is skipped and nothing is recorded.
func NewImporter(store *poststore.Store, downloader *Downloader, l Ledger, log zerolog.Logger) *Importer {
	return &Importer{
		store:      store,
		downloader: downloader,
		ledger:     l,
		log:        log,
		newID:      uuid.NewString,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run imports every document src yields. Posts are written oldest first by
// publish date. Per-post failures are logged and counted; only a source or
// context error aborts the run.
func (im *Importer) Run(ctx context.Context, src Source, opts Options) (Report, error) {
	var rep Report
	if !poststore.ValidName(opts.User) {
		return rep, fmt.Errorf("%w: invalid user %q", model.ErrValidation, opts.User)
	}
	docs, err := src.Documents(ctx)
	if err != nil {
		return rep, err
	}
	rep.Found = len(docs)

	var posts []model.Post
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		p := im.Normalize(doc, opts.User)
		if !opts.Force && im.alreadyImported(opts.User, p.OriginalID) {
			im.log.Info().Str("original_id", p.OriginalID).Str("title", p.Title).Msg("already imported, skipped")
			rep.Skipped++
			continue
		}
		p.ID = im.newID()
		im.localizeImages(ctx, opts.User, &p, &rep)
		posts = append(posts, p)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].EffectiveDate().Before(posts[j].EffectiveDate())
	})

	for i, p := range posts {
		if err := im.store.SavePost(opts.User, p); err != nil {
			im.log.Error().Err(err).Str("title", p.Title).Msg("save imported post")
			rep.Failed++
			continue
		}
		rep.Imported++
		im.log.Info().Int("n", i+1).Int("of", len(posts)).Str("post", p.ID).Str("title", p.Title).Msg("imported post")
		if im.ledger != nil {
			err := im.ledger.RecordImport(ledger.Import{
				User:       opts.User,
				OriginalID: p.OriginalID,
				PostID:     p.ID,
				Title:      p.Title,
				ImportedAt: im.now(),
			})
			if err != nil {
				im.log.Warn().Err(err).Str("post", p.ID).Msg("record import")
			}
		}
	}
	return rep, nil
}

func (im *Importer) alreadyImported(user, originalID string) bool {
	if im.ledger == nil || originalID == "" {
		return false
	}
	_, ok, err := im.ledger.ImportedPostID(user, originalID)
	if err != nil {
		im.log.Warn().Err(err).Str("original_id", originalID).Msg("ledger lookup")
		return false
	}
	return ok
}

// Normalize maps a document onto a post for user without touching the
// network. The post has no id yet.
func (im *Importer) Normalize(doc Document, user string) model.Post {
	f := doc.Fields
	p := model.Post{
		OriginalID: poststore.StringField(f, "cuid"),
		Title:      poststore.StringField(f, "title"),
		Content:    doc.Body,
		Slug:       poststore.StringField(f, "slug"),
		Tags:       poststore.StringField(f, "tags"),
		Cover:      CleanImageURL(poststore.StringField(f, "cover")),
		Author:     user,
		Summary:    ExtractSummary(doc.Body),
		Date:       im.now(),
	}
	if p.OriginalID == "" {
		p.OriginalID = doc.Name
	}
	if strings.TrimSpace(p.Title) == "" {
		p.Title = UntitledTitle
	}
	if v, ok := f["datePublished"]; ok {
		var d time.Time
		var parsed bool
		if t, isTime := v.(time.Time); isTime {
			d, parsed = t, true
		} else {
			d, parsed = ParseDate(poststore.StringField(f, "datePublished"))
		}
		if parsed {
			p.DatePublished = &d
			p.Date = d
		}
	}
	return p
}

var reMarkdownImage = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

func isRemote(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// localizeImages downloads the cover and every remote inline image into the
// post folder and points the post at the local copies. Failed downloads
// keep the remote URL.
func (im *Importer) localizeImages(ctx context.Context, user string, p *model.Post, rep *Report) {
	if isRemote(p.Cover) {
		if local, ok := im.download(ctx, user, p.ID, "cover", p.Cover, rep); ok {
			p.Cover = local
		}
	}

	counter := 0
	done := map[string]string{}
	nextRole := func() string {
		counter++
		return fmt.Sprintf("img_%03d", counter)
	}
	p.Content = reMarkdownImage.ReplaceAllStringFunc(p.Content, func(m string) string {
		sub := reMarkdownImage.FindStringSubmatch(m)
		alt, src := sub[1], CleanImageURL(sub[2])
		role := nextRole()
		if !isRemote(src) {
			return m
		}
		local, seen := done[src]
		if !seen {
			var ok bool
			if local, ok = im.download(ctx, user, p.ID, role, src, rep); !ok {
				return m
			}
			done[src] = local
		}
		return "![" + alt + "](" + local + ")"
	})

	for _, src := range images.ExtractHTML(p.Content) {
		if !isRemote(src) {
			continue
		}
		if _, seen := done[src]; seen {
			continue
		}
		local, ok := im.download(ctx, user, p.ID, nextRole(), src, rep)
		if !ok {
			continue
		}
		done[src] = local
		p.Content = images.ReplaceRef(p.Content, src, local)
	}
}

// download fetches src into the post folder and returns its local URL.
func (im *Importer) download(ctx context.Context, user, postID, role, src string, rep *Report) (string, bool) {
	rec := ledger.Download{User: user, PostID: postID, SourceURL: src}
	defer func() {
		if im.ledger == nil {
			return
		}
		if err := im.ledger.RecordDownload(rec); err != nil {
			im.log.Warn().Err(err).Str("url", src).Msg("record download")
		}
	}()

	f, err := im.downloader.Fetch(ctx, src)
	rec.Attempts = f.Attempts
	if err != nil {
		rec.Err = err.Error()
		rep.ImagesFailed++
		return "", false
	}

	name := strings.TrimPrefix(DownloadName(postID, role, f.Ext), postID+"_")
	dir := im.store.Layout().PostImagesDir(user, postID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		rec.Err = err.Error()
		rep.ImagesFailed++
		return "", false
	}
	if err := os.WriteFile(filepath.Join(dir, name), f.Data, 0o644); err != nil {
		rec.Err = err.Error()
		rep.ImagesFailed++
		return "", false
	}
	rec.File = name
	rep.ImagesSaved++
	im.log.Debug().Str("url", src).Str("file", name).Msg("image saved")
	return images.PostImageURL(user, postID, name), true
}
