// Package migrate upgrades blog storage written by older releases: JSON post
// files become Markdown files, and images kept in the flat per-user images
// folder as {postId}_{name} move into their post's folder.
package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine/images"
	"github.com/slogengine/slogengine/poststore"
)

// Result counts what a migration run did.
type Result struct {
	Converted   int
	Failed      int
	ImagesMoved int
}

func (r *Result) add(o Result) {
	r.Converted += o.Converted
	r.Failed += o.Failed
	r.ImagesMoved += o.ImagesMoved
}

// Converter rewrites JSON posts as Markdown under one storage root.
type Converter struct {
	layout poststore.Layout
	from   *poststore.Store
	to     *poststore.Store
	log    zerolog.Logger
}

// NewConverter creates a Converter for the blogs under layout.Root.
func NewConverter(layout poststore.Layout, log zerolog.Logger) *Converter {
	return &Converter{
		layout: layout,
		from:   poststore.NewStore(layout, poststore.JSONCodec{}, log),
		to:     poststore.NewStore(layout, poststore.MarkdownCodec{}, log),
		log:    log,
	}
}

// ConvertAll converts the posts and migrates the images of every user.
func (c *Converter) ConvertAll() (Result, error) {
	var res Result
	entries, err := os.ReadDir(c.layout.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Str("root", c.layout.Root).Msg("blogs directory does not exist")
			return res, nil
		}
		return res, fmt.Errorf("list users: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !poststore.ValidName(e.Name()) {
			continue
		}
		user := e.Name()
		r, err := c.ConvertUser(user)
		res.add(r)
		if err != nil {
			c.log.Error().Err(err).Str("user", user).Msg("convert posts")
			continue
		}
		moved, err := c.MigrateImages(user)
		res.ImagesMoved += moved
		if err != nil {
			c.log.Error().Err(err).Str("user", user).Msg("migrate images")
		}
	}
	c.log.Info().Int("converted", res.Converted).Int("failed", res.Failed).Int("images", res.ImagesMoved).Msg("migration finished")
	return res, nil
}

// ConvertUser converts every JSON post of user to Markdown, rewriting legacy
// image URLs, and removes the JSON file once the Markdown file is written.
// A file that fails is left in place.
func (c *Converter) ConvertUser(user string) (Result, error) {
	var res Result
	ids, err := c.from.ListIDs(user)
	if err != nil {
		return res, err
	}
	log := c.log.With().Str("user", user).Logger()
	log.Info().Int("posts", len(ids)).Msg("converting JSON posts")

	for _, id := range ids {
		p, err := c.from.GetPost(user, id)
		if err != nil {
			log.Warn().Err(err).Str("post", id).Msg("skip unreadable post")
			res.Failed++
			continue
		}
		p.Content = RewriteLegacyURLs(p.Content, user, id)
		p.Cover = RewriteLegacyURLs(p.Cover, user, id)
		if err := c.to.SavePost(user, p); err != nil {
			log.Warn().Err(err).Str("post", id).Msg("write markdown post")
			res.Failed++
			continue
		}
		if err := os.Remove(c.from.PostPath(user, id)); err != nil {
			log.Warn().Err(err).Str("post", id).Msg("remove JSON post")
		}
		res.Converted++
		log.Debug().Str("post", id).Msg("converted")
	}
	return res, nil
}

// RewriteLegacyURLs turns /blogs/{user}/images/{postID}_{name} references
// into /blogs/{user}/posts/{postID}/{name}.
func RewriteLegacyURLs(s, user, postID string) string {
	if s == "" {
		return s
	}
	re := regexp.MustCompile(regexp.QuoteMeta(images.URLPrefix+user+"/images/"+postID+"_") + `([^)\s"']+)`)
	return re.ReplaceAllString(s, images.PostImageURL(user, postID, "${1}"))
}

// MigrateImages moves files named {uuid}_{name} from user's flat images
// folder into posts/{uuid}/{name}. The temp pool and files without a post id
// prefix stay where they are.
func (c *Converter) MigrateImages(user string) (int, error) {
	dir := c.layout.ImagesDir(user)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("list images: %w", err)
	}

	moved := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		postID, name, ok := SplitLegacyName(e.Name())
		if !ok {
			continue
		}
		target := c.layout.PostImagesDir(user, postID)
		if err := os.MkdirAll(target, 0o755); err != nil {
			c.log.Warn().Err(err).Str("user", user).Str("post", postID).Msg("create post image folder")
			continue
		}
		if err := os.Rename(filepath.Join(dir, e.Name()), filepath.Join(target, name)); err != nil {
			c.log.Warn().Err(err).Str("user", user).Str("file", e.Name()).Msg("move image")
			continue
		}
		moved++
	}
	return moved, nil
}

// SplitLegacyName splits "{uuid}_{name}" into the post id and the name.
func SplitLegacyName(file string) (postID, name string, ok bool) {
	i := strings.IndexByte(file, '_')
	if i <= 0 || i == len(file)-1 {
		return "", "", false
	}
	if _, err := uuid.Parse(file[:i]); err != nil {
		return "", "", false
	}
	return file[:i], file[i+1:], true
}
