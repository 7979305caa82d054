// Package poststore persists posts as one file per post under a user's
// posts directory, in either JSON or Markdown-with-front-matter form.
package poststore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine/model"
)

// ErrNotFound is returned when a post file is missing or cannot be parsed.
var ErrNotFound = errors.New("post not found")

// Store reads and writes post files for every user under a Layout root.
type Store struct {
	layout Layout
	codec  Codec
	log    zerolog.Logger
}

// NewStore creates a Store rooted at layout.Root using codec for file contents.
func NewStore(layout Layout, codec Codec, log zerolog.Logger) *Store {
	return &Store{layout: layout, codec: codec, log: log}
}

// Layout returns the directory layout the store writes into.
func (s *Store) Layout() Layout {
	return s.layout
}

// Codec returns the file codec in use.
func (s *Store) Codec() Codec {
	return s.codec
}

// PostPath returns the file path for a post id.
func (s *Store) PostPath(user, id string) string {
	return filepath.Join(s.layout.PostsDir(user), id+s.codec.Ext())
}

// Exists reports whether the post file is present.
func (s *Store) Exists(user, id string) bool {
	if !ValidName(user) || !ValidName(id) {
		return false
	}
	fi, err := os.Stat(s.PostPath(user, id))
	return err == nil && fi.Mode().IsRegular()
}

// GetPost reads one post. Missing and malformed files both yield ErrNotFound.
func (s *Store) GetPost(user, id string) (model.Post, error) {
	if !ValidName(user) || !ValidName(id) {
		return model.Post{}, ErrNotFound
	}
	data, err := os.ReadFile(s.PostPath(user, id))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("user", user).Str("post", id).Msg("read post file")
		}
		return model.Post{}, ErrNotFound
	}
	p, err := s.codec.Decode(data)
	if err != nil {
		s.log.Warn().Err(err).Str("user", user).Str("post", id).Msg("parse post file")
		return model.Post{}, ErrNotFound
	}
	p.ID = id
	return p, nil
}

// ListIDs returns the ids of every post file for user, in directory order.
// A user without a posts directory has no posts.
func (s *Store) ListIDs(user string) ([]string, error) {
	if !ValidName(user) {
		return nil, nil
	}
	entries, err := os.ReadDir(s.layout.PostsDir(user))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list posts for %s: %w", user, err)
	}
	ext := s.codec.Ext()
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	return ids, nil
}

// ListPosts reads every post for user. Unparseable files are skipped.
func (s *Store) ListPosts(user string) ([]model.Post, error) {
	ids, err := s.ListIDs(user)
	if err != nil {
		return nil, err
	}
	posts := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPost(user, id)
		if err != nil {
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// SavePost writes p to its file, replacing any previous version. The new
// content is written to a sibling temp file and renamed into place so readers
// see either the old or the new file.
func (s *Store) SavePost(user string, p model.Post) error {
	if !ValidName(user) || !ValidName(p.ID) {
		return fmt.Errorf("save post: invalid user %q or id %q", user, p.ID)
	}
	data, err := s.codec.Encode(p)
	if err != nil {
		return fmt.Errorf("encode post %s: %w", p.ID, err)
	}
	dir := s.layout.PostsDir(user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create posts dir: %w", err)
	}
	return WriteFileAtomic(s.PostPath(user, p.ID), data)
}

// DeletePost removes the post file. A missing file is not an error.
func (s *Store) DeletePost(user, id string) error {
	if !ValidName(user) || !ValidName(id) {
		return nil
	}
	if err := os.Remove(s.PostPath(user, id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}

// WriteFileAtomic writes data to a sibling temp file and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

