package poststore

import (
	"path/filepath"
	"strings"
)

// Layout maps users and posts onto the on-disk tree under Root:
//
//	{Root}/{user}/posts/{id}.{ext}
//	{Root}/{user}/posts/{id}/        adopted images
//	{Root}/{user}/images/temp/       temp upload pool
//	{Root}/{user}/meta.json
type Layout struct {
	Root string
}

func (l Layout) UserDir(user string) string {
	return filepath.Join(l.Root, user)
}

func (l Layout) PostsDir(user string) string {
	return filepath.Join(l.Root, user, "posts")
}

// PostImagesDir is the folder holding images adopted by one post.
func (l Layout) PostImagesDir(user, postID string) string {
	return filepath.Join(l.Root, user, "posts", postID)
}

// ImagesDir is the legacy flat image folder; it also contains the temp pool.
func (l Layout) ImagesDir(user string) string {
	return filepath.Join(l.Root, user, "images")
}

func (l Layout) TempDir(user string) string {
	return filepath.Join(l.Root, user, "images", "temp")
}

func (l Layout) MetaFile(user string) string {
	return filepath.Join(l.Root, user, "meta.json")
}

// ValidName reports whether s is safe to use as a single path segment
// (user names and post ids come straight from request paths).
func ValidName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`+"\x00")
}
