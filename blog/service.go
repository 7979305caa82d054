// Package blog implements the per-user post collection: listing, paging,
// and the create/update/delete flows that keep a post's image folder in step
// with its content.
package blog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine/images"
	"github.com/slogengine/slogengine/model"
	"github.com/slogengine/slogengine/poststore"
)

// ErrNotFound is returned for posts that do not exist or cannot be parsed.
var ErrNotFound = poststore.ErrNotFound

// Service orchestrates the post store and the image reconciler for one
// storage root. Requests are handled independently; concurrent writes to the
// same post are last-writer-wins.
type Service struct {
	store      *poststore.Store
	reconciler *images.Reconciler
	log        zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// NewService creates a Service.
func NewService(store *poststore.Store, reconciler *images.Reconciler, log zerolog.Logger) *Service {
	return &Service{
		store:      store,
		reconciler: reconciler,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// List returns every readable post for user, newest first.
func (s *Service) List(user string) ([]model.Post, error) {
	posts, err := s.store.ListPosts(user)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(posts)
	return posts, nil
}

// ListPaged returns one page of user's posts after collapsing copies of the
// same source post, then applying the search and tag filters.
func (s *Service) ListPaged(user string, req model.PagedRequest) (model.PagedResult[model.Post], error) {
	posts, err := s.store.ListPosts(user)
	if err != nil {
		return model.PagedResult[model.Post]{}, err
	}
	return Page(posts, req), nil
}

// Page collapses, filters, orders and slices posts for one page request.
// posts is not modified.
func Page(posts []model.Post, req model.PagedRequest) model.PagedResult[model.Post] {
	req = req.Normalize()
	out := Filter(Latest(posts), req.Search, req.Tag)
	return model.Paginate(out, req.Page, req.PageSize)
}

// Latest returns posts collapsed by Dedup, newest first. posts is not modified.
func Latest(posts []model.Post) []model.Post {
	out := Dedup(posts)
	sortNewestFirst(out)
	return out
}

// Get returns a single post.
func (s *Service) Get(user, id string) (model.Post, error) {
	return s.store.GetPost(user, id)
}

// Create assigns a new id and the current time to p, adopts its temp
// images and writes it.
func (s *Service) Create(user string, p model.Post) (model.Post, error) {
	if !poststore.ValidName(user) {
		return model.Post{}, fmt.Errorf("%w: invalid user %q", model.ErrValidation, user)
	}
	if err := p.Validate(); err != nil {
		return model.Post{}, err
	}
	p.ID = s.newID()
	return s.write(user, p)
}

// Update overwrites an existing post. The timestamp is replaced with the
// current time and images are reconciled against the new content.
func (s *Service) Update(user string, p model.Post) (model.Post, error) {
	if err := p.Validate(); err != nil {
		return model.Post{}, err
	}
	if !s.store.Exists(user, p.ID) {
		return model.Post{}, ErrNotFound
	}
	return s.write(user, p)
}

func (s *Service) write(user string, p model.Post) (model.Post, error) {
	p.Date = s.now()
	p.Content, p.Cover = s.reconciler.Reconcile(user, p.ID, p.Content, p.Cover)
	if err := s.store.SavePost(user, p); err != nil {
		return model.Post{}, err
	}
	s.log.Info().Str("user", user).Str("post", p.ID).Msg("saved post")
	return p, nil
}

// Delete removes the post file and its image folder. Deleting a post that
// does not exist is not an error.
func (s *Service) Delete(user, id string) error {
	if err := s.store.DeletePost(user, id); err != nil {
		return err
	}
	if err := s.reconciler.RemovePostImages(user, id); err != nil {
		s.log.Warn().Err(err).Str("user", user).Str("post", id).Msg("remove post images")
	}
	return nil
}

// Exists reports whether user has a post with id.
func (s *Service) Exists(user, id string) bool {
	return s.store.Exists(user, id)
}

// Dedup keeps the most recently written post of every group sharing an
// original id (or, without one, its own id).
func Dedup(posts []model.Post) []model.Post {
	latest := make(map[string]int, len(posts))
	var out []model.Post
	for _, p := range posts {
		key := p.GroupKey()
		if i, ok := latest[key]; ok {
			if p.Date.After(out[i].Date) {
				out[i] = p
			}
			continue
		}
		latest[key] = len(out)
		out = append(out, p)
	}
	return out
}

// Filter keeps posts whose title, content or summary contains search and
// whose tag list contains tag, both case-insensitively. Blank filters match all.
func Filter(posts []model.Post, search, tag string) []model.Post {
	search = strings.ToLower(strings.TrimSpace(search))
	tag = strings.ToLower(strings.TrimSpace(tag))
	if search == "" && tag == "" {
		return posts
	}
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Content), search) &&
			!strings.Contains(strings.ToLower(p.Summary), search) {
			continue
		}
		if tag != "" && !strings.Contains(strings.ToLower(p.Tags), tag) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func sortNewestFirst(posts []model.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].Date.Equal(posts[j].Date) {
			return posts[i].Date.After(posts[j].Date)
		}
		return posts[i].ID < posts[j].ID
	})
}
