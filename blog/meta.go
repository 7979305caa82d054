package blog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine/model"
	"github.com/slogengine/slogengine/poststore"
)

// MetaStore keeps one meta.json per user.
type MetaStore struct {
	layout poststore.Layout
	log    zerolog.Logger
}

// NewMetaStore creates a MetaStore rooted at layout.
func NewMetaStore(layout poststore.Layout, log zerolog.Logger) *MetaStore {
	return &MetaStore{layout: layout, log: log}
}

// Get returns user's meta. The first read for a user without a meta file
// writes a default record; an unreadable file or empty title falls back to
// the default title.
func (m *MetaStore) Get(user string) (model.BlogMeta, error) {
	if !poststore.ValidName(user) {
		return model.BlogMeta{}, fmt.Errorf("%w: invalid user %q", model.ErrValidation, user)
	}
	def := model.BlogMeta{Title: model.DefaultBlogTitle(user)}

	data, err := os.ReadFile(m.layout.MetaFile(user))
	if errors.Is(err, os.ErrNotExist) {
		if err := m.Set(user, def); err != nil {
			m.log.Warn().Err(err).Str("user", user).Msg("persist default blog meta")
		}
		return def, nil
	}
	if err != nil {
		m.log.Warn().Err(err).Str("user", user).Msg("read blog meta")
		return def, nil
	}

	var meta model.BlogMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		m.log.Warn().Err(err).Str("user", user).Msg("parse blog meta")
		return def, nil
	}
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = def.Title
	}
	return meta, nil
}

// Set replaces user's meta.
func (m *MetaStore) Set(user string, meta model.BlogMeta) error {
	if !poststore.ValidName(user) {
		return fmt.Errorf("%w: invalid user %q", model.ErrValidation, user)
	}
	if err := os.MkdirAll(m.layout.UserDir(user), 0o755); err != nil {
		return fmt.Errorf("create user dir: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blog meta: %w", err)
	}
	return poststore.WriteFileAtomic(m.layout.MetaFile(user), data)
}
