package slogengine

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slogengine/slogengine/blog"
	"github.com/slogengine/slogengine/hashnode"
	"github.com/slogengine/slogengine/model"
)

// maxFeedItems caps the number of posts in a user's feed.
const maxFeedItems = 50

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
}

func buildRSS(cfg SiteConfig, user string, meta model.BlogMeta, posts []model.Post) rssXML {
	posts = blog.Latest(posts)
	if len(posts) > maxFeedItems {
		posts = posts[:maxFeedItems]
	}
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		postURL := BuildURL(cfg.URL, user, p.ID)
		summary := p.Summary
		if summary == "" {
			summary = hashnode.ExtractSummary(p.Content)
		}
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: summary,
			Author:      p.Author,
			Categories:  p.TagList(),
			PubDate:     p.EffectiveDate().Format(time.RFC1123Z),
			GUID:        postURL,
		})
	}
	desc := cfg.Description
	if desc == "" {
		desc = meta.Title
	}
	return rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       meta.Title,
			Link:        BuildURL(cfg.URL, user),
			Description: desc,
			Items:       items,
		},
	}
}

func (a *App) handleFeed(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	meta, err := a.Meta.Get(user)
	if err != nil {
		return err
	}
	posts, err := a.Cache.List(user)
	if err != nil {
		return err
	}
	return writeXML(c, "application/rss+xml; charset=utf-8", buildRSS(a.Config, user, meta, posts))
}

func writeXML(c echo.Context, contentType string, v any) error {
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(v)
}
