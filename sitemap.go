package slogengine

import (
	"encoding/xml"

	"github.com/labstack/echo/v4"

	"github.com/slogengine/slogengine/blog"
	"github.com/slogengine/slogengine/model"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func buildSitemap(base, user string, posts []model.Post) sitemapURLSet {
	urls := []sitemapURL{
		{Loc: BuildURL(base, user)},
	}
	for _, p := range blog.Latest(posts) {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, user, p.ID),
			LastMod: p.Date.UTC().Format("2006-01-02"),
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) handleSitemap(c echo.Context) error {
	user, err := userParam(c)
	if err != nil {
		return err
	}
	posts, err := a.Cache.List(user)
	if err != nil {
		return err
	}
	return writeXML(c, "application/xml; charset=utf-8", buildSitemap(a.Config.URL, user, posts))
}
