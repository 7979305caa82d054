// Package images manages a user's uploaded images: the shared temp pool new
// uploads land in, adoption of temp images into a post's folder when the post
// is saved, and cleanup of images no saved post references.
package images

import (
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// URLPrefix is the public path all managed images are served under.
const URLPrefix = "/blogs/"

// TempPrefix marks files in the temp pool that have not been adopted yet.
const TempPrefix = "temp_"

var reMarkdownImage = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)

// ExtractMarkdown returns the target of every ![alt](url) in content, in
// order of appearance. A trailing "title" part is dropped.
func ExtractMarkdown(content string) []string {
	var urls []string
	for _, m := range reMarkdownImage.FindAllStringSubmatch(content, -1) {
		u := strings.TrimSpace(m[1])
		if i := strings.IndexAny(u, " \t"); i >= 0 {
			u = u[:i]
		}
		u = strings.TrimSuffix(strings.TrimPrefix(u, "<"), ">")
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// ExtractHTML returns the src of every <img> element embedded in content.
func ExtractHTML(content string) []string {
	if !strings.Contains(strings.ToLower(content), "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var urls []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			urls = append(urls, src)
		}
	})
	return urls
}

// ExtractImageURLs returns the managed image references in content: markdown
// images first, then embedded <img> tags, restricted to URLPrefix.
func ExtractImageURLs(content string) []string {
	if content == "" {
		return nil
	}
	var out []string
	for _, u := range append(ExtractMarkdown(content), ExtractHTML(content)...) {
		if strings.HasPrefix(u, URLPrefix) {
			out = append(out, u)
		}
	}
	return out
}

// TempURL is the public URL of a file in user's temp pool.
func TempURL(user, file string) string {
	return URLPrefix + user + "/images/temp/" + file
}

// PostImageURL is the public URL of an image adopted by a post.
func PostImageURL(user, postID, file string) string {
	return URLPrefix + user + "/posts/" + postID + "/" + file
}

// IsTempURL reports whether u points into user's temp pool.
func IsTempURL(user, u string) bool {
	return strings.HasPrefix(u, URLPrefix+user+"/images/temp/")
}

// IsPostURL reports whether u points into the image folder of postID.
func IsPostURL(user, postID, u string) bool {
	return strings.HasPrefix(u, URLPrefix+user+"/posts/"+postID+"/")
}

// FileName returns the unescaped last path segment of an image URL, without
// any query or fragment.
func FileName(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	name := path.Base(u)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// AdoptedName is the name a temp file takes once moved into a post folder.
func AdoptedName(tempName string) string {
	if strings.HasPrefix(tempName, TempPrefix) {
		return tempName[len(TempPrefix):]
	}
	return tempName
}

// ReplaceRef rewrites every occurrence of ref in content to newRef, including
// the HTML-escaped form an <img src> attribute holds ("&amp;" for "&").
func ReplaceRef(content, ref, newRef string) string {
	esc := html.EscapeString(ref)
	if esc == ref {
		return strings.ReplaceAll(content, ref, newRef)
	}
	return strings.NewReplacer(ref, newRef, esc, html.EscapeString(newRef)).Replace(content)
}

// ContainsRef reports whether content holds ref literally or HTML-escaped.
func ContainsRef(content, ref string) bool {
	return strings.Contains(content, ref) || strings.Contains(content, html.EscapeString(ref))
}
