// Package hashnode imports posts exported from Hashnode (a directory of
// markdown files, or the blog's RSS feed) into a user's blog, downloading the
// remote images they reference into the post folders.
package hashnode

import (
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slogengine/slogengine/poststore"
)

const (
	// UntitledTitle is used for source posts without a title.
	UntitledTitle = "제목 없음"
	// SummaryLength is the summary cutoff in characters.
	SummaryLength = 200
)

// SplitFrontMatter separates a "---" delimited header from the body. ok is
// false when content does not start with a header.
func SplitFrontMatter(content string) (header, body string, ok bool) {
	if !strings.HasPrefix(content, "---") {
		return "", "", false
	}
	end := strings.Index(content[3:], "---")
	if end < 0 {
		return "", "", false
	}
	end += 3
	return strings.TrimSpace(content[3:end]), strings.TrimSpace(content[end+3:]), true
}

var reTopLevelKey = regexp.MustCompile(`^[A-Za-z0-9_-]+\s*:`)

// CleanFrontMatter repairs the quoting mistakes Hashnode exports contain: a
// double-quoted value left open is continued over the following lines and
// closed before the next top-level key or at the end of the block, and a
// single-line value with an odd number of quotes gets a closing quote.
func CleanFrontMatter(header string) string {
	lines := strings.Split(strings.ReplaceAll(header, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		colon := strings.Index(line, ":")
		if colon < 0 || strings.HasPrefix(strings.TrimLeft(line, " \t"), "-") {
			out = append(out, line)
			continue
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])

		switch {
		case strings.HasPrefix(value, `"`) && len(value) > 1 && !strings.HasSuffix(value, `"`):
			for i+1 < len(lines) {
				next := lines[i+1]
				if reTopLevelKey.MatchString(next) {
					break
				}
				i++
				next = strings.TrimSpace(next)
				if next == "" {
					continue
				}
				value += " " + next
				if strings.HasSuffix(next, `"`) {
					break
				}
			}
			if !strings.HasSuffix(value, `"`) {
				value += `"`
			}
			out = append(out, key+": "+value)
		case strings.HasPrefix(value, `"`) && strings.Count(value, `"`)%2 != 0:
			out = append(out, key+": "+value+`"`)
		default:
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// ParseFrontMatter decodes a cleaned header. When the YAML is still invalid
// it falls back to reading one "key: value" pair per line.
func ParseFrontMatter(header string) map[string]any {
	cleaned := CleanFrontMatter(header)
	fields := map[string]any{}
	if err := yaml.Unmarshal([]byte(cleaned), &fields); err == nil {
		return fields
	}

	fields = map[string]any{}
	for _, line := range strings.Split(cleaned, "\n") {
		if !reTopLevelKey.MatchString(line) {
			continue
		}
		colon := strings.Index(line, ":")
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		fields[key] = value
	}
	return fields
}

// ExtractSummary returns the first line of body that is not a heading, an
// image or a code fence, cut to SummaryLength characters with "..." appended
// when longer.
func ExtractSummary(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "![") || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > SummaryLength {
			return string(r[:SummaryLength]) + "..."
		}
		return line
	}
	return ""
}

// hashnodeDateLayout matches "Sun May 23 2021 03:28:51 GMT+0000" once the
// trailing time zone name is removed.
const hashnodeDateLayout = "Mon Jan 02 2006 15:04:05 GMT-0700"

// ParseDate parses the JavaScript Date.toString form Hashnode exports
// ("Sun May 23 2021 03:28:51 GMT+0000 (Coordinated Universal Time)") and
// falls back to the ISO layouts posts are stored with.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	js := s
	if i := strings.Index(js, " ("); i >= 0 {
		js = js[:i]
	}
	if t, err := time.Parse(hashnodeDateLayout, js); err == nil {
		return t, true
	}
	return poststore.ParseTime(s)
}

var reImageAttr = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+[a-z-]+="[^"]*"`),
	regexp.MustCompile(`(?i)\s+[a-z-]+='[^']*'`),
}

// CleanImageURL strips the HTML-style attributes (align="center",
// width="600" ...) Hashnode appends inside markdown image parentheses.
func CleanImageURL(u string) string {
	for _, re := range reImageAttr {
		u = re.ReplaceAllString(u, "")
	}
	return strings.TrimSpace(u)
}
