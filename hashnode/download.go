package hashnode

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultTimeout = 30 * time.Second
	maxImageBytes  = 20 << 20
)

// RefererRule sends Referer for image URLs containing Match. Some image hosts
// refuse hotlinked requests without one.
type RefererRule struct {
	Match   string
	Referer string
}

// DefaultReferers are the hosts known to check Referer.
var DefaultReferers = []RefererRule{
	{Match: "discourse-dotnetdev-upload", Referer: "https://hashnode.com/"},
	{Match: "ndepend.com", Referer: "https://hashnode.com/"},
	{Match: "claudiobernasconi.ch", Referer: "https://www.claudiobernasconi.ch/"},
}

// Fetched is a downloaded image.
type Fetched struct {
	Data     []byte
	Ext      string
	Attempts int
}

// Downloader fetches remote images with retries.
type Downloader struct {
	client   *http.Client
	policy   Policy
	referers []RefererRule
	log      zerolog.Logger
}

// NewDownloader creates a Downloader. A nil client gets a 30 second timeout.
func NewDownloader(client *http.Client, policy Policy, log zerolog.Logger) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Downloader{client: client, policy: policy, referers: DefaultReferers, log: log}
}

// Fetch downloads rawURL. The returned attempt count is set on failure too.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (Fetched, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		f, err := d.fetchOnce(ctx, rawURL)
		if err == nil {
			f.Attempts = attempt
			return f, nil
		}
		lastErr = err

		delay, retry := d.policy.NextDelay(attempt, err)
		if !retry {
			d.log.Warn().Err(err).Str("url", rawURL).Int("attempt", attempt).Msg("image download failed")
			return Fetched{Attempts: attempt}, lastErr
		}
		d.log.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt).Dur("retry_in", delay).Msg("image download retry")
		if err := d.policy.sleep(ctx, delay); err != nil {
			return Fetched{Attempts: attempt}, err
		}
	}
}

func (d *Downloader) fetchOnce(ctx context.Context, rawURL string) (Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Fetched{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	for _, r := range d.referers {
		if strings.Contains(rawURL, r.Match) {
			req.Header.Set("Referer", r.Referer)
			break
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Fetched{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Fetched{}, &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Fetched{}, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return Fetched{}, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}
	return Fetched{Data: data, Ext: ImageExtension(resp.Header.Get("Content-Type"), rawURL)}, nil
}

var contentTypeExt = map[string]string{
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// ImageExtension picks a file extension from the response content type, then
// the URL path, defaulting to ".jpg".
func ImageExtension(contentType, rawURL string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := contentTypeExt[strings.ToLower(mt)]; ok {
			return ext
		}
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if ext := path.Ext(p); ext != "" {
		return strings.ToLower(ext)
	}
	return ".jpg"
}

// DownloadName is the name an image downloaded for postID in role is saved
// under before it is placed in the post folder.
func DownloadName(postID, role, ext string) string {
	return postID + "_" + role + ext
}
