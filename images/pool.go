package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/slogengine/slogengine/poststore"
)

const (
	DefaultMaxUploadSize = 10 << 20 // 10MB
	jpegQuality          = 85
)

var (
	ErrEmpty           = errors.New("image file is empty")
	ErrTooLarge        = errors.New("image file exceeds the size limit")
	ErrUnsupportedType = errors.New("unsupported image type (jpg, jpeg, png, gif, webp only)")
	ErrInvalidImage    = errors.New("file is not a readable image")
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// AllowedExtension reports whether name has an accepted image extension.
func AllowedExtension(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Pool stores uploads in a user's temp area until a saved post adopts them.
type Pool struct {
	layout   poststore.Layout
	log      zerolog.Logger
	maxSize  int64
	maxWidth int
	now      func() time.Time
}

// NewPool creates a Pool. maxWidth > 0 downscales wider JPEG and PNG uploads.
func NewPool(layout poststore.Layout, maxSize int64, maxWidth int, log zerolog.Logger) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}
	return &Pool{
		layout:   layout,
		log:      log,
		maxSize:  maxSize,
		maxWidth: maxWidth,
		now:      time.Now,
	}
}

// MaxSize is the largest accepted upload in bytes.
func (p *Pool) MaxSize() int64 {
	return p.maxSize
}

// Save validates an upload and writes it to user's temp pool, returning its
// public URL.
func (p *Pool) Save(user, originalName string, src io.Reader) (string, error) {
	if !poststore.ValidName(user) {
		return "", fmt.Errorf("invalid user %q", user)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !AllowedExtension(originalName) {
		return "", ErrUnsupportedType
	}
	data, err := io.ReadAll(io.LimitReader(src, p.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > p.maxSize {
		return "", ErrTooLarge
	}
	data, err = p.process(data)
	if err != nil {
		return "", err
	}

	dir := p.layout.TempDir(user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	name := TempFileName(p.now(), ext)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write temp image: %w", err)
	}
	p.log.Info().Str("user", user).Str("file", name).Int("bytes", len(data)).Msg("stored temp image")
	return TempURL(user, name), nil
}

// TempFileName builds temp_{yyyyMMddHHmmss}_{random}{ext}.
func TempFileName(now time.Time, ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return TempPrefix + now.UTC().Format("20060102150405") + "_" + id + ext
}

// process checks that data decodes as an image and downscales JPEG and PNG
// images wider than maxWidth. Other formats are stored untouched.
func (p *Pool) process(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}
	if p.maxWidth <= 0 || cfg.Width <= p.maxWidth || (format != "jpeg" && format != "png") {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	newH := h * p.maxWidth / w
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, p.maxWidth, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
