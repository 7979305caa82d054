// Package slogengine is a personal blogging backend built with Go and Echo.
// Each user owns a folder of post files, a meta record and an image area;
// the App serves them as a JSON API with uploads, per-user RSS and sitemaps.
package slogengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine/blog"
	"github.com/slogengine/slogengine/images"
	"github.com/slogengine/slogengine/logging"
	"github.com/slogengine/slogengine/poststore"
)

// App is the central slogengine application. It wires together the post
// service, meta store, upload pool, cache, handlers and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Log     zerolog.Logger
	Layout  poststore.Layout
	Posts   *blog.Service
	Meta    *blog.MetaStore
	Uploads *images.Pool
	Cache   *PostCache

	uploadLimiter *RateLimiter
	customRoutes  []func(*App)
	logSet        bool
}

// New builds an App from cfg. Nothing listens until Start is called.
func New(cfg SiteConfig, opts ...Option) (*App, error) {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Layout: poststore.Layout{Root: cfg.BlogsDir},
	}
	for _, opt := range opts {
		opt(a)
	}

	if !a.logSet {
		log, err := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
		if err != nil {
			return nil, fmt.Errorf("slogengine: %w", err)
		}
		a.Log = log
	}

	codec, err := poststore.CodecFor(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("slogengine: %w", err)
	}
	store := poststore.NewStore(a.Layout, codec, a.Log.With().Str("component", "poststore").Logger())
	reconciler := images.NewReconciler(a.Layout, cfg.TempRetention, a.Log.With().Str("component", "images").Logger())

	a.Posts = blog.NewService(store, reconciler, a.Log.With().Str("component", "blog").Logger())
	a.Meta = blog.NewMetaStore(a.Layout, a.Log.With().Str("component", "meta").Logger())
	a.Uploads = images.NewPool(a.Layout, cfg.MaxUploadSize, cfg.MaxImageWidth, a.Log.With().Str("component", "uploads").Logger())
	a.Cache = NewPostCache(a.Posts, cfg.PostCacheTTL)
	a.uploadLimiter = NewRateLimiter(cfg.UploadRateLimit, time.Minute)

	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return a, nil
}

// Start listens on Config.Addr and serves until the server is shut down.
func (a *App) Start() error {
	a.Log.Info().Str("addr", a.Config.Addr).Str("blogs", a.Config.BlogsDir).Str("format", a.Config.Format).Msg("starting server")
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/ping", handlePing)
	e.Static("/blogs", a.Config.BlogsDir)

	g := e.Group("/blog/:user")
	g.GET("", a.handleList)
	g.POST("", a.handleCreate)
	g.GET("/paged", a.handlePaged)
	g.GET("/meta", a.handleGetMeta)
	g.PUT("/meta", a.handlePutMeta)
	g.POST("/images/upload", a.handleUpload)
	g.GET("/feed.xml", a.handleFeed)
	g.GET("/sitemap.xml", a.handleSitemap)
	g.GET("/:postId", a.handleGet)
	g.PUT("/:postId", a.handleUpdate)
	g.DELETE("/:postId", a.handleDelete)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.uploadLimiter != nil {
		a.uploadLimiter.Stop()
	}
	return nil
}
