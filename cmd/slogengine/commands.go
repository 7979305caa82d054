package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/slogengine/slogengine"
	"github.com/slogengine/slogengine/hashnode"
	"github.com/slogengine/slogengine/ledger"
	"github.com/slogengine/slogengine/logging"
	"github.com/slogengine/slogengine/migrate"
	"github.com/slogengine/slogengine/poststore"
)

const shutdownTimeout = 10 * time.Second

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", slogengine.EnvOr("SLOG_CONFIG", ""), "YAML config file overlaid on SLOG_* environment variables")
	return fs, cfgPath
}

// loadConfig reads the environment, overlays the optional YAML file and fills
// in defaults.
func loadConfig(path string) (slogengine.SiteConfig, error) {
	cfg, err := slogengine.ConfigFromEnv()
	if err != nil {
		return cfg, err
	}
	if path != "" {
		if err := slogengine.LoadConfigFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg.WithDefaults(), nil
}

func newLogger(cfg slogengine.SiteConfig) (zerolog.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

func runServe(args []string) error {
	fs, cfgPath := newFlagSet("serve")
	addr := fs.String("addr", "", "listen address (overrides config)")
	dir := fs.String("dir", "", "blogs storage root (overrides config)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dir != "" {
		cfg.BlogsDir = *dir
	}

	app, err := slogengine.New(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	app.Log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func runConvert(args []string) error {
	fs, cfgPath := newFlagSet("convert")
	user := fs.String("user", "", "convert only this user (default: every user)")
	dir := fs.String("dir", "", "blogs storage root (overrides config)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.BlogsDir = *dir
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	conv := migrate.NewConverter(poststore.Layout{Root: cfg.BlogsDir}, log)
	var res migrate.Result
	if *user == "" {
		res, err = conv.ConvertAll()
	} else {
		res, err = conv.ConvertUser(*user)
		if err == nil {
			res.ImagesMoved, err = conv.MigrateImages(*user)
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("converted %d posts, %d failed, moved %d images\n", res.Converted, res.Failed, res.ImagesMoved)
	return nil
}

func runImport(args []string) error {
	fs, cfgPath := newFlagSet("import")
	user := fs.String("user", "", "target user (required)")
	src := fs.String("src", "", "directory of Hashnode markdown exports")
	feed := fs.String("feed", "", "Hashnode RSS or Atom feed URL")
	force := fs.Bool("force", false, "re-import posts already recorded in the ledger")
	dir := fs.String("dir", "", "blogs storage root (overrides config)")
	fs.Parse(args)

	if *user == "" {
		return errors.New("import: -user is required")
	}
	if (*src == "") == (*feed == "") {
		return errors.New("import: exactly one of -src or -feed is required")
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *dir != "" {
		cfg.BlogsDir = *dir
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	codec, err := poststore.CodecFor(cfg.Format)
	if err != nil {
		return err
	}
	store := poststore.NewStore(poststore.Layout{Root: cfg.BlogsDir}, codec, log)

	l, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer l.Close()

	var source hashnode.Source = hashnode.DirSource{Dir: *src, Log: log}
	if *feed != "" {
		source = hashnode.FeedSource{URL: *feed}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	im := hashnode.NewImporter(store, hashnode.NewDownloader(nil, hashnode.DefaultPolicy(), log), l, log)
	rep, err := im.Run(ctx, source, hashnode.Options{User: *user, Force: *force})
	if err != nil {
		return err
	}
	fmt.Printf("found %d, imported %d, skipped %d, failed %d; images saved %d, failed %d\n",
		rep.Found, rep.Imported, rep.Skipped, rep.Failed, rep.ImagesSaved, rep.ImagesFailed)
	return nil
}

func runLedger(args []string) error {
	fs, cfgPath := newFlagSet("ledger")
	user := fs.String("user", "", "user to report on (required)")
	fs.Parse(args)

	if *user == "" {
		return errors.New("ledger: -user is required")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	l, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer l.Close()

	imports, err := l.Imports(*user)
	if err != nil {
		return err
	}
	failed, err := l.FailedDownloads(*user)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "IMPORTED\tORIGINAL ID\tPOST ID\tTITLE\n")
	for _, imp := range imports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", imp.ImportedAt.Format(time.DateTime), imp.OriginalID, imp.PostID, imp.Title)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "FAILED AT\tPOST ID\tATTEMPTS\tURL\tERROR\n")
	for _, d := range failed {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", d.At.Format(time.DateTime), d.PostID, d.Attempts, d.SourceURL, d.Err)
	}
	return w.Flush()
}
