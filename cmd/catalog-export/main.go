package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-console/internal/catalog"
	"github.com/xenking/catalog-console/internal/export"
)

func main() {
	var (
		upstreamURL string
		out         string
		timeout     time.Duration
		opt         = export.DefaultOptions
	)

	flag.StringVar(&upstreamURL, "upstream-url", "https://dummyjson.com", "remote catalog API base URL (or CATALOG_UPSTREAM_BASE_URL env)")
	flag.StringVar(&out, "out", "catalog.json", `output file, ".gz" suffix compresses, "-" writes to stdout`)
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "timeout of a single remote call")
	flag.IntVar(&opt.Window, "window", opt.Window, "products requested per call")
	flag.IntVar(&opt.Concurrency, "concurrency", opt.Concurrency, "calls in flight at once")
	flag.Parse()

	if v := os.Getenv("CATALOG_UPSTREAM_BASE_URL"); v != "" && !isFlagSet("upstream-url") {
		upstreamURL = v
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, upstreamURL, out, timeout, opt); err != nil {
		slog.Error("catalog export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, upstreamURL, out string, timeout time.Duration, opt export.Options) error {
	// The export never lists through the console path, so its snapshot stays
	// empty.
	client, err := catalog.NewClient(catalog.Config{BaseURL: upstreamURL, Timeout: timeout}, catalog.NewSnapshot())
	if err != nil {
		return errors.Wrap(err, "create catalog client")
	}

	start := time.Now()
	slog.Info("fetching catalog",
		slog.String("upstream", upstreamURL),
		slog.Int("window", opt.Window),
		slog.Int("concurrency", opt.Concurrency),
	)
	products, err := export.Fetch(ctx, client, opt)
	if err != nil {
		return errors.Wrap(err, "fetch catalog")
	}
	slog.Info("catalog fetched",
		slog.Int("products", len(products)),
		slog.Duration("took", time.Since(start)),
	)

	w, err := export.Create(out)
	if err != nil {
		return err
	}
	if err := export.Write(w, products, time.Now()); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "close %s", out)
	}

	slog.Info("catalog export completed", slog.String("out", out))
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
