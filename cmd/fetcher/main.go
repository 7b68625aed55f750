// Package main provides the fetcher command for managing the local cache
// of HGNC downloads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hgncmap/internal/config"
	"hgncmap/internal/failure"
	"hgncmap/internal/fetcher"
	"hgncmap/internal/logger"
	"hgncmap/pkg/utils"
)

const usage = `Usage: fetcher [flags] <download|refresh|verify|fetch|list>

  download  retrieve the item into the cache if it is not there yet
  refresh   discard the cached copy and download it again
  verify    check the cached copy against its manifest
  fetch     decode the item and print a preview of its first record
  list      list the items known to the source

Flags:
`

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults are used when empty)")
	item := flag.String("item", "", "HGNC item (overrides dataset.item)")
	encoding := flag.String("encoding", "", "structured or tabular (overrides dataset.encoding)")
	cacheDir := flag.String("cache-dir", "", "Cache directory (overrides cache.dir)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()

	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			exit(failure.Configuration("config", err))
		}

		cfg = loaded
	}

	if *item != "" {
		cfg.Dataset.Item = *item
	}

	if *encoding != "" {
		cfg.Dataset.Encoding = *encoding
	}

	if *cacheDir != "" {
		cfg.Cache.Dir = *cacheDir
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		exit(failure.Configuration("config", err))
	}

	enc, err := fetcher.ParseEncoding(cfg.Dataset.Encoding)
	if err != nil {
		exit(failure.Configuration("config", err))
	}

	log := logger.New(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	f, err := fetcher.NewFromConfig(cfg, log)
	if err != nil {
		exit(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := cfg.Dataset.Item
	path := f.CachePath(name, enc)

	switch action := flag.Arg(0); action {
	case "download":
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Printf("✅ Already cached: %s\n", path)

			return
		}

		m, err := f.Download(ctx, name, enc)
		if err != nil {
			exit(err)
		}

		fmt.Printf("✅ Downloaded %s (%d bytes, sha256 %s)\n", path, m.Size, m.Hash)

	case "refresh":
		m, err := f.Refresh(ctx, name, enc)
		if err != nil {
			exit(err)
		}

		fmt.Printf("✅ Refreshed %s (%d bytes, sha256 %s)\n", path, m.Size, m.Hash)

	case "verify":
		ok, err := f.Verify(name, enc)
		if err != nil || !ok {
			fmt.Printf("❌ %s failed verification: %v\n", path, err)
			os.Exit(1)
		}

		fmt.Printf("✅ %s matches its manifest\n", path)

	case "fetch":
		records, err := f.Fetch(ctx, name, enc)
		if err != nil {
			exit(err)
		}

		fmt.Printf("📂 %s: %d records\n", name, len(records))
		fmt.Printf("🔍 First record: %s\n", utils.NewStringHelper().Preview(map[string]any(records[0]), 400))

	case "list":
		remotes := fetcher.NewRemotePaths(cfg.Source.Root, cfg.Source.Items)

		for _, it := range remotes.Items() {
			remote, _ := remotes.Path(it, enc)
			fmt.Printf("%s\t%s\n", it, utils.NewHTTPHelper().JoinURL(cfg.Source.BaseURL(), remote))
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", action)
		flag.Usage()
		os.Exit(2)
	}
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	os.Exit(failure.ExitCode(err))
}
