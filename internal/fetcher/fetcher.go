package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hgncmap/internal/config"
	"hgncmap/internal/failure"
	"hgncmap/internal/logger"
	"hgncmap/internal/models"
	"hgncmap/pkg/metadata"
	"hgncmap/pkg/utils"
)

// Fetcher errors.
var (
	ErrNoTransport = errors.New("transport is required")
	ErrNoCacheDir  = errors.New("cache directory is required")
	ErrNoRecords   = errors.New("item contains no records")
)

var tracer = otel.Tracer("hgncmap/internal/fetcher")

// Options configures a Fetcher.
type Options struct {
	Transport Transport
	Remote    *RemotePaths
	Logger    *logger.Logger
	// Source is the base URL recorded in cache manifests.
	Source   string
	CacheDir string
	DocsPath string
	Tabular  TabularOptions
	// Verify checks cached files against their manifest before use.
	Verify bool
}

// Fetcher returns an item's records, downloading it on first access.
type Fetcher struct {
	transport Transport
	remote    *RemotePaths
	logger    *logger.Logger
	local     LocalPaths
	source    string
	docsPath  string
	tabular   TabularOptions
	verify    bool
}

// New creates a fetcher.
func New(opts Options) (*Fetcher, error) {
	if opts.Transport == nil {
		return nil, failure.Configuration("fetcher", ErrNoTransport)
	}

	if opts.CacheDir == "" {
		return nil, failure.Configuration("fetcher", ErrNoCacheDir)
	}

	if opts.Remote == nil {
		opts.Remote = NewRemotePaths("", nil)
	}

	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	return &Fetcher{
		transport: opts.Transport,
		remote:    opts.Remote,
		logger:    opts.Logger,
		local:     LocalPaths{Root: opts.CacheDir},
		source:    opts.Source,
		docsPath:  opts.DocsPath,
		tabular:   opts.Tabular,
		verify:    opts.Verify,
	}, nil
}

// NewFromConfig wires a fetcher from the loaded configuration.
func NewFromConfig(cfg *config.Config, log *logger.Logger) (*Fetcher, error) {
	transport, err := NewTransport(cfg.Source, cfg.Retry, log)
	if err != nil {
		return nil, failure.Configuration("fetcher", err)
	}

	return New(Options{
		Transport: transport,
		Remote:    NewRemotePaths(cfg.Source.Root, cfg.Source.Items),
		Logger:    log,
		Source:    cfg.Source.BaseURL(),
		CacheDir:  cfg.Cache.Dir,
		DocsPath:  cfg.Dataset.DocsPath,
		Tabular: TabularOptions{
			ListSeparator: cfg.Tabular.ListSeparator,
			ListColumns:   cfg.Tabular.ListColumns,
		},
		Verify: cfg.Cache.Verify,
	})
}

// CachePath returns where item is cached for enc.
func (f *Fetcher) CachePath(item string, enc Encoding) string {
	return f.local.Path(item, enc)
}

// Fetch returns the records of item, downloading it if the cache lacks it.
// Repeated calls read the cached file and return the same data.
func (f *Fetcher) Fetch(ctx context.Context, item string, enc Encoding) ([]models.Record, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()

	span.SetAttributes(attribute.String("item", item), attribute.String("encoding", enc.String()))

	records, err := f.fetch(ctx, item, enc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	span.SetAttributes(attribute.Int("records", len(records)))

	return records, nil
}

func (f *Fetcher) fetch(ctx context.Context, item string, enc Encoding) ([]models.Record, error) {
	localFile, err := f.ensureCached(ctx, item, enc)
	if err != nil {
		return nil, err
	}

	records, err := f.decodeFile(localFile, enc)
	if err != nil {
		return nil, failure.DataQuality("decode", -1, item, "", err)
	}

	if len(records) == 0 {
		return nil, failure.DataQuality("decode", -1, item, "", ErrNoRecords)
	}

	f.logger.Debug("decoded item", "item", item, "encoding", enc.String(), "records", len(records))

	return records, nil
}

// Refresh discards the cached copy of item and downloads it again.
func (f *Fetcher) Refresh(ctx context.Context, item string, enc Encoding) (*metadata.Manifest, error) {
	localFile := f.local.Path(item, enc)

	if err := os.Remove(localFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, failure.Transport("refresh", err)
	}

	if err := metadata.Remove(localFile); err != nil {
		return nil, failure.Transport("refresh", err)
	}

	return f.Download(ctx, item, enc)
}

// Verify checks the cached copy of item against its manifest.
func (f *Fetcher) Verify(item string, enc Encoding) (bool, error) {
	return metadata.Verify(f.local.Path(item, enc))
}

func (f *Fetcher) ensureCached(ctx context.Context, item string, enc Encoding) (string, error) {
	localFile := f.local.Path(item, enc)

	if _, err := os.Stat(localFile); err == nil {
		if !f.verify {
			return localFile, nil
		}

		ok, verr := metadata.Verify(localFile)

		switch {
		case ok:
			return localFile, nil
		case errors.Is(verr, metadata.ErrNoManifest):
			// Placed by hand; adopt it.
			f.logger.Warn("cached file has no manifest, signing it", "file", localFile)

			if _, serr := metadata.Sign(localFile, f.manifest(item, enc)); serr != nil {
				return "", failure.Transport("cache", serr)
			}

			return localFile, nil
		default:
			f.logger.Warn("cached file failed verification, downloading again", "file", localFile, "error", verr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", failure.Transport("cache", err)
	}

	if _, err := f.Download(ctx, item, enc); err != nil {
		return "", err
	}

	return localFile, nil
}

// Download retrieves item into the cache and writes its manifest. The file
// is written under a temporary name and only renamed into place once the
// transfer completes, so a failed download never leaves a partial cache.
func (f *Fetcher) Download(ctx context.Context, item string, enc Encoding) (*metadata.Manifest, error) {
	ctx, span := tracer.Start(ctx, "download")
	defer span.End()

	remotePath, err := f.remote.Path(item, enc)
	if err != nil {
		return nil, failure.Configuration("download", err)
	}

	localFile := f.local.Path(item, enc)
	span.SetAttributes(attribute.String("remote", remotePath))

	f.logger.Info("downloading", "item", item, "remote", remotePath, "local", localFile)

	start := time.Now()

	if err := f.retrieve(ctx, remotePath, localFile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, failure.Transport("download", err)
	}

	m, err := metadata.Sign(localFile, f.manifest(item, enc))
	if err != nil {
		return nil, failure.Transport("download", err)
	}

	f.logger.Info("downloaded", "item", item, "bytes", m.Size, "duration", time.Since(start))

	return m, nil
}

func (f *Fetcher) retrieve(ctx context.Context, remotePath, localFile string) (err error) {
	if err := os.MkdirAll(f.local.Root, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(f.local.Root, ".download-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	body, err := f.transport.Open(ctx, remotePath)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(tmp, body)
	closeErr := body.Close()

	if copyErr != nil {
		return fmt.Errorf("transfer %s: %w", remotePath, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", remotePath, closeErr)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), localFile); err != nil {
		return fmt.Errorf("move into cache: %w", err)
	}

	return nil
}

func (f *Fetcher) decodeFile(localFile string, enc Encoding) ([]models.Record, error) {
	file, err := os.Open(localFile)
	if err != nil {
		return nil, fmt.Errorf("open cached file: %w", err)
	}
	defer file.Close()

	if enc == Structured {
		return DecodeStructured(file, f.docsPath)
	}

	return DecodeTabular(file, f.tabular)
}

func (f *Fetcher) manifest(item string, enc Encoding) metadata.Manifest {
	remotePath, _ := f.remote.Path(item, enc)

	return metadata.Manifest{
		Item:     item,
		Encoding: enc.String(),
		Source:   utils.NewHTTPHelper().JoinURL(f.source, remotePath),
	}
}
