// Package main provides the worker command: fetch an HGNC item, clean it,
// build its mapping definition and publish both to the configured sink.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hgncmap/internal/config"
	"hgncmap/internal/failure"
	"hgncmap/internal/fetcher"
	"hgncmap/internal/formatter"
	"hgncmap/internal/hgnc"
	"hgncmap/internal/inserter"
	"hgncmap/internal/logger"
	"hgncmap/internal/mapping"
	"hgncmap/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults are used when empty)")
	item := flag.String("item", "", "HGNC item to load (overrides dataset.item)")
	sink := flag.String("sink", "", "Output sink: file or mongo (overrides output.sink)")
	output := flag.String("output", "", "Output directory for the file sink (overrides output.path)")
	mongoURI := flag.String("mongo-uri", os.Getenv("HGNCMAP_MONGO_URI"), "MongoDB URI for the mongo sink")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	dryRun := flag.Bool("dry-run", false, "Build the mapper but do not publish")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(failure.ExitCode(err))
	}

	if *item != "" {
		cfg.Dataset.Item = *item
	}

	if *sink != "" {
		cfg.Output.Sink = *sink
	}

	if *output != "" {
		cfg.Output.Path = *output
	}

	if *mongoURI != "" {
		cfg.Output.Mongo.URI = *mongoURI
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		err = failure.Configuration("config", err)
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(failure.ExitCode(err))
	}

	log := logger.New(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *dryRun); err != nil {
		log.Error("❌ Pipeline failed", "kind", string(failure.KindOf(err)), "error", err)
		stop()
		os.Exit(failure.ExitCode(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, failure.Configuration("config", err)
	}

	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, dryRun bool) (err error) {
	shutdown := telemetry.Setup(cfg.Tracing.Enabled, log)
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			log.Warn("tracing shutdown failed", "error", serr)
		}
	}()

	log.Info("🚀 Starting hgncmap worker")
	log.Info("📍 Source", "url", cfg.Source.BaseURL(), "item", cfg.Dataset.Item)
	log.Info("🎯 Target", "sink", cfg.Output.Sink)

	startTime := time.Now()

	var table *mapping.Table
	if cfg.Dataset.MappingTable != "" {
		table, err = mapping.LoadTable(cfg.Dataset.MappingTable)
		if err != nil {
			return failure.Configuration("mapping table", err)
		}
	}

	// Phase 1: fetch and clean.
	log.Info("Phase 1: Fetching and normalizing...")

	f, err := fetcher.NewFromConfig(cfg, log)
	if err != nil {
		return err
	}

	mapper, err := hgnc.NewMapper(ctx, f, hgnc.Options{
		Logger:               log,
		Table:                table,
		Item:                 cfg.Dataset.Item,
		ContinueOnDataErrors: cfg.Dataset.ContinueOnDataErrors,
		StrictKeys:           cfg.Dataset.StrictKeys,
	})
	if err != nil {
		return err
	}

	def := mapper.MapperDefinition()
	log.Info("✅ Mapper ready", "records", len(mapper.MapperData()), "duration", time.Since(startTime))

	fields := []formatter.Field{
		{Name: "Dataset", Value: def.Name},
		{Name: "Item", Value: cfg.Dataset.Item},
		{Name: "Records", Value: fmt.Sprint(len(mapper.MapperData()))},
		{Name: "Rejected", Value: fmt.Sprint(len(mapper.Rejected()))},
		{Name: "Supported keys", Value: fmt.Sprint(len(def.SupportedKeys))},
		{Name: "List-valued keys", Value: fmt.Sprint(len(def.ListValuedKeys))},
	}

	if dryRun {
		log.Info("Dry run, skipping publish")
		printReport(fields, startTime, mapper.Rejected())

		return nil
	}

	// Phase 2: publish.
	log.Info("Phase 2: Publishing...")

	ins, closeSink, err := inserter.NewFromConfig(ctx, cfg.Output, log)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := closeSink(context.Background()); cerr != nil {
			err = errors.Join(err, failure.Transport("close sink", cerr))
		}
	}()

	result, err := inserter.Publish(ctx, ins, mapper, log)
	if err != nil {
		return err
	}

	fields = append(fields,
		formatter.Field{Name: "Run ID", Value: result.RunID},
		formatter.Field{Name: "Sink", Value: result.Sink},
		formatter.Field{Name: "Location", Value: result.Location},
		formatter.Field{Name: "Batches", Value: fmt.Sprint(result.Batches)},
	)

	log.Info("✨ Pipeline Complete!")
	printReport(fields, startTime, mapper.Rejected())

	return nil
}

func printReport(fields []formatter.Field, startTime time.Time, rejected []error) {
	fields = append(fields, formatter.Field{Name: "Total duration", Value: time.Since(startTime).Round(time.Millisecond).String()})

	fmt.Println()
	fmt.Print(formatter.Summary("📊 Summary Report", fields))

	if len(rejected) > 0 {
		fmt.Printf("\n⚠️  Rejected records: %d\n", len(rejected))

		for _, e := range rejected {
			fmt.Printf("  - %v\n", e)
		}
	}
}
