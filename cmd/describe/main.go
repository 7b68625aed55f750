// Package main provides the describe command, which loads an HGNC item and
// prints its mapping definition.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hgncmap/internal/config"
	"hgncmap/internal/failure"
	"hgncmap/internal/fetcher"
	"hgncmap/internal/formatter"
	"hgncmap/internal/hgnc"
	"hgncmap/internal/logger"
	"hgncmap/internal/mapping"
	"hgncmap/internal/models"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults are used when empty)")
	item := flag.String("item", "", "HGNC item (overrides dataset.item)")
	format := flag.String("format", "markdown", "Output format: markdown, json or yaml")
	outPath := flag.String("output", "", "Write to this file instead of stdout")
	notesPath := flag.String("notes", "", "Markdown notes appended to the markdown output")
	flag.Parse()

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

	if err := cfg.Validate(); err != nil {
		exit(failure.Configuration("config", err))
	}

	// Progress goes to stderr so the definition can be piped.
	log := logger.New(logger.Options{Writer: os.Stderr, Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	var table *mapping.Table

	if cfg.Dataset.MappingTable != "" {
		t, err := mapping.LoadTable(cfg.Dataset.MappingTable)
		if err != nil {
			exit(failure.Configuration("mapping table", err))
		}

		table = t
	}

	f, err := fetcher.NewFromConfig(cfg, log)
	if err != nil {
		exit(err)
	}

	mapper, err := hgnc.NewMapper(context.Background(), f, hgnc.Options{
		Logger:               log,
		Table:                table,
		Item:                 cfg.Dataset.Item,
		ContinueOnDataErrors: cfg.Dataset.ContinueOnDataErrors,
		StrictKeys:           cfg.Dataset.StrictKeys,
	})
	if err != nil {
		exit(err)
	}

	var notes string

	if *notesPath != "" {
		data, err := os.ReadFile(*notesPath)
		if err != nil {
			exit(failure.Configuration("notes", err))
		}

		notes = string(data)
	}

	out, err := render(mapper.MapperDefinition(), *format, notes)
	if err != nil {
		exit(failure.Configuration("describe", err))
	}

	if *outPath == "" {
		fmt.Print(out)

		return
	}

	if err := os.WriteFile(*outPath, []byte(out), 0644); err != nil {
		exit(err)
	}

	fmt.Fprintf(os.Stderr, "✅ Wrote %s\n", *outPath)
}

func render(def models.MappingDefinition, format, notes string) (string, error) {
	switch format {
	case "markdown", "md":
		return formatter.Document(def, notes), nil
	case "json":
		data, err := json.MarshalIndent(def, "", "  ")
		if err != nil {
			return "", err
		}

		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(def)
		if err != nil {
			return "", err
		}

		return string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	os.Exit(failure.ExitCode(err))
}
