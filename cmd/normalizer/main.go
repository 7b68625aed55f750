// Package main provides the normalizer command-line tool for cleaning a
// local HGNC file without touching the network or the cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"hgncmap/internal/config"
	"hgncmap/internal/fetcher"
	"hgncmap/internal/hgnc"
	"hgncmap/internal/logger"
	"hgncmap/internal/models"
	"hgncmap/internal/normalizer"
)

func main() {
	inputPath := flag.String("input", "", "Path to input file (e.g., hgnc_complete_set.json)")
	outputPath := flag.String("output", "", "Path to output JSON file")
	encoding := flag.String("encoding", "", "structured or tabular (guessed from the extension when empty)")
	keepGoing := flag.Bool("continue", false, "Drop records that fail cleaning instead of aborting")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		fmt.Println("Usage: normalizer -input <hgnc_complete_set.json> -output <cleaned.json>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *encoding == "" {
		*encoding = strings.TrimPrefix(filepath.Ext(*inputPath), ".")
	}

	enc, err := fetcher.ParseEncoding(*encoding)
	if err != nil {
		log.Fatalf("Error: %v\n", err)
	}

	file, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("Error reading file: %v\n", err)
	}

	fmt.Printf("📂 Reading: %s (%s)\n", *inputPath, enc)

	defaults := config.Default()

	var records []models.Record

	if enc == fetcher.Structured {
		records, err = fetcher.DecodeStructured(file, defaults.Dataset.DocsPath)
	} else {
		records, err = fetcher.DecodeTabular(file, fetcher.TabularOptions{
			ListSeparator: defaults.Tabular.ListSeparator,
			ListColumns:   defaults.Tabular.ListColumns,
		})
	}

	file.Close()

	if err != nil {
		log.Fatalf("Error decoding %s: %v\n", *inputPath, err)
	}

	fmt.Printf("📊 Decoded %d records\n", len(records))

	proc, err := normalizer.NewProcessor(hgnc.RuleSet(), normalizer.Options{
		Logger:               logger.NewLogger("warn"),
		ContinueOnDataErrors: *keepGoing,
	})
	if err != nil {
		log.Fatalf("Error building rules: %v\n", err)
	}

	result, err := proc.Process(context.Background(), records)
	if err != nil {
		log.Fatalf("❌ Normalization failed: %v\n", err)
	}

	fmt.Printf("✅ Cleaned %d records (%d rejected, %d keys renamed)\n", len(result.Records), len(result.Rejected), len(result.Renamed))
	fmt.Printf("🔑 Supported keys: %s\n", strings.Join(result.SupportedKeys, ", "))
	fmt.Printf("📚 List-valued keys: %s\n", strings.Join(result.ListValuedKeys, ", "))

	if mkdirErr := os.MkdirAll(filepath.Dir(*outputPath), 0755); mkdirErr != nil {
		log.Fatalf("Error creating directory: %v\n", mkdirErr)
	}

	jsonData, err := json.MarshalIndent(map[string]any{
		"supported_keys":   result.SupportedKeys,
		"list_valued_keys": result.ListValuedKeys,
		"docs":             result.Records,
	}, "", "  ")
	if err != nil {
		log.Fatalf("Error marshaling JSON: %v\n", err)
	}

	if err := os.WriteFile(*outputPath, jsonData, 0644); err != nil {
		log.Fatalf("Error writing file: %v\n", err)
	}

	fmt.Printf("✅ Saved to: %s\n", *outputPath)
}
