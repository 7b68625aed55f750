package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"hgncmap/internal/failure"
	"hgncmap/internal/fetcher"
	"hgncmap/internal/hgnc"
	"hgncmap/internal/inserter"
	"hgncmap/internal/logger"
	"hgncmap/internal/models"
)

func TestWorkerFlow_CompleteSet(t *testing.T) {
	server := newFixtureServer(t)
	cfg := testConfig(t, server)
	log := logger.Discard()
	ctx := context.Background()

	// 1. Fetch and clean.
	f, err := fetcher.NewFromConfig(cfg, log)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	mapper, err := hgnc.NewMapper(ctx, f, hgnc.Options{Logger: log})
	if err != nil {
		t.Fatalf("NewMapper failed: %v", err)
	}

	data := mapper.MapperData()
	if len(data) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(data))
	}

	def := mapper.MapperDefinition()

	if def.Name != "hgnc" || def.MainKey != "symbol" {
		t.Errorf("Unexpected definition header: %s / %s", def.Name, def.MainKey)
	}

	if !def.Supports("pseudogene_org") || def.Supports("pseudogene.org") {
		t.Errorf("Expected pseudogene_org to replace pseudogene.org in %v", def.SupportedKeys)
	}

	if !def.Supports(def.KeySynonyms["entrez"]) {
		t.Errorf("Synonym target %s is not a supported key", def.KeySynonyms["entrez"])
	}

	a2m := data[1]
	if a2m["iuphar"] != "2898" {
		t.Errorf("Expected iuphar 2898, got %#v", a2m["iuphar"])
	}

	if a2m["orphanet"] != "410627" {
		t.Errorf("Expected orphanet \"410627\", got %#v", a2m["orphanet"])
	}

	pubmed, ok := a2m["pubmed_id"].([]any)
	if !ok || len(pubmed) != 2 || pubmed[0] != "2408344" {
		t.Errorf("Expected stringified pubmed ids, got %#v", a2m["pubmed_id"])
	}

	for _, rec := range data {
		for key := range rec {
			if !def.Supports(key) {
				t.Errorf("Record key %s missing from supported keys", key)
			}
		}
	}

	// 2. Publish.
	ins := inserter.NewFileInserter(cfg.Output.Path, cfg.Output.PrettyPrint)

	result, err := inserter.Publish(ctx, ins, mapper, log)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if result.Records != 4 || result.RunID == "" {
		t.Errorf("Unexpected publish result %+v", result)
	}

	raw, err := os.ReadFile(ins.DefinitionPath("hgnc"))
	if err != nil {
		t.Fatalf("Definition not written: %v", err)
	}

	var stored models.MappingDefinition
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("Definition is not valid JSON: %v", err)
	}

	if len(stored.SupportedKeys) != len(def.SupportedKeys) || stored.MiriamMapping["ncbigene"] != "entrez_id" {
		t.Errorf("Stored definition differs: %+v", stored)
	}

	file, err := os.Open(ins.DataPath("hgnc"))
	if err != nil {
		t.Fatalf("Data not written: %v", err)
	}
	defer file.Close()

	lines := 0
	for scanner := bufio.NewScanner(file); scanner.Scan(); {
		lines++
	}

	if lines != 4 {
		t.Errorf("Expected 4 data lines, got %d", lines)
	}
}

func TestWorkerFlow_CacheIsReused(t *testing.T) {
	server := newFixtureServer(t)
	cfg := testConfig(t, server)
	ctx := context.Background()

	f, err := fetcher.NewFromConfig(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	first, err := f.Fetch(ctx, hgnc.ItemCompleteSet, fetcher.Structured)
	if err != nil {
		t.Fatalf("first Fetch failed: %v", err)
	}

	second, err := f.Fetch(ctx, hgnc.ItemCompleteSet, fetcher.Structured)
	if err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}

	if got := server.hits.Load(); got != 1 {
		t.Errorf("Expected one download, server saw %d requests", got)
	}

	if len(first) != len(second) {
		t.Errorf("Cached fetch returned %d records, first returned %d", len(second), len(first))
	}

	cached := filepath.Join(cfg.Cache.Dir, "hgnc_complete_set.json")
	if ok, err := f.Verify(hgnc.ItemCompleteSet, fetcher.Structured); !ok || err != nil {
		t.Errorf("Cached file %s failed verification: %v", cached, err)
	}
}

func TestWorkerFlow_TransportFailureStopsPipeline(t *testing.T) {
	server := newFixtureServer(t)
	cfg := testConfig(t, server)
	cfg.Source.Items["withdrawn"] = "genenames/old"

	f, err := fetcher.NewFromConfig(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}

	_, err = hgnc.NewMapper(context.Background(), f, hgnc.Options{Item: "withdrawn"})
	if failure.KindOf(err) != failure.KindTransport {
		t.Fatalf("Expected a transport failure, got %v", err)
	}

	entries, _ := os.ReadDir(cfg.Cache.Dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".part" || e.Name() == "withdrawn.json" {
			t.Errorf("Failed download left %s in the cache", e.Name())
		}
	}
}
