// Package config provides configuration management for the HGNC mapper.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hgncmap/pkg/utils"
)

// Configuration validation errors.
var (
	ErrInvalidScheme            = errors.New("source.scheme must be one of: ftp, http, https")
	ErrMissingServer            = errors.New("source.server is required")
	ErrInvalidServer            = errors.New("source.server does not form a valid URL")
	ErrNoItems                  = errors.New("source.items must list at least one item")
	ErrInvalidMaxAttempts       = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("retry.timeout_sec must be at least 1")
	ErrMissingCacheDir          = errors.New("cache.dir is required")
	ErrMissingItem              = errors.New("dataset.item is required")
	ErrUnknownItem              = errors.New("dataset.item is not listed in source.items")
	ErrInvalidEncoding          = errors.New("dataset.encoding must name the structured or tabular encoding")
	ErrInvalidSink              = errors.New("output.sink must be 'file' or 'mongo'")
	ErrMissingOutputPath        = errors.New("output.path is required for the file sink")
	ErrMissingMongoURI          = errors.New("output.mongo.uri is required for the mongo sink")
	ErrInvalidBatchSize         = errors.New("output.mongo.batch_size must be at least 1")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat         = errors.New("logging.format must be 'text' or 'json'")
)

// Config represents the complete mapper configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Dataset DatasetConfig `yaml:"dataset"`
	Output  OutputConfig  `yaml:"output"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Tabular TabularConfig `yaml:"tabular"`
	Retry   RetryPolicy   `yaml:"retry"`
	Tracing TracingConfig `yaml:"tracing"`
}

// SourceConfig describes the remote file server.
type SourceConfig struct {
	// Items maps an item name to its directory below Root.
	Items  map[string]string `yaml:"items"`
	Scheme string            `yaml:"scheme"`
	Server string            `yaml:"server"`
	Root   string            `yaml:"root"`
}

// BaseURL returns scheme://server.
func (s *SourceConfig) BaseURL() string {
	return s.Scheme + "://" + s.Server
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// CacheConfig defines the local download cache.
type CacheConfig struct {
	Dir    string `yaml:"dir"`
	Verify bool   `yaml:"verify"`
}

// DatasetConfig selects what to load and how strictly.
type DatasetConfig struct {
	Item                 string `yaml:"item"`
	Encoding             string `yaml:"encoding"`
	DocsPath             string `yaml:"docs_path"`
	MappingTable         string `yaml:"mapping_table"`
	ContinueOnDataErrors bool   `yaml:"continue_on_data_errors"`
	StrictKeys           bool   `yaml:"strict_keys"`
}

// TabularConfig controls decoding of the tab-separated encoding.
type TabularConfig struct {
	ListSeparator string   `yaml:"list_separator"`
	ListColumns   []string `yaml:"list_columns"`
}

// OutputConfig defines where normalized data is published.
type OutputConfig struct {
	Sink        string      `yaml:"sink"`
	Path        string      `yaml:"path"`
	Mongo       MongoConfig `yaml:"mongo"`
	PrettyPrint bool        `yaml:"pretty_print"`
}

// MongoConfig configures the MongoDB publisher.
type MongoConfig struct {
	URI                   string `yaml:"uri"`
	Database              string `yaml:"database"`
	DefinitionsCollection string `yaml:"definitions_collection"`
	BatchSize             int    `yaml:"batch_size"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration pointing at the EBI mirror of HGNC.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Scheme: "ftp",
			Server: "ftp.ebi.ac.uk",
			Root:   "pub/databases",
			Items: map[string]string{
				"non_alt_loci_set":  "genenames/new",
				"hgnc_complete_set": "genenames/new",
			},
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        30000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        300,
		},
		Cache: CacheConfig{
			Dir:    "data/download/hgnc",
			Verify: true,
		},
		Dataset: DatasetConfig{
			Item:     "hgnc_complete_set",
			Encoding: "structured",
			DocsPath: "response.docs",
		},
		Tabular: TabularConfig{
			ListSeparator: "|",
			ListColumns:   []string{"pubmed_id", "gene_family_id", "uniprot_ids", "refseq_accession"},
		},
		Output: OutputConfig{
			Sink: "file",
			Path: "data/out",
			Mongo: MongoConfig{
				Database:              "biomap",
				DefinitionsCollection: "_mapping_definitions",
				BatchSize:             1000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Encoding names accepted in config files and flags.
var (
	StructuredEncodings = []string{"structured", "json"}
	TabularEncodings    = []string{"tabular", "txt", "tsv", "dataframe"}
)

// EncodingKind returns "structured" or "tabular" for an accepted encoding
// name, and "" for anything else.
func EncodingKind(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	switch {
	case slices.Contains(StructuredEncodings, name):
		return "structured"
	case slices.Contains(TabularEncodings, name):
		return "tabular"
	}

	return ""
}

// LoadConfig loads configuration from a YAML file on top of Default().
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of Default() and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Source.Scheme {
	case "ftp", "http", "https":
	default:
		return ErrInvalidScheme
	}

	if c.Source.Server == "" {
		return ErrMissingServer
	}

	if !utils.NewHTTPHelper().IsValidURL(c.Source.BaseURL()) {
		return fmt.Errorf("%w: %s", ErrInvalidServer, c.Source.BaseURL())
	}

	if len(c.Source.Items) == 0 {
		return ErrNoItems
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Cache.Dir == "" {
		return ErrMissingCacheDir
	}

	if c.Dataset.Item == "" {
		return ErrMissingItem
	}

	if _, ok := c.Source.Items[c.Dataset.Item]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, c.Dataset.Item)
	}

	if EncodingKind(c.Dataset.Encoding) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEncoding, c.Dataset.Encoding)
	}

	switch c.Output.Sink {
	case "file":
		if c.Output.Path == "" {
			return ErrMissingOutputPath
		}
	case "mongo":
		if c.Output.Mongo.URI == "" {
			return ErrMissingMongoURI
		}

		if c.Output.Mongo.BatchSize < 1 {
			return ErrInvalidBatchSize
		}
	default:
		return ErrInvalidSink
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Source: %s, Item: %s, Cache: %s, Sink: %s}",
		c.Source.BaseURL(),
		c.Dataset.Item,
		c.Cache.Dir,
		c.Output.Sink,
	)
}
