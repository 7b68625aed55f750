// Package metadata maintains the sidecar manifests that sit next to cached
// downloads and lets callers check a cached file against its recorded hash.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Suffix is appended to a cached file's path to name its manifest.
const Suffix = ".meta.yaml"

// Manifest verification errors.
var (
	ErrNoManifest   = errors.New("no manifest found")
	ErrNoHashFound  = errors.New("no hash found in manifest")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Manifest describes one cached download.
type Manifest struct {
	FetchedAt time.Time `yaml:"fetched_at"`
	Item      string    `yaml:"item"`
	Encoding  string    `yaml:"encoding"`
	Source    string    `yaml:"source"`
	Hash      string    `yaml:"hash"`
	Size      int64     `yaml:"size"`
}

// PathFor returns the manifest path for a cached file.
func PathFor(file string) string {
	return file + Suffix
}

// CalculateHash computes the SHA-256 of a file's content.
func CalculateHash(file string) (string, int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", file, err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Sign hashes file and writes its manifest next to it.
func Sign(file string, m Manifest) (*Manifest, error) {
	hash, size, err := CalculateHash(file)
	if err != nil {
		return nil, err
	}

	m.Hash = hash
	m.Size = size

	if m.FetchedAt.IsZero() {
		m.FetchedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(PathFor(file), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return &m, nil
}

// Load reads the manifest for file.
func Load(file string) (*Manifest, error) {
	data, err := os.ReadFile(PathFor(file))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoManifest
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &m, nil
}

// Verify checks that file still matches the hash in its manifest.
func Verify(file string) (bool, error) {
	m, err := Load(file)
	if err != nil {
		return false, err
	}

	if m.Hash == "" {
		return false, ErrNoHashFound
	}

	calculated, _, err := CalculateHash(file)
	if err != nil {
		return false, err
	}

	if calculated != m.Hash {
		return false, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, m.Hash, calculated)
	}

	return true, nil
}

// Remove deletes the manifest for file, ignoring a missing one.
func Remove(file string) error {
	if err := os.Remove(PathFor(file)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}

	return nil
}
