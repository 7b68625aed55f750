package inserter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hgncmap/internal/failure"
	"hgncmap/internal/models"
)

// File name suffixes written by FileInserter.
const (
	DefinitionSuffix = ".definition.json"
	DataSuffix       = ".data.jsonl"
)

// FileInserter writes <dir>/<name>.definition.json and
// <dir>/<mapper_data>.data.jsonl, one record per line.
type FileInserter struct {
	Dir    string
	Pretty bool
}

// NewFileInserter creates a file sink rooted at dir.
func NewFileInserter(dir string, pretty bool) *FileInserter {
	return &FileInserter{Dir: dir, Pretty: pretty}
}

// DefinitionPath returns where the definition for name is written.
func (f *FileInserter) DefinitionPath(name string) string {
	return filepath.Join(f.Dir, name+DefinitionSuffix)
}

// DataPath returns where the records for mapperData are written.
func (f *FileInserter) DataPath(mapperData string) string {
	return filepath.Join(f.Dir, mapperData+DataSuffix)
}

// Insert replaces both files. Each is written under a temporary name and
// renamed into place.
func (f *FileInserter) Insert(ctx context.Context, def models.MappingDefinition, data []models.Record) (*Result, error) {
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return nil, failure.Transport("insert", fmt.Errorf("create output directory: %w", err))
	}

	dataPath := f.DataPath(def.MapperData)

	err := writeAtomic(dataPath, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)

		for i, rec := range data {
			if i%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("encode record %d: %w", i, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, failure.Transport("insert", err)
	}

	err = writeAtomic(f.DefinitionPath(def.Name), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)

		if f.Pretty {
			enc.SetIndent("", "  ")
		}

		return enc.Encode(def)
	})
	if err != nil {
		return nil, failure.Transport("insert", err)
	}

	return &Result{
		PublishedAt: time.Now().UTC(),
		Sink:        "file",
		Dataset:     def.Name,
		Location:    dataPath,
		Records:     len(data),
		Batches:     1,
	}, nil
}

func writeAtomic(path string, write func(w *bufio.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)

	if err := write(w); err != nil {
		return err
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move %s into place: %w", path, err)
	}

	return nil
}
