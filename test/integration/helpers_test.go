package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"hgncmap/internal/config"
)

// fixtureServer serves test/fixtures under the remote layout of the HGNC
// file server and counts the requests it answers.
type fixtureServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newFixtureServer(t *testing.T) *fixtureServer {
	t.Helper()

	fs := &fixtureServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)

		const prefix = "/pub/databases/genenames/new/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			http.NotFound(w, r)

			return
		}

		name := filepath.Base(r.URL.Path)

		data, err := os.ReadFile(filepath.Join("..", "fixtures", name))
		if err != nil {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write(data)
	}))

	t.Cleanup(fs.Close)

	return fs
}

func testConfig(t *testing.T, server *fixtureServer) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Source.Scheme = "http"
	cfg.Source.Server = strings.TrimPrefix(server.URL, "http://")
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")
	cfg.Output.Path = filepath.Join(t.TempDir(), "out")
	cfg.Retry.MaxAttempts = 1

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	return cfg
}
