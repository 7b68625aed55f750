package fetcher

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hgncmap/internal/failure"
	"hgncmap/pkg/metadata"
)

const completeSetJSON = `{"responseHeader":{"status":0},"response":{"numFound":2,"docs":[
 {"hgnc_id":"HGNC:5","symbol":"A1BG","pubmed_id":[2591067],"entrez_id":"1"},
 {"hgnc_id":"HGNC:37133","symbol":"A1BG-AS1","pseudogene.org":"PGOHUM00000244550"}
]}}`

var errConnRefused = errors.New("connection refused")

// fakeTransport serves fixed content per remote path and counts opens.
type fakeTransport struct {
	files map[string]string
	err   error
	opens int
}

func (t *fakeTransport) Open(_ context.Context, remotePath string) (io.ReadCloser, error) {
	t.opens++

	if t.err != nil {
		return nil, t.err
	}

	content, ok := t.files[remotePath]
	if !ok {
		return nil, errors.New("550 file not found")
	}

	return io.NopCloser(strings.NewReader(content)), nil
}

func newTestFetcher(t *testing.T, transport Transport, verify bool) (*Fetcher, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "cache")

	f, err := New(Options{
		Transport: transport,
		Remote: NewRemotePaths("pub/databases", map[string]string{
			"hgnc_complete_set": "genenames/new",
			"non_alt_loci_set":  "genenames/new",
		}),
		Source:   "ftp://ftp.ebi.ac.uk",
		CacheDir: dir,
		DocsPath: "response.docs",
		Tabular:  TabularOptions{ListSeparator: "|", ListColumns: []string{"pubmed_id"}},
		Verify:   verify,
	})
	require.NoError(t, err)

	return f, dir
}

const jsonPath = "pub/databases/genenames/new/json/hgnc_complete_set.json"

func TestNew_RequiresTransportAndCacheDir(t *testing.T) {
	_, err := New(Options{CacheDir: "x"})
	assert.ErrorIs(t, err, ErrNoTransport)
	assert.ErrorIs(t, err, failure.ErrConfiguration)

	_, err = New(Options{Transport: &fakeTransport{}})
	assert.ErrorIs(t, err, ErrNoCacheDir)
}

func TestFetch_DownloadsOnceThenUsesCache(t *testing.T) {
	transport := &fakeTransport{files: map[string]string{jsonPath: completeSetJSON}}
	f, dir := newTestFetcher(t, transport, true)

	first, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "A1BG", first[0]["symbol"])

	second, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, transport.opens, "second fetch should be served from cache")

	cached := filepath.Join(dir, "hgnc_complete_set.json")
	assert.Equal(t, cached, f.CachePath("hgnc_complete_set", Structured))

	m, err := metadata.Load(cached)
	require.NoError(t, err)
	assert.Equal(t, "hgnc_complete_set", m.Item)
	assert.Equal(t, "structured", m.Encoding)
	assert.Equal(t, "ftp://ftp.ebi.ac.uk/"+jsonPath, m.Source)
}

func TestFetch_TransportFailureLeavesNoCache(t *testing.T) {
	transport := &fakeTransport{err: errConnRefused}
	f, dir := newTestFetcher(t, transport, false)

	records, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, failure.ErrTransport)
	assert.ErrorIs(t, err, errConnRefused)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "failed download must not leave files behind")
}

func TestFetch_UnknownItemIsConfigurationError(t *testing.T) {
	f, _ := newTestFetcher(t, &fakeTransport{}, false)

	_, err := f.Fetch(context.Background(), "withdrawn_set", Structured)
	assert.ErrorIs(t, err, failure.ErrConfiguration)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestFetch_EmptyDocsIsDataQualityError(t *testing.T) {
	transport := &fakeTransport{files: map[string]string{jsonPath: `{"response":{"docs":[]}}`}}
	f, _ := newTestFetcher(t, transport, false)

	_, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	assert.ErrorIs(t, err, failure.ErrDataQuality)
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestFetch_TamperedCacheIsDownloadedAgain(t *testing.T) {
	transport := &fakeTransport{files: map[string]string{jsonPath: completeSetJSON}}
	f, dir := newTestFetcher(t, transport, true)

	_, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	require.NoError(t, err)

	cached := filepath.Join(dir, "hgnc_complete_set.json")
	require.NoError(t, os.WriteFile(cached, []byte(`{"response":{"docs":[{"symbol":"X"}]}}`), 0644))

	records, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, transport.opens)
}

func TestFetch_AdoptsHandPlacedFile(t *testing.T) {
	transport := &fakeTransport{}
	f, dir := newTestFetcher(t, transport, true)

	require.NoError(t, os.MkdirAll(dir, 0755))

	cached := filepath.Join(dir, "hgnc_complete_set.json")
	require.NoError(t, os.WriteFile(cached, []byte(completeSetJSON), 0644))

	records, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Zero(t, transport.opens)

	ok, err := f.Verify("hgnc_complete_set", Structured)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetch_Tabular(t *testing.T) {
	tsv := "hgnc_id\tsymbol\tpubmed_id\torphanet\n" +
		"HGNC:5\tA1BG\t2591067|1234\t\n" +
		"HGNC:24086\tA1CF\t\t558\n"

	transport := &fakeTransport{files: map[string]string{
		"pub/databases/genenames/new/tsv/non_alt_loci_set.txt": tsv,
	}}
	f, _ := newTestFetcher(t, transport, false)

	records, err := f.Fetch(context.Background(), "non_alt_loci_set", Tabular)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []any{"2591067", "1234"}, records[0]["pubmed_id"])
	assert.False(t, records[0].Has("orphanet"))
	assert.Equal(t, "558", records[1]["orphanet"])
	assert.False(t, records[1].Has("pubmed_id"))
}

func TestRefresh_ForcesDownload(t *testing.T) {
	transport := &fakeTransport{files: map[string]string{jsonPath: completeSetJSON}}
	f, _ := newTestFetcher(t, transport, true)

	_, err := f.Fetch(context.Background(), "hgnc_complete_set", Structured)
	require.NoError(t, err)

	m, err := f.Refresh(context.Background(), "hgnc_complete_set", Structured)
	require.NoError(t, err)
	assert.Equal(t, int64(len(completeSetJSON)), m.Size)
	assert.Equal(t, 2, transport.opens)
}
