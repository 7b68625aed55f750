package normalizer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hgncmap/internal/failure"
	"hgncmap/internal/models"
)

func testRuleSet(t *testing.T) RuleSet {
	t.Helper()

	iuphar, err := NewCompoundTokenExtractor("iuphar", `^\d+$`)
	require.NoError(t, err)

	return RuleSet{
		Renames: map[string]string{"pseudogene.org": "pseudogene_org"},
		Rules: []Rule{
			ListStringifier{Name: "pubmed_id"},
			ListStringifier{Name: "gene_family_id"},
			ScalarStringifier{Name: "orphanet"},
			iuphar,
		},
		IdentityKeys: []string{"hgnc_id", "symbol"},
	}
}

func newTestProcessor(t *testing.T, opts Options) *Processor {
	t.Helper()

	p, err := NewProcessor(testRuleSet(t), opts)
	require.NoError(t, err)

	return p
}

func rawRecords() []models.Record {
	return []models.Record{
		{
			"hgnc_id":        "HGNC:5",
			"symbol":         "A1BG",
			"pseudogene.org": "PGOHUM00000244550",
			"pubmed_id":      []any{json.Number("123"), json.Number("456")},
		},
		{
			"hgnc_id":  "HGNC:7",
			"symbol":   "A2M",
			"iuphar":   "objectId:1234",
			"orphanet": json.Number("558"),
		},
		{
			"hgnc_id":        "HGNC:8",
			"symbol":         "A2MP1",
			"gene_family_id": []any{json.Number("3"), json.Number("1429")},
			"entrez_id":      "3",
		},
	}
}

func TestProcessor_Scenarios(t *testing.T) {
	p := newTestProcessor(t, Options{})
	records := rawRecords()

	result, err := p.Process(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	assert.Equal(t, models.Record{
		"hgnc_id":        "HGNC:5",
		"symbol":         "A1BG",
		"pseudogene_org": "PGOHUM00000244550",
		"pubmed_id":      []any{"123", "456"},
	}, result.Records[0])

	assert.Equal(t, "1234", result.Records[1]["iuphar"])
	assert.Equal(t, "558", result.Records[1]["orphanet"])
	assert.Equal(t, []any{"3", "1429"}, result.Records[2]["gene_family_id"])

	// Cleaning happens in place.
	assert.Equal(t, "PGOHUM00000244550", records[0]["pseudogene_org"])
	assert.Equal(t, map[string]string{"pseudogene.org": "pseudogene_org"}, result.Renamed)
}

func TestProcessor_KeySetsArePostCleaning(t *testing.T) {
	p := newTestProcessor(t, Options{})

	result, err := p.Process(context.Background(), rawRecords())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"entrez_id", "gene_family_id", "hgnc_id", "iuphar",
		"orphanet", "pseudogene_org", "pubmed_id", "symbol",
	}, result.SupportedKeys)
	assert.NotContains(t, result.SupportedKeys, "pseudogene.org")
	assert.Equal(t, []string{"gene_family_id", "pubmed_id"}, result.ListValuedKeys)
	assert.Subset(t, result.SupportedKeys, result.ListValuedKeys)

	union := make(map[string]bool)
	for _, rec := range result.Records {
		for key := range rec {
			union[key] = true
			assert.False(t, strings.Contains(key, "."), "key %q still has a dot", key)
		}
	}

	assert.Len(t, result.SupportedKeys, len(union))
}

func TestProcessor_Idempotent(t *testing.T) {
	p := newTestProcessor(t, Options{})

	first, err := p.Process(context.Background(), rawRecords())
	require.NoError(t, err)

	snapshot := models.CloneAll(first.Records)

	second, err := p.Process(context.Background(), first.Records)
	require.NoError(t, err)

	assert.Equal(t, snapshot, second.Records)
	assert.Equal(t, first.SupportedKeys, second.SupportedKeys)
	assert.Equal(t, first.ListValuedKeys, second.ListValuedKeys)
	assert.Empty(t, second.Renamed)
}

func TestProcessor_ListLengthPreserved(t *testing.T) {
	p := newTestProcessor(t, Options{})

	raw := rawRecords()
	lengths := []int{len(raw[0]["pubmed_id"].([]any)), len(raw[2]["gene_family_id"].([]any))}

	result, err := p.Process(context.Background(), raw)
	require.NoError(t, err)

	assert.Len(t, result.Records[0]["pubmed_id"], lengths[0])
	assert.Len(t, result.Records[2]["gene_family_id"], lengths[1])

	for _, v := range result.Records[0]["pubmed_id"].([]any) {
		assert.IsType(t, "", v)
	}
}

func TestProcessor_DataErrorFailsPass(t *testing.T) {
	p := newTestProcessor(t, Options{})

	records := rawRecords()
	records[1]["iuphar"] = "objectId1234"

	result, err := p.Process(context.Background(), records)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, failure.ErrDataQuality)
	assert.ErrorIs(t, err, ErrMissingDelimiter)
	assert.Contains(t, err.Error(), "record 1 [HGNC:7]")
	assert.Contains(t, err.Error(), `field "iuphar"`)

	// The failing record keeps its raw content.
	assert.Equal(t, json.Number("558"), records[1]["orphanet"])
}

func TestProcessor_ContinueOnDataErrors(t *testing.T) {
	p := newTestProcessor(t, Options{ContinueOnDataErrors: true})

	records := rawRecords()
	records[2]["gene_family_id"] = json.Number("3")

	result, err := p.Process(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	require.Len(t, result.Rejected, 1)
	assert.ErrorIs(t, result.Rejected[0], ErrNotAList)

	assert.NotContains(t, result.SupportedKeys, "entrez_id", "rejected record must not feed the key sets")
}

func TestProcessor_KeyCollisionIsDataQuality(t *testing.T) {
	p := newTestProcessor(t, Options{ContinueOnDataErrors: true})

	records := []models.Record{
		{"symbol": "A", "pseudogene.org": "x"},
		{"symbol": "B", "pseudogene_org": "y"},
	}

	_, err := p.Process(context.Background(), records)
	assert.ErrorIs(t, err, failure.ErrDataQuality)
	assert.ErrorIs(t, err, ErrKeyCollision)
}

func TestProcessor_RejectsEmptyInput(t *testing.T) {
	p := newTestProcessor(t, Options{})

	_, err := p.Process(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = p.Process(context.Background(), []models.Record{{"symbol": "A"}, nil})
	assert.ErrorIs(t, err, ErrNilRecord)
}

func TestNewProcessor_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		set     RuleSet
		wantErr error
	}{
		{
			name:    "duplicate rule",
			set:     RuleSet{Rules: []Rule{ScalarStringifier{Name: "orphanet"}, ListStringifier{Name: "orphanet"}}},
			wantErr: ErrDuplicateRule,
		},
		{
			name: "rule on raw key",
			set: RuleSet{
				Renames: map[string]string{"pseudogene.org": "pseudogene_org"},
				Rules:   []Rule{ScalarStringifier{Name: "pseudogene.org"}},
			},
			wantErr: ErrRuleOnRawKey,
		},
		{
			name:    "empty field",
			set:     RuleSet{Rules: []Rule{ScalarStringifier{}}},
			wantErr: ErrEmptyField,
		},
		{
			name:    "unsafe rename",
			set:     RuleSet{Renames: map[string]string{"a.b": "a.b"}},
			wantErr: ErrUnsafeRename,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProcessor(tt.set, Options{})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, failure.ErrConfiguration)
		})
	}
}

func TestDeriveKeySets(t *testing.T) {
	supported, lists := DeriveKeySets([]models.Record{
		{"a": "1", "b": []any{"x"}},
		{"b": "scalar here", "c": []any{}},
	})

	assert.Equal(t, []string{"a", "b", "c"}, supported)
	assert.Equal(t, []string{"b", "c"}, lists)
}

func TestProcessor_ContinueWithNothingLeft(t *testing.T) {
	p := newTestProcessor(t, Options{ContinueOnDataErrors: true})

	records := []models.Record{{"symbol": "A2M", "iuphar": "objectId:"}}

	_, err := p.Process(context.Background(), records)
	assert.ErrorIs(t, err, ErrNoRecords)
	assert.ErrorIs(t, err, failure.ErrDataQuality)
}

func TestProcessor_RenameIntoRenamedKey(t *testing.T) {
	p, err := NewProcessor(RuleSet{Renames: map[string]string{"a_b": "z"}}, Options{})
	require.NoError(t, err)

	result, err := p.Process(context.Background(), []models.Record{{"a.b": "v1", "a_b": "v2"}})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)

	assert.Equal(t, models.Record{"a_b": "v1", "z": "v2"}, result.Records[0])
}
