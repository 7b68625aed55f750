// Package hgnc holds the HGNC-specific cleaning rules and mapping table,
// and the Mapper that turns a fetched HGNC item into mapper data plus its
// mapping definition.
package hgnc

import (
	"maps"

	"hgncmap/internal/mapping"
	"hgncmap/internal/normalizer"
)

// Items published by HGNC.
const (
	ItemCompleteSet   = "hgnc_complete_set"
	ItemNonAltLociSet = "non_alt_loci_set"
)

// Name identifies the dataset to the ingestion pipeline.
const Name = "hgnc"

// iupharPattern is the shape of an IUPHAR object identifier once its
// "objectId:" prefix is gone.
const iupharPattern = `^\d+$`

// renames lists source keys the downstream store cannot hold.
var renames = map[string]string{
	"pseudogene.org": "pseudogene_org",
}

// Table returns HGNC's mapping table.
func Table() mapping.Table {
	return mapping.Table{
		Name:       Name,
		MapperData: Name,
		MainKey:    "symbol",
		KeySynonyms: map[string]string{
			"ensembl":   "ensembl_gene_id",
			"entrez":    "entrez_id",
			"imgt_gene": "imgt",
		},
		Disjoint: []string{"uniprot_ids", "refseq_accession"},
		MiriamMapping: map[string]string{
			"hgnc_symbol":     "symbol",
			"hgnc":            "hgnc_id",
			"hgnc_genefamily": "gene_family_id",
			"omim":            "omim_id",
			"orphanet":        "orphanet",
			"ncbigene":        "entrez_id",
			"ensembl":         "ensembl_gene_id",
			"pubmed":          "pubmed_id",
			"cosmic":          "cosmic",
			"uniprot":         "uniprot_ids",
			"refseq":          "refseq_accession",
			"mgi":             "mgd_id",
			"rgd":             "rgd",
			"ccds":            "ccds_id",
			"ena_embl":        "ena",
			"merops":          "merops",
			"ec-code":         "enzyme_id",
			"iuphar_receptor": "iuphar",
			"mirbase":         "mirbase",
		},
	}
}

// RuleSet returns HGNC's cleaning rules.
func RuleSet() normalizer.RuleSet {
	iuphar, err := normalizer.NewCompoundTokenExtractor("iuphar", iupharPattern)
	if err != nil {
		panic(err)
	}

	return normalizer.RuleSet{
		Renames: maps.Clone(renames),
		Rules: []normalizer.Rule{
			normalizer.ListStringifier{Name: "pubmed_id"},
			normalizer.ListStringifier{Name: "gene_family_id"},
			normalizer.ScalarStringifier{Name: "orphanet"},
			iuphar,
		},
		IdentityKeys: []string{"hgnc_id", "symbol"},
	}
}
