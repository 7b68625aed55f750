package models

import (
	"maps"
	"slices"
)

// MappingDefinition declares how a dataset's fields relate to canonical keys
// and cross-database namespaces. It is built once per load; accessors on
// the owning mapper hand out copies.
type MappingDefinition struct {
	KeySynonyms    map[string]string `json:"key_synonyms" yaml:"key_synonyms" bson:"key_synonyms"`
	MiriamMapping  map[string]string `json:"miriam_mapping" yaml:"miriam_mapping" bson:"miriam_mapping"`
	Name           string            `json:"name" yaml:"name" bson:"name"`
	MapperData     string            `json:"mapper_data" yaml:"mapper_data" bson:"mapper_data"`
	MainKey        string            `json:"main_key" yaml:"main_key" bson:"main_key"`
	Disjoint       []string          `json:"disjoint" yaml:"disjoint" bson:"disjoint"`
	SupportedKeys  []string          `json:"supported_keys" yaml:"supported_keys" bson:"supported_keys"`
	ListValuedKeys []string          `json:"list_valued_keys" yaml:"list_valued_keys" bson:"list_valued_keys"`
}

// Clone returns a deep copy.
func (d MappingDefinition) Clone() MappingDefinition {
	return MappingDefinition{
		KeySynonyms:    maps.Clone(d.KeySynonyms),
		MiriamMapping:  maps.Clone(d.MiriamMapping),
		Name:           d.Name,
		MapperData:     d.MapperData,
		MainKey:        d.MainKey,
		Disjoint:       slices.Clone(d.Disjoint),
		SupportedKeys:  slices.Clone(d.SupportedKeys),
		ListValuedKeys: slices.Clone(d.ListValuedKeys),
	}
}

// Supports reports whether key is one of the supported keys.
func (d MappingDefinition) Supports(key string) bool {
	_, found := slices.BinarySearch(d.SupportedKeys, key)

	return found
}
