package mapping

import (
	"fmt"
	"maps"
	"slices"

	"github.com/samber/lo"

	"hgncmap/internal/failure"
	"hgncmap/internal/models"
)

// Build assembles the mapping definition from the table and the key sets
// derived from cleaned records. It does no I/O and no iteration over
// records.
func Build(t Table, supported, listValued []string) (models.MappingDefinition, error) {
	if err := t.Validate(); err != nil {
		return models.MappingDefinition{}, failure.Configuration("mapping", err)
	}

	supported = sortedCopy(supported)
	listValued = sortedCopy(listValued)

	if extra := lo.Without(listValued, supported...); len(extra) > 0 {
		return models.MappingDefinition{}, failure.Configuration("mapping",
			fmt.Errorf("list-valued keys outside supported keys: %v", extra))
	}

	def := models.MappingDefinition{
		KeySynonyms:    maps.Clone(t.KeySynonyms),
		MiriamMapping:  maps.Clone(t.MiriamMapping),
		Name:           t.Name,
		MapperData:     t.MapperData,
		MainKey:        t.MainKey,
		Disjoint:       slices.Clone(t.Disjoint),
		SupportedKeys:  supported,
		ListValuedKeys: listValued,
	}

	if def.MapperData == "" {
		def.MapperData = def.Name
	}

	if def.KeySynonyms == nil {
		def.KeySynonyms = map[string]string{}
	}

	if def.MiriamMapping == nil {
		def.MiriamMapping = map[string]string{}
	}

	if def.Disjoint == nil {
		def.Disjoint = []string{}
	}

	if t.StrictKeys {
		if missing := Missing(t, def.SupportedKeys); len(missing) > 0 {
			return models.MappingDefinition{}, failure.Configuration("mapping",
				fmt.Errorf("%w: %v", ErrUnknownField, missing))
		}
	}

	return def, nil
}

// Missing returns the fields the table references that are not among
// supported.
func Missing(t Table, supported []string) []string {
	return lo.Without(t.ReferencedFields(), supported...)
}

// Resolve maps an alias to its canonical key; other keys come back as is.
func Resolve(def models.MappingDefinition, key string) string {
	if canonical, ok := def.KeySynonyms[key]; ok {
		return canonical
	}

	return key
}

// FieldForNamespace returns the local field holding identifiers of a
// MIRIAM namespace.
func FieldForNamespace(def models.MappingDefinition, namespace string) (string, bool) {
	field, ok := def.MiriamMapping[namespace]

	return field, ok
}

// NamespacesFor returns the MIRIAM namespaces served by a local field,
// after resolving synonyms.
func NamespacesFor(def models.MappingDefinition, key string) []string {
	field := Resolve(def, key)

	var out []string

	for token, f := range def.MiriamMapping {
		if f == field {
			out = append(out, token)
		}
	}

	slices.Sort(out)

	return out
}

func sortedCopy(in []string) []string {
	out := lo.Uniq(in)
	slices.Sort(out)

	return out
}
