// Package formatter renders mapping definitions and run summaries as
// markdown with aligned tables.
package formatter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"

	"hgncmap/internal/mapping"
	"hgncmap/internal/models"
)

// Field is one row of a summary table.
type Field struct {
	Name  string
	Value string
}

// FormatMarkdown realigns every table found in content.
func FormatMarkdown(content string) string {
	lines := strings.Split(content, "\n")

	var formattedLines []string

	var tableBuffer []string

	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)

		// Simple heuristic: starts and ends with |
		if strings.HasPrefix(trimmedLine, "|") && strings.HasSuffix(trimmedLine, "|") {
			tableBuffer = append(tableBuffer, line)

			continue
		}

		if len(tableBuffer) > 0 {
			formattedLines = append(formattedLines, processTable(tableBuffer)...)
			tableBuffer = nil
		}

		formattedLines = append(formattedLines, line)
	}

	if len(tableBuffer) > 0 {
		formattedLines = append(formattedLines, processTable(tableBuffer)...)
	}

	return strings.Join(formattedLines, "\n")
}

// Table renders header and rows as an aligned markdown table.
func Table(header []string, rows [][]string) string {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, lo.Map(header, escapeCell))

	for _, row := range rows {
		table = append(table, lo.Map(row, escapeCell))
	}

	return strings.Join(render(table, -1, true), "\n") + "\n"
}

// Summary renders fields as a two-column table under a heading.
func Summary(title string, fields []Field) string {
	rows := lo.Map(fields, func(f Field, _ int) []string {
		return []string{f.Name, f.Value}
	})

	return fmt.Sprintf("## %s\n\n%s", title, Table([]string{"Field", "Value"}, rows))
}

// Definition renders a mapping definition as a markdown document.
func Definition(def models.MappingDefinition) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Mapping definition: %s\n\n", def.Name)

	sb.WriteString(Table([]string{"Field", "Value"}, [][]string{
		{"name", def.Name},
		{"mapper_data", def.MapperData},
		{"main_key", def.MainKey},
		{"disjoint", strings.Join(def.Disjoint, ", ")},
		{"supported_keys", fmt.Sprint(len(def.SupportedKeys))},
		{"list_valued_keys", fmt.Sprint(len(def.ListValuedKeys))},
	}))

	sb.WriteString("\n## Key synonyms\n\n")

	aliases := lo.Keys(def.KeySynonyms)
	slices.Sort(aliases)

	sb.WriteString(Table([]string{"Alias", "Canonical key", "Supported"}, lo.Map(aliases, func(alias string, _ int) []string {
		canonical := def.KeySynonyms[alias]

		return []string{alias, canonical, yesNo(def.Supports(canonical))}
	})))

	sb.WriteString("\n## MIRIAM namespaces\n\n")

	namespaces := lo.Keys(def.MiriamMapping)
	slices.Sort(namespaces)

	sb.WriteString(Table([]string{"Namespace", "Field", "Supported"}, lo.Map(namespaces, func(ns string, _ int) []string {
		field, _ := mapping.FieldForNamespace(def, ns)

		return []string{ns, field, yesNo(def.Supports(field))}
	})))

	sb.WriteString("\n## Keys\n\n")

	sb.WriteString(Table([]string{"Key", "List valued", "MIRIAM"}, lo.Map(def.SupportedKeys, func(key string, _ int) []string {
		_, list := slices.BinarySearch(def.ListValuedKeys, key)

		return []string{key, yesNo(list), strings.Join(mapping.NamespacesFor(def, key), ", ")}
	})))

	return sb.String()
}

// Document renders def followed by hand-written notes. Tables in the notes
// are realigned.
func Document(def models.MappingDefinition, notes string) string {
	doc := Definition(def)

	notes = strings.TrimSpace(notes)
	if notes == "" {
		return doc
	}

	return doc + "\n## Notes\n\n" + FormatMarkdown(notes) + "\n"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}

func escapeCell(s string, _ int) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func processTable(rows []string) []string {
	// A table needs at least a header and a separator.
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, 0, len(rows))

	for _, row := range rows {
		parts := strings.Split(row, "|")

		if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
			parts = parts[1:]
		}

		if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
			parts = parts[:len(parts)-1]
		}

		table = append(table, lo.Map(parts, func(p string, _ int) string {
			return strings.TrimSpace(p)
		}))
	}

	separatorRowIdx := -1
	if isSeparator(table[1]) {
		separatorRowIdx = 1
	}

	return render(table, separatorRowIdx, false)
}

func isSeparator(row []string) bool {
	for _, cell := range row {
		trim := strings.NewReplacer("-", "", ":", "", " ", "").Replace(cell)
		if trim != "" {
			return false
		}
	}

	return true
}

// render aligns table by display width. When insertSeparator is set, a
// separator row is added after the header; otherwise sepIdx marks an
// existing one (or -1).
func render(table [][]string, sepIdx int, insertSeparator bool) []string {
	colCount := 0
	for _, row := range table {
		colCount = max(colCount, len(row))
	}

	colWidths := make([]int, colCount)

	for rIdx, row := range table {
		if rIdx == sepIdx {
			continue
		}

		for i, cell := range row {
			colWidths[i] = max(colWidths[i], runewidth.StringWidth(cell))
		}
	}

	// Separator dashes need at least three.
	for i := range colWidths {
		colWidths[i] = max(colWidths[i], 3)
	}

	if insertSeparator && len(table) > 0 {
		table = slices.Insert(table, 1, nil)
		sepIdx = 1
	}

	result := make([]string, 0, len(table))

	for i, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for j := range colCount {
			sb.WriteString(" ")

			if i == sepIdx {
				sb.WriteString(strings.Repeat("-", colWidths[j]))
			} else {
				content := ""
				if j < len(row) {
					content = row[j]
				}

				sb.WriteString(runewidth.FillRight(content, colWidths[j]))
			}

			sb.WriteString(" |")
		}

		result = append(result, sb.String())
	}

	return result
}
