package searchsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// FieldConflict is one field whose deployed mapping differs
// incompatibly from the mapping the current definitions produce.
type FieldConflict struct {
	Index  string
	Field  string
	Before FieldMapping
	After  FieldMapping
}

// CheckConflicts compares every index group's deployed mapping against
// the schema computed from the current field definitions and returns
// all conflicts, without changing anything. This is the diagnostic
// behind the error Setup raises; operators run it to see exactly which
// fields changed before deciding on a reindex.
func (b *Backend) CheckConflicts(ctx context.Context) ([]FieldConflict, error) {
	groups := b.registry.IndexGroups()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var conflicts []FieldConflict
	for _, indexName := range names {
		_, schema, err := b.registry.GroupSchema(groups[indexName])
		if err != nil {
			return nil, err
		}
		deployed, err := b.client.GetMapping(ctx, indexName)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, field := range FindConflicts(deployed, schema) {
			conflicts = append(conflicts, FieldConflict{
				Index:  indexName,
				Field:  field,
				Before: deployed[field],
				After:  schema[field],
			})
		}
	}
	return conflicts, nil
}

// WriteConflictReport renders conflicts for an operator, with the
// deployed and computed mappings side by side.
func WriteConflictReport(w io.Writer, conflicts []FieldConflict) error {
	if len(conflicts) == 0 {
		_, err := fmt.Fprintln(w, "No mapping conflicts found.")
		return err
	}

	for _, c := range conflicts {
		if _, err := fmt.Fprintf(w, "%q has changed!\n", c.Index+"."+c.Field); err != nil {
			return err
		}
		before, err := json.MarshalIndent(c.Before, "", "  ")
		if err != nil {
			return err
		}
		after, err := json.MarshalIndent(c.After, "", "  ")
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "deployed:\n%s\ncurrent:\n%s\n\n", before, after); err != nil {
			return err
		}
	}
	return nil
}
