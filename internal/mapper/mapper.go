package mapper

import (
	"fmt"

	"datasync/internal/integration"
	"datasync/internal/transform"
)

// Map builds a target payload from one source row. A source field missing
// from the row enters its chain as nil.
func Map(row map[string]any, mappings []integration.FieldMapping) (map[string]any, error) {
	payload := make(map[string]any, len(mappings))
	for _, m := range mappings {
		value, err := transform.Chain(row[m.SourceField], m.Transformations)
		if err != nil {
			return nil, fmt.Errorf("mapping %s -> %s: %w", m.SourceField, m.TargetField, err)
		}
		payload[m.TargetField] = value
	}
	return payload, nil
}

// KeptFields lists the target fields whose existing value survives an update.
func KeptFields(mappings []integration.FieldMapping) map[string]struct{} {
	kept := make(map[string]struct{})
	for _, m := range mappings {
		if m.Keep() {
			kept[m.TargetField] = struct{}{}
		}
	}
	return kept
}
