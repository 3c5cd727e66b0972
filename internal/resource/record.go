package resource

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cast"
)

// Record is a single row keyed by column name.
type Record map[string]any

// ID returns the record's primary key.
func (r Record) ID() (int64, error) {
	v, ok := r[ColumnID]
	if !ok || v == nil {
		return 0, fmt.Errorf("record has no %s", ColumnID)
	}
	id, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("record %s: %w", ColumnID, err)
	}
	return id, nil
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies the mutable container types a row can hold.
func CloneValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return slices.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	case []int64:
		return slices.Clone(t)
	case Record:
		return t.Clone()
	default:
		return v
	}
}

// Columns returns the record's column names, sorted.
func (r Record) Columns() []string {
	return slices.Sorted(maps.Keys(r))
}
