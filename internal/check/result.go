package check

import "time"

// Field is one named value of a result record.
type Field struct {
	Name  string
	Value any
}

// Result is the outcome of a single check execution. It is built once
// per run and never mutated afterwards.
type Result struct {
	CheckID         string
	Description     string
	ExecutedAt      time.Time
	Value           float64
	MinThreshold    float64
	MaxThreshold    float64
	WithinThreshold bool
}

// Fields returns the record's seven fields in their fixed order. Store
// sinks rely on this order for column-positional inserts.
func (r Result) Fields() []Field {
	return []Field{
		{Name: "check_id", Value: r.CheckID},
		{Name: "description", Value: r.Description},
		{Name: "executed_at", Value: r.ExecutedAt},
		{Name: "value", Value: r.Value},
		{Name: "min_threshold", Value: r.MinThreshold},
		{Name: "max_threshold", Value: r.MaxThreshold},
		{Name: "within_threshold", Value: r.WithinThreshold},
	}
}
