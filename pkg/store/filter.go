package store

import (
	"fmt"
	"time"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	// OpContains matches when the record field is an array containing the
	// scalar value.
	OpContains Op = "contains"
	// OpIn matches when the record field is one of the scalars in the
	// value array.
	OpIn Op = "in"
)

// Predicate is a single {field, operator, value} condition.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Filter is an AND-combined list of predicates. A nil or empty filter
// matches every record. Both backends evaluate filters with identical
// semantics; the embedded adapter and the subscription router use Match
// directly, the remote adapter pushes the same predicates down as
// parameterized query conditions.
type Filter struct {
	preds []Predicate
}

// NewFilter returns an empty filter.
func NewFilter() *Filter { return &Filter{} }

// Where appends a predicate and returns the filter for chaining.
func (f *Filter) Where(field string, op Op, value any) *Filter {
	f.preds = append(f.preds, Predicate{Field: field, Op: op, Value: value})
	return f
}

// Predicates returns the predicate list in insertion order.
func (f *Filter) Predicates() []Predicate {
	if f == nil {
		return nil
	}
	return f.preds
}

// Validate checks every predicate for a supported operator/value
// combination and reports ErrInvalidFilter otherwise.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, p := range f.preds {
		if p.Field == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidFilter)
		}
		switch p.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
			if _, ok := normalizeScalar(p.Value); !ok {
				return fmt.Errorf("%w: operator %q needs a scalar value, got %T", ErrInvalidFilter, p.Op, p.Value)
			}
		case OpContains:
			if _, ok := normalizeScalar(p.Value); !ok {
				return fmt.Errorf("%w: contains needs a scalar value, got %T", ErrInvalidFilter, p.Value)
			}
		case OpIn:
			if _, ok := normalizeArray(p.Value); !ok {
				return fmt.Errorf("%w: in needs an array of scalars, got %T", ErrInvalidFilter, p.Value)
			}
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidFilter, p.Op)
		}
	}
	return nil
}

// Match evaluates the filter against one document. A predicate over an
// absent field evaluates to unknown, which collapses to false.
func (f *Filter) Match(doc map[string]any) bool {
	if f == nil {
		return true
	}
	for _, p := range f.preds {
		raw, ok := doc[p.Field]
		if !ok || raw == nil {
			return false
		}
		if !p.match(raw) {
			return false
		}
	}
	return true
}

func (p Predicate) match(raw any) bool {
	switch p.Op {
	case OpContains:
		arr, ok := normalizeArray(raw)
		if !ok {
			return false
		}
		want, ok := normalizeScalar(p.Value)
		if !ok {
			return false
		}
		for _, got := range arr {
			if got == want {
				return true
			}
		}
		return false
	case OpIn:
		got, ok := normalizeScalar(raw)
		if !ok {
			return false
		}
		arr, ok := normalizeArray(p.Value)
		if !ok {
			return false
		}
		for _, want := range arr {
			if got == want {
				return true
			}
		}
		return false
	default:
		got, ok := normalizeScalar(raw)
		if !ok {
			return false
		}
		want, ok := normalizeScalar(p.Value)
		if !ok {
			return false
		}
		return compareScalars(got, want, p.Op)
	}
}

func compareScalars(got, want any, op Op) bool {
	switch op {
	case OpEqual:
		return got == want
	case OpNotEqual:
		return got != want
	}
	// Ordered comparison: numbers compare numerically, strings
	// lexicographically (RFC 3339 timestamps order correctly this way).
	// Mixed or unordered types collapse to false.
	switch g := got.(type) {
	case float64:
		w, ok := want.(float64)
		if !ok {
			return false
		}
		return orderedCompare(g, w, op)
	case string:
		w, ok := want.(string)
		if !ok {
			return false
		}
		return orderedCompare(g, w, op)
	}
	return false
}

func orderedCompare[T float64 | string](g, w T, op Op) bool {
	switch op {
	case OpLess:
		return g < w
	case OpLessEqual:
		return g <= w
	case OpGreater:
		return g > w
	case OpGreaterEqual:
		return g >= w
	}
	return false
}

// normalizeScalar collapses every supported scalar representation to one
// of string, float64, bool. Documents arrive from JSON decoding, from
// CBOR normalization, and from hand-built maps in tests, so numeric
// types vary.
func normalizeScalar(v any) (any, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return s, true
	case float64:
		return s, true
	case float32:
		return float64(s), true
	case int:
		return float64(s), true
	case int8:
		return float64(s), true
	case int16:
		return float64(s), true
	case int32:
		return float64(s), true
	case int64:
		return float64(s), true
	case uint:
		return float64(s), true
	case uint8:
		return float64(s), true
	case uint16:
		return float64(s), true
	case uint32:
		return float64(s), true
	case uint64:
		return float64(s), true
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano), true
	}
	return nil, false
}

func normalizeArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		switch s := v.(type) {
		case []string:
			arr = make([]any, len(s))
			for i, e := range s {
				arr[i] = e
			}
		case []float64:
			arr = make([]any, len(s))
			for i, e := range s {
				arr[i] = e
			}
		default:
			return nil, false
		}
	}
	out := make([]any, 0, len(arr))
	for _, e := range arr {
		s, ok := normalizeScalar(e)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
