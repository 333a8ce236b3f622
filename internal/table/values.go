package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IsNull reports whether v is a missing value: nil or a NaN float.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// Float coerces a scalar to float64.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Vector coerces v into a coordinate vector. It returns ok=false for
// values that are not a list of numbers. A vector containing NaN is
// reported as null.
func Vector(v any) (vec []float64, null bool, ok bool) {
	if IsNull(v) {
		return nil, true, true
	}
	switch x := v.(type) {
	case []float64:
		for _, f := range x {
			if math.IsNaN(f) {
				return nil, true, true
			}
		}
		return append([]float64(nil), x...), false, true
	case []int64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, false, true
	case []any:
		out := make([]float64, len(x))
		for i, e := range x {
			if IsNull(e) {
				return nil, true, true
			}
			f, ok := Float(e)
			if !ok {
				return nil, false, false
			}
			out[i] = f
		}
		return out, false, true
	case string:
		return parseVectorString(x)
	}
	return nil, false, false
}

// parseVectorString accepts "[1, 2, 3]" or "1 2 3", the forms CSV exports
// of array columns usually take.
func parseVectorString(s string) ([]float64, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true, true
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false, false
		}
		if math.IsNaN(v) {
			return nil, true, true
		}
		out[i] = v
	}
	return out, false, true
}

// List returns the elements of a list-valued cell. Scalars are returned as
// a single-element list and nulls as nil.
func List(v any) []any {
	if IsNull(v) {
		return nil
	}
	switch x := v.(type) {
	case []any:
		return x
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []uint64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case [][]float64:
		out := make([]any, len(x))
		for i, vec := range x {
			out[i] = vec
		}
		return out
	}
	return []any{v}
}

// IsList reports whether v is a list value rather than a scalar.
func IsList(v any) bool {
	switch v.(type) {
	case []any, []float64, []int64, []uint64, []string, [][]float64:
		return true
	}
	return false
}

// SegmentID coerces a scalar to an object id. Floats must be integral.
func SegmentID(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("negative segment id %d", x)
		}
		return uint64(x), nil
	case int:
		if x < 0 {
			return 0, fmt.Errorf("negative segment id %d", x)
		}
		return uint64(x), nil
	case float64:
		if x < 0 || x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("segment id %v is not a non-negative integer", x)
		}
		return uint64(x), nil
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("segment id %q: %w", x, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("segment id has unsupported type %T", v)
}

// SegmentIDs flattens a scalar or list cell into ids. Nulls yield an empty
// slice and null list entries are skipped.
func SegmentIDs(v any) ([]uint64, error) {
	items := List(v)
	out := make([]uint64, 0, len(items))
	for _, e := range items {
		if IsNull(e) {
			continue
		}
		id, err := SegmentID(e)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// String renders a cell as text; nulls become "".
func String(v any) string {
	if IsNull(v) {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Truthy interprets boolean-like cells used for tag columns.
func Truthy(v any) bool {
	if IsNull(v) {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	}
	if f, ok := Float(v); ok {
		return f != 0
	}
	return false
}
