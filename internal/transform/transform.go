// Package transform implements the value transformations a field mapping can
// chain. Every transformation is total: unusable input yields nil or passes
// through, never an error.
package transform

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"datasync/internal/integration"
)

type Func func(value any, opts *integration.TransformationOptions) any

var registry = map[integration.TransformationType]Func{
	integration.TransformTrim:         trim,
	integration.TransformLowercase:    lowercase,
	integration.TransformUppercase:    uppercase,
	integration.TransformToNumber:     toNumber,
	integration.TransformToString:     toString,
	integration.TransformToDate:       toDate,
	integration.TransformMapValue:     mapValue,
	integration.TransformDefaultValue: defaultValue,
}

type UnknownTransformationError struct {
	Type integration.TransformationType
}

func (e *UnknownTransformationError) Error() string {
	return fmt.Sprintf("unknown transformation type %q", e.Type)
}

func Apply(value any, t integration.Transformation) (any, error) {
	fn, ok := registry[t.Type]
	if !ok {
		return nil, &UnknownTransformationError{Type: t.Type}
	}
	return fn(value, t.Options), nil
}

// Chain applies ts left to right, each step receiving the previous output.
func Chain(value any, ts []integration.Transformation) (any, error) {
	var err error
	for _, t := range ts {
		if value, err = Apply(value, t); err != nil {
			return nil, err
		}
	}
	return value, nil
}

func trim(value any, _ *integration.TransformationOptions) any {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return value
}

func lowercase(value any, _ *integration.TransformationOptions) any {
	if s, ok := value.(string); ok {
		return strings.ToLower(s)
	}
	return value
}

func uppercase(value any, _ *integration.TransformationOptions) any {
	if s, ok := value.(string); ok {
		return strings.ToUpper(s)
	}
	return value
}

func toNumber(value any, _ *integration.TransformationOptions) any {
	if f, ok := number(value); ok {
		return f
	}
	switch v := value.(type) {
	case bool:
		if v {
			return float64(1)
		}
		return float64(0)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	}
	return nil
}

func toString(value any, _ *integration.TransformationOptions) any {
	return Stringify(value)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
}

func toDate(value any, _ *integration.TransformationOptions) any {
	switch v := value.(type) {
	case time.Time:
		return v
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return nil
	}
	if ms, ok := number(value); ok {
		return time.UnixMilli(int64(ms)).UTC()
	}
	return nil
}

func mapValue(value any, opts *integration.TransformationOptions) any {
	if opts == nil {
		return value
	}
	for _, m := range opts.Mappings {
		if Equal(value, m.From) {
			return m.To
		}
	}
	return value
}

func defaultValue(value any, opts *integration.TransformationOptions) any {
	if opts == nil {
		return value
	}
	if IsBlank(value) {
		return opts.DefaultValue
	}
	return value
}

// IsBlank reports nil or the empty string.
func IsBlank(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

// Stringify renders a value as text. nil renders as "".
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case []byte:
		return string(v)
	}
	return fmt.Sprint(value)
}

// Equal matches strictly first, then by textual form.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if StrictEqual(a, b) {
		return true
	}
	return Stringify(a) == Stringify(b)
}

// StrictEqual compares same-typed comparable values. Slices and maps are never equal.
func StrictEqual(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return a == nil && b == nil
	}
	return a == b
}

// number widens the numeric kinds drivers return.
func number(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// Number converts numeric kinds and numeric strings to float64.
func Number(value any) (float64, bool) {
	if f, ok := number(value); ok {
		return f, true
	}
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
