package dtype

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// maxDisplayElements is the longest array rendered element by element.
const maxDisplayElements = 4

// Value is a tagged scalar or same-typed array. The zero Value holds no
// value and reports IsValid() == false.
type Value struct {
	kind  Kind
	array bool
	data  any // []T matching kind; a scalar is a one-element slice
}

// Scalar returns a scalar value of v's kind.
func Scalar[T Element](v T) Value {
	return Value{kind: KindFor[T](), data: []T{v}}
}

// Array returns an array value holding a copy of vs.
func Array[T Element](vs []T) Value {
	c := slices.Clone(vs)
	if c == nil {
		c = []T{}
	}
	return Value{kind: KindFor[T](), array: true, data: c}
}

// As returns the elements of v as a []T. It fails if T does not match v's kind.
func As[T Element](v Value) ([]T, bool) {
	d, ok := v.data.([]T)
	return d, ok
}

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != Invalid }

// Kind returns the element kind.
func (v Value) Kind() Kind { return v.kind }

// IsArray reports whether v was created as an array.
func (v Value) IsArray() bool { return v.array }

// Len returns the number of elements: 1 for scalars, 0 for no value.
func (v Value) Len() int {
	switch d := v.data.(type) {
	case []int8:
		return len(d)
	case []uint8:
		return len(d)
	case []int16:
		return len(d)
	case []uint16:
		return len(d)
	case []int32:
		return len(d)
	case []uint32:
		return len(d)
	case []int64:
		return len(d)
	case []uint64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []bool:
		return len(d)
	case []string:
		return len(d)
	}
	return 0
}

// Index returns element i as its native Go type, or nil when out of range.
func (v Value) Index(i int) any {
	if i < 0 || i >= v.Len() {
		return nil
	}
	switch d := v.data.(type) {
	case []int8:
		return d[i]
	case []uint8:
		return d[i]
	case []int16:
		return d[i]
	case []uint16:
		return d[i]
	case []int32:
		return d[i]
	case []uint32:
		return d[i]
	case []int64:
		return d[i]
	case []uint64:
		return d[i]
	case []float32:
		return d[i]
	case []float64:
		return d[i]
	case []bool:
		return d[i]
	case []string:
		return d[i]
	}
	return nil
}

// Int64At converts element i to an int64. Floats are truncated, strings parsed.
func (v Value) Int64At(i int) (int64, bool) {
	switch e := v.Index(i).(type) {
	case int8:
		return int64(e), true
	case uint8:
		return int64(e), true
	case int16:
		return int64(e), true
	case uint16:
		return int64(e), true
	case int32:
		return int64(e), true
	case uint32:
		return int64(e), true
	case int64:
		return e, true
	case uint64:
		return int64(e), true
	case float32:
		return int64(e), true
	case float64:
		return int64(e), true
	case bool:
		if e {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(e), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Float64At converts element i to a float64.
func (v Value) Float64At(i int) (float64, bool) {
	switch e := v.Index(i).(type) {
	case float32:
		return float64(e), true
	case float64:
		return e, true
	case uint64:
		return float64(e), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(e), 64)
		return f, err == nil
	case nil:
		return math.NaN(), false
	}
	n, ok := v.Int64At(i)
	return float64(n), ok
}

// StringAt formats element i.
func (v Value) StringAt(i int) string {
	return formatElement(v.Index(i))
}

// Int64 returns the first element as an int64.
func (v Value) Int64() (int64, bool) { return v.Int64At(0) }

// Float64 returns the first element as a float64.
func (v Value) Float64() (float64, bool) { return v.Float64At(0) }

// Strings formats every element.
func (v Value) Strings() []string {
	out := make([]string, v.Len())
	for i := range out {
		out[i] = v.StringAt(i)
	}
	return out
}

// String renders v for display. Arrays of up to four elements are joined
// (", " for strings, " " otherwise); longer arrays render as
// "<kind> array 1 x <n>".
func (v Value) String() string {
	if !v.IsValid() {
		return ""
	}
	if !v.array {
		return v.StringAt(0)
	}
	n := v.Len()
	if n > maxDisplayElements {
		return v.kind.String() + " array 1 x " + strconv.Itoa(n)
	}
	sep := " "
	if v.kind == String {
		sep = ", "
	}
	return strings.Join(v.Strings(), sep)
}

// Equal reports whether a and b have the same kind, shape and elements.
func Equal(a, b Value) bool {
	if a.kind != b.kind || a.array != b.array || a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.Index(i) != b.Index(i) {
			return false
		}
	}
	return true
}

// Convert coerces v to kind k by reparsing each element's string form.
// It returns the zero Value if any element does not parse.
func Convert(v Value, k Kind) Value {
	if !v.IsValid() {
		return Value{}
	}
	if v.kind == k {
		return v
	}
	return ParseValues(v.Strings(), k, v.array)
}

func formatElement(e any) string {
	switch e := e.(type) {
	case int8:
		return strconv.FormatInt(int64(e), 10)
	case int16:
		return strconv.FormatInt(int64(e), 10)
	case int32:
		return strconv.FormatInt(int64(e), 10)
	case int64:
		return strconv.FormatInt(e, 10)
	case uint8:
		return strconv.FormatUint(uint64(e), 10)
	case uint16:
		return strconv.FormatUint(uint64(e), 10)
	case uint32:
		return strconv.FormatUint(uint64(e), 10)
	case uint64:
		return strconv.FormatUint(e, 10)
	case float32:
		return strconv.FormatFloat(float64(e), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(e, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(e)
	case string:
		return e
	}
	return ""
}
