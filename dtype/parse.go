package dtype

import (
	"strconv"
	"strings"
)

// Parse converts s to a scalar of kind k. Non-numeric input for a numeric
// kind yields the zero (no value) Value.
func Parse(s string, k Kind) Value {
	return ParseValues([]string{s}, k, false)
}

// ParseValues converts ss to a value of kind k. When array is false ss must
// hold exactly one element.
func ParseValues(ss []string, k Kind, array bool) Value {
	if !array && len(ss) != 1 {
		return Value{}
	}
	var (
		data any
		ok   bool
	)
	switch k {
	case Int8:
		data, ok = parseAll(ss, func(s string) (int8, error) {
			n, err := strconv.ParseInt(s, 10, 8)
			return int8(n), err
		})
	case Uint8:
		data, ok = parseAll(ss, func(s string) (uint8, error) {
			n, err := strconv.ParseUint(s, 10, 8)
			return uint8(n), err
		})
	case Int16:
		data, ok = parseAll(ss, func(s string) (int16, error) {
			n, err := strconv.ParseInt(s, 10, 16)
			return int16(n), err
		})
	case Uint16:
		data, ok = parseAll(ss, func(s string) (uint16, error) {
			n, err := strconv.ParseUint(s, 10, 16)
			return uint16(n), err
		})
	case Int32:
		data, ok = parseAll(ss, func(s string) (int32, error) {
			n, err := strconv.ParseInt(s, 10, 32)
			return int32(n), err
		})
	case Uint32:
		data, ok = parseAll(ss, func(s string) (uint32, error) {
			n, err := strconv.ParseUint(s, 10, 32)
			return uint32(n), err
		})
	case Int64:
		data, ok = parseAll(ss, func(s string) (int64, error) {
			return strconv.ParseInt(s, 10, 64)
		})
	case Uint64:
		data, ok = parseAll(ss, func(s string) (uint64, error) {
			return strconv.ParseUint(s, 10, 64)
		})
	case Float32:
		data, ok = parseAll(ss, func(s string) (float32, error) {
			f, err := strconv.ParseFloat(s, 32)
			return float32(f), err
		})
	case Float64:
		data, ok = parseAll(ss, func(s string) (float64, error) {
			return strconv.ParseFloat(s, 64)
		})
	case Bool:
		data, ok = parseAll(ss, strconv.ParseBool)
	case String:
		data, ok = append([]string{}, ss...), true
	}
	if !ok {
		return Value{}
	}
	return Value{kind: k, array: array, data: data}
}

func parseAll[T Element](ss []string, conv func(string) (T, error)) (any, bool) {
	out := make([]T, len(ss))
	for i, s := range ss {
		v, err := conv(strings.TrimSpace(s))
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
