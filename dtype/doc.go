// Package dtype is the closed scalar type system shared by the EMD model,
// the instrument decoders and the backing stores.
//
// # Kinds
//
// A [Kind] names one of twelve element types. Every kind except [String]
// has a fixed byte width reported by [Kind.Width]:
//
//	Kind     | Go type | Width | Display
//	---------|---------|-------|--------
//	Int8     | int8    | 1     | int8
//	Uint8    | uint8   | 1     | uint8
//	Int16    | int16   | 2     | int16
//	Uint16   | uint16  | 2     | uint16
//	Int32    | int32   | 4     | int32
//	Uint32   | uint32  | 4     | uint32
//	Int64    | int64   | 8     | int64
//	Uint64   | uint64  | 8     | uint64
//	Float32  | float32 | 4     | float
//	Float64  | float64 | 8     | double
//	Bool     | bool    | 1     | bool
//	String   | string  | 0     | string
//
// # Values
//
// [Value] is a tagged scalar or same-typed array. The zero Value is the
// "no value" sentinel returned by failed lookups and parses:
//
//	v := dtype.Scalar(int32(7))
//	a := dtype.Array([]float64{0.5, 1.5})
//	p := dtype.Parse("12", dtype.Uint16)
//	if !p.IsValid() { ... }
//
// # Buffers
//
// [Buffer] couples a kind, an element width and little-endian bytes. It is
// the storage type behind every dataset:
//
//	b := dtype.FromSlice([]uint16{1, 2, 3})
//	b.Float64At(2) // 3
package dtype
