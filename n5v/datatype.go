/*
   This file handles the element type of array data, e.g., a voxel, and the
   pixel type tag that downstream display conversion dispatches on.
*/

package n5v

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DataType is a unique ID for each element type of an array, e.g., a uint8 or a float32.
type DataType uint8

const (
	T_unknown DataType = iota
	T_uint8
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
	T_argb   // packed 8-bit alpha, red, green, blue in a uint32
	T_object // opaque serialized elements
)

var typeBytes = map[DataType]int32{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
	T_argb:    4,
}

var typeNames = map[DataType]string{
	T_unknown: "unknown",
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
	T_argb:    "argb",
	T_object:  "object",
}

// DataTypeBytes returns the # of bytes for a given type.  Types without a
// fixed element size return 0.
func DataTypeBytes(t DataType) int32 {
	return typeBytes[t]
}

// ParseDataType returns the DataType for a container "dataType" string.
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s && t != T_unknown {
			return t, nil
		}
	}
	return T_unknown, fmt.Errorf("unknown data type %q", s)
}

func (t DataType) String() string {
	if name, found := typeNames[t]; found {
		return name
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// MarshalJSON implements the json.Marshaler interface.
func (t DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	dt, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// PixelType tags the element type of a source along with whether the source can
// represent not-yet-loaded data.
type PixelType struct {
	T        DataType
	Volatile bool
}

// IsReal returns true for scalar intensity types.
func (p PixelType) IsReal() bool {
	switch p.T {
	case T_uint8, T_int8, T_uint16, T_int16, T_uint32, T_int32, T_uint64, T_int64, T_float32, T_float64:
		return true
	}
	return false
}

// IsARGB returns true for packed color types.
func (p PixelType) IsARGB() bool {
	return p.T == T_argb
}

// Bytes returns the number of bytes per element.
func (p PixelType) Bytes() int32 {
	return typeBytes[p.T]
}

// MinValue returns the natural minimum of a real type.
func (p PixelType) MinValue() float64 {
	switch p.T {
	case T_int8:
		return math.MinInt8
	case T_int16:
		return math.MinInt16
	case T_int32:
		return math.MinInt32
	case T_int64:
		return math.MinInt64
	case T_float32:
		return -math.MaxFloat32
	case T_float64:
		return -math.MaxFloat64
	}
	return 0
}

// MaxValue returns the natural maximum of a real type.
func (p PixelType) MaxValue() float64 {
	switch p.T {
	case T_uint8:
		return math.MaxUint8
	case T_int8:
		return math.MaxInt8
	case T_uint16:
		return math.MaxUint16
	case T_int16:
		return math.MaxInt16
	case T_uint32, T_argb:
		return math.MaxUint32
	case T_int32:
		return math.MaxInt32
	case T_uint64:
		return math.MaxUint64
	case T_int64:
		return math.MaxInt64
	case T_float32:
		return math.MaxFloat32
	case T_float64:
		return math.MaxFloat64
	}
	return 0
}

func (p PixelType) String() string {
	if p.Volatile {
		return "volatile " + p.T.String()
	}
	return p.T.String()
}
