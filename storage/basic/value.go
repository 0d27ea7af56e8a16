package basic

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// ValueType 列类型标签，持久化到元数据文件和索引文件头
type ValueType byte

const (
	TypeInteger ValueType = 1 // 有符号32位整数
	TypeFloat   ValueType = 2 // 32位浮点数
	TypeDouble  ValueType = 3 // 64位浮点数
	TypeBigInt  ValueType = 4 // 有符号64位整数
	TypeString  ValueType = 5 // 定长容量字符串
)

func (t ValueType) Valid() bool {
	return t >= TypeInteger && t <= TypeString
}

func (t ValueType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeBigInt:
		return "BIGINT"
	case TypeString:
		return "STRING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// Value is a typed value of one of the five column kinds. It serves both
// as the universal tree key and as a row column. A Value is immutable
// once constructed.
//
// 整数统一存放在i字段，浮点数统一存放在f字段
type Value struct {
	vtype ValueType
	i     int64
	f     float64
	str   []byte
	cap   uint32
}

func NewIntegerValue(v int32) Value {
	return Value{vtype: TypeInteger, i: int64(v)}
}

func NewBigIntValue(v int64) Value {
	return Value{vtype: TypeBigInt, i: v}
}

func NewFloatValue(v float32) Value {
	return Value{vtype: TypeFloat, f: float64(v)}
}

func NewDoubleValue(v float64) Value {
	return Value{vtype: TypeDouble, f: v}
}

// NewStringValue 构建定长容量字符串值，超出容量返回ErrValueTooLarge
func NewStringValue(s string, capacity uint32) (Value, error) {
	if uint32(len(s)) > capacity {
		return Value{}, errors.Wrapf(ErrValueTooLarge, "string length %d exceeds capacity %d", len(s), capacity)
	}
	return Value{vtype: TypeString, str: []byte(s), cap: capacity}, nil
}

func (v Value) Type() ValueType { return v.vtype }

func (v Value) Int32() int32 { return int32(v.i) }

func (v Value) Int64() int64 { return v.i }

func (v Value) Float32() float32 { return float32(v.f) }

func (v Value) Float64() float64 { return v.f }

// Bytes 返回字符串内容，不含填充
func (v Value) Bytes() []byte { return v.str }

func (v Value) Capacity() uint32 { return v.cap }

func (v Value) String() string {
	switch v.vtype {
	case TypeInteger, TypeBigInt:
		return fmt.Sprintf("%d", v.i)
	case TypeFloat:
		return fmt.Sprintf("%g", float32(v.f))
	case TypeDouble:
		return fmt.Sprintf("%g", v.f)
	case TypeString:
		return string(v.str)
	default:
		return "<invalid>"
	}
}

// SameKind reports whether two values share a variant; strings must also
// share the declared capacity, since capacity is part of the key schema.
func (v Value) SameKind(other Value) bool {
	if v.vtype != other.vtype {
		return false
	}
	if v.vtype == TypeString && v.cap != other.cap {
		return false
	}
	return true
}

// Compare 返回 -1/0/1，变体不匹配时返回ErrTypeMismatch
func (v Value) Compare(other Value) (int, error) {
	if !v.SameKind(other) {
		return 0, errors.Wrapf(ErrTypeMismatch, "cannot compare %s with %s", v.vtype, other.vtype)
	}
	switch v.vtype {
	case TypeInteger, TypeBigInt:
		switch {
		case v.i < other.i:
			return -1, nil
		case v.i > other.i:
			return 1, nil
		default:
			return 0, nil
		}
	case TypeFloat, TypeDouble:
		switch {
		case v.f < other.f:
			return -1, nil
		case v.f > other.f:
			return 1, nil
		default:
			return 0, nil
		}
	case TypeString:
		// 按实际内容比较，不含填充
		return bytes.Compare(v.str, other.str), nil
	default:
		return 0, errors.Wrapf(ErrTypeMismatch, "unknown value type %d", byte(v.vtype))
	}
}

func (v Value) Less(other Value) (bool, error) {
	c, err := v.Compare(other)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

func (v Value) Equal(other Value) (bool, error) {
	c, err := v.Compare(other)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}
