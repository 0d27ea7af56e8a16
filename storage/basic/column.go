package basic

import (
	"github.com/pkg/errors"
)

// ColumnDef 表的一列定义，产生于建表，之后只读
type ColumnDef struct {
	Name       string
	Type       ValueType
	Capacity   uint32 // STRING列的声明容量
	PrimaryKey bool
}

// Validate checks a value against the column declaration.
// Variant mismatch is a caller error, never recovered silently.
func (c ColumnDef) Validate(v Value) error {
	if v.Type() != c.Type {
		return errors.Wrapf(ErrTypeMismatch, "column %s expects %s, got %s", c.Name, c.Type, v.Type())
	}
	if c.Type == TypeString {
		if uint32(len(v.Bytes())) > c.Capacity {
			return errors.Wrapf(ErrValueTooLarge, "column %s: string length %d exceeds capacity %d", c.Name, len(v.Bytes()), c.Capacity)
		}
	}
	return nil
}

// Normalize validates a value and rebinds string values to the column's
// declared capacity, so values from different callers stay comparable.
func (c ColumnDef) Normalize(v Value) (Value, error) {
	if err := c.Validate(v); err != nil {
		return Value{}, err
	}
	if c.Type == TypeString && v.Capacity() != c.Capacity {
		return NewStringValue(string(v.Bytes()), c.Capacity)
	}
	return v, nil
}
