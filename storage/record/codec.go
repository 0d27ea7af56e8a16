// Package record implements the row codec: one encoded row is a column
// count followed by each column's type tag and payload, in schema order.
package record

import (
	"math"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/util"
)

const countSize = 2

// MaxRowSize returns the largest buffer an encoded row of this schema can
// occupy. Encoding never allocates beyond it.
func MaxRowSize(schema []basic.ColumnDef) int {
	size := countSize
	for _, col := range schema {
		size++ // tag byte
		switch col.Type {
		case basic.TypeInteger, basic.TypeFloat:
			size += 4
		case basic.TypeBigInt, basic.TypeDouble:
			size += 8
		case basic.TypeString:
			size += 4 + int(col.Capacity)
		}
	}
	return size
}

// Encode serializes one row against its schema. The schema is supplied by
// the caller and is never stored in the row itself.
func Encode(schema []basic.ColumnDef, values []basic.Value) ([]byte, error) {
	if len(values) != len(schema) {
		return nil, errors.Wrapf(basic.ErrTypeMismatch, "row has %d values, schema has %d columns", len(values), len(schema))
	}

	buf := make([]byte, 0, MaxRowSize(schema))
	buf = util.WriteUB2(buf, uint16(len(schema)))

	for i, col := range schema {
		v := values[i]
		if err := col.Validate(v); err != nil {
			return nil, err
		}
		buf = util.WriteByte(buf, byte(col.Type))
		switch col.Type {
		case basic.TypeInteger:
			buf = util.WriteUB4(buf, uint32(v.Int32()))
		case basic.TypeFloat:
			buf = util.WriteUB4(buf, math.Float32bits(v.Float32()))
		case basic.TypeDouble:
			buf = util.WriteUB8(buf, math.Float64bits(v.Float64()))
		case basic.TypeBigInt:
			buf = util.WriteUB8(buf, uint64(v.Int64()))
		case basic.TypeString:
			content := v.Bytes()
			buf = util.WriteUB4(buf, uint32(len(content)))
			buf = util.WriteBytes(buf, content)
		default:
			return nil, errors.Wrapf(basic.ErrTypeMismatch, "column %s has unknown type %d", col.Name, byte(col.Type))
		}
	}
	return buf, nil
}

// Decode is the exact inverse of Encode. Any disagreement between buffer
// and schema, including unconsumed trailing bytes, fails with
// ErrCorruptRecord.
func Decode(schema []basic.ColumnDef, buf []byte) ([]basic.Value, error) {
	if len(buf) < countSize {
		return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated: %d bytes", len(buf))
	}
	cursor, count := util.ReadUB2(buf, 0)
	if int(count) != len(schema) {
		return nil, errors.Wrapf(basic.ErrCorruptRecord, "record has %d columns, schema has %d", count, len(schema))
	}

	values := make([]basic.Value, 0, len(schema))
	for _, col := range schema {
		if cursor >= len(buf) {
			return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated at column %s", col.Name)
		}
		var tag byte
		cursor, tag = util.ReadByte(buf, cursor)
		if basic.ValueType(tag) != col.Type {
			return nil, errors.Wrapf(basic.ErrCorruptRecord, "column %s: tag %d does not match expected type %s", col.Name, tag, col.Type)
		}

		switch col.Type {
		case basic.TypeInteger:
			if cursor+4 > len(buf) {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated at column %s", col.Name)
			}
			var u uint32
			cursor, u = util.ReadUB4(buf, cursor)
			values = append(values, basic.NewIntegerValue(int32(u)))
		case basic.TypeFloat:
			if cursor+4 > len(buf) {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated at column %s", col.Name)
			}
			var u uint32
			cursor, u = util.ReadUB4(buf, cursor)
			values = append(values, basic.NewFloatValue(math.Float32frombits(u)))
		case basic.TypeDouble:
			if cursor+8 > len(buf) {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated at column %s", col.Name)
			}
			var u uint64
			cursor, u = util.ReadUB8(buf, cursor)
			values = append(values, basic.NewDoubleValue(math.Float64frombits(u)))
		case basic.TypeBigInt:
			if cursor+8 > len(buf) {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated at column %s", col.Name)
			}
			var u uint64
			cursor, u = util.ReadUB8(buf, cursor)
			values = append(values, basic.NewBigIntValue(int64(u)))
		case basic.TypeString:
			if cursor+4 > len(buf) {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated at column %s", col.Name)
			}
			var strLen uint32
			cursor, strLen = util.ReadUB4(buf, cursor)
			if strLen > col.Capacity {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "column %s: string length %d exceeds capacity %d", col.Name, strLen, col.Capacity)
			}
			if cursor+int(strLen) > len(buf) {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "record truncated at column %s", col.Name)
			}
			var content []byte
			cursor, content = util.ReadBytes(buf, cursor, int(strLen))
			v, err := basic.NewStringValue(string(content), col.Capacity)
			if err != nil {
				return nil, errors.Wrapf(basic.ErrCorruptRecord, "column %s: %v", col.Name, err)
			}
			values = append(values, v)
		default:
			return nil, errors.Wrapf(basic.ErrCorruptRecord, "column %s has unknown type %d", col.Name, byte(col.Type))
		}
	}

	if cursor != len(buf) {
		return nil, errors.Wrapf(basic.ErrCorruptRecord, "%d trailing bytes after last column", len(buf)-cursor)
	}
	return values, nil
}
