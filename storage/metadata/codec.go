package metadata

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/util"
)

// 元数据条目编码:
//
//	条目长度 i32 (不含自身)
//	表id    i32
//	表名    i32长度 + 内容
//	列数    i32
//	每列:   i32名字长度 + 名字 + 类型标签 (+ STRING容量 i32) + 主键标志
const entryLenSize = 4

func encodeTableMeta(meta *TableMeta) []byte {
	body := make([]byte, 0, 64)
	body = util.WriteBytes(body, util.ConvertInt4Bytes(meta.ID))
	body = util.WriteBytes(body, util.ConvertInt4Bytes(int32(len(meta.Name))))
	body = util.WriteBytes(body, []byte(meta.Name))
	body = util.WriteBytes(body, util.ConvertInt4Bytes(int32(len(meta.Columns))))
	for _, col := range meta.Columns {
		body = util.WriteBytes(body, util.ConvertInt4Bytes(int32(len(col.Name))))
		body = util.WriteBytes(body, []byte(col.Name))
		body = util.WriteByte(body, byte(col.Type))
		if col.Type == basic.TypeString {
			body = util.WriteBytes(body, util.ConvertUInt4Bytes(col.Capacity))
		}
		body = util.WriteByte(body, util.ConvertBool2Byte(col.PrimaryKey))
	}

	entry := make([]byte, 0, entryLenSize+len(body))
	entry = util.WriteBytes(entry, util.ConvertInt4Bytes(int32(len(body))))
	entry = util.WriteBytes(entry, body)
	return entry
}

// decodeTableMeta 解析一个条目，返回消耗的字节数
func decodeTableMeta(buf []byte) (*TableMeta, int, error) {
	if len(buf) < entryLenSize {
		return nil, 0, errors.Wrapf(basic.ErrCorruptRecord, "metadata entry truncated at length prefix")
	}
	entryLen := int(util.ReadUB4Byte2Int32(buf))
	if entryLen < 0 || entryLenSize+entryLen > len(buf) {
		return nil, 0, errors.Wrapf(basic.ErrCorruptRecord, "metadata entry claims %d bytes, %d remain", entryLen, len(buf)-entryLenSize)
	}
	body := buf[entryLenSize : entryLenSize+entryLen]

	r := metaReader{buf: body}
	meta := &TableMeta{}
	meta.ID = r.readInt32()
	meta.Name = r.readString()
	numCols := int(r.readInt32())
	if r.err == nil && (numCols < 0 || numCols > len(body)) {
		return nil, 0, errors.Wrapf(basic.ErrCorruptRecord, "metadata entry claims %d columns", numCols)
	}
	for i := 0; i < numCols && r.err == nil; i++ {
		var col basic.ColumnDef
		col.Name = r.readString()
		col.Type = basic.ValueType(r.readByte())
		if !col.Type.Valid() && r.err == nil {
			return nil, 0, errors.Wrapf(basic.ErrCorruptRecord, "column %q carries unknown type tag %d", col.Name, byte(col.Type))
		}
		if col.Type == basic.TypeString {
			col.Capacity = uint32(r.readInt32())
		}
		col.PrimaryKey = r.readByte() == 1
		meta.Columns = append(meta.Columns, col)
	}
	if r.err != nil {
		return nil, 0, r.err
	}
	if r.cursor != len(body) {
		return nil, 0, errors.Wrapf(basic.ErrCorruptRecord, "metadata entry for %q has %d trailing bytes", meta.Name, len(body)-r.cursor)
	}
	return meta, entryLenSize + entryLen, nil
}

func decodeAllTableMeta(buf []byte) ([]*TableMeta, error) {
	var tables []*TableMeta
	cursor := 0
	for cursor < len(buf) {
		meta, n, err := decodeTableMeta(buf[cursor:])
		if err != nil {
			return nil, err
		}
		tables = append(tables, meta)
		cursor += n
	}
	return tables, nil
}

// metaReader 顺序读取，首个越界后吞掉后续读取
type metaReader struct {
	buf    []byte
	cursor int
	err    error
}

func (r *metaReader) readInt32() int32 {
	if r.err != nil {
		return 0
	}
	if r.cursor+4 > len(r.buf) {
		r.err = errors.Wrapf(basic.ErrCorruptRecord, "metadata entry truncated at offset %d", r.cursor)
		return 0
	}
	v := util.ReadUB4Byte2Int32(r.buf[r.cursor:])
	r.cursor += 4
	return v
}

func (r *metaReader) readByte() byte {
	if r.err != nil {
		return 0
	}
	if r.cursor+1 > len(r.buf) {
		r.err = errors.Wrapf(basic.ErrCorruptRecord, "metadata entry truncated at offset %d", r.cursor)
		return 0
	}
	b := r.buf[r.cursor]
	r.cursor++
	return b
}

func (r *metaReader) readString() string {
	n := int(r.readInt32())
	if r.err != nil {
		return ""
	}
	if n < 0 || r.cursor+n > len(r.buf) {
		r.err = errors.Wrapf(basic.ErrCorruptRecord, "metadata string of %d bytes overruns the entry", n)
		return ""
	}
	s := string(r.buf[r.cursor : r.cursor+n])
	r.cursor += n
	return s
}
