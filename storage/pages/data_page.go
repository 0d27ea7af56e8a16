package pages

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/util"
)

// 数据页布局:
//
//	[0:64)   保留区，全零
//	[64:68)  行数量
//	[68:..)  槽位数组，每行一个u32偏移，向后增长
//	[..:4096) 行内容，从页尾向前紧密堆放
//
// 第i行的长度由槽位差值决定: slots[i-1](首行取PAGE_SIZE) - slots[i]
const (
	rowCountOffset = common.DATA_HEADER_SIZE
	slotsOffset    = rowCountOffset + 4
)

// MaxRowBytes is the largest row a fresh data page can take: the body
// minus one slot entry for the row itself.
const MaxRowBytes = common.PAGE_SIZE - slotsOffset - 4

// DataPage keeps its on-disk image current on every mutation, so
// Bytes never has to re-serialize.
type DataPage struct {
	PageNo uint32
	buf    []byte
	count  int
}

func NewDataPage(pageNo uint32) *DataPage {
	return &DataPage{
		PageNo: pageNo,
		buf:    make([]byte, common.PAGE_SIZE),
	}
}

// ParseDataPage 解析数据页并校验槽位数组的边界与单调性
func ParseDataPage(pageNo uint32, buf []byte) (*DataPage, error) {
	if len(buf) != common.PAGE_SIZE {
		return nil, errors.Wrapf(basic.ErrCorruptPage, "data page needs %d bytes, have %d", common.PAGE_SIZE, len(buf))
	}
	count := int(util.ReadUB4Byte2Int32(buf[rowCountOffset:]))
	if count < 0 || slotsOffset+4*count > common.PAGE_SIZE {
		return nil, errors.Wrapf(basic.ErrCorruptPage, "data page %d claims %d rows", pageNo, count)
	}
	page := &DataPage{
		PageNo: pageNo,
		buf:    append([]byte(nil), buf...),
		count:  count,
	}
	prevEnd := uint32(common.PAGE_SIZE)
	for i := 0; i < count; i++ {
		off := page.slotAt(i)
		if off > prevEnd || off < uint32(slotsOffset+4*count) {
			return nil, errors.Wrapf(basic.ErrCorruptPage, "data page %d slot %d offset %d out of bounds", pageNo, i, off)
		}
		prevEnd = off
	}
	return page, nil
}

func (page *DataPage) slotAt(i int) uint32 {
	return util.ReadUB4Byte2UInt32(page.buf[slotsOffset+4*i:])
}

func (page *DataPage) RowCount() int {
	return page.count
}

// freeBytes 返回槽位数组末尾与最低行起点之间的空隙
func (page *DataPage) freeBytes() int {
	lowest := common.PAGE_SIZE
	if page.count > 0 {
		lowest = int(page.slotAt(page.count - 1))
	}
	return lowest - (slotsOffset + 4*page.count)
}

// AddRow places row at the tail of the packed region and records its
// slot. It reports false when the page cannot take the row, leaving
// the page untouched so the caller can move on to a fresh one.
func (page *DataPage) AddRow(row []byte) (uint32, bool) {
	if len(row)+4 > page.freeBytes() {
		return 0, false
	}
	lowest := common.PAGE_SIZE
	if page.count > 0 {
		lowest = int(page.slotAt(page.count - 1))
	}
	offset := uint32(lowest - len(row))
	copy(page.buf[offset:], row)
	copy(page.buf[slotsOffset+4*page.count:], util.ConvertUInt4Bytes(offset))
	page.count++
	copy(page.buf[rowCountOffset:], util.ConvertInt4Bytes(int32(page.count)))
	return offset, true
}

// RowAt resolves a stored offset back to the row bytes. The offset
// must be one previously returned by AddRow on this page.
func (page *DataPage) RowAt(offset uint32) ([]byte, error) {
	end := uint32(common.PAGE_SIZE)
	for i := 0; i < page.count; i++ {
		off := page.slotAt(i)
		if off == offset {
			row := make([]byte, end-off)
			copy(row, page.buf[off:end])
			return row, nil
		}
		end = off
	}
	return nil, errors.Wrapf(basic.ErrCorruptPage, "data page %d has no row at offset %d", page.PageNo, offset)
}

// Bytes 返回页面在磁盘上的完整镜像
func (page *DataPage) Bytes() []byte {
	return page.buf
}
