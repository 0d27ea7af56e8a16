package basic

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/util"
)

// RowLocator 叶子节点的载荷，定位数据文件中的一行
const RowLocatorSize = 12

type RowLocator struct {
	PageNo uint64 // 数据页号
	Offset uint32 // 页内行起始偏移
}

func (loc RowLocator) Bytes() []byte {
	buf := make([]byte, 0, RowLocatorSize)
	buf = util.WriteUB8(buf, loc.PageNo)
	buf = util.WriteUB4(buf, loc.Offset)
	return buf
}

func ParseRowLocator(buf []byte) (RowLocator, error) {
	if len(buf) < RowLocatorSize {
		return RowLocator{}, errors.Errorf("row locator buffer too short: need %d bytes, have %d", RowLocatorSize, len(buf))
	}
	cursor, pageNo := util.ReadUB8(buf, 0)
	_, offset := util.ReadUB4(buf, cursor)
	return RowLocator{PageNo: pageNo, Offset: offset}, nil
}
