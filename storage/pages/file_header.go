// Package pages implements the on-disk page structures: the fixed file
// header at offset 0, index pages holding serialized tree nodes, and
// slotted data pages holding encoded rows.
package pages

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/util"
)

// File header field sizes
const (
	MagicSize        = 4
	VersionSize      = 4
	PageSizeSize     = 4
	RootPageSize     = 4
	NextFreePageSize = 4
	KeyTypeSize      = 1
	KeyCapacitySize  = 4
	TreeOrderSize    = 4
	HeaderReserved   = 35
)

// FileHeader 文件头，固定64字节，位于文件偏移0处
// 页面0整页归文件头所有，其余字节补零
type FileHeader struct {
	Magic        [MagicSize]byte        // 文件魔数
	Version      [VersionSize]byte      // 格式版本
	PageSize     [PageSizeSize]byte     // 页面大小
	RootPage     [RootPageSize]byte     // 根页面号，0表示空树
	NextFreePage [NextFreePageSize]byte // 下一个可分配页面号，单调递增
	KeyType      [KeyTypeSize]byte      // 键类型标签（索引文件）
	KeyCapacity  [KeyCapacitySize]byte  // 字符串键声明容量
	TreeOrder    [TreeOrderSize]byte    // 节点分裂阈值
	Reserved     [HeaderReserved]byte
}

// NewFileHeader creates the header for a fresh index file. Page 0 is the
// header itself, so allocation starts at page 1.
func NewFileHeader(keyType basic.ValueType, keyCapacity uint32, order uint32) FileHeader {
	var fh FileHeader
	copy(fh.Magic[:], util.ConvertUInt4Bytes(common.FILE_MAGIC))
	copy(fh.Version[:], util.ConvertUInt4Bytes(common.FORMAT_VERSION))
	copy(fh.PageSize[:], util.ConvertUInt4Bytes(uint32(common.PAGE_SIZE)))
	fh.WriteRootPage(common.PAGE_NONE)
	fh.WriteNextFreePage(1)
	fh.KeyType[0] = byte(keyType)
	copy(fh.KeyCapacity[:], util.ConvertUInt4Bytes(keyCapacity))
	copy(fh.TreeOrder[:], util.ConvertUInt4Bytes(order))
	return fh
}

// NewDataFileHeader creates the header for a fresh data file; the key
// fields stay zero because a data file indexes nothing.
func NewDataFileHeader() FileHeader {
	var fh FileHeader
	copy(fh.Magic[:], util.ConvertUInt4Bytes(common.FILE_MAGIC))
	copy(fh.Version[:], util.ConvertUInt4Bytes(common.FORMAT_VERSION))
	copy(fh.PageSize[:], util.ConvertUInt4Bytes(uint32(common.PAGE_SIZE)))
	fh.WriteRootPage(common.PAGE_NONE)
	fh.WriteNextFreePage(1)
	return fh
}

// WriteRootPage 更新根页面号
func (fh *FileHeader) WriteRootPage(pageNo uint32) {
	copy(fh.RootPage[:], util.ConvertUInt4Bytes(pageNo))
}

// GetRootPage 读取根页面号
func (fh *FileHeader) GetRootPage() uint32 {
	return util.ReadUB4Byte2UInt32(fh.RootPage[:])
}

// WriteNextFreePage 更新下一个可分配页面号
func (fh *FileHeader) WriteNextFreePage(pageNo uint32) {
	copy(fh.NextFreePage[:], util.ConvertUInt4Bytes(pageNo))
}

// GetNextFreePage 读取下一个可分配页面号
func (fh *FileHeader) GetNextFreePage() uint32 {
	return util.ReadUB4Byte2UInt32(fh.NextFreePage[:])
}

func (fh *FileHeader) GetMagic() uint32 {
	return util.ReadUB4Byte2UInt32(fh.Magic[:])
}

func (fh *FileHeader) GetVersion() uint32 {
	return util.ReadUB4Byte2UInt32(fh.Version[:])
}

func (fh *FileHeader) GetPageSize() uint32 {
	return util.ReadUB4Byte2UInt32(fh.PageSize[:])
}

func (fh *FileHeader) GetKeyType() basic.ValueType {
	return basic.ValueType(fh.KeyType[0])
}

func (fh *FileHeader) GetKeyCapacity() uint32 {
	return util.ReadUB4Byte2UInt32(fh.KeyCapacity[:])
}

func (fh *FileHeader) GetTreeOrder() uint32 {
	return util.ReadUB4Byte2UInt32(fh.TreeOrder[:])
}

// Serialize 序列化为64字节
func (fh *FileHeader) Serialize() []byte {
	buf := make([]byte, 0, common.FILE_HEADER_SIZE)
	buf = util.WriteBytes(buf, fh.Magic[:])
	buf = util.WriteBytes(buf, fh.Version[:])
	buf = util.WriteBytes(buf, fh.PageSize[:])
	buf = util.WriteBytes(buf, fh.RootPage[:])
	buf = util.WriteBytes(buf, fh.NextFreePage[:])
	buf = util.WriteBytes(buf, fh.KeyType[:])
	buf = util.WriteBytes(buf, fh.KeyCapacity[:])
	buf = util.WriteBytes(buf, fh.TreeOrder[:])
	buf = util.WriteBytes(buf, fh.Reserved[:])
	return buf
}

// ParseFileHeader 从字节反序列化文件头
func ParseFileHeader(buf []byte) (FileHeader, error) {
	var fh FileHeader
	if len(buf) < common.FILE_HEADER_SIZE {
		return fh, errors.Wrapf(basic.ErrCorruptPage, "file header needs %d bytes, have %d", common.FILE_HEADER_SIZE, len(buf))
	}
	cursor := 0
	var b []byte
	cursor, b = util.ReadBytes(buf, cursor, MagicSize)
	copy(fh.Magic[:], b)
	cursor, b = util.ReadBytes(buf, cursor, VersionSize)
	copy(fh.Version[:], b)
	cursor, b = util.ReadBytes(buf, cursor, PageSizeSize)
	copy(fh.PageSize[:], b)
	cursor, b = util.ReadBytes(buf, cursor, RootPageSize)
	copy(fh.RootPage[:], b)
	cursor, b = util.ReadBytes(buf, cursor, NextFreePageSize)
	copy(fh.NextFreePage[:], b)
	cursor, b = util.ReadBytes(buf, cursor, KeyTypeSize)
	copy(fh.KeyType[:], b)
	cursor, b = util.ReadBytes(buf, cursor, KeyCapacitySize)
	copy(fh.KeyCapacity[:], b)
	cursor, b = util.ReadBytes(buf, cursor, TreeOrderSize)
	copy(fh.TreeOrder[:], b)
	_, b = util.ReadBytes(buf, cursor, HeaderReserved)
	copy(fh.Reserved[:], b)
	return fh, nil
}

// Validate 打开文件时校验魔数、版本与页面大小
func (fh *FileHeader) Validate() error {
	if fh.GetMagic() != common.FILE_MAGIC {
		return errors.Wrapf(basic.ErrIncompatibleFormat, "bad magic 0x%08X", fh.GetMagic())
	}
	if fh.GetVersion() != common.FORMAT_VERSION {
		return errors.Wrapf(basic.ErrIncompatibleFormat, "format version %d, engine supports %d", fh.GetVersion(), common.FORMAT_VERSION)
	}
	if fh.GetPageSize() != uint32(common.PAGE_SIZE) {
		return errors.Wrapf(basic.ErrIncompatibleFormat, "page size %d, engine uses %d", fh.GetPageSize(), common.PAGE_SIZE)
	}
	return nil
}
