package pages

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/util"
)

// 节点头布局，32字节:
//
//	[0:4)   checksum   页面体校验和(xxhash32, 覆盖[4:PAGE_SIZE))
//	[4:8)   pageNo     页面号
//	[8:10)  pageType   节点类型(叶子/内部)
//	[10:12) entryCount 键数量
//	[12:16) prev       前驱叶子页面号
//	[16:20) next       后继叶子页面号
//	[20:24) parent     父节点页面号
//	[24:28) version    格式版本
//	[28:32) reserved
const (
	checksumOffset   = 0
	pageNoOffset     = 4
	pageTypeOffset   = 8
	entryCountOffset = 10
	prevOffset       = 12
	nextOffset       = 16
	parentOffset     = 20
	versionOffset    = 24
)

// IndexPage is one deserialized tree node. A leaf holds (key, locator)
// pairs plus the leaf-chain links; an internal node holds separator keys
// and child page numbers, always len(Keys)+1 children.
//
// Parent back-references are page numbers resolved through the same
// page lookup as children, never direct pointers.
type IndexPage struct {
	PageNo   uint32
	PageType uint16
	Prev     uint32
	Next     uint32
	Parent   uint32

	KeyType     basic.ValueType
	KeyCapacity uint32

	Keys     []basic.Value
	Locators []basic.RowLocator // 叶子载荷
	Children []uint32           // 内部节点孩子
}

func NewLeafPage(pageNo uint32, keyType basic.ValueType, keyCapacity uint32) *IndexPage {
	return &IndexPage{
		PageNo:      pageNo,
		PageType:    common.PAGE_LEAF,
		KeyType:     keyType,
		KeyCapacity: keyCapacity,
	}
}

func NewInternalPage(pageNo uint32, keyType basic.ValueType, keyCapacity uint32) *IndexPage {
	return &IndexPage{
		PageNo:      pageNo,
		PageType:    common.PAGE_INTERNAL,
		KeyType:     keyType,
		KeyCapacity: keyCapacity,
	}
}

func (page *IndexPage) IsLeaf() bool {
	return page.PageType == common.PAGE_LEAF
}

// EntryCount 返回节点条目数: 叶子为键数，内部节点为孩子数
func (page *IndexPage) EntryCount() int {
	if page.IsLeaf() {
		return len(page.Keys)
	}
	return len(page.Children)
}

// MaxOrder returns the largest order a tree with this key type can use
// so that a full node of either kind still serializes into one page.
func MaxOrder(keyType basic.ValueType, keyCapacity uint32) (int, error) {
	kw, err := basic.KeyWidth(keyType, keyCapacity)
	if err != nil {
		return 0, err
	}
	body := common.PAGE_SIZE - common.NODE_HEADER_SIZE
	leafMax := body / (kw + basic.RowLocatorSize)
	// 内部节点n个孩子携带n-1个键
	internalMax := (body + kw) / (4 + kw)
	if leafMax < internalMax {
		return leafMax, nil
	}
	return internalMax, nil
}

func maxLeafKeys(keyWidth int) int {
	return (common.PAGE_SIZE - common.NODE_HEADER_SIZE) / (keyWidth + basic.RowLocatorSize)
}

func maxInternalChildren(keyWidth int) int {
	return (common.PAGE_SIZE - common.NODE_HEADER_SIZE + keyWidth) / (4 + keyWidth)
}

// Serialize 将节点编码为完整页面并写入校验和
func (page *IndexPage) Serialize() ([]byte, error) {
	kw, err := basic.KeyWidth(page.KeyType, page.KeyCapacity)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, common.PAGE_SIZE-common.NODE_HEADER_SIZE)
	if page.IsLeaf() {
		if len(page.Locators) != len(page.Keys) {
			return nil, errors.Errorf("leaf page %d has %d keys but %d locators", page.PageNo, len(page.Keys), len(page.Locators))
		}
		if len(page.Keys) > maxLeafKeys(kw) {
			return nil, errors.Errorf("leaf page %d with %d keys does not fit one page", page.PageNo, len(page.Keys))
		}
		for i, key := range page.Keys {
			kb, err := basic.EncodeKey(key)
			if err != nil {
				return nil, err
			}
			body = util.WriteBytes(body, kb)
			body = util.WriteBytes(body, page.Locators[i].Bytes())
		}
	} else {
		if len(page.Children) != len(page.Keys)+1 {
			return nil, errors.Errorf("internal page %d has %d keys but %d children", page.PageNo, len(page.Keys), len(page.Children))
		}
		if len(page.Children) > maxInternalChildren(kw) {
			return nil, errors.Errorf("internal page %d with %d children does not fit one page", page.PageNo, len(page.Children))
		}
		body = util.WriteUB4(body, page.Children[0])
		for i, key := range page.Keys {
			kb, err := basic.EncodeKey(key)
			if err != nil {
				return nil, err
			}
			body = util.WriteBytes(body, kb)
			body = util.WriteUB4(body, page.Children[i+1])
		}
	}

	buf := make([]byte, common.PAGE_SIZE)
	copy(buf[pageNoOffset:], util.ConvertUInt4Bytes(page.PageNo))
	copy(buf[pageTypeOffset:], util.ConvertUInt2Bytes(page.PageType))
	copy(buf[entryCountOffset:], util.ConvertUInt2Bytes(uint16(len(page.Keys))))
	copy(buf[prevOffset:], util.ConvertUInt4Bytes(page.Prev))
	copy(buf[nextOffset:], util.ConvertUInt4Bytes(page.Next))
	copy(buf[parentOffset:], util.ConvertUInt4Bytes(page.Parent))
	copy(buf[versionOffset:], util.ConvertUInt4Bytes(common.FORMAT_VERSION))
	copy(buf[common.NODE_HEADER_SIZE:], body)

	// 校验和最后写入，覆盖除自身外的全部页面字节
	copy(buf[checksumOffset:], util.ConvertUInt4Bytes(util.Checksum32(buf[pageNoOffset:])))
	return buf, nil
}

// ParseIndexPage decodes one page, validating checksum, kind tag and
// entry bounds before touching the body. Any violation fails with
// ErrCorruptPage.
func ParseIndexPage(buf []byte, keyType basic.ValueType, keyCapacity uint32) (*IndexPage, error) {
	if len(buf) != common.PAGE_SIZE {
		return nil, errors.Wrapf(basic.ErrCorruptPage, "page needs %d bytes, have %d", common.PAGE_SIZE, len(buf))
	}

	storedSum := util.ReadUB4Byte2UInt32(buf[checksumOffset:])
	if actual := util.Checksum32(buf[pageNoOffset:]); actual != storedSum {
		return nil, errors.Wrapf(basic.ErrCorruptPage, "checksum mismatch: stored 0x%08X, computed 0x%08X", storedSum, actual)
	}

	kw, err := basic.KeyWidth(keyType, keyCapacity)
	if err != nil {
		return nil, errors.Wrapf(basic.ErrCorruptPage, "%v", err)
	}

	page := &IndexPage{
		PageNo:      util.ReadUB4Byte2UInt32(buf[pageNoOffset:]),
		PageType:    util.ReadUB2Byte2UInt16(buf[pageTypeOffset:]),
		Prev:        util.ReadUB4Byte2UInt32(buf[prevOffset:]),
		Next:        util.ReadUB4Byte2UInt32(buf[nextOffset:]),
		Parent:      util.ReadUB4Byte2UInt32(buf[parentOffset:]),
		KeyType:     keyType,
		KeyCapacity: keyCapacity,
	}
	keyCount := int(util.ReadUB2Byte2UInt16(buf[entryCountOffset:]))

	cursor := common.NODE_HEADER_SIZE
	switch page.PageType {
	case common.PAGE_LEAF:
		if keyCount > maxLeafKeys(kw) {
			return nil, errors.Wrapf(basic.ErrCorruptPage, "leaf page %d claims %d keys, page fits %d", page.PageNo, keyCount, maxLeafKeys(kw))
		}
		page.Keys = make([]basic.Value, 0, keyCount)
		page.Locators = make([]basic.RowLocator, 0, keyCount)
		for i := 0; i < keyCount; i++ {
			key, err := basic.DecodeKey(buf[cursor:cursor+kw], keyType, keyCapacity)
			if err != nil {
				return nil, errors.Wrapf(basic.ErrCorruptPage, "page %d leaf key %d: %v", page.PageNo, i, err)
			}
			cursor += kw
			loc, err := basic.ParseRowLocator(buf[cursor : cursor+basic.RowLocatorSize])
			if err != nil {
				return nil, errors.Wrapf(basic.ErrCorruptPage, "page %d leaf locator %d: %v", page.PageNo, i, err)
			}
			cursor += basic.RowLocatorSize
			page.Keys = append(page.Keys, key)
			page.Locators = append(page.Locators, loc)
		}
	case common.PAGE_INTERNAL:
		if keyCount == 0 {
			return nil, errors.Wrapf(basic.ErrCorruptPage, "internal page %d has no keys", page.PageNo)
		}
		if keyCount+1 > maxInternalChildren(kw) {
			return nil, errors.Wrapf(basic.ErrCorruptPage, "internal page %d claims %d children, page fits %d", page.PageNo, keyCount+1, maxInternalChildren(kw))
		}
		page.Keys = make([]basic.Value, 0, keyCount)
		page.Children = make([]uint32, 0, keyCount+1)
		var child uint32
		cursor, child = util.ReadUB4(buf, cursor)
		page.Children = append(page.Children, child)
		for i := 0; i < keyCount; i++ {
			key, err := basic.DecodeKey(buf[cursor:cursor+kw], keyType, keyCapacity)
			if err != nil {
				return nil, errors.Wrapf(basic.ErrCorruptPage, "page %d internal key %d: %v", page.PageNo, i, err)
			}
			cursor += kw
			cursor, child = util.ReadUB4(buf, cursor)
			page.Children = append(page.Children, child)
			page.Keys = append(page.Keys, key)
		}
	default:
		return nil, errors.Wrapf(basic.ErrCorruptPage, "page %d has unknown node kind %d", page.PageNo, page.PageType)
	}

	return page, nil
}
