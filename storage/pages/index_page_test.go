package pages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/util"
)

func TestIndexPage_LeafRoundTrip(t *testing.T) {
	leaf := NewLeafPage(3, basic.TypeInteger, 0)
	leaf.Prev = 2
	leaf.Next = 4
	leaf.Parent = 1
	for i := 0; i < 5; i++ {
		leaf.Keys = append(leaf.Keys, basic.NewIntegerValue(int32(i*10)))
		leaf.Locators = append(leaf.Locators, basic.RowLocator{PageNo: uint64(i + 1), Offset: uint32(4000 - i*100)})
	}

	buf, err := leaf.Serialize()
	assert.NoError(t, err)
	assert.Equal(t, common.PAGE_SIZE, len(buf))

	parsed, err := ParseIndexPage(buf, basic.TypeInteger, 0)
	assert.NoError(t, err)
	assert.True(t, parsed.IsLeaf())
	assert.Equal(t, uint32(3), parsed.PageNo)
	assert.Equal(t, uint32(2), parsed.Prev)
	assert.Equal(t, uint32(4), parsed.Next)
	assert.Equal(t, uint32(1), parsed.Parent)
	assert.Equal(t, 5, parsed.EntryCount())
	assert.Equal(t, leaf.Locators, parsed.Locators)
	for i := range leaf.Keys {
		eq, err := leaf.Keys[i].Equal(parsed.Keys[i])
		assert.NoError(t, err)
		assert.True(t, eq)
	}
}

func TestIndexPage_InternalRoundTrip(t *testing.T) {
	node := NewInternalPage(1, basic.TypeBigInt, 0)
	node.Keys = []basic.Value{basic.NewBigIntValue(100), basic.NewBigIntValue(200)}
	node.Children = []uint32{2, 3, 4}

	buf, err := node.Serialize()
	assert.NoError(t, err)

	parsed, err := ParseIndexPage(buf, basic.TypeBigInt, 0)
	assert.NoError(t, err)
	assert.False(t, parsed.IsLeaf())
	assert.Equal(t, []uint32{2, 3, 4}, parsed.Children)
	assert.Equal(t, 3, parsed.EntryCount())
	for i := range node.Keys {
		eq, err := node.Keys[i].Equal(parsed.Keys[i])
		assert.NoError(t, err)
		assert.True(t, eq)
	}
}

func TestIndexPage_StringKeys(t *testing.T) {
	leaf := NewLeafPage(5, basic.TypeString, 12)
	for _, name := range []string{"李雷", "han", "韩梅梅"} {
		key, err := basic.NewStringValue(name, 12)
		assert.NoError(t, err)
		leaf.Keys = append(leaf.Keys, key)
		leaf.Locators = append(leaf.Locators, basic.RowLocator{PageNo: 1, Offset: 64})
	}

	buf, err := leaf.Serialize()
	assert.NoError(t, err)

	parsed, err := ParseIndexPage(buf, basic.TypeString, 12)
	assert.NoError(t, err)
	assert.Equal(t, "李雷", parsed.Keys[0].String())
	assert.Equal(t, "han", parsed.Keys[1].String())
	assert.Equal(t, "韩梅梅", parsed.Keys[2].String())
}

func TestIndexPage_ChecksumDetectsCorruption(t *testing.T) {
	leaf := NewLeafPage(2, basic.TypeInteger, 0)
	leaf.Keys = []basic.Value{basic.NewIntegerValue(1)}
	leaf.Locators = []basic.RowLocator{{PageNo: 1, Offset: 100}}

	buf, err := leaf.Serialize()
	assert.NoError(t, err)

	// Flip one body byte
	buf[common.NODE_HEADER_SIZE] ^= 0xFF
	_, err = ParseIndexPage(buf, basic.TypeInteger, 0)
	assert.True(t, errors.Is(err, basic.ErrCorruptPage))
}

func TestIndexPage_UnknownNodeKind(t *testing.T) {
	leaf := NewLeafPage(2, basic.TypeInteger, 0)
	leaf.Keys = []basic.Value{basic.NewIntegerValue(1)}
	leaf.Locators = []basic.RowLocator{{PageNo: 1, Offset: 100}}

	buf, err := leaf.Serialize()
	assert.NoError(t, err)

	// Patch the kind tag and re-seal the checksum so only the tag is wrong
	copy(buf[pageTypeOffset:], util.ConvertUInt2Bytes(99))
	copy(buf[checksumOffset:], util.ConvertUInt4Bytes(util.Checksum32(buf[pageNoOffset:])))
	_, err = ParseIndexPage(buf, basic.TypeInteger, 0)
	assert.True(t, errors.Is(err, basic.ErrCorruptPage))
}

func TestIndexPage_TruncatedBuffer(t *testing.T) {
	_, err := ParseIndexPage(make([]byte, 100), basic.TypeInteger, 0)
	assert.True(t, errors.Is(err, basic.ErrCorruptPage))
}

func TestIndexPage_SerializeRejectsMismatchedPayload(t *testing.T) {
	leaf := NewLeafPage(2, basic.TypeInteger, 0)
	leaf.Keys = []basic.Value{basic.NewIntegerValue(1), basic.NewIntegerValue(2)}
	leaf.Locators = []basic.RowLocator{{PageNo: 1, Offset: 100}}

	_, err := leaf.Serialize()
	assert.Error(t, err)
}

func TestMaxOrder(t *testing.T) {
	// body 4064: integer leaf entry 16 bytes, so 254 keys fit
	order, err := MaxOrder(basic.TypeInteger, 0)
	assert.NoError(t, err)
	assert.Equal(t, 254, order)

	// bigint leaf entry 20 bytes
	order, err = MaxOrder(basic.TypeBigInt, 0)
	assert.NoError(t, err)
	assert.Equal(t, 203, order)

	// string cap 64: width 68, leaf entry 80 bytes
	order, err = MaxOrder(basic.TypeString, 64)
	assert.NoError(t, err)
	assert.Equal(t, 50, order)

	_, err = MaxOrder(basic.ValueType(0), 0)
	assert.Error(t, err)
}

func TestIndexPage_FullLeafStillFitsOnePage(t *testing.T) {
	order, err := MaxOrder(basic.TypeInteger, 0)
	assert.NoError(t, err)

	leaf := NewLeafPage(9, basic.TypeInteger, 0)
	for i := 0; i < order; i++ {
		leaf.Keys = append(leaf.Keys, basic.NewIntegerValue(int32(i)))
		leaf.Locators = append(leaf.Locators, basic.RowLocator{PageNo: 1, Offset: uint32(i)})
	}

	buf, err := leaf.Serialize()
	assert.NoError(t, err)

	parsed, err := ParseIndexPage(buf, basic.TypeInteger, 0)
	assert.NoError(t, err)
	assert.Equal(t, order, len(parsed.Keys))
}
