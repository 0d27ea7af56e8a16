package pages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/util"
)

func TestFileHeader_RoundTrip(t *testing.T) {
	fh := NewFileHeader(basic.TypeString, 16, 64)
	fh.WriteRootPage(7)
	fh.WriteNextFreePage(42)

	buf := fh.Serialize()
	assert.Equal(t, common.FILE_HEADER_SIZE, len(buf))

	parsed, err := ParseFileHeader(buf)
	assert.NoError(t, err)
	assert.Equal(t, common.FILE_MAGIC, parsed.GetMagic())
	assert.Equal(t, common.FORMAT_VERSION, parsed.GetVersion())
	assert.Equal(t, uint32(common.PAGE_SIZE), parsed.GetPageSize())
	assert.Equal(t, uint32(7), parsed.GetRootPage())
	assert.Equal(t, uint32(42), parsed.GetNextFreePage())
	assert.Equal(t, basic.TypeString, parsed.GetKeyType())
	assert.Equal(t, uint32(16), parsed.GetKeyCapacity())
	assert.Equal(t, uint32(64), parsed.GetTreeOrder())
	assert.NoError(t, parsed.Validate())
}

func TestFileHeader_FreshIndexFile(t *testing.T) {
	fh := NewFileHeader(basic.TypeInteger, 0, 128)

	// Empty tree: no root yet, page 0 is the header itself
	assert.Equal(t, common.PAGE_NONE, fh.GetRootPage())
	assert.Equal(t, uint32(1), fh.GetNextFreePage())
	assert.NoError(t, fh.Validate())
}

func TestFileHeader_DataFile(t *testing.T) {
	fh := NewDataFileHeader()

	assert.Equal(t, basic.ValueType(0), fh.GetKeyType())
	assert.Equal(t, uint32(0), fh.GetKeyCapacity())
	assert.Equal(t, uint32(0), fh.GetTreeOrder())
	assert.NoError(t, fh.Validate())
}

func TestFileHeader_ValidateRejectsForeignFile(t *testing.T) {
	fh := NewFileHeader(basic.TypeBigInt, 0, 32)
	buf := fh.Serialize()

	// Bad magic
	broken := append([]byte(nil), buf...)
	broken[0] ^= 0xFF
	parsed, err := ParseFileHeader(broken)
	assert.NoError(t, err)
	assert.True(t, errors.Is(parsed.Validate(), basic.ErrIncompatibleFormat))

	// Future format version
	broken = append([]byte(nil), buf...)
	copy(broken[MagicSize:], util.ConvertUInt4Bytes(common.FORMAT_VERSION+1))
	parsed, err = ParseFileHeader(broken)
	assert.NoError(t, err)
	assert.True(t, errors.Is(parsed.Validate(), basic.ErrIncompatibleFormat))

	// Page size the engine does not use
	broken = append([]byte(nil), buf...)
	copy(broken[MagicSize+VersionSize:], util.ConvertUInt4Bytes(8192))
	parsed, err = ParseFileHeader(broken)
	assert.NoError(t, err)
	assert.True(t, errors.Is(parsed.Validate(), basic.ErrIncompatibleFormat))
}

func TestParseFileHeader_ShortBuffer(t *testing.T) {
	_, err := ParseFileHeader(make([]byte, common.FILE_HEADER_SIZE-1))
	assert.True(t, errors.Is(err, basic.ErrCorruptPage))
}
