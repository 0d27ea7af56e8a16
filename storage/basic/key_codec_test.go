package basic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyCodec_FixedWidth(t *testing.T) {
	w, err := KeyWidth(TypeInteger, 0)
	assert.NoError(t, err)
	assert.Equal(t, 4, w)

	w, err = KeyWidth(TypeDouble, 0)
	assert.NoError(t, err)
	assert.Equal(t, 8, w)

	w, err = KeyWidth(TypeString, 20)
	assert.NoError(t, err)
	assert.Equal(t, 24, w)

	_, err = KeyWidth(ValueType(99), 0)
	assert.Error(t, err)
}

func TestKeyCodec_RoundTrip(t *testing.T) {
	str, err := NewStringValue("王小明", 32)
	assert.NoError(t, err)

	keys := []Value{
		NewIntegerValue(-42),
		NewBigIntValue(1 << 50),
		NewFloatValue(2.5),
		NewDoubleValue(-0.001),
		str,
	}

	for _, key := range keys {
		buf, err := EncodeKey(key)
		assert.NoError(t, err)

		width, err := KeyWidth(key.Type(), key.Capacity())
		assert.NoError(t, err)
		assert.Equal(t, width, len(buf), "encoded width for %s", key.Type())

		decoded, err := DecodeKey(buf, key.Type(), key.Capacity())
		assert.NoError(t, err)

		eq, err := key.Equal(decoded)
		assert.NoError(t, err)
		assert.True(t, eq, "round trip for %s", key.Type())
	}
}

func TestKeyCodec_StringPadding(t *testing.T) {
	key, err := NewStringValue("ab", 8)
	assert.NoError(t, err)

	buf, err := EncodeKey(key)
	assert.NoError(t, err)
	assert.Equal(t, 12, len(buf))
	// 长度前缀 + 内容 + 零填充
	assert.Equal(t, byte(2), buf[0])
	assert.Equal(t, byte('a'), buf[4])
	assert.Equal(t, byte('b'), buf[5])
	for i := 6; i < 12; i++ {
		assert.Equal(t, byte(0), buf[i])
	}
}

func TestKeyCodec_DecodeShortBuffer(t *testing.T) {
	_, err := DecodeKey([]byte{1, 2}, TypeInteger, 0)
	assert.Error(t, err)

	_, err = DecodeKey(make([]byte, 12), TypeString, 64)
	assert.Error(t, err)
}

func TestRowLocator_RoundTrip(t *testing.T) {
	loc := RowLocator{PageNo: 7, Offset: 4020}
	buf := loc.Bytes()
	assert.Equal(t, RowLocatorSize, len(buf))

	parsed, err := ParseRowLocator(buf)
	assert.NoError(t, err)
	assert.Equal(t, loc, parsed)

	_, err = ParseRowLocator(buf[:5])
	assert.Error(t, err)
}
