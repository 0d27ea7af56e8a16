package basic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_CompareInteger(t *testing.T) {
	a := NewIntegerValue(3)
	b := NewIntegerValue(7)

	c, err := a.Compare(b)
	assert.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = b.Compare(a)
	assert.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = a.Compare(NewIntegerValue(3))
	assert.NoError(t, err)
	assert.Equal(t, 0, c)

	less, err := a.Less(b)
	assert.NoError(t, err)
	assert.True(t, less)
}

func TestValue_CompareBigIntBounds(t *testing.T) {
	lo := NewBigIntValue(-1 << 62)
	hi := NewBigIntValue(1 << 62)
	c, err := lo.Compare(hi)
	assert.NoError(t, err)
	assert.Equal(t, -1, c)
}

func TestValue_CompareFloats(t *testing.T) {
	a := NewFloatValue(1.5)
	b := NewFloatValue(2.25)
	c, err := a.Compare(b)
	assert.NoError(t, err)
	assert.Equal(t, -1, c)

	d := NewDoubleValue(3.14159)
	e := NewDoubleValue(3.14159)
	eq, err := d.Equal(e)
	assert.NoError(t, err)
	assert.True(t, eq)
}

func TestValue_CompareString(t *testing.T) {
	a, err := NewStringValue("alice", 32)
	assert.NoError(t, err)
	b, err := NewStringValue("bob", 32)
	assert.NoError(t, err)

	c, err := a.Compare(b)
	assert.NoError(t, err)
	assert.Equal(t, -1, c)

	// 填充不参与比较
	short, err := NewStringValue("ab", 32)
	assert.NoError(t, err)
	longer, err := NewStringValue("abc", 32)
	assert.NoError(t, err)
	c, err = short.Compare(longer)
	assert.NoError(t, err)
	assert.Equal(t, -1, c)
}

func TestValue_CompareTypeMismatch(t *testing.T) {
	a := NewIntegerValue(1)
	b := NewBigIntValue(1)
	_, err := a.Compare(b)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	s1, _ := NewStringValue("x", 16)
	s2, _ := NewStringValue("x", 32)
	_, err = s1.Compare(s2)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestValue_StringCapacity(t *testing.T) {
	_, err := NewStringValue("morethansix", 6)
	assert.True(t, errors.Is(err, ErrValueTooLarge))

	v, err := NewStringValue("six", 6)
	assert.NoError(t, err)
	assert.Equal(t, uint32(6), v.Capacity())
	assert.Equal(t, "six", v.String())
}

func TestColumnDef_Validate(t *testing.T) {
	col := ColumnDef{Name: "name", Type: TypeString, Capacity: 8}

	v, _ := NewStringValue("ok", 8)
	assert.NoError(t, col.Validate(v))

	err := col.Validate(NewIntegerValue(1))
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	long, _ := NewStringValue("waytoolongname", 32)
	err = col.Validate(long)
	assert.True(t, errors.Is(err, ErrValueTooLarge))
}

func TestColumnDef_Normalize(t *testing.T) {
	col := ColumnDef{Name: "name", Type: TypeString, Capacity: 16}
	v, _ := NewStringValue("bob", 8)

	n, err := col.Normalize(v)
	assert.NoError(t, err)
	assert.Equal(t, uint32(16), n.Capacity())
	assert.Equal(t, "bob", n.String())

	id := ColumnDef{Name: "id", Type: TypeInteger}
	n, err = id.Normalize(NewIntegerValue(42))
	assert.NoError(t, err)
	assert.Equal(t, int32(42), n.Int32())
}
