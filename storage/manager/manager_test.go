package manager

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/zhukovaskychina/xtabledb/conf"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/pages"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*TableTreeManager, *conf.Cfg) {
	cfg := conf.NewCfg()
	cfg.DataDir = t.TempDir()
	cfg.CacheCapacity = 8

	mgr, err := NewTableTreeManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr, cfg
}

func intKeySchema() IndexSchema {
	return IndexSchema{KeyType: basic.TypeInteger, Order: 8}
}

func drainRows(t *testing.T, it RowIterator) (keys []int32, rows []string) {
	for it != nil {
		var key basic.Value
		var row []byte
		var err error
		key, row, err, it = it()
		require.NoError(t, err)
		if it == nil {
			break
		}
		keys = append(keys, key.Int32())
		rows = append(rows, string(row))
	}
	return keys, rows
}

func TestTableTreeManager_CreateInsertLookup(t *testing.T) {
	mgr, _ := newTestManager(t)

	h, err := mgr.CreateIndex("users", intKeySchema())
	require.NoError(t, err)
	assert.Equal(t, "users", h.Name())

	for i := int32(1); i <= 3; i++ {
		err := mgr.Insert("users", basic.NewIntegerValue(i), []byte(fmt.Sprintf("row-%d", i)))
		require.NoError(t, err)
	}

	row, found, err := mgr.Lookup("users", basic.NewIntegerValue(2))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "row-2", string(row))

	// 未命中不是错误
	row, found, err = mgr.Lookup("users", basic.NewIntegerValue(99))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, row)
}

func TestTableTreeManager_DuplicateKey(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateIndex("users", intKeySchema())
	require.NoError(t, err)

	require.NoError(t, mgr.Insert("users", basic.NewIntegerValue(7), []byte("first")))
	err = mgr.Insert("users", basic.NewIntegerValue(7), []byte("second"))
	assert.True(t, stderrors.Is(err, basic.ErrDuplicateKey))

	// 重复插入不得改写已有行
	row, found, err := mgr.Lookup("users", basic.NewIntegerValue(7))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "first", string(row))
}

func TestTableTreeManager_CreateExisting(t *testing.T) {
	mgr, cfg := newTestManager(t)

	_, err := mgr.CreateIndex("users", intKeySchema())
	require.NoError(t, err)

	_, err = mgr.CreateIndex("users", intKeySchema())
	assert.True(t, errors.IsAlreadyExists(err))

	// 新管理器实例看到的是磁盘上的同名文件
	other, err := NewTableTreeManager(cfg)
	require.NoError(t, err)
	defer other.Close()
	_, err = other.CreateIndex("users", intKeySchema())
	assert.True(t, errors.IsAlreadyExists(err))
}

func TestTableTreeManager_OpenMissing(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, _, err := mgr.Lookup("ghost", basic.NewIntegerValue(1))
	assert.True(t, errors.IsNotFound(err))

	err = mgr.Insert("ghost", basic.NewIntegerValue(1), []byte("x"))
	assert.True(t, errors.IsNotFound(err))
}

func TestTableTreeManager_RangeIsSnapshot(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateIndex("users", intKeySchema())
	require.NoError(t, err)
	for i := int32(10); i <= 90; i += 10 {
		require.NoError(t, mgr.Insert("users", basic.NewIntegerValue(i), []byte(fmt.Sprintf("row-%d", i))))
	}

	it, err := mgr.Range("users", basic.NewIntegerValue(30), basic.NewIntegerValue(70))
	require.NoError(t, err)

	// 迭代器拿到后再插一条落在区间内的键，快照不受影响
	require.NoError(t, mgr.Insert("users", basic.NewIntegerValue(45), []byte("row-45")))

	keys, rows := drainRows(t, it)
	assert.Equal(t, []int32{30, 40, 50, 60, 70}, keys)
	assert.Equal(t, []string{"row-30", "row-40", "row-50", "row-60", "row-70"}, rows)

	// 新迭代器能看到新键
	it, err = mgr.Range("users", basic.NewIntegerValue(30), basic.NewIntegerValue(70))
	require.NoError(t, err)
	keys, _ = drainRows(t, it)
	assert.Equal(t, []int32{30, 40, 45, 50, 60, 70}, keys)
}

func TestTableTreeManager_RangeEmptyAndInverted(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateIndex("users", intKeySchema())
	require.NoError(t, err)
	require.NoError(t, mgr.Insert("users", basic.NewIntegerValue(5), []byte("row-5")))

	it, err := mgr.Range("users", basic.NewIntegerValue(10), basic.NewIntegerValue(20))
	require.NoError(t, err)
	keys, _ := drainRows(t, it)
	assert.Empty(t, keys)

	it, err = mgr.Range("users", basic.NewIntegerValue(20), basic.NewIntegerValue(10))
	require.NoError(t, err)
	keys, _ = drainRows(t, it)
	assert.Empty(t, keys)
}

func TestTableTreeManager_ScanSortsRandomInserts(t *testing.T) {
	mgr, _ := newTestManager(t)

	schema := IndexSchema{KeyType: basic.TypeInteger, Order: 4}
	_, err := mgr.CreateIndex("users", schema)
	require.NoError(t, err)

	for _, k := range []int32{42, 7, 99, 1, 63, 28, 84, 15, 56, 70} {
		require.NoError(t, mgr.Insert("users", basic.NewIntegerValue(k), []byte(fmt.Sprintf("row-%d", k))))
	}

	it, err := mgr.Scan("users")
	require.NoError(t, err)
	keys, _ := drainRows(t, it)
	assert.Equal(t, []int32{1, 7, 15, 28, 42, 56, 63, 70, 84, 99}, keys)

	height, err := mgr.TreeHeight("users")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, height, 2)
}

func TestTableTreeManager_PersistsAcrossReopen(t *testing.T) {
	cfg := conf.NewCfg()
	cfg.DataDir = t.TempDir()
	cfg.CacheCapacity = 4

	mgr, err := NewTableTreeManager(cfg)
	require.NoError(t, err)

	schema := IndexSchema{KeyType: basic.TypeInteger, Order: 4}
	_, err = mgr.CreateIndex("users", schema)
	require.NoError(t, err)
	for i := int32(1); i <= 50; i++ {
		require.NoError(t, mgr.Insert("users", basic.NewIntegerValue(i), []byte(fmt.Sprintf("row-%d", i))))
	}
	require.NoError(t, mgr.FlushAll())
	require.NoError(t, mgr.Close())

	reopened, err := NewTableTreeManager(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	for i := int32(1); i <= 50; i++ {
		row, found, err := reopened.Lookup("users", basic.NewIntegerValue(i))
		require.NoError(t, err)
		require.True(t, found, "key %d lost after reopen", i)
		assert.Equal(t, fmt.Sprintf("row-%d", i), string(row))
	}

	it, err := reopened.Scan("users")
	require.NoError(t, err)
	keys, _ := drainRows(t, it)
	require.Len(t, keys, 50)
	for i, k := range keys {
		assert.Equal(t, int32(i+1), k)
	}
}

func TestTableTreeManager_TypeMismatch(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateIndex("users", intKeySchema())
	require.NoError(t, err)

	err = mgr.Insert("users", basic.NewBigIntValue(1), []byte("x"))
	assert.True(t, stderrors.Is(err, basic.ErrTypeMismatch))

	_, _, err = mgr.Lookup("users", basic.NewBigIntValue(1))
	assert.True(t, stderrors.Is(err, basic.ErrTypeMismatch))
}

func TestTableTreeManager_DeleteUnsupported(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateIndex("users", intKeySchema())
	require.NoError(t, err)
	require.NoError(t, mgr.Insert("users", basic.NewIntegerValue(1), []byte("x")))

	err = mgr.Delete("users", basic.NewIntegerValue(1))
	assert.True(t, stderrors.Is(err, basic.ErrUnsupported))
}

func TestTableTreeManager_RejectsBadSchema(t *testing.T) {
	mgr, _ := newTestManager(t)

	_, err := mgr.CreateIndex("", intKeySchema())
	assert.True(t, errors.IsNotValid(err))

	_, err = mgr.CreateIndex("users", IndexSchema{KeyType: basic.ValueType(9)})
	assert.True(t, errors.IsNotValid(err))

	_, err = mgr.CreateIndex("users", IndexSchema{KeyType: basic.TypeString})
	assert.True(t, errors.IsNotValid(err))
}

func TestNewTableTreeManager_RejectsBadGeometry(t *testing.T) {
	cfg := conf.NewCfg()
	cfg.DataDir = t.TempDir()

	cfg.PageSize = 8192
	_, err := NewTableTreeManager(cfg)
	assert.True(t, stderrors.Is(err, basic.ErrInvalidPageSize))

	cfg.PageSize = 4096
	cfg.HeaderSize = 128
	_, err = NewTableTreeManager(cfg)
	assert.True(t, stderrors.Is(err, basic.ErrInvalidPageSize))
}

func TestTableTreeManager_DefaultOrderShrinksForWideKeys(t *testing.T) {
	mgr, _ := newTestManager(t)

	schema := IndexSchema{KeyType: basic.TypeString, KeyCapacity: 512}
	h, err := mgr.CreateIndex("wide", schema)
	require.NoError(t, err)

	maxOrder, err := pages.MaxOrder(basic.TypeString, 512)
	require.NoError(t, err)
	require.Less(t, maxOrder, DefaultTreeOrder)
	assert.Equal(t, maxOrder, h.index.Order())

	key, err := basic.NewStringValue("alpha", 512)
	require.NoError(t, err)
	require.NoError(t, mgr.Insert("wide", key, []byte("wide-row")))
	row, found, err := mgr.Lookup("wide", key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "wide-row", string(row))
}
