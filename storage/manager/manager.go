package manager

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/zhukovaskychina/xtabledb/conf"
	"github.com/zhukovaskychina/xtabledb/logger"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/bptree"
	"github.com/zhukovaskychina/xtabledb/storage/pages"
	"github.com/zhukovaskychina/xtabledb/storage/store"
	"github.com/zhukovaskychina/xtabledb/util"

	"github.com/juju/errors"
)

// 默认树阶数，键太宽放不下一页时自动收缩到页面允许的上限
const DefaultTreeOrder = 64

// IndexSchema 描述一张表的主键索引：键类型、字符串键容量、树阶数。
// Order 为 0 时采用默认阶数。
type IndexSchema struct {
	KeyType     basic.ValueType
	KeyCapacity uint32
	Order       int
}

// RowIterator 行迭代器，返回 nil 迭代器表示结束
type RowIterator func() (key basic.Value, row []byte, err error, next RowIterator)

// TreeHandle 一张表的树句柄：索引文件、数据文件与挂在其上的B+树。
// 句柄内的读写锁串行化该表的全部树访问，写者独占，点查与扫描共享。
type TreeHandle struct {
	name  string
	mu    sync.RWMutex
	index *store.IndexFile
	data  *store.DataFile
	tree  *bptree.BTree
}

func (h *TreeHandle) Name() string {
	return h.name
}

// TableTreeManager 表树管理器，维护表名到树句柄的映射。
// 句柄按需打开，Close 时统一落盘并释放。
type TableTreeManager struct {
	dataDir       string
	cacheCapacity int
	syncMode      store.SyncMode

	mu     sync.Mutex
	tables map[string]*TreeHandle
}

// NewTableTreeManager 根据配置构造管理器，校验页面几何参数并准备数据目录
func NewTableTreeManager(cfg *conf.Cfg) (*TableTreeManager, error) {
	if err := basic.CheckPageGeometry(cfg.PageSize, cfg.HeaderSize); err != nil {
		return nil, err
	}
	syncMode, err := store.ParseSyncMode(cfg.SyncMode)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, errors.Trace(err)
	}
	return &TableTreeManager{
		dataDir:       cfg.DataDir,
		cacheCapacity: cfg.CacheCapacity,
		syncMode:      syncMode,
		tables:        make(map[string]*TreeHandle),
	}, nil
}

// CreateIndex 为表新建数据文件与索引文件并注册树句柄
func (m *TableTreeManager) CreateIndex(name string, schema IndexSchema) (*TreeHandle, error) {
	if name == "" {
		return nil, errors.NotValidf("empty table name")
	}
	if !schema.KeyType.Valid() {
		return nil, errors.NotValidf("key type %d", schema.KeyType)
	}
	if schema.KeyType == basic.TypeString && schema.KeyCapacity == 0 {
		return nil, errors.NotValidf("string key without capacity")
	}
	if schema.KeyType != basic.TypeString {
		schema.KeyCapacity = 0
	}

	order := schema.Order
	if order == 0 {
		maxOrder, err := pages.MaxOrder(schema.KeyType, schema.KeyCapacity)
		if err != nil {
			return nil, err
		}
		order = DefaultTreeOrder
		if maxOrder < order {
			order = maxOrder
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[name]; ok {
		return nil, errors.AlreadyExistsf("table tree %s", name)
	}
	dataPath, indexPath := m.tablePaths(name)
	for _, path := range []string{dataPath, indexPath} {
		exists, err := util.PathExists(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if exists {
			return nil, errors.AlreadyExistsf("table tree %s", name)
		}
	}

	data, err := store.CreateDataFile(dataPath, m.syncMode)
	if err != nil {
		return nil, err
	}
	index, err := store.CreateIndexFile(indexPath, schema.KeyType, schema.KeyCapacity, order, m.cacheCapacity, m.syncMode)
	if err != nil {
		data.Close()
		os.Remove(dataPath)
		return nil, err
	}

	h := &TreeHandle{
		name:  name,
		index: index,
		data:  data,
		tree:  bptree.NewBTree(index),
	}
	m.tables[name] = h
	logger.Infof("注册表树 %s, 键类型 %s, 阶数 %d\n", name, schema.KeyType, index.Order())
	return h, nil
}

// OpenTable 获取表的树句柄，未打开时从磁盘装载
func (m *TableTreeManager) OpenTable(name string) (*TreeHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handleLocked(name)
}

func (m *TableTreeManager) handleLocked(name string) (*TreeHandle, error) {
	if h, ok := m.tables[name]; ok {
		return h, nil
	}

	dataPath, indexPath := m.tablePaths(name)
	for _, path := range []string{dataPath, indexPath} {
		exists, err := util.PathExists(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if !exists {
			return nil, errors.NotFoundf("table tree %s", name)
		}
	}

	data, err := store.OpenDataFile(dataPath, m.syncMode)
	if err != nil {
		return nil, err
	}
	index, err := store.OpenIndexFile(indexPath, m.cacheCapacity, m.syncMode)
	if err != nil {
		data.Close()
		return nil, err
	}

	h := &TreeHandle{
		name:  name,
		index: index,
		data:  data,
		tree:  bptree.NewBTree(index),
	}
	m.tables[name] = h
	return h, nil
}

// Insert 先向数据文件追加行，再把主键与行定位写入索引。
// 索引报重复键时已追加的行成为孤行，只占空间，任何检索都无法到达它。
func (m *TableTreeManager) Insert(table string, key basic.Value, row []byte) error {
	h, err := m.OpenTable(table)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	loc, err := h.data.AppendRow(row)
	if err != nil {
		return err
	}
	return h.tree.Insert(key, loc)
}

// Lookup 主键点查，未命中时返回 found=false 而非错误
func (m *TableTreeManager) Lookup(table string, key basic.Value) ([]byte, bool, error) {
	h, err := m.OpenTable(table)
	if err != nil {
		return nil, false, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	loc, found, err := h.tree.Search(key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	row, err := h.data.ReadRow(loc)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Range 按主键区间扫描，区间两端闭合。
// 行在共享锁内取齐成快照后再交给迭代器，后续写入不影响已返回的迭代器。
func (m *TableTreeManager) Range(table string, from, to basic.Value) (RowIterator, error) {
	h, err := m.OpenTable(table)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	it, err := h.tree.Range(from, to)
	if err != nil {
		return nil, err
	}
	entries, err := h.collectRows(it)
	if err != nil {
		return nil, err
	}
	return sliceIterator(entries), nil
}

// Scan 按主键升序扫全表
func (m *TableTreeManager) Scan(table string) (RowIterator, error) {
	h, err := m.OpenTable(table)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	it, err := h.tree.Forward()
	if err != nil {
		return nil, err
	}
	entries, err := h.collectRows(it)
	if err != nil {
		return nil, err
	}
	return sliceIterator(entries), nil
}

// Delete 本引擎不支持删除，原样返回树层的不支持错误
func (m *TableTreeManager) Delete(table string, key basic.Value) error {
	h, err := m.OpenTable(table)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tree.Delete(key)
}

// TreeHeight 返回表索引树的当前高度，空树为0
func (m *TableTreeManager) TreeHeight(table string) (int, error) {
	h, err := m.OpenTable(table)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tree.Height()
}

// FlushAll 把全部已打开表的索引文件与数据文件落盘
func (m *TableTreeManager) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, h := range m.tables {
		h.mu.RLock()
		if err := h.index.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := h.data.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.mu.RUnlock()
	}
	return firstErr
}

// Close 落盘并关闭全部树句柄
func (m *TableTreeManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, h := range m.tables {
		h.mu.Lock()
		if err := h.index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := h.data.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		h.mu.Unlock()
		delete(m.tables, name)
	}
	logger.Infof("表树管理器已关闭\n")
	return firstErr
}

func (m *TableTreeManager) tablePaths(name string) (dataPath, indexPath string) {
	dataPath = filepath.Join(m.dataDir, name+".dat")
	indexPath = filepath.Join(m.dataDir, name+"_btree.idx")
	return dataPath, indexPath
}

type rowEntry struct {
	key basic.Value
	row []byte
}

// collectRows 在持锁期间吃掉树迭代器并把行定位解析成行字节
func (h *TreeHandle) collectRows(it bptree.Iterator) ([]rowEntry, error) {
	var entries []rowEntry
	for it != nil {
		var key basic.Value
		var loc basic.RowLocator
		var err error
		key, loc, err, it = it()
		if err != nil {
			return nil, err
		}
		if it == nil {
			break
		}
		row, err := h.data.ReadRow(loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, rowEntry{key: key, row: row})
	}
	return entries, nil
}

func sliceIterator(entries []rowEntry) RowIterator {
	var at func(i int) RowIterator
	at = func(i int) RowIterator {
		return func() (basic.Value, []byte, error, RowIterator) {
			if i >= len(entries) {
				return basic.Value{}, nil, nil, nil
			}
			e := entries[i]
			return e.key, e.row, nil, at(i + 1)
		}
	}
	return at(0)
}
