package store

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/logger"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/buffer_pool"
	"github.com/zhukovaskychina/xtabledb/storage/pages"
)

// MinTreeOrder 低于3的阶数无法分裂出合法的内部节点
const MinTreeOrder = 3

// IndexFile is the page store behind one tree. Page 0 holds the file
// header, tree nodes live at pageNo*PAGE_SIZE. Loads go through the
// LRU cache, stores go through to the OS immediately and refresh the
// cache, so an evicted page can always be re-read from disk.
type IndexFile struct {
	mu       sync.RWMutex
	path     string
	file     *os.File
	header   pages.FileHeader
	cache    buffer_pool.LRUCache
	syncMode SyncMode
}

// CreateIndexFile 新建索引文件并落盘文件头，文件已存在时报错
func CreateIndexFile(path string, keyType basic.ValueType, keyCapacity uint32, order int, cacheCapacity int, syncMode SyncMode) (*IndexFile, error) {
	maxOrder, err := pages.MaxOrder(keyType, keyCapacity)
	if err != nil {
		return nil, err
	}
	if order < MinTreeOrder || order > maxOrder {
		return nil, errors.Wrapf(basic.ErrInvalidOrder, "order %d for key type %d, valid range [%d,%d]", order, byte(keyType), MinTreeOrder, maxOrder)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create index file %s", path)
	}

	f := &IndexFile{
		path:     path,
		file:     file,
		header:   pages.NewFileHeader(keyType, keyCapacity, uint32(order)),
		cache:    buffer_pool.NewLRUCacheImpl(cacheCapacity),
		syncMode: syncMode,
	}
	if err := f.writeHeaderPage(); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "sync index file %s", path)
	}
	logger.Infof("新建索引文件 %s, key type %d, order %d", path, byte(keyType), order)
	return f, nil
}

// OpenIndexFile 打开已有索引文件并校验文件头
func OpenIndexFile(path string, cacheCapacity int, syncMode SyncMode) (*IndexFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open index file %s", path)
	}

	buf := make([]byte, common.FILE_HEADER_SIZE)
	if _, err := file.ReadAt(buf, 0); err != nil {
		file.Close()
		return nil, errors.Wrapf(basic.ErrIncompatibleFormat, "%s too short to hold a file header", path)
	}
	header, err := pages.ParseFileHeader(buf)
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := header.Validate(); err != nil {
		file.Close()
		return nil, err
	}
	if _, err := basic.KeyWidth(header.GetKeyType(), header.GetKeyCapacity()); err != nil {
		file.Close()
		return nil, errors.Wrapf(basic.ErrIncompatibleFormat, "%s declares unknown key type %d", path, byte(header.GetKeyType()))
	}
	maxOrder, _ := pages.MaxOrder(header.GetKeyType(), header.GetKeyCapacity())
	if order := int(header.GetTreeOrder()); order < MinTreeOrder || order > maxOrder {
		file.Close()
		return nil, errors.Wrapf(basic.ErrIncompatibleFormat, "%s declares order %d outside [%d,%d]", path, order, MinTreeOrder, maxOrder)
	}

	return &IndexFile{
		path:     path,
		file:     file,
		header:   header,
		cache:    buffer_pool.NewLRUCacheImpl(cacheCapacity),
		syncMode: syncMode,
	}, nil
}

func (f *IndexFile) KeyType() basic.ValueType {
	return f.header.GetKeyType()
}

func (f *IndexFile) KeyCapacity() uint32 {
	return f.header.GetKeyCapacity()
}

func (f *IndexFile) Order() int {
	return int(f.header.GetTreeOrder())
}

func (f *IndexFile) RootPageNo() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.header.GetRootPage()
}

// SetRootPageNo 更新根页面号并立即落盘文件头
func (f *IndexFile) SetRootPageNo(pageNo uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.header.WriteRootPage(pageNo)
	if err := f.writeHeaderPage(); err != nil {
		return err
	}
	return f.maybeSync()
}

// AllocatePage hands out the next page number. Numbers are never
// reused; the header advances before the caller sees the page.
func (f *IndexFile) AllocatePage() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pageNo := f.header.GetNextFreePage()
	f.header.WriteNextFreePage(pageNo + 1)
	if err := f.writeHeaderPage(); err != nil {
		return 0, err
	}
	if err := f.maybeSync(); err != nil {
		return 0, err
	}
	return pageNo, nil
}

// LoadNode returns the node stored at pageNo, from cache when warm.
// Callers share the returned pointer; a mutated node must go back
// through StoreNode before any further load.
func (f *IndexFile) LoadNode(pageNo uint32) (*pages.IndexPage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if pageNo == common.PAGE_NONE || pageNo >= f.header.GetNextFreePage() {
		return nil, errors.Wrapf(basic.ErrPageNotFound, "page %d of %s was never allocated", pageNo, f.path)
	}
	if node, err := f.cache.Get(pageNo); err == nil {
		return node, nil
	}

	buf := make([]byte, common.PAGE_SIZE)
	if _, err := f.file.ReadAt(buf, int64(pageNo)*common.PAGE_SIZE); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(basic.ErrPageNotFound, "page %d of %s lies beyond the file end", pageNo, f.path)
		}
		return nil, errors.Wrapf(err, "read page %d of %s", pageNo, f.path)
	}
	node, err := pages.ParseIndexPage(buf, f.header.GetKeyType(), f.header.GetKeyCapacity())
	if err != nil {
		return nil, err
	}
	f.cache.Set(pageNo, node)
	return node, nil
}

// StoreNode 序列化节点写入磁盘并刷新缓存
func (f *IndexFile) StoreNode(node *pages.IndexPage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf, err := node.Serialize()
	if err != nil {
		return err
	}
	if _, err := f.file.WriteAt(buf, int64(node.PageNo)*common.PAGE_SIZE); err != nil {
		return errors.Wrapf(err, "write page %d of %s", node.PageNo, f.path)
	}
	if err := f.maybeSync(); err != nil {
		return err
	}
	f.cache.Set(node.PageNo, node)
	return nil
}

// Flush 强制OS缓冲落盘
func (f *IndexFile) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync index file %s", f.path)
	}
	return nil
}

func (f *IndexFile) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	logger.Debugf("关闭索引文件 %s, cache hit rate %.2f", f.path, f.cache.HitRate())
	f.cache.Purge()
	err := f.file.Close()
	f.file = nil
	return err
}

// writeHeaderPage 文件头占满页面0，余下字节补零
func (f *IndexFile) writeHeaderPage() error {
	buf := make([]byte, common.PAGE_SIZE)
	copy(buf, f.header.Serialize())
	if _, err := f.file.WriteAt(buf, 0); err != nil {
		return errors.Wrapf(err, "write header of %s", f.path)
	}
	return nil
}

func (f *IndexFile) maybeSync() error {
	if f.syncMode != SyncEveryWrite {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync index file %s", f.path)
	}
	return nil
}
