package store

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xtabledb/common"
	"github.com/zhukovaskychina/xtabledb/logger"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/pages"
)

// DataFile is the row heap behind one table. Rows append into the tail
// page until it is full, then a fresh page is allocated; rows are never
// moved, so a locator stays valid for the life of the table.
type DataFile struct {
	mu       sync.RWMutex
	path     string
	file     *os.File
	header   pages.FileHeader
	tail     *pages.DataPage
	syncMode SyncMode
}

// CreateDataFile 新建数据文件并落盘文件头，文件已存在时报错
func CreateDataFile(path string, syncMode SyncMode) (*DataFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "create data file %s", path)
	}

	f := &DataFile{
		path:     path,
		file:     file,
		header:   pages.NewDataFileHeader(),
		syncMode: syncMode,
	}
	if err := f.writeHeaderPage(); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "sync data file %s", path)
	}
	logger.Infof("新建数据文件 %s", path)
	return f, nil
}

// OpenDataFile 打开已有数据文件，重新装载追加尾页
func OpenDataFile(path string, syncMode SyncMode) (*DataFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open data file %s", path)
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

	f := &DataFile{
		path:     path,
		file:     file,
		header:   header,
		syncMode: syncMode,
	}
	if last := header.GetNextFreePage(); last > 1 {
		tail, err := f.readDataPage(last - 1)
		if err != nil {
			file.Close()
			return nil, err
		}
		f.tail = tail
	}
	return f, nil
}

// AppendRow places one encoded row and returns where it landed.
// Rows larger than a page body are refused with ErrValueTooLarge.
func (f *DataFile) AppendRow(row []byte) (basic.RowLocator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(row) > pages.MaxRowBytes {
		return basic.RowLocator{}, errors.Wrapf(basic.ErrValueTooLarge, "row of %d bytes exceeds page body %d", len(row), pages.MaxRowBytes)
	}

	if f.tail != nil {
		if offset, ok := f.tail.AddRow(row); ok {
			if err := f.writeDataPage(f.tail); err != nil {
				return basic.RowLocator{}, err
			}
			return basic.RowLocator{PageNo: uint64(f.tail.PageNo), Offset: offset}, nil
		}
	}

	// 尾页已满，换新页
	pageNo := f.header.GetNextFreePage()
	tail := pages.NewDataPage(pageNo)
	offset, ok := tail.AddRow(row)
	if !ok {
		return basic.RowLocator{}, errors.Wrapf(basic.ErrValueTooLarge, "row of %d bytes does not fit a fresh page", len(row))
	}
	if err := f.writeDataPage(tail); err != nil {
		return basic.RowLocator{}, err
	}
	f.header.WriteNextFreePage(pageNo + 1)
	if err := f.writeHeaderPage(); err != nil {
		return basic.RowLocator{}, err
	}
	if err := f.maybeSync(); err != nil {
		return basic.RowLocator{}, err
	}
	f.tail = tail
	return basic.RowLocator{PageNo: uint64(pageNo), Offset: offset}, nil
}

// ReadRow resolves a locator back to the row bytes.
func (f *DataFile) ReadRow(loc basic.RowLocator) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if loc.PageNo == uint64(common.PAGE_NONE) || loc.PageNo >= uint64(f.header.GetNextFreePage()) {
		return nil, errors.Wrapf(basic.ErrPageNotFound, "data page %d of %s was never allocated", loc.PageNo, f.path)
	}
	if f.tail != nil && loc.PageNo == uint64(f.tail.PageNo) {
		return f.tail.RowAt(loc.Offset)
	}
	page, err := f.readDataPage(uint32(loc.PageNo))
	if err != nil {
		return nil, err
	}
	return page.RowAt(loc.Offset)
}

// Flush 强制OS缓冲落盘
func (f *DataFile) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync data file %s", f.path)
	}
	return nil
}

func (f *DataFile) Close() error {
	if err := f.Flush(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.file.Close()
	f.file = nil
	return err
}

func (f *DataFile) readDataPage(pageNo uint32) (*pages.DataPage, error) {
	buf := make([]byte, common.PAGE_SIZE)
	if _, err := f.file.ReadAt(buf, int64(pageNo)*common.PAGE_SIZE); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(basic.ErrPageNotFound, "data page %d of %s lies beyond the file end", pageNo, f.path)
		}
		return nil, errors.Wrapf(err, "read data page %d of %s", pageNo, f.path)
	}
	return pages.ParseDataPage(pageNo, buf)
}

func (f *DataFile) writeDataPage(page *pages.DataPage) error {
	if _, err := f.file.WriteAt(page.Bytes(), int64(page.PageNo)*common.PAGE_SIZE); err != nil {
		return errors.Wrapf(err, "write data page %d of %s", page.PageNo, f.path)
	}
	return f.maybeSync()
}

func (f *DataFile) writeHeaderPage() error {
	buf := make([]byte, common.PAGE_SIZE)
	copy(buf, f.header.Serialize())
	if _, err := f.file.WriteAt(buf, 0); err != nil {
		return errors.Wrapf(err, "write header of %s", f.path)
	}
	return nil
}

func (f *DataFile) maybeSync() error {
	if f.syncMode != SyncEveryWrite {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync data file %s", f.path)
	}
	return nil
}
