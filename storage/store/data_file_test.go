package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/pages"
)

func newTestDataFile(t *testing.T) (*DataFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.dat")
	f, err := CreateDataFile(path, SyncOnFlush)
	assert.NoError(t, err)
	return f, path
}

func TestDataFile_AppendAndRead(t *testing.T) {
	f, _ := newTestDataFile(t)
	defer f.Close()

	rows := [][]byte{
		[]byte("row one"),
		[]byte("第二行"),
		[]byte("row three, somewhat longer than the others"),
	}
	locators := make([]basic.RowLocator, 0, len(rows))
	for _, row := range rows {
		loc, err := f.AppendRow(row)
		assert.NoError(t, err)
		assert.Equal(t, uint64(1), loc.PageNo)
		locators = append(locators, loc)
	}

	for i, loc := range locators {
		got, err := f.ReadRow(loc)
		assert.NoError(t, err)
		assert.True(t, bytes.Equal(rows[i], got))
	}
}

func TestDataFile_SpillsToNewPage(t *testing.T) {
	f, _ := newTestDataFile(t)
	defer f.Close()

	// 1000-byte rows: four fit per page, the fifth must open page 2
	row := make([]byte, 1000)
	perPage := (pages.MaxRowBytes + 4) / (len(row) + 4)
	assert.Equal(t, 4, perPage)

	var locators []basic.RowLocator
	for i := 0; i < perPage+1; i++ {
		row[0] = byte(i)
		loc, err := f.AppendRow(row)
		assert.NoError(t, err)
		locators = append(locators, loc)
	}
	assert.Equal(t, uint64(1), locators[perPage-1].PageNo)
	assert.Equal(t, uint64(2), locators[perPage].PageNo)

	for i, loc := range locators {
		got, err := f.ReadRow(loc)
		assert.NoError(t, err)
		assert.Equal(t, byte(i), got[0])
		assert.Equal(t, len(row), len(got))
	}
}

func TestDataFile_ReopenKeepsRows(t *testing.T) {
	f, path := newTestDataFile(t)
	loc1, err := f.AppendRow([]byte("before close"))
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	reopened, err := OpenDataFile(path, SyncOnFlush)
	assert.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ReadRow(loc1)
	assert.NoError(t, err)
	assert.Equal(t, []byte("before close"), got)

	// The tail page keeps filling where it left off
	loc2, err := reopened.AppendRow([]byte("after reopen"))
	assert.NoError(t, err)
	assert.Equal(t, loc1.PageNo, loc2.PageNo)
	got, err = reopened.ReadRow(loc2)
	assert.NoError(t, err)
	assert.Equal(t, []byte("after reopen"), got)
}

func TestDataFile_OversizedRow(t *testing.T) {
	f, _ := newTestDataFile(t)
	defer f.Close()

	_, err := f.AppendRow(make([]byte, pages.MaxRowBytes+1))
	assert.True(t, errors.Is(err, basic.ErrValueTooLarge))

	// The largest permitted row still lands
	loc, err := f.AppendRow(make([]byte, pages.MaxRowBytes))
	assert.NoError(t, err)
	got, err := f.ReadRow(loc)
	assert.NoError(t, err)
	assert.Equal(t, pages.MaxRowBytes, len(got))
}

func TestDataFile_ReadRowBadLocator(t *testing.T) {
	f, _ := newTestDataFile(t)
	defer f.Close()

	loc, err := f.AppendRow([]byte("present"))
	assert.NoError(t, err)

	_, err = f.ReadRow(basic.RowLocator{PageNo: 0, Offset: 64})
	assert.True(t, errors.Is(err, basic.ErrPageNotFound))

	_, err = f.ReadRow(basic.RowLocator{PageNo: 42, Offset: 64})
	assert.True(t, errors.Is(err, basic.ErrPageNotFound))

	_, err = f.ReadRow(basic.RowLocator{PageNo: loc.PageNo, Offset: loc.Offset + 1})
	assert.True(t, errors.Is(err, basic.ErrCorruptPage))
}

func TestDataFile_SyncEveryWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.dat")
	f, err := CreateDataFile(path, SyncEveryWrite)
	assert.NoError(t, err)

	loc, err := f.AppendRow([]byte("durable"))
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	reopened, err := OpenDataFile(path, SyncEveryWrite)
	assert.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.ReadRow(loc)
	assert.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}
