// Package metadata persists table definitions in table_metadata.dat.
// The file is a flat append-only sequence of entries; the whole catalog
// is small enough to live in memory once loaded.
package metadata

import (
	"os"
	"sort"
	"sync"

	"github.com/juju/errors"

	"github.com/zhukovaskychina/xtabledb/logger"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
)

// TableMeta 一张表的目录项
type TableMeta struct {
	ID      int32
	Name    string
	Columns []basic.ColumnDef
}

// PrimaryColumn returns the declared primary key column, with its
// position in the row.
func (m *TableMeta) PrimaryColumn() (basic.ColumnDef, int, bool) {
	for i, col := range m.Columns {
		if col.PrimaryKey {
			return col, i, true
		}
	}
	return basic.ColumnDef{}, 0, false
}

// Column looks a column up by name, with its position in the row.
func (m *TableMeta) Column(name string) (basic.ColumnDef, int, bool) {
	for i, col := range m.Columns {
		if col.Name == name {
			return col, i, true
		}
	}
	return basic.ColumnDef{}, 0, false
}

// MetaFile 表目录，打开时整体装载，建表时追加
type MetaFile struct {
	path   string
	mu     sync.RWMutex
	tables map[string]*TableMeta
	nextID int32
}

// OpenMetaFile loads the catalog, creating an empty file on first use.
func OpenMetaFile(path string) (*MetaFile, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return nil, errors.Trace(err)
		}
		buf = nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}

	tables, err := decodeAllTableMeta(buf)
	if err != nil {
		return nil, err
	}

	f := &MetaFile{
		path:   path,
		tables: make(map[string]*TableMeta, len(tables)),
		nextID: 1,
	}
	for _, meta := range tables {
		f.tables[meta.Name] = meta
		if meta.ID >= f.nextID {
			f.nextID = meta.ID + 1
		}
	}
	logger.Infof("装载表目录 %s, %d 张表", path, len(tables))
	return f, nil
}

// CreateTable registers a table and appends its entry to the catalog.
func (f *MetaFile) CreateTable(name string, cols []basic.ColumnDef) (*TableMeta, error) {
	if err := validateDefinition(name, cols); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[name]; ok {
		return nil, errors.AlreadyExistsf("table %q", name)
	}

	meta := &TableMeta{
		ID:      f.nextID,
		Name:    name,
		Columns: append([]basic.ColumnDef(nil), cols...),
	}
	if err := f.appendEntry(meta); err != nil {
		return nil, err
	}
	f.nextID++
	f.tables[name] = meta
	logger.Infof("建表 %s (id %d), %d 列", name, meta.ID, len(cols))
	return meta, nil
}

// Table resolves a catalog entry by table name.
func (f *MetaFile) Table(name string) (*TableMeta, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	meta, ok := f.tables[name]
	if !ok {
		return nil, errors.NotFoundf("table %q", name)
	}
	return meta, nil
}

// Tables lists every catalog entry in creation order.
func (f *MetaFile) Tables() []*TableMeta {
	f.mu.RLock()
	defer f.mu.RUnlock()
	tables := make([]*TableMeta, 0, len(f.tables))
	for _, meta := range f.tables {
		tables = append(tables, meta)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	return tables
}

func (f *MetaFile) appendEntry(meta *TableMeta) error {
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	if _, err := file.Write(encodeTableMeta(meta)); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(file.Sync())
}

func validateDefinition(name string, cols []basic.ColumnDef) error {
	if name == "" {
		return errors.NotValidf("empty table name")
	}
	if len(cols) == 0 {
		return errors.NotValidf("table %q without columns", name)
	}
	seen := make(map[string]bool, len(cols))
	primaries := 0
	for _, col := range cols {
		if col.Name == "" {
			return errors.NotValidf("table %q: column with empty name", name)
		}
		if seen[col.Name] {
			return errors.NotValidf("table %q: duplicate column %q", name, col.Name)
		}
		seen[col.Name] = true
		if !col.Type.Valid() {
			return errors.NotValidf("table %q: column %q of unknown type %d", name, col.Name, byte(col.Type))
		}
		if col.Type == basic.TypeString && col.Capacity == 0 {
			return errors.NotValidf("table %q: string column %q with zero capacity", name, col.Name)
		}
		if col.PrimaryKey {
			primaries++
		}
	}
	if primaries != 1 {
		return errors.NotValidf("table %q with %d primary key columns", name, primaries)
	}
	return nil
}
