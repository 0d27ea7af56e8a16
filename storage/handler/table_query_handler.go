package handler

import (
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/manager"
	"github.com/zhukovaskychina/xtabledb/storage/metadata"
	"github.com/zhukovaskychina/xtabledb/storage/record"

	"github.com/juju/errors"
)

// Row 一次查询命中的行：主键加上按列序解码的全部列值
type Row struct {
	Key    basic.Value
	Values []basic.Value
}

// TableQueryHandler 查询入口，按表目录校验列值并做行编解码
type TableQueryHandler struct {
	meta  *metadata.MetaFile
	trees *manager.TableTreeManager
}

func NewTableQueryHandler(meta *metadata.MetaFile, trees *manager.TableTreeManager) *TableQueryHandler {
	return &TableQueryHandler{meta: meta, trees: trees}
}

// InsertRow 插入一行。列值逐列校验并归一化，行编码后追加到数据文件，
// 主键写入索引。
func (h *TableQueryHandler) InsertRow(table string, values []basic.Value) error {
	tableMeta, err := h.meta.Table(table)
	if err != nil {
		return err
	}
	if len(values) != len(tableMeta.Columns) {
		return errors.NotValidf("table %s expects %d values, got %d", table, len(tableMeta.Columns), len(values))
	}

	normalized := make([]basic.Value, len(values))
	for i, col := range tableMeta.Columns {
		v, err := col.Normalize(values[i])
		if err != nil {
			return err
		}
		normalized[i] = v
	}

	row, err := record.Encode(tableMeta.Columns, normalized)
	if err != nil {
		return err
	}
	_, pkIdx, ok := tableMeta.PrimaryColumn()
	if !ok {
		return errors.NotValidf("table %s without primary key", table)
	}
	return h.trees.Insert(table, normalized[pkIdx], row)
}

// SelectByKey 主键点查，命中时返回整行列值
func (h *TableQueryHandler) SelectByKey(table string, key basic.Value) ([]basic.Value, bool, error) {
	tableMeta, err := h.meta.Table(table)
	if err != nil {
		return nil, false, err
	}
	pk, _, ok := tableMeta.PrimaryColumn()
	if !ok {
		return nil, false, errors.NotValidf("table %s without primary key", table)
	}
	normalized, err := pk.Normalize(key)
	if err != nil {
		return nil, false, err
	}

	row, found, err := h.trees.Lookup(table, normalized)
	if err != nil || !found {
		return nil, false, err
	}
	values, err := record.Decode(tableMeta.Columns, row)
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

// SelectRange 主键闭区间扫描，按键升序返回行
func (h *TableQueryHandler) SelectRange(table string, from, to basic.Value) ([]Row, error) {
	tableMeta, err := h.meta.Table(table)
	if err != nil {
		return nil, err
	}
	pk, _, ok := tableMeta.PrimaryColumn()
	if !ok {
		return nil, errors.NotValidf("table %s without primary key", table)
	}
	lo, err := pk.Normalize(from)
	if err != nil {
		return nil, err
	}
	hi, err := pk.Normalize(to)
	if err != nil {
		return nil, err
	}

	it, err := h.trees.Range(table, lo, hi)
	if err != nil {
		return nil, err
	}
	return h.decodeAll(tableMeta, it)
}

// SelectAll 按主键升序扫全表
func (h *TableQueryHandler) SelectAll(table string) ([]Row, error) {
	tableMeta, err := h.meta.Table(table)
	if err != nil {
		return nil, err
	}
	it, err := h.trees.Scan(table)
	if err != nil {
		return nil, err
	}
	return h.decodeAll(tableMeta, it)
}

func (h *TableQueryHandler) decodeAll(tableMeta *metadata.TableMeta, it manager.RowIterator) ([]Row, error) {
	var rows []Row
	for it != nil {
		var key basic.Value
		var raw []byte
		var err error
		key, raw, err, it = it()
		if err != nil {
			return nil, err
		}
		if it == nil {
			break
		}
		values, err := record.Decode(tableMeta.Columns, raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Key: key, Values: values})
	}
	return rows, nil
}
