// Package handler 把表目录、行编解码与表树管理器组合成建表和查询入口。
package handler

import (
	"github.com/zhukovaskychina/xtabledb/logger"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/manager"
	"github.com/zhukovaskychina/xtabledb/storage/metadata"

	"github.com/juju/errors"
)

// TableCreationHandler 建表入口：先写表目录，再建数据文件与主键索引文件
type TableCreationHandler struct {
	meta  *metadata.MetaFile
	trees *manager.TableTreeManager
}

func NewTableCreationHandler(meta *metadata.MetaFile, trees *manager.TableTreeManager) *TableCreationHandler {
	return &TableCreationHandler{meta: meta, trees: trees}
}

// CreateTable 建表，目录项先落盘，随后按主键列创建索引
func (h *TableCreationHandler) CreateTable(name string, columns []basic.ColumnDef) (*metadata.TableMeta, error) {
	tableMeta, err := h.meta.CreateTable(name, columns)
	if err != nil {
		return nil, err
	}

	pk, _, ok := tableMeta.PrimaryColumn()
	if !ok {
		return nil, errors.NotValidf("table %s without primary key", name)
	}
	schema := manager.IndexSchema{KeyType: pk.Type, KeyCapacity: pk.Capacity}
	if _, err := h.trees.CreateIndex(name, schema); err != nil {
		return nil, err
	}

	logger.Infof("表 %s 创建完成, id %d\n", name, tableMeta.ID)
	return tableMeta, nil
}
