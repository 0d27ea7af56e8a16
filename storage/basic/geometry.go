package basic

import (
	"github.com/zhukovaskychina/xtabledb/common"

	"github.com/pkg/errors"
)

// CheckPageGeometry 校验配置的页面几何参数
//
// 页面大小与文件头大小是持久化格式的一部分，运行时只接受编译期固定的取值，
// 配置文件里出现其它数值说明配置面向别的引擎或版本。
func CheckPageGeometry(pageSize, headerSize int) error {
	if pageSize != common.PAGE_SIZE {
		return errors.Wrapf(ErrInvalidPageSize, "page size %d not supported, engine requires %d", pageSize, common.PAGE_SIZE)
	}
	if headerSize != common.FILE_HEADER_SIZE {
		return errors.Wrapf(ErrInvalidPageSize, "header size %d not supported, engine requires %d", headerSize, common.FILE_HEADER_SIZE)
	}
	return nil
}
