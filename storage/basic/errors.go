package basic

import "errors"

// 键与操作相关错误
var (
	ErrTypeMismatch = errors.New("key type mismatch")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrUnsupported  = errors.New("unsupported operation")
)

// 记录编码相关错误
var (
	ErrValueTooLarge = errors.New("value too large")
	ErrCorruptRecord = errors.New("corrupt record")
)

// 页面与文件相关错误
var (
	ErrCorruptPage        = errors.New("corrupt page")
	ErrIncompatibleFormat = errors.New("incompatible file format")
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrder       = errors.New("invalid tree order")
	ErrPageNotFound       = errors.New("page not found")
)
