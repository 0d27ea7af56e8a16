package common

// 页面大小，固定4KB，一个页面承载一个序列化节点
const PAGE_SIZE = 4096

// 文件头大小，位于文件偏移0处，其余部分补零至整页
const FILE_HEADER_SIZE = 64

// 索引页节点头大小
const NODE_HEADER_SIZE = 32

// 数据页内部预留头大小
const DATA_HEADER_SIZE = 64

// 文件魔数，标识本引擎的页式文件
const FILE_MAGIC uint32 = 0x42505452

// 文件格式版本号，打开文件时校验
const FORMAT_VERSION uint32 = 1

// 页面号0保留给文件头，同时作为"无页面"哨兵
const PAGE_NONE uint32 = 0

// 节点类型
// 叶子节点
const PAGE_LEAF uint16 = 0

// 非叶子节点
const PAGE_INTERNAL uint16 = 1
