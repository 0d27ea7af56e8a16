package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhukovaskychina/xtabledb/conf"
	"github.com/zhukovaskychina/xtabledb/logger"
	"github.com/zhukovaskychina/xtabledb/storage/basic"
	"github.com/zhukovaskychina/xtabledb/storage/handler"
	"github.com/zhukovaskychina/xtabledb/storage/manager"
	"github.com/zhukovaskychina/xtabledb/storage/metadata"
)

func main() {
	fmt.Println("=== xtabledb 表树存储引擎演示 ===")

	cfg := conf.NewCfg().Load("meta_config.db")
	cfg.DataDir = "demo_data"
	logger.InitLogger(logger.LogConfig{LogLevel: cfg.LogLevel, LogPath: cfg.LogPath})

	// 每次演示从空目录开始
	os.RemoveAll(cfg.DataDir)

	fmt.Println("\n1. 创建表树管理器与表目录...")
	trees, err := manager.NewTableTreeManager(cfg)
	if err != nil {
		fmt.Printf("❌ 创建表树管理器失败: %v\n", err)
		return
	}
	meta, err := metadata.OpenMetaFile(filepath.Join(cfg.DataDir, "table_metadata.dat"))
	if err != nil {
		fmt.Printf("❌ 打开表目录失败: %v\n", err)
		return
	}
	creation := handler.NewTableCreationHandler(meta, trees)
	query := handler.NewTableQueryHandler(meta, trees)
	fmt.Println("✓ 管理器就绪, 数据目录:", cfg.DataDir)

	fmt.Println("\n2. 建表 users 和 products...")
	userMeta, err := creation.CreateTable("users", []basic.ColumnDef{
		{Name: "id", Type: basic.TypeInteger, PrimaryKey: true},
		{Name: "name", Type: basic.TypeString, Capacity: 16},
		{Name: "age", Type: basic.TypeInteger},
	})
	if err != nil {
		fmt.Printf("❌ 建表 users 失败: %v\n", err)
		return
	}
	productMeta, err := creation.CreateTable("products", []basic.ColumnDef{
		{Name: "sku", Type: basic.TypeString, Capacity: 64, PrimaryKey: true},
		{Name: "price", Type: basic.TypeDouble},
		{Name: "stock", Type: basic.TypeBigInt},
	})
	if err != nil {
		fmt.Printf("❌ 建表 products 失败: %v\n", err)
		return
	}
	fmt.Printf("✓ users 表 id=%d, products 表 id=%d\n", userMeta.ID, productMeta.ID)

	fmt.Println("\n3. 插入行...")
	users := []struct {
		id   int32
		name string
		age  int32
	}{
		{1, "李雷", 20},
		{2, "韩梅梅", 21},
		{3, "linda", 22},
		{4, "王强", 23},
		{5, "tom", 24},
	}
	for _, u := range users {
		name, err := basic.NewStringValue(u.name, 16)
		if err != nil {
			fmt.Printf("❌ 构造 name 失败: %v\n", err)
			return
		}
		row := []basic.Value{basic.NewIntegerValue(u.id), name, basic.NewIntegerValue(u.age)}
		if err := query.InsertRow("users", row); err != nil {
			fmt.Printf("❌ 插入 users id=%d 失败: %v\n", u.id, err)
			return
		}
	}
	fmt.Printf("✓ users 插入 %d 行\n", len(users))

	products := []struct {
		sku   string
		price float64
		stock int64
	}{
		{"sku-1001", 19.9, 500},
		{"sku-1002", 4.5, 1200},
		{"sku-1003", 99.0, 30},
	}
	for _, p := range products {
		sku, err := basic.NewStringValue(p.sku, 64)
		if err != nil {
			fmt.Printf("❌ 构造 sku 失败: %v\n", err)
			return
		}
		row := []basic.Value{sku, basic.NewDoubleValue(p.price), basic.NewBigIntValue(p.stock)}
		if err := query.InsertRow("products", row); err != nil {
			fmt.Printf("❌ 插入 products sku=%s 失败: %v\n", p.sku, err)
			return
		}
	}
	fmt.Printf("✓ products 插入 %d 行\n", len(products))

	fmt.Println("\n4. 重复主键插入...")
	dupName, _ := basic.NewStringValue("假李雷", 16)
	err = query.InsertRow("users", []basic.Value{basic.NewIntegerValue(1), dupName, basic.NewIntegerValue(99)})
	if stderrors.Is(err, basic.ErrDuplicateKey) {
		fmt.Printf("⚠️ 重复主键被拒绝（预期的）: %v\n", err)
	} else {
		fmt.Printf("❌ 重复主键未被拒绝: %v\n", err)
		return
	}

	fmt.Println("\n5. 主键点查...")
	values, found, err := query.SelectByKey("users", basic.NewIntegerValue(3))
	if err != nil || !found {
		fmt.Printf("❌ 点查 users id=3 失败: found=%v err=%v\n", found, err)
		return
	}
	fmt.Printf("✓ users id=3: name=%s age=%d\n", values[1].String(), values[2].Int32())

	skuKey, _ := basic.NewStringValue("sku-1002", 64)
	values, found, err = query.SelectByKey("products", skuKey)
	if err != nil || !found {
		fmt.Printf("❌ 点查 products sku-1002 失败: found=%v err=%v\n", found, err)
		return
	}
	fmt.Printf("✓ products sku-1002: price=%.2f stock=%d\n", values[1].Float64(), values[2].Int64())

	_, found, err = query.SelectByKey("users", basic.NewIntegerValue(42))
	if err != nil {
		fmt.Printf("❌ 点查未知主键出错: %v\n", err)
		return
	}
	fmt.Printf("✓ users id=42 未命中, found=%v\n", found)

	fmt.Println("\n6. 范围扫描 users id 2..4...")
	rows, err := query.SelectRange("users", basic.NewIntegerValue(2), basic.NewIntegerValue(4))
	if err != nil {
		fmt.Printf("❌ 范围扫描失败: %v\n", err)
		return
	}
	for _, row := range rows {
		fmt.Printf("   id=%d name=%s age=%d\n", row.Key.Int32(), row.Values[1].String(), row.Values[2].Int32())
	}
	fmt.Printf("✓ 命中 %d 行\n", len(rows))

	fmt.Println("\n7. 删除操作...")
	err = trees.Delete("users", basic.NewIntegerValue(1))
	if stderrors.Is(err, basic.ErrUnsupported) {
		fmt.Printf("⚠️ 删除不受支持（预期的）: %v\n", err)
	} else {
		fmt.Printf("❌ 删除返回了意外结果: %v\n", err)
		return
	}

	fmt.Println("\n8. 关闭后重新打开...")
	if err := trees.Close(); err != nil {
		fmt.Printf("❌ 关闭失败: %v\n", err)
		return
	}
	trees, err = manager.NewTableTreeManager(cfg)
	if err != nil {
		fmt.Printf("❌ 重新创建表树管理器失败: %v\n", err)
		return
	}
	defer trees.Close()
	meta, err = metadata.OpenMetaFile(filepath.Join(cfg.DataDir, "table_metadata.dat"))
	if err != nil {
		fmt.Printf("❌ 重新打开表目录失败: %v\n", err)
		return
	}
	query = handler.NewTableQueryHandler(meta, trees)

	all, err := query.SelectAll("users")
	if err != nil {
		fmt.Printf("❌ 全表扫描失败: %v\n", err)
		return
	}
	fmt.Printf("✓ 重新打开后 users 共 %d 行:\n", len(all))
	for _, row := range all {
		fmt.Printf("   id=%d name=%s age=%d\n", row.Key.Int32(), row.Values[1].String(), row.Values[2].Int32())
	}

	height, err := trees.TreeHeight("users")
	if err != nil {
		fmt.Printf("❌ 读取树高失败: %v\n", err)
		return
	}
	fmt.Printf("✓ users 索引树高度: %d\n", height)

	fmt.Println("\n=== 演示完成 ===")
	fmt.Println("✓ 建表、插入、点查、范围扫描与重启恢复全部通过")
}
