package conf

import (
	"os"
	"strings"

	"github.com/zhukovaskychina/xtabledb/logger"

	"gopkg.in/ini.v1"
)

/*
*
data-dir	= /var/lib/xtabledb
page-size	= 4096
header-size	= 64
*/
type Cfg struct {
	Raw *ini.File

	// storage
	DataDir    string `default:"data" yaml:"data_dir" json:"data_dir,omitempty"`
	PageSize   int    `default:"4096" yaml:"page_size" json:"page_size,omitempty"`
	HeaderSize int    `default:"64" yaml:"header_size" json:"header_size,omitempty"`

	// buffer
	CacheCapacity int `default:"64" yaml:"cache_capacity" json:"cache_capacity,omitempty"`

	// durability: flush | write
	SyncMode string `default:"flush" yaml:"sync_mode" json:"sync_mode,omitempty"`

	// logs
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`
	LogPath  string `default:"" yaml:"log_path" json:"log_path,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:           ini.Empty(),
		DataDir:       "data",
		PageSize:      4096,
		HeaderSize:    64,
		CacheCapacity: 64,
		SyncMode:      "flush",
		LogLevel:      "info",
		LogPath:       "",
	}
}

// Load 读取系统配置文件(meta_config.db)，缺失或损坏时回退到默认配置
func (cfg *Cfg) Load(configPath string) *Cfg {
	iniFile, err := cfg.loadConfiguration(configPath)
	if err != nil {
		logger.Debugf("加载配置文件时有异常: %v\n", err)
		iniFile = ini.Empty()
	}
	cfg.Raw = iniFile

	cfg.parseStorageCfg(cfg.Raw.Section("storage"))
	cfg.parseBufferCfg(cfg.Raw.Section("buffer"))
	cfg.parseDurabilityCfg(cfg.Raw.Section("durability"))
	cfg.parseLogsCfg(cfg.Raw.Section("logs"))
	return cfg
}

func (cfg *Cfg) loadConfiguration(configPath string) (*ini.File, error) {
	if configPath == "" {
		configPath = "meta_config.db"
	}

	// check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Debugf("配置文件不存在: %s，使用默认配置\n", configPath)
		return ini.Empty(), nil
	}

	parsedFile, err := ini.Load(configPath)
	if err != nil {
		logger.Debugf("解析配置文件失败: %v，使用默认配置\n", err)
		return ini.Empty(), nil
	}

	logger.Debugf("成功加载配置文件: %s\n", configPath)
	return parsedFile, nil
}

func (cfg *Cfg) parseStorageCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	dataDir, err := valueAsString(section, "data-dir", cfg.DataDir)
	if err == nil {
		cfg.DataDir = dataDir
	}

	cfg.PageSize = section.Key("page-size").MustInt(cfg.PageSize)
	cfg.HeaderSize = section.Key("header-size").MustInt(cfg.HeaderSize)
	return cfg
}

func (cfg *Cfg) parseBufferCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	cfg.CacheCapacity = section.Key("cache-capacity").MustInt(cfg.CacheCapacity)
	if cfg.CacheCapacity < 0 {
		logger.Debugf("警告: 无效的缓存容量 %d, 使用 0\n", cfg.CacheCapacity)
		cfg.CacheCapacity = 0
	}
	return cfg
}

func (cfg *Cfg) parseDurabilityCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	syncMode, err := valueAsString(section, "sync-mode", cfg.SyncMode)
	if err == nil {
		syncMode = strings.ToLower(syncMode)
		if syncMode != "flush" && syncMode != "write" {
			logger.Debugf("警告: 无效的同步模式 '%s', 使用默认模式 'flush'\n", syncMode)
			syncMode = "flush"
		}
		cfg.SyncMode = syncMode
	}
	return cfg
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) *Cfg {
	if section == nil {
		return cfg
	}

	logPath, err := valueAsString(section, "log-path", cfg.LogPath)
	if err == nil {
		cfg.LogPath = logPath
	}

	logLevel, err := valueAsString(section, "log-level", cfg.LogLevel)
	if err == nil {
		cfg.LogLevel = strings.ToLower(logLevel)
		// 验证日志级别是否有效
		validLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
		isValid := false
		for _, level := range validLevels {
			if cfg.LogLevel == level {
				isValid = true
				break
			}
		}
		if !isValid {
			logger.Debugf("警告: 无效的日志级别 '%s', 使用默认级别 'info'\n", logLevel)
			cfg.LogLevel = "info"
		}
	}

	return cfg
}

func valueAsString(section *ini.Section, keyName string, defaultValue string) (value string, err error) {
	if section == nil {
		return defaultValue, nil
	}
	value = section.Key(keyName).MustString(defaultValue)
	if value == "" {
		value = defaultValue
	}
	return value, nil
}

// GetString 获取配置项的字符串值
func (cfg *Cfg) GetString(key string) string {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return ""
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return ""
	}

	value, err := valueAsString(section, strings.Join(parts[1:], "."), "")
	if err != nil {
		return ""
	}
	return value
}

// GetInt 获取配置项的整数值
func (cfg *Cfg) GetInt(key string) int {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return 0
	}

	section := cfg.Raw.Section(parts[0])
	if section == nil {
		return 0
	}

	return section.Key(strings.Join(parts[1:], ".")).MustInt(0)
}
