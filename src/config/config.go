package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config 结构体定义了应用程序的配置结构
type Config struct {
	DataDir         string   `json:"data_dir"`         // 数据文件目录
	DatasetFile     string   `json:"dataset_file"`     // 订单数据集文件名(csv/xlsx)
	SheetName       string   `json:"sheet_name"`       // xlsx 数据集的工作表
	LogName         string   `json:"log_name"`         // 日志文件
	LogMaxSize      string   `json:"log_max_size"`     // 日志轮转阈值，例如 "10 * 1024 * 1024"
	RefreshInterval Duration `json:"refresh_interval"` // 定时刷新缓存的间隔
	Timezone        string   `json:"timezone"`         // 订单时间所在时区，空表示本地时区

	Server struct {
		Addr           string   `json:"addr"`
		AllowedOrigins []string `json:"allowed_origins"`
	} `json:"server"`
}

// DataConfig 数据集业务规则
type DataConfig struct {
	DeliveredStatus    string   `json:"delivered_status"`
	OwnChannelKeywords []string `json:"own_channel_keywords"`
	DefaultPlatforms   []string `json:"default_platforms"`
	Marketplaces       []string `json:"marketplaces"`
}

var (
	once               sync.Once
	instance           *Config
	dataConfigInstance *DataConfig
	mu                 sync.RWMutex
)

// Default 没有配置目录时使用的默认配置
func Default() (*Config, *DataConfig) {
	cfg := &Config{
		DataDir:         "data",
		DatasetFile:     "Base_Kaiserhaus_Limpa.csv",
		LogName:         "app.log",
		LogMaxSize:      "10 * 1024 * 1024",
		RefreshInterval: Duration(5 * time.Minute),
	}
	cfg.Server.Addr = ":8001"
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	return cfg, defaultDataConfig()
}

func defaultDataConfig() *DataConfig {
	return &DataConfig{
		DeliveredStatus:    "delivered",
		OwnChannelKeywords: []string{"site", "whatsapp", "proprio"},
		DefaultPlatforms:   []string{"ifood", "rappi", "site_proprio", "whatsapp"},
		Marketplaces:       []string{"ifood", "rappi"},
	}
}

func LoadConfig(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	var err error
	once.Do(func() {
		instance, dataConfigInstance, err = Load(jsonFolder, jsonFile, dataJsonFile)
	})
	return instance, dataConfigInstance, err
}

// Load 读取两个配置文件并补全默认值，不走单例
func Load(jsonFolder, jsonFile, dataJsonFile string) (*Config, *DataConfig, error) {
	configFile := filepath.Join(jsonFolder, jsonFile)
	dataConfigFile := filepath.Join(jsonFolder, dataJsonFile)

	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	dataConfigData, err := readFile(dataConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据配置文件失败: %w", err)
	}

	cfgChan := make(chan *Config, 1)
	dcfgChan := make(chan *DataConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configData, cfgChan, errChan)
	go parseDataConfig(dataConfigData, dcfgChan, errChan)

	cfg, dcfg, err := waitForResults(cfgChan, dcfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	applyDefaults(cfg, dcfg)
	return cfg, dcfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

func parseConfig(data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseDataConfig(data []byte, resultChan chan<- *DataConfig, errChan chan<- error) {
	var dcfg DataConfig
	if err := json.Unmarshal(data, &dcfg); err != nil {
		errChan <- fmt.Errorf("解析DataConfig失败: %w", err)
		return
	}
	resultChan <- &dcfg
}

func waitForResults(
	cfgChan <-chan *Config,
	dcfgChan <-chan *DataConfig,
	errChan <-chan error,
) (*Config, *DataConfig, error) {
	var (
		cfg    *Config
		dcfg   *DataConfig
		errors []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case d := <-dcfgChan:
			dcfg = d
		case err := <-errChan:
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return nil, nil, combineErrors(errors)
	}

	if cfg == nil || dcfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, dcfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func applyDefaults(cfg *Config, dcfg *DataConfig) {
	def, ddef := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.DatasetFile == "" {
		cfg.DatasetFile = def.DatasetFile
	}
	if cfg.LogName == "" {
		cfg.LogName = def.LogName
	}
	if cfg.LogMaxSize == "" {
		cfg.LogMaxSize = def.LogMaxSize
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = def.Server.AllowedOrigins
	}

	if dcfg.DeliveredStatus == "" {
		dcfg.DeliveredStatus = ddef.DeliveredStatus
	}
	if len(dcfg.OwnChannelKeywords) == 0 {
		dcfg.OwnChannelKeywords = ddef.OwnChannelKeywords
	}
	if len(dcfg.DefaultPlatforms) == 0 {
		dcfg.DefaultPlatforms = ddef.DefaultPlatforms
	}
	if len(dcfg.Marketplaces) == 0 {
		dcfg.Marketplaces = ddef.Marketplaces
	}
}

// ApplyEnv 读取 .env / 环境变量覆盖配置，.env.local 优先
func ApplyEnv(cfg *Config, envFiles ...string) {
	if len(envFiles) > 0 {
		_ = godotenv.Load(envFiles[0])
		for _, f := range envFiles[1:] {
			_ = godotenv.Overload(f)
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DATASET_FILE"); v != "" {
		cfg.DatasetFile = v
	}
	if v := os.Getenv("LOG_NAME"); v != "" {
		cfg.LogName = v
	}
	if v := os.Getenv("TZ_NAME"); v != "" {
		cfg.Timezone = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
}

// DatasetPath 数据集完整路径
func (c *Config) DatasetPath() string {
	return filepath.Join(c.DataDir, c.DatasetFile)
}

// Location 解析配置的时区
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("无效的时区 %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON序列化和反序列化
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
// 用于从JSON字符串解析Duration
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
// 用于将Duration序列化为JSON字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (dc *DataConfig) GetDeliveredStatus() string {
	mu.RLock()
	defer mu.RUnlock()
	return dc.DeliveredStatus
}

func (dc *DataConfig) GetOwnChannelKeywords() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), dc.OwnChannelKeywords...)
}

func (dc *DataConfig) SetOwnChannelKeywords(keywords []string) {
	mu.Lock()
	defer mu.Unlock()
	dc.OwnChannelKeywords = append([]string(nil), keywords...)
}

func (dc *DataConfig) GetDefaultPlatforms() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), dc.DefaultPlatforms...)
}

func (dc *DataConfig) GetMarketplaces() []string {
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), dc.Marketplaces...)
}
