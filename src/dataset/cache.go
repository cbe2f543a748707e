package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gota/gota/series"

	"DeliveryDashboard/src/datasource/file"
)

// ErrNotFound 数据集文件不存在
var ErrNotFound = errors.New("dataset not found")

// Loader 从路径加载完整数据集
type Loader func(path string) (Dataset, error)

// ModTimeSource 返回数据源的修改时间
type ModTimeSource func(path string) (time.Time, error)

// Logger 缓存使用的日志接口，storage.Logger 满足该接口
type Logger interface {
	Info(msg string)
	Error(msg string)
}

type snapshot struct {
	data     Dataset
	modTime  time.Time
	loadedAt time.Time
}

// Cache 按数据源修改时间缓存的数据集快照。
// 读路径只做一次原子指针读取；加载在 mu 内串行进行，不影响正在读旧快照的请求。
type Cache struct {
	path    string
	load    Loader
	modTime ModTimeSource
	now     func() time.Time
	logger  Logger

	current atomic.Pointer[snapshot]
	mu      sync.Mutex
}

// Option 缓存选项
type Option func(*Cache)

// WithLoader 替换加载函数
func WithLoader(l Loader) Option { return func(c *Cache) { c.load = l } }

// WithModTimeSource 替换修改时间来源，测试中用来避免改动文件系统
func WithModTimeSource(src ModTimeSource) Option { return func(c *Cache) { c.modTime = src } }

// WithClock 替换时钟
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithLogger 设置日志
func WithLogger(l Logger) Option { return func(c *Cache) { c.logger = l } }

// NewCache 创建缓存；默认从文件系统读取 csv/xlsx
func NewCache(path, sheet string, loc *time.Location, opts ...Option) *Cache {
	c := &Cache{
		path:    path,
		load:    FileLoader(sheet, loc),
		modTime: StatModTime,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatModTime 通过 os.Stat 获取修改时间
func StatModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// FileLoader 读取文件并解析时间列
func FileLoader(sheet string, loc *time.Location) Loader {
	return func(path string) (Dataset, error) {
		df, err := file.ReadDataFrame(path, file.Options{
			SheetName: sheet,
			Types:     columnTypes(),
		})
		if err != nil {
			return Dataset{}, err
		}
		return New(df, loc), nil
	}
}

// ReadCSV 从 reader 解析 csv 数据集
func ReadCSV(r io.Reader, loc *time.Location) (Dataset, error) {
	df, err := file.ReadCSVFrom(r, file.Options{Types: columnTypes()})
	if err != nil {
		return Dataset{}, err
	}
	return New(df, loc), nil
}

func columnTypes() map[string]series.Type {
	types := make(map[string]series.Type, len(NumericColumns))
	for _, name := range NumericColumns {
		types[name] = series.Float
	}
	return types
}

// Path 数据源路径
func (c *Cache) Path() string { return c.path }

// Get 返回当前数据集；数据源修改时间变化时先重新加载
func (c *Cache) Get() (Dataset, error) {
	return c.Load(false)
}

// Load force 为 true 时无论修改时间是否变化都重新加载
func (c *Cache) Load(force bool) (Dataset, error) {
	mod, err := c.modTime(c.path)
	if err != nil {
		return Dataset{}, c.wrap(err)
	}

	if snap := c.current.Load(); !force && snap != nil && snap.modTime.Equal(mod) {
		return snap.data.Clone(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// 等锁期间可能已被其他请求加载
	if snap := c.current.Load(); !force && snap != nil && snap.modTime.Equal(mod) {
		return snap.data.Clone(), nil
	}

	start := c.now()
	data, err := c.load(c.path)
	if err != nil {
		c.logError(fmt.Sprintf("加载数据集 %s 失败: %v", c.path, err))
		return Dataset{}, c.wrap(err)
	}

	c.current.Store(&snapshot{data: data, modTime: mod, loadedAt: c.now()})
	c.logInfo(fmt.Sprintf("数据集已加载: %s, %d 行, 耗时 %v", c.path, data.Len(), c.now().Sub(start)))
	return data.Clone(), nil
}

// Stats 当前快照信息，尚未加载时 ok=false
func (c *Cache) Stats() (rows int, modTime, loadedAt time.Time, ok bool) {
	snap := c.current.Load()
	if snap == nil {
		return 0, time.Time{}, time.Time{}, false
	}
	return snap.data.Len(), snap.modTime, snap.loadedAt, true
}

func (c *Cache) wrap(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, c.path)
	}
	return err
}

func (c *Cache) logInfo(msg string) {
	if c.logger != nil {
		c.logger.Info(msg)
	}
}

func (c *Cache) logError(msg string) {
	if c.logger != nil {
		c.logger.Error(msg)
	}
}
