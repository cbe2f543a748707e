// service.go
package processor

import (
	"encoding/json"
	"fmt"
	"time"

	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
	"DeliveryDashboard/src/utils"
)

// DefaultTopN / DefaultLimit / DefaultThreshold 请求参数默认值
const (
	DefaultTopN      = 20
	DefaultLimit     = 50
	DefaultThreshold = 10
)

// Source 数据集来源，dataset.Cache 满足该接口
type Source interface {
	Get() (dataset.Dataset, error)
}

// Params 各指标共用的请求参数
type Params struct {
	Inicio      string
	Fim         string
	TopN        int
	Granularity string
	Metric      string
	Threshold   float64
	Limit       int
	Bairro      string
	Mes         string
	Tipo        string
	PctOwn      float64
}

// Dados / Data 两种响应外壳
type Dados[T any] struct {
	Dados []T `json:"dados"`
}

type Data[T any] struct {
	Data []T `json:"data"`
}

// Service 所有指标计算的入口：取快照 -> 规范化窗口 -> 过滤 -> 聚合
type Service struct {
	source Source
	rules  *config.DataConfig
	loc    *time.Location
	now    func() time.Time
}

// NewService 创建服务
func NewService(source Source, rules *config.DataConfig, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{source: source, rules: rules, loc: loc, now: time.Now}
}

// SetClock 替换时钟
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Location 时区
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) load() (dataset.Dataset, error) {
	d, err := s.source.Get()
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("加载数据集失败: %w", err)
	}
	return d, nil
}

// scope 返回完整数据集、规范化后的窗口和窗口内的行
func (s *Service) scope(p Params) (all dataset.Dataset, w period.Window, cur dataset.Dataset, err error) {
	all, err = s.load()
	if err != nil {
		return
	}
	w, err = period.Normalize(p.Inicio, p.Fim, s.now(), s.loc)
	if err != nil {
		return
	}
	cur = FilterPeriod(all, w)
	return
}

func (s *Service) completed(d dataset.Dataset) dataset.Dataset {
	return FilterCompleted(d, s.rules.GetDeliveredStatus())
}

func (s *Service) channels() ChannelClassifier {
	return NewChannelClassifier(s.rules.GetOwnChannelKeywords())
}

func topN(n int) int {
	if n <= 0 {
		return DefaultTopN
	}
	return n
}

// best 取值最大的分组，值相同时保留排在前面的
func best(groups []Group) (Group, bool) {
	if len(groups) == 0 {
		return Group{}, false
	}
	top := groups[0]
	for _, g := range groups[1:] {
		if g.Value > top.Value {
			top = g
		}
	}
	return top, true
}

func countBy(d dataset.Dataset, dim Dimension) []Group {
	return Aggregate(d, Query{Dimension: dim, Metric: Metric{Kind: Count}})
}

func strPtr(s string) *string { return &s }

func missingParam(name string) error {
	return fmt.Errorf("%w: %s é obrigatório", ErrInvalidParam, name)
}

// marshalPair 输出 {keyName: key, field: value} 形式的记录
func marshalPair(keyName, key, field string, value float64) ([]byte, error) {
	return json.Marshal(map[string]any{keyName: key, field: utils.Finite(value)})
}
