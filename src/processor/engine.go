// engine.go
package processor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/utils"
)

// MetricKind 聚合方式
type MetricKind int

const (
	Count MetricKind = iota
	Sum
	Mean
	Percentile
	Ratio           // sum(Column) / sum(Denominator)
	WithinThreshold // Column <= Denominator + Threshold 的行占比(%)
)

// Metric 聚合指标；缺失值不计入分母。
// Value 不为空时 Sum/Mean/Percentile 使用它计算每行的值，Requires 列出它依赖的列。
type Metric struct {
	Kind        MetricKind
	Column      string
	Denominator string
	P           float64
	Threshold   float64
	Value       func(d dataset.Dataset, i int) float64
	Requires    []string
}

// columns 指标依赖的列
func (m Metric) columns() []string {
	if m.Value != nil {
		return m.Requires
	}
	switch m.Kind {
	case Count:
		return nil
	case Ratio, WithinThreshold:
		return []string{m.Column, m.Denominator}
	default:
		return []string{m.Column}
	}
}

// Key 分组键；Sort 用于天然有序的维度
type Key struct {
	Label string
	Sort  int64
	Parts []string
}

// Dimension 分组维度
type Dimension struct {
	Name    string
	Ordered bool
	Key     func(d dataset.Dataset, i int) (Key, bool)
	Domain  []Key
}

// Query 一次聚合的描述
type Query struct {
	Dimension  Dimension
	Metric     Metric
	MinSamples int  // 行数少于该值的分组不输出
	TopN       int  // 排序后截断，0 表示不截断
	FillDomain bool // 维度有固定取值范围时补齐缺失分组
}

// Group 聚合结果的一行
type Group struct {
	Key   string
	Parts []string
	Sort  int64
	Value float64
	Count int // 分组行数
	Valid int // 参与计算的行数
}

type accumulator struct {
	key    Key
	rows   int
	valid  int
	hits   int
	sum    float64
	den    float64
	values []float64
}

func (m Metric) rowValue(d dataset.Dataset, i int) float64 {
	if m.Value != nil {
		return m.Value(d, i)
	}
	return d.Float(m.Column, i)
}

func (a *accumulator) add(m Metric, d dataset.Dataset, i int) {
	a.rows++
	switch m.Kind {
	case Count:
		a.valid++
	case Sum, Mean:
		if v := m.rowValue(d, i); !math.IsNaN(v) {
			a.sum += v
			a.valid++
		}
	case Percentile:
		if v := m.rowValue(d, i); !math.IsNaN(v) {
			a.values = append(a.values, v)
			a.valid++
		}
	case Ratio:
		num, den := d.Float(m.Column, i), d.Float(m.Denominator, i)
		if !math.IsNaN(num) && !math.IsNaN(den) {
			a.sum += num
			a.den += den
			a.valid++
		}
	case WithinThreshold:
		actual, quoted := d.Float(m.Column, i), d.Float(m.Denominator, i)
		if !math.IsNaN(actual) && !math.IsNaN(quoted) {
			a.valid++
			if actual <= quoted+m.Threshold {
				a.hits++
			}
		}
	}
}

func (a *accumulator) value(m Metric) float64 {
	switch m.Kind {
	case Count:
		return float64(a.rows)
	case Sum:
		return utils.Finite(a.sum)
	case Mean:
		return utils.SafeDiv(a.sum, float64(a.valid))
	case Percentile:
		return utils.Percentile(a.values, m.P)
	case Ratio:
		return utils.SafeDiv(a.sum, a.den)
	case WithinThreshold:
		return utils.SafeDiv(float64(a.hits), float64(a.valid)) * 100
	}
	return 0
}

// Aggregate 分组 -> 聚合 -> 最小样本过滤 -> 排序 -> 截断。
// 维度或指标依赖的列不存在时返回空结果。
func Aggregate(d dataset.Dataset, q Query) []Group {
	out := []Group{}
	for _, c := range q.Metric.columns() {
		if !d.Has(c) {
			return out
		}
	}

	groups := make(map[string]*accumulator)
	for i := 0; i < d.Len(); i++ {
		k, ok := q.Dimension.Key(d, i)
		if !ok {
			continue
		}
		a, exists := groups[k.Label]
		if !exists {
			a = &accumulator{key: k}
			groups[k.Label] = a
		}
		a.add(q.Metric, d, i)
	}

	if q.FillDomain {
		for _, k := range q.Dimension.Domain {
			if _, ok := groups[k.Label]; !ok {
				groups[k.Label] = &accumulator{key: k}
			}
		}
	}

	for _, a := range groups {
		if q.MinSamples > 0 && a.rows < q.MinSamples {
			continue
		}
		parts := a.key.Parts
		if parts == nil {
			parts = []string{a.key.Label}
		}
		out = append(out, Group{
			Key:   a.key.Label,
			Parts: parts,
			Sort:  a.key.Sort,
			Value: a.value(q.Metric),
			Count: a.rows,
			Valid: a.valid,
		})
	}

	SortGroups(out, q.Dimension.Ordered)
	if q.TopN > 0 && len(out) > q.TopN {
		out = out[:q.TopN]
	}
	return out
}

// SortGroups 有序维度按键升序，其余按值降序；相同值按键名升序
func SortGroups(groups []Group, ordered bool) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if ordered {
			if a.Sort != b.Sort {
				return a.Sort < b.Sort
			}
			return a.Key < b.Key
		}
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.Key < b.Key
	})
}

// Scalar 不分组，对全部行计算一个指标
func Scalar(d dataset.Dataset, m Metric) float64 {
	groups := Aggregate(d, Query{Dimension: All, Metric: m})
	if len(groups) == 0 {
		return 0
	}
	return groups[0].Value
}

// Lookup 把结果转成 key -> group
func Lookup(groups []Group) map[string]Group {
	m := make(map[string]Group, len(groups))
	for _, g := range groups {
		m[g.Key] = g
	}
	return m
}

// ==================== 维度 ====================

// All 全部行归为一组
var All = Dimension{
	Name: "all",
	Key: func(dataset.Dataset, int) (Key, bool) {
		return Key{Label: "all"}, true
	},
}

// Category 按字符串列分组，缺失值不参与
func Category(col string) Dimension {
	return Dimension{
		Name: col,
		Key: func(d dataset.Dataset, i int) (Key, bool) {
			s, ok := d.String(col, i)
			if !ok {
				return Key{}, false
			}
			return Key{Label: s}, true
		},
	}
}

// Neighborhood 目的地街区
var Neighborhood = Category(dataset.ColNeighborhood)

// Platform 销售渠道
var Platform = Category(dataset.ColPlatform)

// OrderMode 配送 / 自取
var OrderMode = Category(dataset.ColOrderMode)

// OrderClass 订单类型
var OrderClass = Category(dataset.ColOrderClass)

func timeDimension(name string, fn func(t time.Time) (string, int64), domain []Key) Dimension {
	return Dimension{
		Name:    name,
		Ordered: true,
		Domain:  domain,
		Key: func(d dataset.Dataset, i int) (Key, bool) {
			ts, ok := d.Time(i)
			if !ok {
				return Key{}, false
			}
			label, sortKey := fn(ts)
			return Key{Label: label, Sort: sortKey}, true
		},
	}
}

func labelsDomain(labels []string) []Key {
	keys := make([]Key, len(labels))
	for i, l := range labels {
		keys[i] = Key{Label: l, Sort: int64(i)}
	}
	return keys
}

func hoursDomain() []Key {
	keys := make([]Key, 24)
	for h := range keys {
		keys[h] = Key{Label: strconv.Itoa(h), Sort: int64(h)}
	}
	return keys
}

// Hour 0-23 点
var Hour = timeDimension("hour", func(t time.Time) (string, int64) {
	return strconv.Itoa(t.Hour()), int64(t.Hour())
}, hoursDomain())

// Weekday 周一开始
var Weekday = timeDimension("weekday", func(t time.Time) (string, int64) {
	idx := WeekdayIndex(t)
	return Weekdays[idx], int64(idx)
}, labelsDomain(Weekdays))

// DayPeriod 一天中的时段
var DayPeriod = timeDimension("period_of_day", func(t time.Time) (string, int64) {
	label, idx := PeriodOfDay(t.Hour())
	return label, int64(idx)
}, labelsDomain(DayPeriods))

// DayKind 工作日 / 周末
var DayKind = timeDimension("day_type", func(t time.Time) (string, int64) {
	label, idx := DayType(t)
	return label, int64(idx)
}, labelsDomain(DayTypes))

// Date 自然日
var Date = timeDimension("date", func(t time.Time) (string, int64) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.Format("2006-01-02"), day.Unix()
}, nil)

// TimeBucket 按日 / 周(周一开始) / 月分桶，标签为桶起始日期
func TimeBucket(g Granularity) Dimension {
	return timeDimension("bucket_"+string(g), func(t time.Time) (string, int64) {
		start := g.Truncate(t)
		return start.Format("2006-01-02"), start.Unix()
	}, nil)
}

// DistanceBands 1/3 km 分档，缺失距离不参与
var DistanceBands = Dimension{
	Name:    "distance_band",
	Ordered: true,
	Key: func(d dataset.Dataset, i int) (Key, bool) {
		km := d.Float(dataset.ColDistance, i)
		if math.IsNaN(km) {
			return Key{}, false
		}
		label, idx := DistanceBand(km)
		return Key{Label: label, Sort: int64(idx)}, true
	},
}

// CoarseDistance 粗分档，缺失距离单独成组
var CoarseDistance = Dimension{
	Name:    "coarse_distance",
	Ordered: true,
	Domain:  labelsDomain(CoarseDistanceBands),
	Key: func(d dataset.Dataset, i int) (Key, bool) {
		if !d.Has(dataset.ColDistance) {
			return Key{}, false
		}
		label, idx := CoarseDistanceBand(d.Float(dataset.ColDistance, i))
		return Key{Label: label, Sort: int64(idx)}, true
	},
}

// MinutesBand 按分钟数分档，缺失值单独成组
func MinutesBand(col string) Dimension {
	return Dimension{
		Name:    "minutes_" + col,
		Ordered: true,
		Domain:  labelsDomain(MinuteBands),
		Key: func(d dataset.Dataset, i int) (Key, bool) {
			if !d.Has(col) {
				return Key{}, false
			}
			label, idx := MinuteBand(d.Float(col, i))
			return Key{Label: label, Sort: int64(idx)}, true
		},
	}
}

// Cross 两个维度的组合，排序以第一个维度为主
func Cross(a, b Dimension) Dimension {
	var domain []Key
	for _, ka := range a.Domain {
		for _, kb := range b.Domain {
			domain = append(domain, crossKey(ka, kb))
		}
	}
	return Dimension{
		Name:    a.Name + "x" + b.Name,
		Ordered: a.Ordered && b.Ordered,
		Domain:  domain,
		Key: func(d dataset.Dataset, i int) (Key, bool) {
			ka, ok := a.Key(d, i)
			if !ok {
				return Key{}, false
			}
			kb, ok := b.Key(d, i)
			if !ok {
				return Key{}, false
			}
			return crossKey(ka, kb), true
		},
	}
}

func crossKey(a, b Key) Key {
	parts := append(keyParts(a), keyParts(b)...)
	return Key{
		Label: fmt.Sprintf("%s|%s", a.Label, b.Label),
		Sort:  a.Sort*1000 + b.Sort,
		Parts: parts,
	}
}

func keyParts(k Key) []string {
	if k.Parts != nil {
		return append([]string(nil), k.Parts...)
	}
	return []string{k.Label}
}
