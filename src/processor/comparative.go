// comparative.go
package processor

import (
	"math"
	"strings"
	"time"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/utils"
)

// Variation 环比变化(%)，上期为0时返回0
func Variation(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return utils.Finite((current - previous) / previous * 100)
}

// TrendVariation 趋势对比用的变化率：上期为0而本期为正时返回100，保留两位小数
func TrendVariation(current, previous float64) float64 {
	if previous > 0 {
		return utils.Round((current-previous)/previous*100, 2)
	}
	if current > 0 {
		return 100
	}
	return 0
}

// ==================== 佣金 ====================

// Money 收入拆分
type Money struct {
	Gross      float64
	Commission float64
	Net        float64
	MarginPct  float64
}

// commissionValue 每行佣金；佣金率缺失时为 NaN，不计入佣金但仍计入收入
var commissionValue = Metric{
	Kind: Sum,
	Value: func(d dataset.Dataset, i int) float64 {
		return d.Float(dataset.ColTotal, i) * d.Float(dataset.ColCommission, i)
	},
	Requires: []string{dataset.ColTotal, dataset.ColCommission},
}

var revenue = Metric{Kind: Sum, Column: dataset.ColTotal}

func newMoney(gross, commission float64) Money {
	net := gross - commission
	return Money{
		Gross:      utils.Finite(gross),
		Commission: utils.Finite(commission),
		Net:        utils.Finite(net),
		MarginPct:  utils.SafeDiv(net, gross) * 100,
	}
}

// Commission 全部行的收入、佣金、净收入和利润率
func Commission(d dataset.Dataset) Money {
	return newMoney(Scalar(d, revenue), Scalar(d, commissionValue))
}

// CommissionBy 按维度拆分收入和佣金
func CommissionBy(d dataset.Dataset, dim Dimension) map[string]Money {
	gross := Lookup(Aggregate(d, Query{Dimension: dim, Metric: revenue}))
	comm := Lookup(Aggregate(d, Query{Dimension: dim, Metric: commissionValue}))

	out := make(map[string]Money)
	for _, g := range Aggregate(d, Query{Dimension: dim, Metric: Metric{Kind: Count}}) {
		out[g.Key] = newMoney(gross[g.Key].Value, comm[g.Key].Value)
	}
	return out
}

// ChannelClassifier 通过平台名关键字识别自有渠道(官网、WhatsApp 等)
type ChannelClassifier struct {
	keywords []string
}

// NewChannelClassifier 关键字忽略大小写和重音
func NewChannelClassifier(keywords []string) ChannelClassifier {
	folded := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = utils.Fold(k); k != "" {
			folded = append(folded, k)
		}
	}
	return ChannelClassifier{keywords: folded}
}

// IsOwn 平台名包含任一关键字即为自有渠道
func (c ChannelClassifier) IsOwn(platform string) bool {
	name := utils.Fold(platform)
	for _, k := range c.keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// ==================== 预测 ====================

// WeekdayModel 按星期几的历史日均订单量
type WeekdayModel struct {
	means  [7]float64
	seen   [7]bool
	global float64
	empty  bool
}

// FitWeekdayModel 历史数据先按自然日计数，再按星期几求平均
func FitWeekdayModel(history dataset.Dataset) WeekdayModel {
	days := Aggregate(history, Query{Dimension: Date, Metric: Metric{Kind: Count}})
	if len(days) == 0 {
		return WeekdayModel{empty: true}
	}

	var (
		m      WeekdayModel
		sums   [7]float64
		counts [7]int
		total  float64
	)
	for _, g := range days {
		wd := WeekdayIndex(time.Unix(g.Sort, 0).UTC())
		sums[wd] += g.Value
		counts[wd]++
		total += g.Value
	}
	for wd := range sums {
		if counts[wd] > 0 {
			m.means[wd] = sums[wd] / float64(counts[wd])
			m.seen[wd] = true
		}
	}
	m.global = total / float64(len(days))
	return m
}

// Predict 当天星期几的历史均值；该星期几没有历史时用全局日均，完全没有历史时为0
func (m WeekdayModel) Predict(day time.Time) float64 {
	if m.empty {
		return 0
	}
	wd := WeekdayIndex(day)
	if m.seen[wd] {
		return utils.Round(m.means[wd], 2)
	}
	return utils.Round(m.global, 2)
}

// ROI (回报-投入)/投入；投入为0时回报为正返回封顶值，否则为0
func ROI(investment, ret float64) float64 {
	if investment > 0 {
		return utils.Finite((ret - investment) / investment * 100)
	}
	if ret > 0 {
		return utils.ROISentinel
	}
	return 0
}

// negate 取反但不产生 -0
func negate(v float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return 0
	}
	return -v
}
