// Package dataset 保存订单数据集的内存快照。
//
// 一个快照(table)在加载完成后不再修改；查询拿到的 Dataset 只是行号视图，
// 筛选只产生新的行号切片，不会影响缓存。
package dataset

import (
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 数据集列名
const (
	ColOrderDatetime   = "order_datetime"
	ColStatus          = "status"
	ColNeighborhood    = "bairro_destino"
	ColPlatform        = "platform"
	ColCommission      = "platform_commission_pct"
	ColTotal           = "total_brl"
	ColDistance        = "distance_km"
	ColPrepMinutes     = "tempo_preparo_minutos"
	ColDeliveryMinutes = "actual_delivery_minutes"
	ColETAMinutes      = "eta_minutes_quote"
	ColSatisfaction    = "satisfacao_nivel"
	ColOrderMode       = "order_mode"
	ColOrderClass      = "classe_pedido"
	ColCustomerName    = "nome_cliente"
)

// NumericColumns 需要按浮点数解析的列
var NumericColumns = []string{
	ColCommission,
	ColTotal,
	ColDistance,
	ColPrepMinutes,
	ColDeliveryMinutes,
	ColETAMinutes,
	ColSatisfaction,
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

type column struct {
	floats  []float64
	strings []string
	na      []bool
}

type table struct {
	names   []string
	cols    map[string]column
	times   []time.Time
	hasTime bool
}

// Dataset 快照上的只读行视图
type Dataset struct {
	t    *table
	rows []int
}

// New 把 DataFrame 包装成快照，order_datetime 只在这里解析一次
func New(df dataframe.DataFrame, loc *time.Location) Dataset {
	if loc == nil {
		loc = time.Local
	}

	t := &table{
		names: df.Names(),
		cols:  make(map[string]column, df.Ncol()),
	}

	for _, name := range t.names {
		s := df.Col(name)
		col := column{
			floats:  s.Float(),
			strings: s.Records(),
			na:      s.IsNaN(),
		}
		// inf / -inf 视为缺失值，不进入任何分母
		numeric := s.Type() == series.Float || s.Type() == series.Int
		for i, v := range col.floats {
			if math.IsInf(v, 0) {
				col.floats[i] = math.NaN()
				if numeric {
					col.na[i] = true
				}
			}
		}
		t.cols[name] = col
	}

	if col, ok := t.cols[ColOrderDatetime]; ok {
		t.hasTime = true
		t.times = make([]time.Time, len(col.strings))
		for i, raw := range col.strings {
			if col.na[i] {
				continue
			}
			if ts, ok := ParseTimestamp(raw, loc); ok {
				t.times[i] = ts
			}
		}
	}

	rows := make([]int, df.Nrow())
	for i := range rows {
		rows[i] = i
	}
	return Dataset{t: t, rows: rows}
}

// ParseTimestamp 解析数据集中的时间字符串；带时区的时间转换到 loc
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts.In(loc), true
		}
	}
	return time.Time{}, false
}

// Len 行数
func (d Dataset) Len() int { return len(d.rows) }

// Has 判断是否存在某列
func (d Dataset) Has(name string) bool {
	if d.t == nil {
		return false
	}
	_, ok := d.t.cols[name]
	return ok
}

// HasTime 是否有 order_datetime 列
func (d Dataset) HasTime() bool {
	return d.t != nil && d.t.hasTime
}

// Time 第 i 行的下单时间，缺失时 ok=false
func (d Dataset) Time(i int) (time.Time, bool) {
	if !d.HasTime() {
		return time.Time{}, false
	}
	ts := d.t.times[d.rows[i]]
	return ts, !ts.IsZero()
}

// Float 第 i 行的数值，列不存在或缺失时返回 NaN
func (d Dataset) Float(name string, i int) float64 {
	if d.t == nil {
		return math.NaN()
	}
	col, ok := d.t.cols[name]
	if !ok {
		return math.NaN()
	}
	return col.floats[d.rows[i]]
}

// String 第 i 行的文本值，列不存在或缺失时 ok=false
func (d Dataset) String(name string, i int) (string, bool) {
	if d.t == nil {
		return "", false
	}
	col, ok := d.t.cols[name]
	if !ok {
		return "", false
	}
	r := d.rows[i]
	if col.na[r] {
		return "", false
	}
	return col.strings[r], true
}

// Where 按条件筛选行，返回新的视图
func (d Dataset) Where(keep func(i int) bool) Dataset {
	if d.t == nil {
		return d
	}
	rows := make([]int, 0, len(d.rows))
	for i, r := range d.rows {
		if keep(i) {
			rows = append(rows, r)
		}
	}
	return Dataset{t: d.t, rows: rows}
}

// Empty 同一快照上的空视图，保留列信息
func (d Dataset) Empty() Dataset {
	return Dataset{t: d.t, rows: []int{}}
}

// Clone 复制行视图；底层快照只读，无需复制
func (d Dataset) Clone() Dataset {
	return Dataset{t: d.t, rows: append([]int(nil), d.rows...)}
}

// Bounds 数据集中最早和最晚的下单时间
func (d Dataset) Bounds() (min, max time.Time, ok bool) {
	for i := range d.rows {
		ts, valid := d.Time(i)
		if !valid {
			continue
		}
		if !ok || ts.Before(min) {
			min = ts
		}
		if !ok || ts.After(max) {
			max = ts
		}
		ok = true
	}
	return min, max, ok
}
