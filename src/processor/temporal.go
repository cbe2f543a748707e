// temporal.go
package processor

import (
	"time"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
	"DeliveryDashboard/src/utils"
)

// LabelCount 标签 + 数量；JSON 标签字段名随接口变化
type LabelCount struct {
	Field string
	Label string
	Count int
}

// MarshalJSON {"<field>": label, "quantidade": count}
func (l LabelCount) MarshalJSON() ([]byte, error) {
	return marshalPair(l.Field, l.Label, "quantidade", float64(l.Count))
}

// countDomain 按固定顺序输出每个取值的订单数，没有订单的取值为0
func (s *Service) countDomain(p Params, field string, dim Dimension) (Data[LabelCount], error) {
	out := Data[LabelCount]{Data: []LabelCount{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	for _, g := range Aggregate(cur, Query{Dimension: dim, Metric: Metric{Kind: Count}, FillDomain: true}) {
		out.Data = append(out.Data, LabelCount{Field: field, Label: g.Key, Count: g.Count})
	}
	return out, nil
}

// OrdersByDayPeriod Madrugada / Manhã / Tarde / Noite 四行
func (s *Service) OrdersByDayPeriod(p Params) (Data[LabelCount], error) {
	return s.countDomain(p, "periodo", DayPeriod)
}

// OrdersByDayType 工作日 / 周末两行
func (s *Service) OrdersByDayType(p Params) (Data[LabelCount], error) {
	return s.countDomain(p, "tipo", DayKind)
}

// HeatmapCell 星期几 x 小时的订单数
type HeatmapCell struct {
	DiaSemana  string `json:"dia_semana"`
	Hora       int    `json:"hora"`
	Quantidade int    `json:"quantidade"`
}

// HourlyHeatmap 只输出有订单的格子，周一开始，同一天内按小时升序
func (s *Service) HourlyHeatmap(p Params) (Data[HeatmapCell], error) {
	out := Data[HeatmapCell]{Data: []HeatmapCell{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	for _, g := range countBy(cur, Cross(Weekday, Hour)) {
		out.Data = append(out.Data, HeatmapCell{
			DiaSemana:  g.Parts[0],
			Hora:       int(g.Sort % 1000),
			Quantidade: g.Count,
		})
	}
	return out, nil
}

// OrdersOverTime 每个有订单的桶一行，不补空桶
func (s *Service) OrdersOverTime(p Params) (Data[RevenuePoint], error) {
	out := Data[RevenuePoint]{Data: []RevenuePoint{}}
	g, err := ParseGranularity(p.Granularity, Day)
	if err != nil {
		return out, err
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	bucket := TimeBucket(g)
	sums := Lookup(Aggregate(cur, Query{Dimension: bucket, Metric: revenue}))
	for _, c := range countBy(cur, bucket) {
		out.Data = append(out.Data, RevenuePoint{Periodo: c.Key, Receita: sums[c.Key].Value, Pedidos: c.Count})
	}
	return out, nil
}

// HourCount 单个小时的订单数
type HourCount struct {
	Hora       int `json:"hora"`
	Quantidade int `json:"quantidade"`
}

// PeakHours 有订单的小时，按小时升序
func (s *Service) PeakHours(p Params) (Data[HourCount], error) {
	out := Data[HourCount]{Data: []HourCount{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	for _, g := range countBy(cur, Hour) {
		out.Data = append(out.Data, HourCount{Hora: int(g.Sort), Quantidade: g.Count})
	}
	return out, nil
}

// WeekdayValue 星期几的订单数或收入
type WeekdayValue struct {
	DiaSemana string  `json:"dia_semana"`
	Valor     float64 `json:"valor"`
}

// WeeklySeasonality 星期几分布
type WeeklySeasonality struct {
	Data   []WeekdayValue `json:"data"`
	Metric string         `json:"metric"`
}

// WeeklySeasonality 固定 7 行；metric=receita 且有金额列时为收入，否则为订单数
func (s *Service) WeeklySeasonality(p Params) (WeeklySeasonality, error) {
	metric, err := parseChoice("metric", p.Metric, "pedidos", "pedidos", "receita")
	if err != nil {
		return WeeklySeasonality{}, err
	}
	out := WeeklySeasonality{Data: []WeekdayValue{}, Metric: metric}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	m := Metric{Kind: Count}
	if metric == "receita" && cur.Has(dataset.ColTotal) {
		m = revenue
	}
	for _, g := range Aggregate(cur, Query{Dimension: Weekday, Metric: m, FillDomain: true}) {
		out.Data = append(out.Data, WeekdayValue{DiaSemana: g.Key, Valor: g.Value})
	}
	return out, nil
}

// TrendPoint 与上一个桶对比的一行
type TrendPoint struct {
	Periodo            string  `json:"periodo"`
	Pedidos            int     `json:"pedidos"`
	Receita            float64 `json:"receita"`
	VariacaoPedidosPct float64 `json:"variacao_pedidos_pct"`
	VariacaoReceitaPct float64 `json:"variacao_receita_pct"`
}

// TrendComparison 逐桶环比
type TrendComparison struct {
	Data          []TrendPoint `json:"data"`
	Granularidade Granularity  `json:"granularidade"`
}

// trendWindow 未同时给出 inicio 和 fim 时：按周取最近14天，按月从上个月1日零点开始
func (s *Service) trendWindow(p Params, g Granularity) (period.Window, error) {
	if p.Inicio != "" && p.Fim != "" {
		return period.Normalize(p.Inicio, p.Fim, s.now(), s.loc)
	}
	now := s.now().In(s.loc)
	if g == Week {
		return period.Window{Start: now.AddDate(0, 0, -14), End: now}, nil
	}
	return period.Window{Start: period.PreviousMonth(now).Start, End: now}, nil
}

// TrendComparisons 少于两个桶时为空；上期为0而本期为正时变化率记为100
func (s *Service) TrendComparisons(p Params) (TrendComparison, error) {
	g, err := ParseGranularity(p.Granularity, Week, Week, Month)
	if err != nil {
		return TrendComparison{}, err
	}
	out := TrendComparison{Data: []TrendPoint{}, Granularidade: g}
	all, err := s.load()
	if err != nil {
		return out, err
	}
	w, err := s.trendWindow(p, g)
	if err != nil {
		return out, err
	}
	cur := FilterPeriod(all, w)

	// 有 total_brl 时订单数只算金额非空的行；没有该列时按行数，收入为0
	bucket := TimeBucket(g)
	type point struct {
		key     string
		orders  int
		revenue float64
	}
	var points []point
	if cur.Has(dataset.ColTotal) {
		for _, grp := range Aggregate(cur, Query{Dimension: bucket, Metric: revenue}) {
			points = append(points, point{grp.Key, grp.Valid, grp.Value})
		}
	} else {
		for _, grp := range countBy(cur, bucket) {
			points = append(points, point{grp.Key, grp.Count, 0})
		}
	}
	for i := 1; i < len(points); i++ {
		now, prev := points[i], points[i-1]
		out.Data = append(out.Data, TrendPoint{
			Periodo:            now.key,
			Pedidos:            now.orders,
			Receita:            now.revenue,
			VariacaoPedidosPct: TrendVariation(float64(now.orders), float64(prev.orders)),
			VariacaoReceitaPct: TrendVariation(now.revenue, prev.revenue),
		})
	}
	return out, nil
}

// DailyTrend 星期几的订单总数和日均订单数
type DailyTrend struct {
	DiaSemana    string  `json:"dia_semana"`
	TotalPedidos int     `json:"total_pedidos"`
	MediaPedidos float64 `json:"media_pedidos"`
}

// DailyTrends 日均 = 订单数 / 有订单的不同日期数
func (s *Service) DailyTrends(p Params) (Data[DailyTrend], error) {
	out := Data[DailyTrend]{Data: []DailyTrend{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	var days [7]int
	for _, g := range countBy(cur, Date) {
		days[WeekdayIndex(time.Unix(g.Sort, 0).UTC())]++
	}
	for _, g := range Aggregate(cur, Query{Dimension: Weekday, Metric: Metric{Kind: Count}, FillDomain: true}) {
		n := days[g.Sort]
		if n == 0 {
			n = 1
		}
		out.Data = append(out.Data, DailyTrend{
			DiaSemana:    g.Key,
			TotalPedidos: g.Count,
			MediaPedidos: utils.Round(float64(g.Count)/float64(n), 2),
		})
	}
	return out, nil
}

// ForecastPoint 单日实际订单数与预测
type ForecastPoint struct {
	Periodo         string  `json:"periodo"`
	PedidosReal     int     `json:"pedidos_real"`
	PedidosPrevisto float64 `json:"pedidos_previsto"`
}

// forecastWindow 未同时给出 inicio 和 fim 时为本月1日零点到现在
func (s *Service) forecastWindow(p Params) (period.Window, error) {
	if p.Inicio != "" && p.Fim != "" {
		return period.Normalize(p.Inicio, p.Fim, s.now(), s.loc)
	}
	now := s.now().In(s.loc)
	return period.Window{Start: period.MonthRange(now).Start, End: now}, nil
}

// ForecastVersusActual 窗口内每个自然日一行；预测只使用窗口开始之前的历史
func (s *Service) ForecastVersusActual(p Params) (Data[ForecastPoint], error) {
	out := Data[ForecastPoint]{Data: []ForecastPoint{}}
	all, err := s.load()
	if err != nil {
		return out, err
	}
	w, err := s.forecastWindow(p)
	if err != nil {
		return out, err
	}
	cur := FilterPeriod(all, w)
	if cur.Len() == 0 {
		return out, nil
	}

	model := FitWeekdayModel(FilterBefore(all, w.Start))
	actual := Lookup(countBy(cur, Date))
	for day := period.StartOfDay(w.Start); !day.After(w.End); day = day.AddDate(0, 0, 1) {
		key := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		label := key.Format("2006-01-02")
		out.Data = append(out.Data, ForecastPoint{
			Periodo:         label,
			PedidosReal:     actual[label].Count,
			PedidosPrevisto: model.Predict(key),
		})
	}
	return out, nil
}
