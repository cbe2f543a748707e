// home.go
package processor

import (
	"fmt"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
	"DeliveryDashboard/src/utils"
)

// Span 响应里回显的日期区间
type Span struct {
	Inicio string `json:"inicio"`
	Fim    string `json:"fim"`
}

// HomeKPIs 首页指标卡
type HomeKPIs struct {
	ReceitaTotal           float64 `json:"receita_total"`
	ReceitaVariacaoPct     float64 `json:"receita_variacao_pct"`
	PedidosTotais          int     `json:"pedidos_totais"`
	PedidosVariacaoPct     float64 `json:"pedidos_variacao_pct"`
	TicketMedio            float64 `json:"ticket_medio"`
	TicketMedioVariacaoPct float64 `json:"ticket_medio_variacao_pct"`
	SatisfacaoMedia        float64 `json:"satisfacao_media"`
	SatisfacaoTaxaAlta     float64 `json:"satisfacao_taxa_alta"`
	Periodo                Span    `json:"periodo"`
}

// HomeKPIs 当前窗口与结束日期上一个自然月的对比
func (s *Service) HomeKPIs(p Params) (HomeKPIs, error) {
	all, w, cur, err := s.scope(p)
	if err != nil {
		return HomeKPIs{}, err
	}
	prev := FilterPeriod(all, period.PreviousMonth(w.End))

	receita := Scalar(cur, revenue)
	ticket := Scalar(cur, Metric{Kind: Mean, Column: dataset.ColTotal})
	receitaPrev := Scalar(prev, revenue)
	ticketPrev := Scalar(prev, Metric{Kind: Mean, Column: dataset.ColTotal})

	return HomeKPIs{
		ReceitaTotal:           receita,
		ReceitaVariacaoPct:     Variation(receita, receitaPrev),
		PedidosTotais:          cur.Len(),
		PedidosVariacaoPct:     Variation(float64(cur.Len()), float64(prev.Len())),
		TicketMedio:            ticket,
		TicketMedioVariacaoPct: Variation(ticket, ticketPrev),
		SatisfacaoMedia:        Scalar(cur, Metric{Kind: Mean, Column: dataset.ColSatisfaction}),
		SatisfacaoTaxaAlta:     highRatingShare(cur),
		Periodo:                Span{Inicio: w.StartDate(), Fim: w.EndDate()},
	}, nil
}

// highRatingShare 评分 >= 4 的比例(0-1)，没有评分的行不计入分母
func highRatingShare(d dataset.Dataset) float64 {
	rated := DropNA(d, dataset.ColSatisfaction)
	if !d.Has(dataset.ColSatisfaction) || rated.Len() == 0 {
		return 0
	}
	high := rated.Where(func(i int) bool { return rated.Float(dataset.ColSatisfaction, i) >= 4 })
	return utils.SafeDiv(float64(high.Len()), float64(rated.Len()))
}

// DateBounds 数据集中最早和最晚的日期
type DateBounds struct {
	Min *string `json:"min"`
	Max *string `json:"max"`
}

// DateBounds 没有时间列或没有数据时两端为 null
func (s *Service) DateBounds() (DateBounds, error) {
	d, err := s.load()
	if err != nil {
		return DateBounds{}, err
	}
	min, max, ok := d.Bounds()
	if !ok {
		return DateBounds{}, nil
	}
	return DateBounds{
		Min: strPtr(min.Format("2006-01-02")),
		Max: strPtr(max.Format("2006-01-02")),
	}, nil
}

// RevenuePoint 收入时间序列的一个点
type RevenuePoint struct {
	Periodo string  `json:"periodo"`
	Receita float64 `json:"receita"`
	Pedidos int     `json:"pedidos"`
}

// RevenueSeries 带粒度的收入时间序列
type RevenueSeries struct {
	Granularidade Granularity    `json:"granularidade"`
	Dados         []RevenuePoint `json:"dados"`
}

// RevenueOverTime 按日/周/月汇总收入和订单数，中间没有订单的桶补0
func (s *Service) RevenueOverTime(p Params) (RevenueSeries, error) {
	g, err := ParseGranularity(p.Granularity, Day)
	if err != nil {
		return RevenueSeries{}, err
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return RevenueSeries{}, err
	}

	out := RevenueSeries{Granularidade: g, Dados: []RevenuePoint{}}
	bucket := TimeBucket(g)
	counts := FillBuckets(countBy(cur, bucket), g)
	sums := Lookup(Aggregate(cur, Query{Dimension: bucket, Metric: revenue}))
	for _, c := range counts {
		out.Dados = append(out.Dados, RevenuePoint{
			Periodo: c.Key,
			Receita: sums[c.Key].Value,
			Pedidos: c.Count,
		})
	}
	return out, nil
}

// PlatformShare 单个平台的订单、收入和占比
type PlatformShare struct {
	Nome    string  `json:"nome"`
	Pedidos int     `json:"pedidos"`
	Receita float64 `json:"receita"`
	Pct     float64 `json:"pct"`
}

// PlatformShares 平台占比列表
type PlatformShares struct {
	Metric      string          `json:"metric"`
	Plataformas []PlatformShare `json:"plataformas"`
}

// PlatformShares metric=pedidos 按订单数排序，metric=receita 按收入排序；pct 为 0-1
func (s *Service) PlatformShares(p Params) (PlatformShares, error) {
	metric, err := parseChoice("metric", p.Metric, "pedidos", "pedidos", "receita")
	if err != nil {
		return PlatformShares{}, err
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return PlatformShares{}, err
	}

	out := PlatformShares{Metric: metric, Plataformas: []PlatformShare{}}
	if !cur.Has(dataset.ColPlatform) {
		return out, nil
	}

	counts := countBy(cur, Platform)
	sums := Aggregate(cur, Query{Dimension: Platform, Metric: revenue})
	countOf, sumOf := Lookup(counts), Lookup(sums)

	ranking, total := counts, float64(cur.Len())
	if metric == "receita" && cur.Has(dataset.ColTotal) {
		ranking = sums
		total = 0
		for _, g := range sums {
			total += g.Value
		}
	} else {
		total = 0
		for _, g := range counts {
			total += g.Value
		}
	}

	for _, g := range ranking {
		out.Plataformas = append(out.Plataformas, PlatformShare{
			Nome:    g.Key,
			Pedidos: countOf[g.Key].Count,
			Receita: sumOf[g.Key].Value,
			Pct:     utils.SafeDiv(g.Value, total),
		})
	}
	return out, nil
}

// Summary 月度 / 区间摘要
type Summary struct {
	MelhorDiaSemana     *string `json:"melhor_dia_semana"`
	HorarioPico         *string `json:"horario_pico"`
	PlataformaMaisUsada *string `json:"plataforma_mais_usada"`
	BairroTopPedidos    *string `json:"bairro_top_pedidos"`
	BairroTopReceita    *string `json:"bairro_top_receita"`
	Mes                 string  `json:"mes,omitempty"`
	Inicio              string  `json:"inicio,omitempty"`
	Fim                 string  `json:"fim,omitempty"`
}

// MonthlySummary mes 为 YYYY-MM，缺省为当前月
func (s *Service) MonthlySummary(p Params) (Summary, error) {
	d, err := s.load()
	if err != nil {
		return Summary{}, err
	}
	w := period.MonthRange(s.now().In(s.loc))
	if p.Mes != "" {
		if w, err = period.ParseMonth(p.Mes, s.loc); err != nil {
			return Summary{}, err
		}
	}
	out := summarize(FilterPeriod(d, w))
	out.Mes = w.Start.Format("2006-01")
	return out, nil
}

// PeriodSummary 与 MonthlySummary 相同，但使用 inicio/fim 窗口
func (s *Service) PeriodSummary(p Params) (Summary, error) {
	_, w, cur, err := s.scope(p)
	if err != nil {
		return Summary{}, err
	}
	out := summarize(cur)
	out.Inicio, out.Fim = w.StartDate(), w.EndDate()
	return out, nil
}

func summarize(cur dataset.Dataset) Summary {
	var out Summary
	if g, ok := best(countBy(cur, Weekday)); ok {
		out.MelhorDiaSemana = strPtr(g.Key)
	}
	if g, ok := best(countBy(cur, Hour)); ok {
		h := int(g.Sort)
		out.HorarioPico = strPtr(fmt.Sprintf("%02d:00-%02d:00", h, (h+1)%24))
	}
	if g, ok := best(countBy(cur, Platform)); ok {
		out.PlataformaMaisUsada = strPtr(g.Key)
	}
	if g, ok := best(countBy(cur, Neighborhood)); ok {
		out.BairroTopPedidos = strPtr(g.Key)
	}
	if g, ok := best(Aggregate(cur, Query{Dimension: Neighborhood, Metric: revenue})); ok {
		out.BairroTopReceita = strPtr(g.Key)
	}
	return out
}

// parseChoice 校验枚举参数，空值返回默认值
func parseChoice(name, value, def string, allowed ...string) (string, error) {
	if value == "" {
		return def, nil
	}
	if utils.Contains(allowed, value) {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s=%q", ErrInvalidParam, name, value)
}
