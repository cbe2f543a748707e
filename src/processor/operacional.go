// operacional.go
package processor

import (
	"math"
	"sort"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/utils"
)

// delayMinutes 实际配送时长减去报价 ETA，任一缺失时为 NaN
func delayMinutes(d dataset.Dataset, i int) float64 {
	return d.Float(dataset.ColDeliveryMinutes, i) - d.Float(dataset.ColETAMinutes, i)
}

var etaPair = []string{dataset.ColDeliveryMinutes, dataset.ColETAMinutes}

// etaAccuracy 实际时长不超过 ETA 的比例(%)
var etaAccuracy = Metric{Kind: WithinThreshold, Column: dataset.ColDeliveryMinutes, Denominator: dataset.ColETAMinutes}

// lateShare 延误超过 threshold 分钟的比例(%)，只统计 ETA 和实际时长都存在的行
func lateShare(threshold float64) Metric {
	return Metric{
		Kind: Mean,
		Value: func(d dataset.Dataset, i int) float64 {
			delay := delayMinutes(d, i)
			switch {
			case math.IsNaN(delay):
				return math.NaN()
			case delay > threshold:
				return 100
			default:
				return 0
			}
		},
		Requires: etaPair,
	}
}

// kmPerMinute 每分钟行驶公里数，配送时长必须为正
var kmPerMinute = Metric{
	Kind: Mean,
	Value: func(d dataset.Dataset, i int) float64 {
		minutes := d.Float(dataset.ColDeliveryMinutes, i)
		if !(minutes > 0) {
			return math.NaN()
		}
		return d.Float(dataset.ColDistance, i) / minutes
	},
	Requires: []string{dataset.ColDeliveryMinutes, dataset.ColDistance},
}

// etaDeviation 相对 ETA 的偏差(%)，ETA 必须为正
var etaDeviation = Metric{
	Kind: Mean,
	Value: func(d dataset.Dataset, i int) float64 {
		eta := d.Float(dataset.ColETAMinutes, i)
		if !(eta > 0) {
			return math.NaN()
		}
		return (d.Float(dataset.ColDeliveryMinutes, i) - eta) / eta * 100
	},
	Requires: etaPair,
}

// OperationalKPIs 运营指标卡
type OperationalKPIs struct {
	TempoPreparoMedio float64 `json:"tempo_preparo_medio"`
	TempoEntregaMedio float64 `json:"tempo_entrega_medio"`
	PrecisaoEtaPct    float64 `json:"precisao_eta_pct"`
	TaxaAtrasoPct     float64 `json:"taxa_atraso_pct"`
	EficienciaMedia   float64 `json:"eficiencia_media"`
	DesempenhoEta     float64 `json:"desempenho_eta"`
	TempoEntregaP90   float64 `json:"tempo_entrega_p90"`
}

// OperationalKPIs 缺少列的指标为0
func (s *Service) OperationalKPIs(p Params) (OperationalKPIs, error) {
	_, _, cur, err := s.scope(p)
	if err != nil {
		return OperationalKPIs{}, err
	}
	return OperationalKPIs{
		TempoPreparoMedio: Scalar(cur, Metric{Kind: Mean, Column: dataset.ColPrepMinutes}),
		TempoEntregaMedio: Scalar(cur, Metric{Kind: Mean, Column: dataset.ColDeliveryMinutes}),
		PrecisaoEtaPct:    Scalar(cur, etaAccuracy),
		TaxaAtrasoPct:     Scalar(cur, lateShare(p.Threshold)),
		EficienciaMedia:   Scalar(cur, kmPerMinute),
		DesempenhoEta:     Scalar(cur, etaDeviation),
		TempoEntregaP90:   Scalar(cur, Metric{Kind: Percentile, Column: dataset.ColDeliveryMinutes, P: 90}),
	}, nil
}

// PrepPoint 备餐时长时间序列的一个点
type PrepPoint struct {
	Periodo    string  `json:"periodo"`
	TempoMedio float64 `json:"tempo_medio"`
}

// PrepSeries 备餐时长时间序列
type PrepSeries struct {
	Granularidade Granularity `json:"granularidade"`
	Dados         []PrepPoint `json:"dados"`
}

// PrepTimeOverTime 每个桶的平均备餐时长，空桶为0
func (s *Service) PrepTimeOverTime(p Params) (PrepSeries, error) {
	g, err := ParseGranularity(p.Granularity, Day)
	if err != nil {
		return PrepSeries{}, err
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return PrepSeries{}, err
	}
	out := PrepSeries{Granularidade: g, Dados: []PrepPoint{}}
	if !cur.Has(dataset.ColPrepMinutes) {
		return out, nil
	}
	bucket := TimeBucket(g)
	means := FillBuckets(Aggregate(cur, Query{Dimension: bucket, Metric: Metric{Kind: Mean, Column: dataset.ColPrepMinutes}}), g)
	for _, m := range means {
		out.Dados = append(out.Dados, PrepPoint{Periodo: m.Key, TempoMedio: m.Value})
	}
	return out, nil
}

// DistanceTime 粗距离分档的配送时长
type DistanceTime struct {
	Faixa      string  `json:"faixa"`
	TempoMedio float64 `json:"tempo_medio"`
	Quantidade int     `json:"quantidade"`
	TempoP90   float64 `json:"tempo_p90"`
}

// DeliveryTimeByDistance 按 0-2/2-5/5-10/10+ km 分档；quantidade 为有配送时长的订单数
func (s *Service) DeliveryTimeByDistance(p Params) (Dados[DistanceTime], error) {
	out := Dados[DistanceTime]{Dados: []DistanceTime{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if !HasAll(cur, dataset.ColDistance, dataset.ColDeliveryMinutes) {
		return out, nil
	}
	p90 := Lookup(Aggregate(cur, Query{
		Dimension: CoarseDistance,
		Metric:    Metric{Kind: Percentile, Column: dataset.ColDeliveryMinutes, P: 90},
	}))
	for _, g := range Aggregate(cur, Query{Dimension: CoarseDistance, Metric: Metric{Kind: Mean, Column: dataset.ColDeliveryMinutes}}) {
		out.Dados = append(out.Dados, DistanceTime{
			Faixa:      g.Key,
			TempoMedio: g.Value,
			Quantidade: g.Valid,
			TempoP90:   p90[g.Key].Value,
		})
	}
	return out, nil
}

// TimeComparison ETA 与实际时长对比的一行
type TimeComparison struct {
	Tipo  string  `json:"tipo"`
	Tempo float64 `json:"tempo"`
}

// ETAVersusActual 平均 ETA 与平均实际时长
func (s *Service) ETAVersusActual(p Params) (Dados[TimeComparison], error) {
	out := Dados[TimeComparison]{Dados: []TimeComparison{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if cur.Len() == 0 || !HasAll(cur, etaPair...) {
		return out, nil
	}
	out.Dados = append(out.Dados,
		TimeComparison{Tipo: "ETA Estimado", Tempo: Scalar(cur, Metric{Kind: Mean, Column: dataset.ColETAMinutes})},
		TimeComparison{Tipo: "Tempo Real", Tempo: Scalar(cur, Metric{Kind: Mean, Column: dataset.ColDeliveryMinutes})},
	)
	return out, nil
}

// BandCount 分档计数
type BandCount struct {
	Faixa      string `json:"faixa"`
	Quantidade int    `json:"quantidade"`
}

// BandCounts 分档直方图
type BandCounts struct {
	Faixas []BandCount `json:"faixas"`
}

// TimeDistribution tipo=preparo 为备餐时长，tipo=entrega 为配送时长；缺失值单独成档
func (s *Service) TimeDistribution(p Params) (BandCounts, error) {
	out := BandCounts{Faixas: []BandCount{}}
	tipo, err := parseChoice("tipo", p.Tipo, "preparo", "preparo", "entrega")
	if err != nil {
		return out, err
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	col := dataset.ColPrepMinutes
	if tipo == "entrega" {
		col = dataset.ColDeliveryMinutes
	}
	for _, g := range countBy(cur, MinutesBand(col)) {
		out.Faixas = append(out.Faixas, BandCount{Faixa: g.Key, Quantidade: g.Count})
	}
	return out, nil
}

// Delay 单个延误订单
type Delay struct {
	Data             string  `json:"data"`
	NomeCliente      string  `json:"nome_cliente"`
	EtaMinutos       float64 `json:"eta_minutos"`
	TempoRealMinutos float64 `json:"tempo_real_minutos"`
	AtrasoMinutos    float64 `json:"atraso_minutos"`
	DistanciaKm      float64 `json:"distancia_km"`
	Platform         string  `json:"platform"`
}

// Delays 延误超过 threshold 分钟的订单，按延误降序，最多 limit 条
func (s *Service) Delays(p Params) (Dados[Delay], error) {
	out := Dados[Delay]{Dados: []Delay{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if !HasAll(cur, etaPair...) {
		return out, nil
	}

	late := cur.Where(func(i int) bool { return delayMinutes(cur, i) > p.Threshold })
	for i := 0; i < late.Len(); i++ {
		row := Delay{
			EtaMinutos:       utils.Finite(late.Float(dataset.ColETAMinutes, i)),
			TempoRealMinutos: utils.Finite(late.Float(dataset.ColDeliveryMinutes, i)),
			AtrasoMinutos:    utils.Finite(delayMinutes(late, i)),
			DistanciaKm:      utils.Finite(late.Float(dataset.ColDistance, i)),
		}
		if ts, ok := late.Time(i); ok {
			row.Data = ts.Format("2006-01-02T15:04:05")
		}
		row.NomeCliente, _ = late.String(dataset.ColCustomerName, i)
		row.Platform, _ = late.String(dataset.ColPlatform, i)
		out.Dados = append(out.Dados, row)
	}

	sort.SliceStable(out.Dados, func(i, j int) bool {
		return out.Dados[i].AtrasoMinutos > out.Dados[j].AtrasoMinutos
	})
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out.Dados) > limit {
		out.Dados = out.Dados[:limit]
	}
	return out, nil
}

// HourAccuracy 单个小时的 ETA 准确率
type HourAccuracy struct {
	Hora         int     `json:"hora"`
	PrecisaoPct  float64 `json:"precisao_pct"`
	TotalPedidos int     `json:"total_pedidos"`
}

// ETAAccuracyByHour 只统计 ETA 和实际时长都存在的订单，没有这类订单的小时不输出
func (s *Service) ETAAccuracyByHour(p Params) (Dados[HourAccuracy], error) {
	out := Dados[HourAccuracy]{Dados: []HourAccuracy{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	for _, g := range Aggregate(cur, Query{Dimension: Hour, Metric: etaAccuracy}) {
		if g.Valid == 0 {
			continue
		}
		out.Dados = append(out.Dados, HourAccuracy{
			Hora:         int(g.Sort),
			PrecisaoPct:  utils.Round(g.Value, 2),
			TotalPedidos: g.Valid,
		})
	}
	return out, nil
}

// ModeTimes 单个订单方式的平均时长
type ModeTimes struct {
	Modo              string  `json:"modo"`
	TempoPreparoMedio float64 `json:"tempo_preparo_medio"`
	TempoEntregaMedio float64 `json:"tempo_entrega_medio"`
	Quantidade        int     `json:"quantidade"`
}

// TimesByOrderMode 按订单数降序
func (s *Service) TimesByOrderMode(p Params) (Dados[ModeTimes], error) {
	out := Dados[ModeTimes]{Dados: []ModeTimes{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	prep := meanBy(cur, OrderMode, dataset.ColPrepMinutes)
	delivery := meanBy(cur, OrderMode, dataset.ColDeliveryMinutes)
	for _, g := range countBy(cur, OrderMode) {
		out.Dados = append(out.Dados, ModeTimes{
			Modo:              g.Key,
			TempoPreparoMedio: prep[g.Key].Value,
			TempoEntregaMedio: delivery[g.Key].Value,
			Quantidade:        g.Count,
		})
	}
	return out, nil
}
