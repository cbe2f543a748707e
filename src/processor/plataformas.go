// plataformas.go
package processor

import (
	"sort"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/utils"
)

// Record 以平台 slug 为键的宽表记录
type Record map[string]any

// PlatformSeries 每个时间桶一条记录，每个平台一个键
type PlatformSeries struct {
	Granularidade Granularity `json:"granularidade"`
	Metric        string      `json:"metric"`
	Dados         []Record    `json:"dados"`
}

// PlatformRevenueOverTime metric=receita 时为收入，metric=pedidos 或没有金额列时为订单数
func (s *Service) PlatformRevenueOverTime(p Params) (PlatformSeries, error) {
	g, err := ParseGranularity(p.Granularity, Day)
	if err != nil {
		return PlatformSeries{}, err
	}
	metric, err := parseChoice("metric", p.Metric, "receita", "receita", "pedidos")
	if err != nil {
		return PlatformSeries{}, err
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return PlatformSeries{}, err
	}

	out := PlatformSeries{Granularidade: g, Metric: metric, Dados: []Record{}}
	if !cur.Has(dataset.ColPlatform) {
		return out, nil
	}

	m := Metric{Kind: Count}
	if metric == "receita" && cur.Has(dataset.ColTotal) {
		m = revenue
	}
	bucket := TimeBucket(g)
	cells := make(map[string]Record)
	for _, c := range Aggregate(cur, Query{Dimension: Cross(bucket, Platform), Metric: m}) {
		row, ok := cells[c.Parts[0]]
		if !ok {
			row = Record{}
			cells[c.Parts[0]] = row
		}
		row[utils.Slug(c.Parts[1])] = cellValue(m, c)
	}

	for _, b := range FillBuckets(countBy(cur, bucket), g) {
		row := Record{"periodo": b.Key}
		for k, v := range cells[b.Key] {
			row[k] = v
		}
		out.Dados = append(out.Dados, row)
	}
	return out, nil
}

// cellValue 计数输出整数，其余输出浮点数
func cellValue(m Metric, g Group) any {
	if m.Kind == Count {
		return g.Count
	}
	return g.Value
}

// PlatformTimes 单个平台的平均时长
type PlatformTimes struct {
	Plataforma        string  `json:"plataforma"`
	TempoPreparoMedio float64 `json:"tempo_preparo_medio"`
	TempoEntregaMedio float64 `json:"tempo_entrega_medio"`
	EtaMedio          float64 `json:"eta_medio"`
}

// PlatformTimesList 平台时长列表
type PlatformTimesList struct {
	Plataformas []PlatformTimes `json:"plataformas"`
}

// PlatformAverageTimes 按平均配送时长降序；缺少的时长列记为0
func (s *Service) PlatformAverageTimes(p Params) (PlatformTimesList, error) {
	out := PlatformTimesList{Plataformas: []PlatformTimes{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	prep := meanBy(cur, Platform, dataset.ColPrepMinutes)
	delivery := meanBy(cur, Platform, dataset.ColDeliveryMinutes)
	eta := meanBy(cur, Platform, dataset.ColETAMinutes)
	for _, g := range countBy(cur, Platform) {
		out.Plataformas = append(out.Plataformas, PlatformTimes{
			Plataforma:        g.Key,
			TempoPreparoMedio: utils.Round(prep[g.Key].Value, 2),
			TempoEntregaMedio: utils.Round(delivery[g.Key].Value, 2),
			EtaMedio:          utils.Round(eta[g.Key].Value, 2),
		})
	}
	sort.SliceStable(out.Plataformas, func(i, j int) bool {
		return out.Plataformas[i].TempoEntregaMedio > out.Plataformas[j].TempoEntregaMedio
	})
	return out, nil
}

func meanBy(d dataset.Dataset, dim Dimension, col string) map[string]Group {
	return Lookup(Aggregate(d, Query{Dimension: dim, Metric: Metric{Kind: Mean, Column: col}}))
}

// RatingDistribution 1-5 各级评分的数量
type RatingDistribution struct {
	Nivel1 int `json:"nivel_1"`
	Nivel2 int `json:"nivel_2"`
	Nivel3 int `json:"nivel_3"`
	Nivel4 int `json:"nivel_4"`
	Nivel5 int `json:"nivel_5"`
}

func (r *RatingDistribution) add(level float64) {
	switch level {
	case 1:
		r.Nivel1++
	case 2:
		r.Nivel2++
	case 3:
		r.Nivel3++
	case 4:
		r.Nivel4++
	case 5:
		r.Nivel5++
	}
}

// PlatformRating 单个平台的满意度
type PlatformRating struct {
	Plataforma      string             `json:"plataforma"`
	SatisfacaoMedia float64            `json:"satisfacao_media"`
	TotalAvaliacoes int                `json:"total_avaliacoes"`
	Distribuicao    RatingDistribution `json:"distribuicao"`
}

// PlatformRatings 平台满意度列表
type PlatformRatings struct {
	Plataformas []PlatformRating `json:"plataformas"`
}

// PlatformSatisfaction 没有评分的平台不输出，按平均分降序
func (s *Service) PlatformSatisfaction(p Params) (PlatformRatings, error) {
	out := PlatformRatings{Plataformas: []PlatformRating{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if !HasAll(cur, dataset.ColPlatform, dataset.ColSatisfaction) {
		return out, nil
	}

	rated := DropNA(cur, dataset.ColSatisfaction)
	dist := make(map[string]*RatingDistribution)
	for i := 0; i < rated.Len(); i++ {
		name, ok := rated.String(dataset.ColPlatform, i)
		if !ok {
			continue
		}
		if dist[name] == nil {
			dist[name] = &RatingDistribution{}
		}
		dist[name].add(rated.Float(dataset.ColSatisfaction, i))
	}

	for _, g := range Aggregate(rated, Query{Dimension: Platform, Metric: Metric{Kind: Mean, Column: dataset.ColSatisfaction}}) {
		out.Plataformas = append(out.Plataformas, PlatformRating{
			Plataforma:      g.Key,
			SatisfacaoMedia: utils.Round(g.Value, 2),
			TotalAvaliacoes: g.Valid,
			Distribuicao:    *dist[g.Key],
		})
	}
	return out, nil
}

// zeroPlatforms 预置默认平台为0的记录
func (s *Service) zeroPlatforms(row Record) Record {
	for _, name := range s.rules.GetDefaultPlatforms() {
		row[utils.Slug(name)] = 0
	}
	return row
}

// PlatformVolumeByHour 固定 24 行；默认平台即使没有订单也输出0
func (s *Service) PlatformVolumeByHour(p Params) (Dados[Record], error) {
	out := Dados[Record]{Dados: []Record{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}

	rows := make([]Record, 24)
	for h := range rows {
		rows[h] = s.zeroPlatforms(Record{"hora": h})
	}
	if cur.Has(dataset.ColPlatform) {
		for _, c := range countBy(cur, Cross(Hour, Platform)) {
			rows[c.Sort/1000][utils.Slug(c.Parts[1])] = c.Count
		}
	}
	out.Dados = rows
	return out, nil
}

// PlatformVolumeByWeekday 周一到周日 7 行；没有数据时为空列表
func (s *Service) PlatformVolumeByWeekday(p Params) (Dados[Record], error) {
	out := Dados[Record]{Dados: []Record{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if cur.Len() == 0 || !cur.Has(dataset.ColPlatform) {
		return out, nil
	}

	rows := make([]Record, len(Weekdays))
	for i, name := range Weekdays {
		rows[i] = s.zeroPlatforms(Record{"dia": name, "dia_ordem": i})
	}
	for _, c := range countBy(cur, Cross(Weekday, Platform)) {
		rows[c.Sort/1000][utils.Slug(c.Parts[1])] = c.Count
	}
	out.Dados = rows
	return out, nil
}

// PlatformModes 单个平台的配送 / 自取订单数
type PlatformModes struct {
	Plataforma string `json:"plataforma"`
	Delivery   int    `json:"delivery"`
	Retirada   int    `json:"retirada"`
	Total      int    `json:"total"`
}

// PlatformModesList 平台订单方式列表
type PlatformModesList struct {
	Plataformas []PlatformModes `json:"plataformas"`
}

// PlatformOrderModes order_mode 忽略大小写，只统计 delivery 和 retirada，按合计降序
func (s *Service) PlatformOrderModes(p Params) (PlatformModesList, error) {
	out := PlatformModesList{Plataformas: []PlatformModes{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if !HasAll(cur, dataset.ColPlatform, dataset.ColOrderMode) {
		return out, nil
	}

	modes := Dimension{
		Name: "order_mode_folded",
		Key: func(d dataset.Dataset, i int) (Key, bool) {
			mode, ok := d.String(dataset.ColOrderMode, i)
			if !ok {
				return Key{}, false
			}
			return Key{Label: utils.Fold(mode)}, true
		},
	}
	counts := Lookup(countBy(cur, Cross(Platform, modes)))
	for _, g := range countBy(cur, Platform) {
		m := PlatformModes{
			Plataforma: g.Key,
			Delivery:   counts[g.Key+"|delivery"].Count,
			Retirada:   counts[g.Key+"|retirada"].Count,
		}
		m.Total = m.Delivery + m.Retirada
		out.Plataformas = append(out.Plataformas, m)
	}
	sort.SliceStable(out.Plataformas, func(i, j int) bool {
		return out.Plataformas[i].Total > out.Plataformas[j].Total
	})
	return out, nil
}
