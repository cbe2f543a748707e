// geografica.go
package processor

import (
	"strings"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
	"DeliveryDashboard/src/utils"
)

// NeighborhoodValue 街区排行的一行；JSON 字段名随指标变化
type NeighborhoodValue struct {
	Bairro string
	Field  string
	Value  float64
}

// MarshalJSON {"bairro": ..., "<field>": value}
func (v NeighborhoodValue) MarshalJSON() ([]byte, error) {
	return marshalPair("bairro", v.Bairro, v.Field, v.Value)
}

// BandValue 距离分档的一行
type BandValue struct {
	Faixa string
	Field string
	Value float64
}

// MarshalJSON {"faixa": ..., "<field>": value}
func (v BandValue) MarshalJSON() ([]byte, error) {
	return marshalPair("faixa", v.Faixa, v.Field, v.Value)
}

// neighborhoodRanking 描述一个街区排行：指标、需要去掉缺失值的列、是否做最小样本过滤
type neighborhoodRanking struct {
	field      string
	metric     Metric
	require    []string
	positive   string
	suppressed bool
}

var neighborhoodRankings = map[string]neighborhoodRanking{
	"volume-por-bairro": {
		field:  "volume",
		metric: Metric{Kind: Count},
	},
	"receita-por-bairro": {
		field:   "receita",
		metric:  revenue,
		require: []string{dataset.ColTotal},
	},
	"ticket-medio-por-bairro": {
		field:      "ticket_medio",
		metric:     Metric{Kind: Mean, Column: dataset.ColTotal},
		require:    []string{dataset.ColTotal},
		suppressed: true,
	},
	"satisfacao-por-bairro": {
		field:      "satisfacao",
		metric:     Metric{Kind: Mean, Column: dataset.ColSatisfaction},
		require:    []string{dataset.ColSatisfaction},
		suppressed: true,
	},
	"distancia-media-por-bairro": {
		field:      "distancia_media",
		metric:     Metric{Kind: Mean, Column: dataset.ColDistance},
		require:    []string{dataset.ColDistance},
		suppressed: true,
	},
	"eficiencia-por-bairro": {
		field:      "eficiencia",
		metric:     Metric{Kind: Ratio, Column: dataset.ColTotal, Denominator: dataset.ColDistance},
		require:    []string{dataset.ColTotal, dataset.ColDistance},
		positive:   dataset.ColDistance,
		suppressed: true,
	},
}

// NeighborhoodRankings 支持的街区排行名
func NeighborhoodRankings() []string {
	names := make([]string, 0, len(neighborhoodRankings))
	for name := range neighborhoodRankings {
		names = append(names, name)
	}
	return names
}

// RankNeighborhoods 已完成订单按街区聚合后取前 top_n。
// 均值类排行先去掉缺失值，再按窗口长度做最小样本过滤。
func (s *Service) RankNeighborhoods(name string, p Params) (Dados[NeighborhoodValue], error) {
	out := Dados[NeighborhoodValue]{Dados: []NeighborhoodValue{}}
	r, ok := neighborhoodRankings[name]
	if !ok {
		return out, ErrInvalidParam
	}
	_, w, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if !HasAll(cur, append([]string{dataset.ColNeighborhood}, r.require...)...) {
		return out, nil
	}

	cur = s.completed(cur)
	if r.suppressed {
		cur = DropNA(cur, r.require...)
	}
	if r.positive != "" {
		cur = cur.Where(func(i int) bool { return cur.Float(r.positive, i) > 0 })
	}

	q := Query{Dimension: Neighborhood, Metric: r.metric, TopN: topN(p.TopN)}
	if r.suppressed {
		q.MinSamples = period.MinSampleSize(w)
	}
	for _, g := range Aggregate(cur, q) {
		out.Dados = append(out.Dados, NeighborhoodValue{Bairro: g.Key, Field: r.field, Value: g.Value})
	}
	return out, nil
}

var distanceRankings = map[string]struct {
	field   string
	metric  Metric
	require []string
}{
	"pedidos-por-distancia":    {"pedidos", Metric{Kind: Count}, nil},
	"satisfacao-por-distancia": {"satisfacao", Metric{Kind: Mean, Column: dataset.ColSatisfaction}, []string{dataset.ColSatisfaction}},
	"valor-por-distancia":      {"valor", revenue, []string{dataset.ColTotal}},
}

// ByDistance 已完成订单按 1/3 km 分档聚合，档位升序
func (s *Service) ByDistance(name string, p Params) (Dados[BandValue], error) {
	out := Dados[BandValue]{Dados: []BandValue{}}
	r, ok := distanceRankings[name]
	if !ok {
		return out, ErrInvalidParam
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	cols := append([]string{dataset.ColDistance}, r.require...)
	if !HasAll(cur, cols...) {
		return out, nil
	}
	cur = DropNA(s.completed(cur), cols...)
	for _, g := range Aggregate(cur, Query{Dimension: DistanceBands, Metric: r.metric}) {
		out.Dados = append(out.Dados, BandValue{Faixa: g.Key, Field: r.field, Value: g.Value})
	}
	return out, nil
}

// NeighborhoodTotal 街区列表的一行
type NeighborhoodTotal struct {
	Bairro       string `json:"bairro"`
	TotalPedidos int    `json:"total_pedidos"`
}

// NeighborhoodList 街区列表
type NeighborhoodList struct {
	Bairros []NeighborhoodTotal `json:"bairros"`
}

// ListNeighborhoods 全部街区按已完成订单量降序
func (s *Service) ListNeighborhoods(p Params) (NeighborhoodList, error) {
	out := NeighborhoodList{Bairros: []NeighborhoodTotal{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	for _, g := range countBy(s.completed(cur), Neighborhood) {
		out.Bairros = append(out.Bairros, NeighborhoodTotal{Bairro: g.Key, TotalPedidos: g.Count})
	}
	return out, nil
}

// PlatformCount 某街区内单个平台的订单数
type PlatformCount struct {
	Plataforma string  `json:"plataforma"`
	Pedidos    int     `json:"pedidos"`
	Percentual float64 `json:"percentual"`
}

// NeighborhoodPlatforms 某街区的平台分布
type NeighborhoodPlatforms struct {
	Dados  []PlatformCount `json:"dados"`
	Bairro string          `json:"bairro"`
	Total  int             `json:"total"`
}

// PlatformsInNeighborhood bairro 必填；percentual 为百分比，保留两位小数
func (s *Service) PlatformsInNeighborhood(p Params) (NeighborhoodPlatforms, error) {
	out := NeighborhoodPlatforms{Dados: []PlatformCount{}, Bairro: p.Bairro}
	if strings.TrimSpace(p.Bairro) == "" {
		return out, missingParam("bairro")
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	if !HasAll(cur, dataset.ColNeighborhood, dataset.ColPlatform) {
		return out, nil
	}

	cur = FilterEquals(s.completed(cur), dataset.ColNeighborhood, p.Bairro)
	groups := countBy(cur, Platform)
	for _, g := range groups {
		out.Total += g.Count
	}
	for _, g := range groups {
		out.Dados = append(out.Dados, PlatformCount{
			Plataforma: g.Key,
			Pedidos:    g.Count,
			Percentual: utils.Round(utils.SafeDiv(float64(g.Count), float64(out.Total))*100, 2),
		})
	}
	return out, nil
}
