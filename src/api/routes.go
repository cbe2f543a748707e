// routes.go
package api

import (
	"DeliveryDashboard/src/processor"
)

type metricFunc func(p processor.Params) (any, error)

// endpoint 把具体返回类型的计算函数转成 metricFunc
func endpoint[T any](f func(processor.Params) (T, error)) metricFunc {
	return func(p processor.Params) (any, error) { return f(p) }
}

type route struct {
	path     string
	call     metricFunc
	required []string
}

// metricRoutes 前缀 -> 指标路由
func (s *Server) metricRoutes() map[string][]route {
	svc := s.svc

	geografica := []route{
		{path: "/pedidos-por-distancia", call: byDistance(svc, "pedidos-por-distancia")},
		{path: "/satisfacao-por-distancia", call: byDistance(svc, "satisfacao-por-distancia")},
		{path: "/valor-por-distancia", call: byDistance(svc, "valor-por-distancia")},
		{path: "/lista-bairros", call: endpoint(svc.ListNeighborhoods)},
		{path: "/plataformas-por-bairro", call: endpoint(svc.PlatformsInNeighborhood), required: []string{"bairro"}},
	}
	for _, name := range processor.NeighborhoodRankings() {
		geografica = append(geografica, route{path: "/" + name, call: ranking(svc, name)})
	}

	return map[string][]route{
		"/api/home": {
			{path: "/kpis", call: endpoint(svc.HomeKPIs)},
			{path: "/date-bounds", call: func(processor.Params) (any, error) { return svc.DateBounds() }},
			{path: "/receita-tempo", call: endpoint(svc.RevenueOverTime)},
			{path: "/plataformas", call: endpoint(svc.PlatformShares)},
			{path: "/resumo-mensal", call: endpoint(svc.MonthlySummary)},
			{path: "/resumo-periodo", call: endpoint(svc.PeriodSummary)},
		},
		"/api/geografica": geografica,
		"/api/plataformas": {
			{path: "/receita-tempo", call: endpoint(svc.PlatformRevenueOverTime)},
			{path: "/tempos-medios", call: endpoint(svc.PlatformAverageTimes)},
			{path: "/satisfacao", call: endpoint(svc.PlatformSatisfaction)},
			{path: "/volume-hora", call: endpoint(svc.PlatformVolumeByHour)},
			{path: "/volume-dia-semana", call: endpoint(svc.PlatformVolumeByWeekday)},
			{path: "/modos-pedido", call: endpoint(svc.PlatformOrderModes)},
		},
		"/api/operacional": {
			{path: "/kpis", call: endpoint(svc.OperationalKPIs)},
			{path: "/tempo-preparo-tempo", call: endpoint(svc.PrepTimeOverTime)},
			{path: "/tempo-entrega-distancia", call: endpoint(svc.DeliveryTimeByDistance)},
			{path: "/eta-vs-real", call: endpoint(svc.ETAVersusActual)},
			{path: "/distribuicao-tempos", call: endpoint(svc.TimeDistribution)},
			{path: "/atrasos", call: endpoint(svc.Delays)},
			{path: "/precisao-eta-hora", call: endpoint(svc.ETAAccuracyByHour)},
			{path: "/tempos-por-modo", call: endpoint(svc.TimesByOrderMode)},
		},
		"/api/rentabilidade": {
			{path: "/kpis", call: endpoint(svc.ProfitKPIs)},
			{path: "/waterfall", call: endpoint(svc.Waterfall)},
			{path: "/margens-por-plataforma", call: endpoint(svc.MarginsByPlatform)},
			{path: "/canais-vs-marketplace", call: endpoint(svc.ChannelsVersusMarketplace)},
			{path: "/simulacao", call: endpoint(svc.Simulate), required: []string{"pct_canal_proprio"}},
			{path: "/rentabilidade-por-tipo", call: endpoint(svc.ProfitByOrderClass)},
			{path: "/evolucao-temporal", call: endpoint(svc.ProfitOverTime)},
			{path: "/roi-por-plataforma", call: endpoint(svc.ROIByPlatform)},
		},
		"/api/temporal": {
			{path: "/periodo-dia", call: endpoint(svc.OrdersByDayPeriod)},
			{path: "/tipo-dia", call: endpoint(svc.OrdersByDayType)},
			{path: "/heatmap-horario", call: endpoint(svc.HourlyHeatmap)},
			{path: "/evolucao-pedidos", call: endpoint(svc.OrdersOverTime)},
			{path: "/horario-pico", call: endpoint(svc.PeakHours)},
			{path: "/sazonalidade-semanal", call: endpoint(svc.WeeklySeasonality)},
			{path: "/comparacao-tendencias", call: endpoint(svc.TrendComparisons)},
			{path: "/tendencias-diarias", call: endpoint(svc.DailyTrends)},
			{path: "/previsto-vs-real", call: endpoint(svc.ForecastVersusActual)},
		},
	}
}

func ranking(svc *processor.Service, name string) metricFunc {
	return func(p processor.Params) (any, error) { return svc.RankNeighborhoods(name, p) }
}

func byDistance(svc *processor.Service, name string) metricFunc {
	return func(p processor.Params) (any, error) { return svc.ByDistance(name, p) }
}
