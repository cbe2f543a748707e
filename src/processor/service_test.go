package processor

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"DeliveryDashboard/src/config"
	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
)

const ordersCSV = `order_datetime,status,bairro_destino,platform,platform_commission_pct,total_brl,distance_km,tempo_preparo_minutos,actual_delivery_minutes,eta_minutes_quote,satisfacao_nivel,order_mode,classe_pedido,nome_cliente
2024-05-06 12:00:00,delivered,Centro,iFood,0.2,100,1,10,30,25,5,delivery,Combo,Ana
2024-05-06 13:00:00,delivered,Centro,iFood,0.2,10,10,20,40,20,4,delivery,Combo,Bia
2024-05-07 19:00:00,delivered,Centro,Site Próprio,NA,50,2,15,20,30,3,retirada,Prato,Caio
2024-05-08 20:00:00,delivered,Moema,Rappi,0.25,40,4,NA,NA,30,NA,delivery,Familia,Duda
2024-05-09 21:00:00,cancelled,Moema,Rappi,0.25,60,5,12,50,30,1,Delivery,Familia,Edu
2024-04-10 12:00:00,delivered,Centro,iFood,0.2,80,3,10,30,30,5,delivery,Combo,Fabi
`

type fakeSource struct {
	d   dataset.Dataset
	err error
}

func (f fakeSource) Get() (dataset.Dataset, error) { return f.d, f.err }

func newTestService(t *testing.T, text string) *Service {
	t.Helper()
	_, rules := config.Default()
	s := NewService(fakeSource{d: mustRead(t, text)}, rules, time.UTC)
	s.SetClock(func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) })
	return s
}

var may = Params{Inicio: "2024-05-01", Fim: "2024-05-31", Threshold: DefaultThreshold}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestHomeKPIs(t *testing.T) {
	s := newTestService(t, ordersCSV)
	k, err := s.HomeKPIs(may)
	if err != nil {
		t.Fatal(err)
	}
	if k.ReceitaTotal != 260 || k.PedidosTotais != 5 {
		t.Errorf("totals = %+v", k)
	}
	if !near(k.ReceitaVariacaoPct, 225) || !near(k.PedidosVariacaoPct, 400) || !near(k.TicketMedioVariacaoPct, -35) {
		t.Errorf("variations = %+v", k)
	}
	if !near(k.SatisfacaoMedia, 3.25) || !near(k.SatisfacaoTaxaAlta, 0.5) {
		t.Errorf("satisfaction = %v / %v", k.SatisfacaoMedia, k.SatisfacaoTaxaAlta)
	}
	if k.Periodo.Inicio != "2024-05-01" || k.Periodo.Fim != "2024-05-31" {
		t.Errorf("periodo = %+v", k.Periodo)
	}
}

func TestDateBounds(t *testing.T) {
	s := newTestService(t, ordersCSV)
	b, err := s.DateBounds()
	if err != nil {
		t.Fatal(err)
	}
	if b.Min == nil || *b.Min != "2024-04-10" || b.Max == nil || *b.Max != "2024-05-09" {
		t.Errorf("bounds = %s", toJSON(t, b))
	}

	empty := newTestService(t, "total_brl\n1\n")
	b, _ = empty.DateBounds()
	if got := toJSON(t, b); got != `{"min":null,"max":null}` {
		t.Errorf("bounds without time column = %s", got)
	}
}

func TestMonthlySummary(t *testing.T) {
	s := newTestService(t, ordersCSV)
	sum, err := s.MonthlySummary(Params{Mes: "2024-05"})
	if err != nil {
		t.Fatal(err)
	}
	if *sum.MelhorDiaSemana != "Segunda" || *sum.HorarioPico != "12:00-13:00" {
		t.Errorf("summary = %s", toJSON(t, sum))
	}
	if *sum.BairroTopPedidos != "Centro" || *sum.BairroTopReceita != "Centro" || sum.Mes != "2024-05" {
		t.Errorf("summary = %s", toJSON(t, sum))
	}

	if _, err := s.MonthlySummary(Params{Mes: "maio"}); !errors.Is(err, period.ErrInvalidDate) {
		t.Errorf("bad mes error = %v", err)
	}
}

func TestNeighborhoodRankingsSuppression(t *testing.T) {
	s := newTestService(t, ordersCSV)

	volume, err := s.RankNeighborhoods("volume-por-bairro", may)
	if err != nil {
		t.Fatal(err)
	}
	if got := toJSON(t, volume); got != `{"dados":[{"bairro":"Centro","volume":3},{"bairro":"Moema","volume":1}]}` {
		t.Errorf("volume = %s", got)
	}

	ticket, _ := s.RankNeighborhoods("ticket-medio-por-bairro", may)
	if len(ticket.Dados) != 1 || ticket.Dados[0].Bairro != "Centro" || !near(ticket.Dados[0].Value, 160.0/3) {
		t.Errorf("ticket = %+v", ticket.Dados)
	}

	eff, _ := s.RankNeighborhoods("eficiencia-por-bairro", may)
	if len(eff.Dados) != 1 || !near(eff.Dados[0].Value, 160.0/13) {
		t.Errorf("efficiency = %+v", eff.Dados)
	}

	oneDay := Params{Inicio: "2024-05-08", Fim: "2024-05-08"}
	ticket, _ = s.RankNeighborhoods("ticket-medio-por-bairro", oneDay)
	if len(ticket.Dados) != 1 || ticket.Dados[0].Bairro != "Moema" || ticket.Dados[0].Value != 40 {
		t.Errorf("one day window should accept single orders, got %+v", ticket.Dados)
	}

	if _, err := s.RankNeighborhoods("nao-existe", may); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("unknown ranking error = %v", err)
	}
}

func TestByDistance(t *testing.T) {
	s := newTestService(t, ordersCSV)
	res, err := s.ByDistance("pedidos-por-distancia", may)
	if err != nil {
		t.Fatal(err)
	}
	var bands []string
	for _, b := range res.Dados {
		bands = append(bands, b.Faixa)
	}
	if strings.Join(bands, ",") != "1.00-1.33 km,2.00-2.33 km,4.00-4.33 km,10.00-10.33 km" {
		t.Errorf("bands = %v", bands)
	}
	if got := toJSON(t, res.Dados[0]); got != `{"faixa":"1.00-1.33 km","pedidos":1}` {
		t.Errorf("first band = %s", got)
	}
}

func TestPlatformsInNeighborhood(t *testing.T) {
	s := newTestService(t, ordersCSV)
	p := may
	p.Bairro = "Centro"
	res, err := s.PlatformsInNeighborhood(p)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 3 || len(res.Dados) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Dados[0].Plataforma != "iFood" || res.Dados[0].Percentual != 66.67 || res.Dados[1].Percentual != 33.33 {
		t.Errorf("dados = %+v", res.Dados)
	}

	if _, err := s.PlatformsInNeighborhood(may); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("missing bairro error = %v", err)
	}
}

func TestPlatformVolumeByHour(t *testing.T) {
	s := newTestService(t, ordersCSV)
	res, err := s.PlatformVolumeByHour(may)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Dados) != 24 {
		t.Fatalf("rows = %d", len(res.Dados))
	}
	noon := res.Dados[12]
	if noon["hora"] != 12 || noon["ifood"] != 1 || noon["rappi"] != 0 || noon["whatsapp"] != 0 {
		t.Errorf("12h = %v", noon)
	}
	if res.Dados[19]["site_proprio"] != 1 {
		t.Errorf("19h = %v", res.Dados[19])
	}
}

func TestPlatformRevenueOverTime(t *testing.T) {
	s := newTestService(t, ordersCSV)
	res, err := s.PlatformRevenueOverTime(may)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Dados) != 4 || res.Metric != "receita" || res.Granularidade != Day {
		t.Fatalf("series = %s", toJSON(t, res))
	}
	if res.Dados[0]["periodo"] != "2024-05-06" || res.Dados[0]["ifood"] != 110.0 {
		t.Errorf("first day = %v", res.Dados[0])
	}

	p := may
	p.Metric = "pedidos"
	res, _ = s.PlatformRevenueOverTime(p)
	if res.Dados[0]["ifood"] != 2 {
		t.Errorf("orders mode = %v", res.Dados[0])
	}
}

func TestPlatformSatisfactionAndModes(t *testing.T) {
	s := newTestService(t, ordersCSV)
	sat, err := s.PlatformSatisfaction(may)
	if err != nil {
		t.Fatal(err)
	}
	if len(sat.Plataformas) != 3 || sat.Plataformas[0].Plataforma != "iFood" || sat.Plataformas[0].SatisfacaoMedia != 4.5 {
		t.Fatalf("satisfaction = %s", toJSON(t, sat))
	}
	if d := sat.Plataformas[0].Distribuicao; d.Nivel4 != 1 || d.Nivel5 != 1 {
		t.Errorf("distribution = %+v", d)
	}

	modes, _ := s.PlatformOrderModes(may)
	for _, m := range modes.Plataformas {
		if m.Plataforma == "Rappi" && (m.Delivery != 2 || m.Total != 2) {
			t.Errorf("rappi modes = %+v", m)
		}
	}
}

func TestOperationalKPIs(t *testing.T) {
	s := newTestService(t, ordersCSV)
	k, err := s.OperationalKPIs(may)
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"tempo_preparo_medio", k.TempoPreparoMedio, 14.25},
		{"tempo_entrega_medio", k.TempoEntregaMedio, 35},
		{"precisao_eta_pct", k.PrecisaoEtaPct, 25},
		{"taxa_atraso_pct", k.TaxaAtrasoPct, 50},
		{"eficiencia_media", k.EficienciaMedia, (1.0/30 + 0.25 + 0.1 + 0.1) / 4},
		{"desempenho_eta", k.DesempenhoEta, (20 + 100 - 100.0/3 + 200.0/3) / 4},
		{"tempo_entrega_p90", k.TempoEntregaP90, 47},
	}
	for _, c := range checks {
		if !near(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDelays(t *testing.T) {
	s := newTestService(t, ordersCSV)
	res, err := s.Delays(may)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Dados) != 2 {
		t.Fatalf("delays = %s", toJSON(t, res))
	}
	first := res.Dados[0]
	if first.NomeCliente != "Bia" || first.Data != "2024-05-06T13:00:00" || first.AtrasoMinutos != 20 || first.Platform != "iFood" {
		t.Errorf("first delay = %+v", first)
	}

	p := may
	p.Limit = 1
	if res, _ = s.Delays(p); len(res.Dados) != 1 {
		t.Errorf("limit ignored: %d rows", len(res.Dados))
	}
}

func TestETAAccuracyByHourAndDistribution(t *testing.T) {
	s := newTestService(t, ordersCSV)
	acc, err := s.ETAAccuracyByHour(may)
	if err != nil {
		t.Fatal(err)
	}
	if len(acc.Dados) != 4 || acc.Dados[0].Hora != 12 || acc.Dados[0].PrecisaoPct != 0 {
		t.Errorf("accuracy = %s", toJSON(t, acc))
	}
	if acc.Dados[2].Hora != 19 || acc.Dados[2].PrecisaoPct != 100 {
		t.Errorf("19h accuracy = %+v", acc.Dados[2])
	}

	dist, _ := s.TimeDistribution(Params{Inicio: may.Inicio, Fim: may.Fim, Tipo: "entrega"})
	if got := toJSON(t, dist); got != `{"faixas":[{"faixa":"20-30 min","quantidade":1},{"faixa":"30-45 min","quantidade":2},{"faixa":"45+ min","quantidade":1},{"faixa":"Sem dados","quantidade":1}]}` {
		t.Errorf("distribution = %s", got)
	}
}

func TestProfitability(t *testing.T) {
	s := newTestService(t, ordersCSV)
	k, err := s.ProfitKPIs(may)
	if err != nil {
		t.Fatal(err)
	}
	if k.ReceitaBrutaTotal != 260 || !near(k.ComissoesTotais, 47) || !near(k.ReceitaLiquida, 213) {
		t.Errorf("kpis = %+v", k)
	}

	w, _ := s.Waterfall(may)
	if !near(w["menos_comissao_ifood"].(float64), -22) || !near(w["menos_comissao_rappi"].(float64), -25) {
		t.Errorf("waterfall = %v", w)
	}
	if !near(w["receita_liquida_final"].(float64), 213) {
		t.Errorf("waterfall net = %v", w["receita_liquida_final"])
	}

	margins, _ := s.MarginsByPlatform(may)
	last := margins.Plataformas[len(margins.Plataformas)-1]
	if last.Plataforma != "Site Próprio" || last.MargemPct != 100 {
		t.Errorf("own channel margin = %+v", last)
	}

	roi, _ := s.ROIByPlatform(may)
	if roi.Plataformas[0].Plataforma != "Site Próprio" || roi.Plataformas[0].RoiPct != 999.99 {
		t.Errorf("roi = %s", toJSON(t, roi))
	}
	if !near(roi.Plataformas[1].RoiPct, 300) {
		t.Errorf("ifood roi = %+v", roi.Plataformas[1])
	}

	p := may
	p.PctOwn = 150
	sim, _ := s.Simulate(p)
	if !near(sim.EconomiaComissoes, 47) || !near(sim.ReceitaLiquidaSimulada, 260) {
		t.Errorf("simulation = %+v", sim)
	}

	cmp, _ := s.ChannelsVersusMarketplace(may)
	if cmp.CanaisProprios.ReceitaBruta != 50 || cmp.CanaisProprios.MargemPct != 100 || cmp.Marketplaces.ReceitaBruta != 210 {
		t.Errorf("channels = %+v", cmp)
	}
}

func TestTemporal(t *testing.T) {
	s := newTestService(t, ordersCSV)
	periods, err := s.OrdersByDayPeriod(may)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"data":[{"periodo":"Madrugada","quantidade":0},{"periodo":"Manhã","quantidade":0},{"periodo":"Tarde","quantidade":2},{"periodo":"Noite","quantidade":3}]}`
	if got := toJSON(t, periods); got != want {
		t.Errorf("periodo-dia = %s", got)
	}

	season, _ := s.WeeklySeasonality(may)
	if len(season.Data) != 7 || season.Data[0].Valor != 2 || season.Data[6].Valor != 0 {
		t.Errorf("seasonality = %+v", season.Data)
	}

	trends, _ := s.DailyTrends(may)
	if trends.Data[0].TotalPedidos != 2 || trends.Data[0].MediaPedidos != 2 {
		t.Errorf("daily trends = %+v", trends.Data[0])
	}
}

func TestTrendComparisons(t *testing.T) {
	s := newTestService(t, ordersCSV)
	res, err := s.TrendComparisons(may)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data) != 0 || res.Granularidade != Week {
		t.Errorf("a single bucket should give no comparison, got %+v", res)
	}

	res, _ = s.TrendComparisons(Params{Inicio: "2024-04-01", Fim: "2024-05-31"})
	if len(res.Data) != 1 {
		t.Fatalf("comparisons = %+v", res.Data)
	}
	got := res.Data[0]
	if got.Periodo != "2024-05-06" || got.VariacaoPedidosPct != 400 || got.VariacaoReceitaPct != 225 {
		t.Errorf("comparison = %+v", got)
	}

	if _, err := s.TrendComparisons(Params{Granularity: "dia"}); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("dia should be rejected, got %v", err)
	}

	// 金额缺失的订单不计入订单数
	missing := newTestService(t, `order_datetime,total_brl
2024-04-29 12:00:00,10
2024-04-30 12:00:00,10
2024-05-06 12:00:00,30
2024-05-07 12:00:00,NA
`)
	res, _ = missing.TrendComparisons(Params{Inicio: "2024-04-29", Fim: "2024-05-12"})
	if len(res.Data) != 1 || res.Data[0].Pedidos != 1 || res.Data[0].VariacaoPedidosPct != -50 || res.Data[0].Receita != 30 {
		t.Errorf("orders should count non-null totals: %+v", res.Data)
	}

	countOnly := newTestService(t, "order_datetime\n2024-04-29 12:00:00\n2024-05-06 12:00:00\n2024-05-07 12:00:00\n")
	res, _ = countOnly.TrendComparisons(Params{Inicio: "2024-04-29", Fim: "2024-05-12"})
	if len(res.Data) != 1 || res.Data[0].Pedidos != 2 || res.Data[0].Receita != 0 || res.Data[0].VariacaoPedidosPct != 100 {
		t.Errorf("without totals every row counts: %+v", res.Data)
	}
}

func TestForecastVersusActual(t *testing.T) {
	history := mondays(time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC), 4, 100)
	history += "2024-04-29 11:00:00,10\n2024-04-29 12:00:00,10\n2024-04-29 13:00:00,10\n"
	s := newTestService(t, history)

	res, err := s.ForecastVersusActual(Params{Inicio: "2024-04-29", Fim: "2024-04-29"})
	if err != nil {
		t.Fatal(err)
	}
	if got := toJSON(t, res); got != `{"data":[{"periodo":"2024-04-29","pedidos_real":3,"pedidos_previsto":100}]}` {
		t.Errorf("forecast = %s", got)
	}

	res, _ = s.ForecastVersusActual(Params{Inicio: "2024-04-29", Fim: "2024-04-30"})
	if len(res.Data) != 2 || res.Data[1].PedidosReal != 0 || res.Data[1].PedidosPrevisto != 100 {
		t.Errorf("days without orders must still be listed: %+v", res.Data)
	}
}

func TestEmptyWindowShapes(t *testing.T) {
	s := newTestService(t, ordersCSV)
	p := Params{Inicio: "2030-01-01", Fim: "2030-01-31", Bairro: "Centro"}

	shapes := []struct {
		name string
		call func() (any, error)
		want string
	}{
		{"volume-por-bairro", func() (any, error) { return s.RankNeighborhoods("volume-por-bairro", p) }, `{"dados":[]}`},
		{"pedidos-por-distancia", func() (any, error) { return s.ByDistance("pedidos-por-distancia", p) }, `{"dados":[]}`},
		{"plataformas-por-bairro", func() (any, error) { return s.PlatformsInNeighborhood(p) }, `{"dados":[],"bairro":"Centro","total":0}`},
		{"plataformas", func() (any, error) { return s.PlatformShares(p) }, `{"metric":"pedidos","plataformas":[]}`},
		{"volume-dia-semana", func() (any, error) { return s.PlatformVolumeByWeekday(p) }, `{"dados":[]}`},
		{"eta-vs-real", func() (any, error) { return s.ETAVersusActual(p) }, `{"dados":[]}`},
		{"atrasos", func() (any, error) { return s.Delays(p) }, `{"dados":[]}`},
		{"tempos-por-modo", func() (any, error) { return s.TimesByOrderMode(p) }, `{"dados":[]}`},
		{"rentabilidade-por-tipo", func() (any, error) { return s.ProfitByOrderClass(p) }, `{"tipos":[]}`},
		{"roi-por-plataforma", func() (any, error) { return s.ROIByPlatform(p) }, `{"plataformas":[]}`},
		{"heatmap-horario", func() (any, error) { return s.HourlyHeatmap(p) }, `{"data":[]}`},
		{"comparacao-tendencias", func() (any, error) { return s.TrendComparisons(p) }, `{"data":[],"granularidade":"semana"}`},
		{"previsto-vs-real", func() (any, error) { return s.ForecastVersusActual(p) }, `{"data":[]}`},
		{"receita-tempo", func() (any, error) { return s.RevenueOverTime(p) }, `{"granularidade":"dia","dados":[]}`},
	}
	for _, c := range shapes {
		v, err := c.call()
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if got := toJSON(t, v); got != c.want {
			t.Errorf("%s = %s, want %s", c.name, got, c.want)
		}
	}

	hours, _ := s.PlatformVolumeByHour(p)
	if len(hours.Dados) != 24 || hours.Dados[0]["ifood"] != 0 {
		t.Errorf("volume-hora must keep 24 zero rows, got %v", hours.Dados)
	}
	k, _ := s.OperationalKPIs(p)
	if k != (OperationalKPIs{}) {
		t.Errorf("operational kpis = %+v", k)
	}
}

func TestInfiniteValuesAreMissing(t *testing.T) {
	s := newTestService(t, `order_datetime,status,platform,total_brl,distance_km,actual_delivery_minutes,eta_minutes_quote,nome_cliente
2024-05-06 12:00:00,delivered,iFood,50,2,45,30,Ana
2024-05-06 13:00:00,delivered,iFood,30,inf,inf,30,Bia
`)

	k, err := s.OperationalKPIs(may)
	if err != nil {
		t.Fatal(err)
	}
	if k.TempoEntregaMedio != 45 || k.TempoEntregaP90 != 45 {
		t.Errorf("inf row should be left out, got mean %v p90 %v", k.TempoEntregaMedio, k.TempoEntregaP90)
	}
	toJSON(t, k)

	delays, err := s.Delays(may)
	if err != nil {
		t.Fatal(err)
	}
	if len(delays.Dados) != 1 || delays.Dados[0].AtrasoMinutos != 15 {
		t.Errorf("delays = %+v", delays.Dados)
	}
	toJSON(t, delays)

	dist, err := s.DeliveryTimeByDistance(may)
	if err != nil {
		t.Fatal(err)
	}
	toJSON(t, dist)

	times, err := s.TimeDistribution(may)
	if err != nil {
		t.Fatal(err)
	}
	toJSON(t, times)
}

func TestMissingColumnsDegrade(t *testing.T) {
	s := newTestService(t, "order_datetime,total_brl\n2024-05-06 12:00:00,10\n")
	rank, err := s.RankNeighborhoods("receita-por-bairro", may)
	if err != nil || len(rank.Dados) != 0 {
		t.Errorf("ranking without neighborhood = %+v %v", rank, err)
	}
	sat, err := s.PlatformSatisfaction(may)
	if err != nil || len(sat.Plataformas) != 0 {
		t.Errorf("satisfaction without columns = %+v %v", sat, err)
	}
	k, _ := s.ProfitKPIs(may)
	if k.ReceitaBrutaTotal != 10 || k.ComissoesTotais != 0 || k.MargemLiquidaPct != 100 {
		t.Errorf("profit without commission column = %+v", k)
	}
}

func TestErrors(t *testing.T) {
	s := newTestService(t, ordersCSV)
	if _, err := s.HomeKPIs(Params{Inicio: "01/05/2024"}); !errors.Is(err, period.ErrInvalidDate) {
		t.Errorf("invalid date error = %v", err)
	}
	if _, err := s.RevenueOverTime(Params{Granularity: "ano"}); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("invalid granularity error = %v", err)
	}

	_, rules := config.Default()
	missing := NewService(fakeSource{err: dataset.ErrNotFound}, rules, time.UTC)
	if _, err := missing.OperationalKPIs(Params{}); !errors.Is(err, dataset.ErrNotFound) {
		t.Errorf("missing source error = %v", err)
	}
}
