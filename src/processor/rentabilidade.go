// rentabilidade.go
package processor

import (
	"math"
	"sort"
	"strings"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/utils"
)

// ProfitKPIs 财务指标卡
type ProfitKPIs struct {
	ReceitaBrutaTotal        float64 `json:"receita_bruta_total"`
	ComissoesTotais          float64 `json:"comissoes_totais"`
	ReceitaLiquida           float64 `json:"receita_liquida"`
	MargemLiquidaPct         float64 `json:"margem_liquida_pct"`
	ReceitaLiquidaVsBrutaPct float64 `json:"receita_liquida_vs_bruta_pct"`
}

// ProfitKPIs 毛收入、佣金、净收入和利润率
func (s *Service) ProfitKPIs(p Params) (ProfitKPIs, error) {
	_, _, cur, err := s.scope(p)
	if err != nil {
		return ProfitKPIs{}, err
	}
	m := Commission(cur)
	return ProfitKPIs{
		ReceitaBrutaTotal:        m.Gross,
		ComissoesTotais:          m.Commission,
		ReceitaLiquida:           m.Net,
		MargemLiquidaPct:         m.MarginPct,
		ReceitaLiquidaVsBrutaPct: utils.SafeDiv(m.Net-m.Gross, m.Gross) * 100,
	}, nil
}

// Waterfall 毛收入 -> 各市场平台佣金(负数) -> 净收入
func (s *Service) Waterfall(p Params) (Record, error) {
	_, _, cur, err := s.scope(p)
	if err != nil {
		return nil, err
	}
	gross := Scalar(cur, revenue)
	out := Record{"receita_bruta": gross}

	net := gross
	for _, name := range s.rules.GetMarketplaces() {
		key := "menos_comissao_" + utils.Slug(name)
		needle := utils.Fold(name)
		rows := cur.Where(func(i int) bool {
			platform, ok := cur.String(dataset.ColPlatform, i)
			return ok && needle != "" && strings.Contains(utils.Fold(platform), needle)
		})
		commission := Scalar(rows, commissionValue)
		out[key] = negate(commission)
		net -= commission
	}
	out["receita_liquida_final"] = utils.Finite(net)
	return out, nil
}

// PlatformMargin 单个平台的利润拆分
type PlatformMargin struct {
	Plataforma     string  `json:"plataforma"`
	ReceitaBruta   float64 `json:"receita_bruta"`
	ComissaoPct    float64 `json:"comissao_pct"`
	ComissaoBRL    float64 `json:"comissao_brl"`
	ReceitaLiquida float64 `json:"receita_liquida"`
	MargemPct      float64 `json:"margem_pct"`
}

// PlatformMargins 平台利润列表
type PlatformMargins struct {
	Plataformas []PlatformMargin `json:"plataformas"`
}

// MarginsByPlatform 按毛收入降序；自有渠道利润率固定为100
func (s *Service) MarginsByPlatform(p Params) (PlatformMargins, error) {
	out := PlatformMargins{Plataformas: []PlatformMargin{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	channels := s.channels()
	for name, m := range CommissionBy(cur, Platform) {
		margin := m.MarginPct
		if channels.IsOwn(name) {
			margin = 100
		}
		out.Plataformas = append(out.Plataformas, PlatformMargin{
			Plataforma:     name,
			ReceitaBruta:   m.Gross,
			ComissaoPct:    utils.SafeDiv(m.Commission, m.Gross) * 100,
			ComissaoBRL:    m.Commission,
			ReceitaLiquida: m.Net,
			MargemPct:      margin,
		})
	}
	sort.Slice(out.Plataformas, func(i, j int) bool {
		a, b := out.Plataformas[i], out.Plataformas[j]
		if a.ReceitaBruta != b.ReceitaBruta {
			return a.ReceitaBruta > b.ReceitaBruta
		}
		return a.Plataforma < b.Plataforma
	})
	return out, nil
}

// MarketplaceTotals 市场平台合计
type MarketplaceTotals struct {
	ReceitaBruta   float64 `json:"receita_bruta"`
	ComissaoPct    float64 `json:"comissao_pct"`
	ComissaoBRL    float64 `json:"comissao_brl"`
	ReceitaLiquida float64 `json:"receita_liquida"`
	MargemPct      float64 `json:"margem_pct"`
}

// OwnChannelTotals 自有渠道合计，不产生佣金
type OwnChannelTotals struct {
	ReceitaBruta   float64 `json:"receita_bruta"`
	ComissaoBRL    float64 `json:"comissao_brl"`
	ReceitaLiquida float64 `json:"receita_liquida"`
	MargemPct      float64 `json:"margem_pct"`
}

// ChannelComparison 自有渠道与市场平台对比
type ChannelComparison struct {
	Marketplaces   MarketplaceTotals `json:"marketplaces"`
	CanaisProprios OwnChannelTotals  `json:"canais_proprios"`
}

// splitChannels 按平台名把行分成市场平台和自有渠道；没有平台名的行两边都不计
func (s *Service) splitChannels(d dataset.Dataset) (marketplace, own dataset.Dataset) {
	if !d.Has(dataset.ColPlatform) {
		return d.Empty(), d.Empty()
	}
	channels := s.channels()
	isOwn := func(want bool) func(i int) bool {
		return func(i int) bool {
			name, ok := d.String(dataset.ColPlatform, i)
			return ok && channels.IsOwn(name) == want
		}
	}
	return d.Where(isOwn(false)), d.Where(isOwn(true))
}

// ChannelsVersusMarketplace 自有渠道利润率恒为100
func (s *Service) ChannelsVersusMarketplace(p Params) (ChannelComparison, error) {
	out := ChannelComparison{CanaisProprios: OwnChannelTotals{MargemPct: 100}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	mkt, own := s.splitChannels(cur)
	m := Commission(mkt)
	out.Marketplaces = MarketplaceTotals{
		ReceitaBruta:   m.Gross,
		ComissaoPct:    utils.SafeDiv(m.Commission, m.Gross) * 100,
		ComissaoBRL:    m.Commission,
		ReceitaLiquida: m.Net,
		MargemPct:      m.MarginPct,
	}
	gross := Scalar(own, revenue)
	out.CanaisProprios.ReceitaBruta = gross
	out.CanaisProprios.ReceitaLiquida = gross
	return out, nil
}

// Simulation 把部分市场平台订单转到自有渠道后的收入
type Simulation struct {
	EconomiaComissoes        float64 `json:"economia_comissoes"`
	AumentoReceitaLiquidaPct float64 `json:"aumento_receita_liquida_pct"`
	ReceitaBrutaAtual        float64 `json:"receita_bruta_atual"`
	ComissoesAtual           float64 `json:"comissoes_atual"`
	ReceitaLiquidaAtual      float64 `json:"receita_liquida_atual"`
	ReceitaBrutaSimulada     float64 `json:"receita_bruta_simulada"`
	ComissoesSimulada        float64 `json:"comissoes_simulada"`
	ReceitaLiquidaSimulada   float64 `json:"receita_liquida_simulada"`
}

// Simulate pct_canal_proprio 限制在 0-100；毛收入不变，按比例免去市场平台佣金
func (s *Service) Simulate(p Params) (Simulation, error) {
	_, _, cur, err := s.scope(p)
	if err != nil {
		return Simulation{}, err
	}
	pct := p.PctOwn
	if math.IsNaN(pct) {
		pct = 0
	}
	share := math.Min(100, math.Max(0, pct)) / 100

	now := Commission(cur)
	mkt, _ := s.splitChannels(cur)
	saved := Commission(mkt).Commission * share

	simulated := now.Commission - saved
	net := now.Gross - simulated
	increase := 0.0
	if now.Net > 0 {
		increase = utils.Finite((net - now.Net) / now.Net * 100)
	}
	return Simulation{
		EconomiaComissoes:        utils.Finite(saved),
		AumentoReceitaLiquidaPct: increase,
		ReceitaBrutaAtual:        now.Gross,
		ComissoesAtual:           now.Commission,
		ReceitaLiquidaAtual:      now.Net,
		ReceitaBrutaSimulada:     now.Gross,
		ComissoesSimulada:        utils.Finite(simulated),
		ReceitaLiquidaSimulada:   utils.Finite(net),
	}, nil
}

// ClassProfit 单个订单类型的利润拆分
type ClassProfit struct {
	Tipo           string  `json:"tipo"`
	TicketMedio    float64 `json:"ticket_medio"`
	ReceitaBruta   float64 `json:"receita_bruta"`
	ComissaoBRL    float64 `json:"comissao_brl"`
	ReceitaLiquida float64 `json:"receita_liquida"`
	MargemPct      float64 `json:"margem_pct"`
}

// ClassProfits 订单类型利润列表
type ClassProfits struct {
	Tipos []ClassProfit `json:"tipos"`
}

// ProfitByOrderClass 按毛收入降序
func (s *Service) ProfitByOrderClass(p Params) (ClassProfits, error) {
	out := ClassProfits{Tipos: []ClassProfit{}}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	tickets := meanBy(cur, OrderClass, dataset.ColTotal)
	for name, m := range CommissionBy(cur, OrderClass) {
		out.Tipos = append(out.Tipos, ClassProfit{
			Tipo:           name,
			TicketMedio:    tickets[name].Value,
			ReceitaBruta:   m.Gross,
			ComissaoBRL:    m.Commission,
			ReceitaLiquida: m.Net,
			MargemPct:      m.MarginPct,
		})
	}
	sort.Slice(out.Tipos, func(i, j int) bool {
		a, b := out.Tipos[i], out.Tipos[j]
		if a.ReceitaBruta != b.ReceitaBruta {
			return a.ReceitaBruta > b.ReceitaBruta
		}
		return a.Tipo < b.Tipo
	})
	return out, nil
}

// ProfitPoint 利润时间序列的一个点
type ProfitPoint struct {
	Periodo        string  `json:"periodo"`
	ReceitaBruta   float64 `json:"receita_bruta"`
	Comissoes      float64 `json:"comissoes"`
	ReceitaLiquida float64 `json:"receita_liquida"`
	MargemPct      float64 `json:"margem_pct"`
}

// ProfitSeries 利润时间序列
type ProfitSeries struct {
	Granularidade Granularity   `json:"granularidade"`
	Dados         []ProfitPoint `json:"dados"`
}

// ProfitOverTime 默认按月；空桶补0
func (s *Service) ProfitOverTime(p Params) (ProfitSeries, error) {
	g, err := ParseGranularity(p.Granularity, Month)
	if err != nil {
		return ProfitSeries{}, err
	}
	_, _, cur, err := s.scope(p)
	if err != nil {
		return ProfitSeries{}, err
	}
	out := ProfitSeries{Granularidade: g, Dados: []ProfitPoint{}}
	bucket := TimeBucket(g)
	money := CommissionBy(cur, bucket)
	for _, b := range FillBuckets(countBy(cur, bucket), g) {
		m := money[b.Key]
		out.Dados = append(out.Dados, ProfitPoint{
			Periodo:        b.Key,
			ReceitaBruta:   m.Gross,
			Comissoes:      m.Commission,
			ReceitaLiquida: m.Net,
			MargemPct:      m.MarginPct,
		})
	}
	return out, nil
}

// PlatformROI 单个平台的投入(佣金)与回报(净收入)
type PlatformROI struct {
	Plataforma   string  `json:"plataforma"`
	Investimento float64 `json:"investimento"`
	Retorno      float64 `json:"retorno"`
	RoiPct       float64 `json:"roi_pct"`
	PaybackMeses float64 `json:"payback_meses"`
}

// PlatformROIs 平台 ROI 列表
type PlatformROIs struct {
	Plataformas []PlatformROI `json:"plataformas"`
}

// ROIByPlatform 按 ROI 降序；回收期按窗口天数/30 折算成月
func (s *Service) ROIByPlatform(p Params) (PlatformROIs, error) {
	out := PlatformROIs{Plataformas: []PlatformROI{}}
	_, w, cur, err := s.scope(p)
	if err != nil {
		return out, err
	}
	months := 1.0
	if days := w.Days(); days > 0 {
		months = float64(days) / 30
	}
	for name, m := range CommissionBy(cur, Platform) {
		monthly := m.Net / months
		payback := 0.0
		if monthly > 0 {
			payback = utils.Finite(m.Commission / monthly)
		}
		out.Plataformas = append(out.Plataformas, PlatformROI{
			Plataforma:   name,
			Investimento: m.Commission,
			Retorno:      m.Net,
			RoiPct:       ROI(m.Commission, m.Net),
			PaybackMeses: payback,
		})
	}
	sort.Slice(out.Plataformas, func(i, j int) bool {
		a, b := out.Plataformas[i], out.Plataformas[j]
		if a.RoiPct != b.RoiPct {
			return a.RoiPct > b.RoiPct
		}
		return a.Plataforma < b.Plataforma
	})
	return out, nil
}
