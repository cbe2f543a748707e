package processor

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
)

func mustRead(t *testing.T, text string) dataset.Dataset {
	t.Helper()
	d, err := dataset.ReadCSV(strings.NewReader(text), time.UTC)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return d
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDistanceBand(t *testing.T) {
	cases := []struct {
		km    float64
		label string
		idx   int
	}{
		{0, "0.00-0.33 km", 0},
		{1.0, "1.00-1.33 km", 3},
		{14.99, "14.67-15.00 km", 44},
		{15.0, DistanceOverflow, 45},
		{15.5, DistanceOverflow, 45},
	}
	for _, c := range cases {
		label, idx := DistanceBand(c.km)
		if label != c.label || idx != c.idx {
			t.Errorf("DistanceBand(%v) = %q,%d want %q,%d", c.km, label, idx, c.label, c.idx)
		}
	}
}

func TestCoarseAndMinuteBands(t *testing.T) {
	if l, _ := CoarseDistanceBand(math.NaN()); l != NoDistance {
		t.Errorf("NaN distance = %q", l)
	}
	if l, _ := CoarseDistanceBand(2); l != "2-5 km" {
		t.Errorf("2 km = %q", l)
	}
	if l, _ := MinuteBand(45); l != "45+ min" {
		t.Errorf("45 min = %q", l)
	}
	if l, _ := MinuteBand(math.NaN()); l != NoMinutes {
		t.Errorf("NaN minutes = %q", l)
	}
	if l, _ := PeriodOfDay(6); l != "Manhã" {
		t.Errorf("hour 6 = %q", l)
	}
	if l, _ := PeriodOfDay(18); l != "Noite" {
		t.Errorf("hour 18 = %q", l)
	}
}

const engineCSV = `order_datetime,status,bairro_destino,platform,total_brl,distance_km
2024-05-06 12:00:00,delivered,A,ifood,100,1
2024-05-06 13:00:00,Delivered,A,ifood,10,10
2024-05-07 09:00:00,delivered,B,rappi,30,3
2024-05-07 10:00:00,cancelled,C,rappi,5,NA
2024-05-08 23:00:00,delivered,,site,70,2
`

func TestAggregateEfficiencyUsesSums(t *testing.T) {
	d := mustRead(t, engineCSV)
	groups := Aggregate(d, Query{
		Dimension: Neighborhood,
		Metric:    Metric{Kind: Ratio, Column: dataset.ColTotal, Denominator: dataset.ColDistance},
	})
	a := Lookup(groups)["A"]
	// (100+10)/(1+10) = 10，而逐行比值的均值是 (100+1)/2
	if !near(a.Value, 10) {
		t.Errorf("efficiency A = %v, want 10", a.Value)
	}
	if _, ok := Lookup(groups)["C"]; !ok {
		t.Error("C should still be grouped")
	}
	if c := Lookup(groups)["C"]; c.Value != 0 || c.Valid != 0 {
		t.Errorf("C with missing distance = %+v", c)
	}
}

func TestAggregateSkipsMissingKeys(t *testing.T) {
	d := mustRead(t, engineCSV)
	groups := Aggregate(d, Query{Dimension: Neighborhood, Metric: Metric{Kind: Count}})
	total := 0
	for _, g := range groups {
		total += g.Count
	}
	if total != 4 {
		t.Errorf("rows without neighborhood must be dropped, counted %d", total)
	}
	if groups[0].Key != "A" || groups[0].Value != 2 {
		t.Errorf("first group = %+v", groups[0])
	}
	// 相同值按键名升序
	if groups[1].Key != "B" || groups[2].Key != "C" {
		t.Errorf("tie order = %s,%s", groups[1].Key, groups[2].Key)
	}
}

func TestAggregateMinSamplesAndTopN(t *testing.T) {
	d := mustRead(t, engineCSV)
	mean := Metric{Kind: Mean, Column: dataset.ColTotal}

	groups := Aggregate(d, Query{Dimension: Neighborhood, Metric: mean, MinSamples: 2})
	if len(groups) != 1 || groups[0].Key != "A" || groups[0].Value != 55 {
		t.Errorf("min samples groups = %+v", groups)
	}

	groups = Aggregate(d, Query{Dimension: Platform, Metric: revenue, TopN: 2})
	if len(groups) != 2 || groups[0].Key != "ifood" || groups[1].Key != "site" {
		t.Errorf("top 2 = %+v", groups)
	}
}

func TestAggregateMissingColumn(t *testing.T) {
	d := mustRead(t, engineCSV)
	groups := Aggregate(d, Query{Dimension: Neighborhood, Metric: Metric{Kind: Mean, Column: dataset.ColSatisfaction}})
	if groups == nil || len(groups) != 0 {
		t.Errorf("missing metric column should give empty non-nil result, got %#v", groups)
	}
	if v := Scalar(d, Metric{Kind: Sum, Column: "nao_existe"}); v != 0 {
		t.Errorf("Scalar on missing column = %v", v)
	}
}

func TestAggregateOrderedDimension(t *testing.T) {
	d := mustRead(t, engineCSV)
	groups := Aggregate(d, Query{Dimension: Hour, Metric: Metric{Kind: Count}})
	var hours []int64
	for _, g := range groups {
		hours = append(hours, g.Sort)
	}
	if fmt.Sprint(hours) != "[9 10 12 13 23]" {
		t.Errorf("hours = %v", hours)
	}

	filled := Aggregate(d, Query{Dimension: DayPeriod, Metric: Metric{Kind: Count}, FillDomain: true})
	var labels []string
	for _, g := range filled {
		labels = append(labels, fmt.Sprintf("%s=%d", g.Key, g.Count))
	}
	if strings.Join(labels, ",") != "Madrugada=0,Manhã=2,Tarde=2,Noite=1" {
		t.Errorf("day periods = %v", labels)
	}
}

func TestCrossDimension(t *testing.T) {
	d := mustRead(t, engineCSV)
	groups := Aggregate(d, Query{Dimension: Cross(Weekday, Hour), Metric: Metric{Kind: Count}})
	if len(groups) != 5 {
		t.Fatalf("cells = %d", len(groups))
	}
	first := groups[0]
	if first.Parts[0] != "Segunda" || first.Parts[1] != "12" || first.Sort%1000 != 12 {
		t.Errorf("first cell = %+v", first)
	}
	if last := groups[len(groups)-1]; last.Parts[0] != "Quarta" {
		t.Errorf("last cell = %+v", last)
	}
}

func TestFilterCompleted(t *testing.T) {
	d := mustRead(t, engineCSV)
	if got := FilterCompleted(d, "DELIVERED").Len(); got != 4 {
		t.Errorf("completed = %d, want 4", got)
	}

	noStatus := mustRead(t, "order_datetime,total_brl\n2024-05-01,1\n2024-05-02,2\n")
	if got := FilterCompleted(noStatus, "delivered").Len(); got != 2 {
		t.Errorf("without status column every row passes, got %d", got)
	}
}

func TestFilterPeriodInclusive(t *testing.T) {
	d := mustRead(t, engineCSV)
	w, err := period.Normalize("2024-05-06", "2024-05-07", time.Now(), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got := FilterPeriod(d, w).Len(); got != 4 {
		t.Errorf("rows in window = %d, want 4", got)
	}

	noTime := mustRead(t, "total_brl\n1\n")
	if got := FilterPeriod(noTime, w).Len(); got != 0 {
		t.Errorf("dataset without time column should filter to empty, got %d", got)
	}
}

func TestCommission(t *testing.T) {
	d := mustRead(t, `order_datetime,platform,total_brl,platform_commission_pct
2024-05-01 10:00:00,ifood,100,0.2
2024-05-01 11:00:00,ifood,50,
2024-05-01 12:00:00,site,30,NA
`)
	m := Commission(d)
	if m.Gross != 180 || !near(m.Commission, 20) || !near(m.Net, 160) {
		t.Errorf("money = %+v", m)
	}
	if !near(m.MarginPct, 160.0/180*100) {
		t.Errorf("margin = %v", m.MarginPct)
	}

	by := CommissionBy(d, Platform)
	if !near(by["ifood"].Commission, 20) || by["ifood"].Gross != 150 {
		t.Errorf("ifood = %+v", by["ifood"])
	}
	if by["site"].Commission != 0 || by["site"].Gross != 30 {
		t.Errorf("site = %+v", by["site"])
	}
}

func TestVariationRules(t *testing.T) {
	if v := Variation(50, 0); v != 0 {
		t.Errorf("Variation(50, 0) = %v", v)
	}
	if v := TrendVariation(50, 0); v != 100 {
		t.Errorf("TrendVariation(50, 0) = %v", v)
	}
	if v := TrendVariation(0, 0); v != 0 {
		t.Errorf("TrendVariation(0, 0) = %v", v)
	}
	if v := Variation(110, 100); !near(v, 10) {
		t.Errorf("Variation(110, 100) = %v", v)
	}
	if v := TrendVariation(1, 3); v != -66.67 {
		t.Errorf("TrendVariation(1, 3) = %v", v)
	}
}

func TestROI(t *testing.T) {
	if v := ROI(0, 10); v != 999.99 {
		t.Errorf("ROI(0, 10) = %v", v)
	}
	if v := ROI(0, 0); v != 0 {
		t.Errorf("ROI(0, 0) = %v", v)
	}
	if v := ROI(20, 80); v != 300 {
		t.Errorf("ROI(20, 80) = %v", v)
	}
}

func TestChannelClassifier(t *testing.T) {
	c := NewChannelClassifier([]string{"site", "whatsapp", "proprio"})
	for name, want := range map[string]bool{
		"Site Próprio":  true,
		"WhatsApp":      true,
		"Canal Proprio": true,
		"iFood":         false,
		"":              false,
	} {
		if got := c.IsOwn(name); got != want {
			t.Errorf("IsOwn(%q) = %v", name, got)
		}
	}
}

// mondays 从 start 开始连续 weeks 个周一，每天 perDay 个订单
func mondays(start time.Time, weeks, perDay int) string {
	var b strings.Builder
	b.WriteString("order_datetime,total_brl\n")
	for w := 0; w < weeks; w++ {
		day := start.AddDate(0, 0, 7*w)
		for i := 0; i < perDay; i++ {
			ts := day.Add(time.Duration(i) * time.Minute)
			fmt.Fprintf(&b, "%s,10\n", ts.Format("2006-01-02 15:04:05"))
		}
	}
	return b.String()
}

func TestWeekdayForecast(t *testing.T) {
	start := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC) // 周一
	d := mustRead(t, mondays(start, 4, 100))

	model := FitWeekdayModel(d)
	monday := time.Date(2024, 4, 29, 0, 0, 0, 0, time.UTC)
	if got := model.Predict(monday); got != 100 {
		t.Errorf("Monday forecast = %v, want 100", got)
	}
	if got := model.Predict(monday.AddDate(0, 0, 1)); got != 100 {
		t.Errorf("Tuesday falls back to global mean, got %v", got)
	}
	if got := FitWeekdayModel(d.Empty()).Predict(monday); got != 0 {
		t.Errorf("empty history forecast = %v", got)
	}
}

func TestFillBuckets(t *testing.T) {
	d := mustRead(t, "order_datetime\n2024-05-01 10:00:00\n2024-05-15 10:00:00\n")
	weeks := FillBuckets(countBy(d, TimeBucket(Week)), Week)
	var keys []string
	for _, g := range weeks {
		keys = append(keys, fmt.Sprintf("%s=%d", g.Key, g.Count))
	}
	if strings.Join(keys, ",") != "2024-04-29=1,2024-05-06=0,2024-05-13=1" {
		t.Errorf("weeks = %v", keys)
	}

	months := countBy(d, TimeBucket(Month))
	if len(months) != 1 || months[0].Key != "2024-05-01" {
		t.Errorf("months = %+v", months)
	}
}

func TestParseGranularity(t *testing.T) {
	if g, err := ParseGranularity("", Month); err != nil || g != Month {
		t.Errorf("default = %v %v", g, err)
	}
	if _, err := ParseGranularity("dia", Week, Week, Month); err == nil {
		t.Error("dia should be rejected when not allowed")
	}
	if _, err := ParseGranularity("ano", Day); err == nil {
		t.Error("unknown granularity accepted")
	}
}
