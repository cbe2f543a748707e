package utils

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ROISentinel 投资为0但回报为正时返回的封顶值，用来区分"无限回报"和"没有数据"
const ROISentinel = 999.99

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// Finite 把 NaN / ±Inf 归一成 0，保证输出的 JSON 里只有有限数值
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// SafeDiv 分母为0(或不是有限值)时返回0
func SafeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0
	}
	return Finite(num / den)
}

// Round 四舍五入到指定小数位
func Round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return Finite(math.Round(v*factor) / factor)
}

// Percentile 线性插值分位数(p 取 0-100)，忽略 NaN 和 ±Inf
func Percentile(values []float64, p float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0
	}
	sort.Float64s(clean)
	if p <= 0 {
		return clean[0]
	}
	if p >= 100 {
		return clean[len(clean)-1]
	}

	rank := p / 100 * float64(len(clean)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return clean[lower]
	}
	weight := rank - float64(lower)
	return Finite(clean[lower] + (clean[upper]-clean[lower])*weight)
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// Fold 去掉重音并转小写，"Site Próprio" -> "site proprio"
func Fold(s string) string {
	t := transform.Chain(norm.NFD, stripMarks, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Slug 生成平台等分类值的 JSON 键名
func Slug(s string) string {
	out := Fold(s)
	out = strings.ReplaceAll(out, " ", "_")
	out = strings.ReplaceAll(out, "-", "_")
	return out
}
