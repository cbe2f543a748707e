// bands.go
package processor

import (
	"fmt"
	"math"
	"time"
)

const (
	distanceBandWidth = 1.0 / 3.0
	distanceBandCount = 45
	// DistanceOverflow 超过 15 km 的统一分组
	DistanceOverflow = "15+ km"
	// NoDistance / NoMinutes 缺失值分组
	NoDistance = "Sem distância"
	NoMinutes  = "Sem dados"
)

// Weekdays 周一开始的葡语星期名
var Weekdays = []string{"Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado", "Domingo"}

// DayPeriods 一天的四个时段
var DayPeriods = []string{"Madrugada", "Manhã", "Tarde", "Noite"}

// DayTypes 工作日 / 周末
var DayTypes = []string{"Dia Útil", "Fim de Semana"}

// CoarseDistanceBands 配送时长按距离分析用的粗分档
var CoarseDistanceBands = []string{"0-2 km", "2-5 km", "5-10 km", "10+ km", NoDistance}

// MinuteBands 时长分布直方图的分档
var MinuteBands = []string{"0-10 min", "10-20 min", "20-30 min", "30-45 min", "45+ min", NoMinutes}

// DistanceBand 按 1/3 km 分档，返回标签和档位序号；45 档以上归入 "15+ km"
func DistanceBand(km float64) (string, int) {
	idx := int(km / distanceBandWidth)
	if idx >= distanceBandCount {
		return DistanceOverflow, distanceBandCount
	}
	lo := math.Round(float64(idx)*distanceBandWidth*100) / 100
	hi := math.Round(float64(idx+1)*distanceBandWidth*100) / 100
	return fmt.Sprintf("%.2f-%.2f km", lo, hi), idx
}

// CoarseDistanceBand <2 / 2-5 / 5-10 / 10+ km，缺失为 "Sem distância"
func CoarseDistanceBand(km float64) (string, int) {
	switch {
	case math.IsNaN(km):
		return NoDistance, 4
	case km < 2:
		return CoarseDistanceBands[0], 0
	case km < 5:
		return CoarseDistanceBands[1], 1
	case km < 10:
		return CoarseDistanceBands[2], 2
	default:
		return CoarseDistanceBands[3], 3
	}
}

// MinuteBand <10 / 10-20 / 20-30 / 30-45 / 45+ 分钟，缺失为 "Sem dados"
func MinuteBand(minutes float64) (string, int) {
	switch {
	case math.IsNaN(minutes):
		return NoMinutes, 5
	case minutes < 10:
		return MinuteBands[0], 0
	case minutes < 20:
		return MinuteBands[1], 1
	case minutes < 30:
		return MinuteBands[2], 2
	case minutes < 45:
		return MinuteBands[3], 3
	default:
		return MinuteBands[4], 4
	}
}

// PeriodOfDay [0,6) Madrugada, [6,12) Manhã, [12,18) Tarde, [18,24) Noite
func PeriodOfDay(hour int) (string, int) {
	switch {
	case hour < 6:
		return DayPeriods[0], 0
	case hour < 12:
		return DayPeriods[1], 1
	case hour < 18:
		return DayPeriods[2], 2
	default:
		return DayPeriods[3], 3
	}
}

// WeekdayIndex 周一为 0，周日为 6
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DayType 周六周日为周末
func DayType(t time.Time) (string, int) {
	if WeekdayIndex(t) >= 5 {
		return DayTypes[1], 1
	}
	return DayTypes[0], 0
}
