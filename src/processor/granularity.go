// granularity.go
package processor

import (
	"errors"
	"fmt"
	"time"
)

// Granularity 时间序列的粒度
type Granularity string

const (
	Day   Granularity = "dia"
	Week  Granularity = "semana"
	Month Granularity = "mes"
)

// ErrInvalidParam 请求参数取值非法
var ErrInvalidParam = errors.New("invalid parameter")

// ParseGranularity 空字符串返回 def
func ParseGranularity(s string, def Granularity, allowed ...Granularity) (Granularity, error) {
	if s == "" {
		return def, nil
	}
	if len(allowed) == 0 {
		allowed = []Granularity{Day, Week, Month}
	}
	for _, g := range allowed {
		if Granularity(s) == g {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: granularidade %q", ErrInvalidParam, s)
}

// Truncate 返回 t 所在桶的起始时间；周从周一开始
func (g Granularity) Truncate(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Week:
		return day.AddDate(0, 0, -WeekdayIndex(day))
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// Next 下一个桶的起始时间
func (g Granularity) Next(t time.Time) time.Time {
	switch g {
	case Week:
		return t.AddDate(0, 0, 7)
	case Month:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// FillBuckets 补齐第一个和最后一个桶之间缺失的桶，值为0
func FillBuckets(groups []Group, g Granularity) []Group {
	if len(groups) == 0 {
		return groups
	}
	labels := BucketLabels(groups[0].Key, groups[len(groups)-1].Key, g)
	if labels == nil {
		return groups
	}

	byKey := Lookup(groups)
	out := make([]Group, 0, len(labels))
	for _, label := range labels {
		if grp, ok := byKey[label]; ok {
			out = append(out, grp)
			continue
		}
		out = append(out, Group{Key: label, Parts: []string{label}})
	}
	return out
}

// BucketLabels 第一个和最后一个桶之间的全部桶标签
func BucketLabels(first, last string, g Granularity) []string {
	start, err1 := time.Parse("2006-01-02", first)
	end, err2 := time.Parse("2006-01-02", last)
	if err1 != nil || err2 != nil {
		return nil
	}
	var labels []string
	for t := start; !t.After(end); t = g.Next(t) {
		labels = append(labels, t.Format("2006-01-02"))
	}
	return labels
}
