// Package period 把请求里的 inicio/fim 参数转换成闭区间时间窗口。
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate 日期参数不是合法的 ISO-8601 格式
var ErrInvalidDate = errors.New("invalid date")

// DefaultDays 未指定时的默认窗口长度
const DefaultDays = 30

var isoLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// Window 闭区间 [Start, End]
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains 判断 t 是否落在窗口内，两端都包含
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days 窗口覆盖的天数，不足一天按一天计
func (w Window) Days() int {
	return int(w.End.Sub(w.Start)/(24*time.Hour)) + 1
}

// StartDate / EndDate 返回 YYYY-MM-DD
func (w Window) StartDate() string { return w.Start.Format("2006-01-02") }
func (w Window) EndDate() string   { return w.End.Format("2006-01-02") }

// Parse 严格按 ISO-8601 解析；不带时区的值按 loc 解释
func Parse(s string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Normalize 缺省时使用 [now-30天, now]；两端独立回退。
// fim 恰好是零点时扩展到当天最后一微秒，开始时间从不扩展，也不校验先后顺序。
func Normalize(start, end string, now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	w := Window{Start: now.AddDate(0, 0, -DefaultDays), End: now}
	if start != "" {
		t, err := Parse(start, loc)
		if err != nil {
			return Window{}, err
		}
		w.Start = t
	}
	if end != "" {
		t, err := Parse(end, loc)
		if err != nil {
			return Window{}, err
		}
		w.End = t
	}
	w.End = ExpandEndOfDay(w.End)
	return w, nil
}

// ExpandEndOfDay 零点扩展到 23:59:59.999999
func ExpandEndOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999000, t.Location())
	}
	return t
}

// MonthRange 包含 ref 的自然月
func MonthRange(ref time.Time) Window {
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	next := start.AddDate(0, 1, 0)
	return Window{Start: start, End: next.Add(-time.Microsecond)}
}

// PreviousMonth 结束日期所在月份的上一个完整自然月
func PreviousMonth(end time.Time) Window {
	first := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	return MonthRange(first.AddDate(0, 0, -1))
}

// ParseMonth 解析 YYYY-MM
func ParseMonth(s string, loc *time.Location) (Window, error) {
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return MonthRange(t), nil
}

// MinSampleSize 每组最少样本数：1天以内 1，7天以内 2，其余 3
func MinSampleSize(w Window) int {
	switch days := w.Days(); {
	case days <= 1:
		return 1
	case days <= 7:
		return 2
	default:
		return 3
	}
}

// StartOfDay 当天零点
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
