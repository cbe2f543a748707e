// filter.go
package processor

import (
	"math"
	"time"

	"golang.org/x/text/cases"

	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
)

// FilterPeriod 保留 start <= order_datetime <= end 的行；没有时间列时返回空集
func FilterPeriod(d dataset.Dataset, w period.Window) dataset.Dataset {
	if !d.HasTime() {
		return d.Empty()
	}
	return d.Where(func(i int) bool {
		ts, ok := d.Time(i)
		return ok && w.Contains(ts)
	})
}

// FilterBefore 保留早于 t 的行
func FilterBefore(d dataset.Dataset, t time.Time) dataset.Dataset {
	if !d.HasTime() {
		return d.Empty()
	}
	return d.Where(func(i int) bool {
		ts, ok := d.Time(i)
		return ok && ts.Before(t)
	})
}

// FilterCompleted 只保留状态等于 delivered(忽略大小写)的行；没有 status 列时不过滤
func FilterCompleted(d dataset.Dataset, delivered string) dataset.Dataset {
	if !d.Has(dataset.ColStatus) {
		return d
	}
	fold := cases.Fold()
	want := fold.String(delivered)
	return d.Where(func(i int) bool {
		s, ok := d.String(dataset.ColStatus, i)
		return ok && fold.String(s) == want
	})
}

// FilterEquals 分类列等于给定值的行
func FilterEquals(d dataset.Dataset, col, value string) dataset.Dataset {
	if !d.Has(col) {
		return d.Empty()
	}
	return d.Where(func(i int) bool {
		s, ok := d.String(col, i)
		return ok && s == value
	})
}

// DropNA 去掉任一指定数值列缺失的行
func DropNA(d dataset.Dataset, cols ...string) dataset.Dataset {
	return d.Where(func(i int) bool {
		return allValid(d, i, cols)
	})
}

func allValid(d dataset.Dataset, i int, cols []string) bool {
	for _, c := range cols {
		if math.IsNaN(d.Float(c, i)) {
			return false
		}
	}
	return true
}

// HasAll 判断数据集是否包含全部列
func HasAll(d dataset.Dataset, cols ...string) bool {
	for _, c := range cols {
		if !d.Has(c) {
			return false
		}
	}
	return true
}
