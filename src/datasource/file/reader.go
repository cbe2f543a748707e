// reader.go
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// NaNValues 读入时视为缺失值的文本
var NaNValues = []string{"", "NA", "NaN", "nan", "N/A", "null", "NULL", "None", "-"}

// Options 数据集读取选项
type Options struct {
	SheetName string                 // xlsx 工作表，空表示第一个
	Types     map[string]series.Type // 指定列类型，其余列为字符串
	Detect    bool                   // 未指定类型的列是否自动推断
}

// IsSupported 判断扩展名是否是可读的表格文件
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// ReadDataFrame 按扩展名读取 csv / xlsx 文件
func ReadDataFrame(path string, opts Options) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path, opts)
	case ".xlsx":
		return ReadXLSX(path, opts)
	default:
		return dataframe.New(), fmt.Errorf("不支持的文件类型: %s", filepath.Ext(path))
	}
}

// ReadCSV 用 gota 读取 csv 文件
func ReadCSV(path string, opts Options) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.New(), err
	}
	defer f.Close()

	df, err := ReadCSVFrom(f, opts)
	if err != nil {
		return df, fmt.Errorf("读取csv文件 %s 失败: %w", path, err)
	}
	return df, nil
}

// ReadCSVFrom 从 reader 读取 csv 内容
func ReadCSVFrom(r io.Reader, opts Options) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r, loadOptions(opts)...)
	if df.Err != nil {
		return df, df.Err
	}
	return df, nil
}

func loadOptions(opts Options) []dataframe.LoadOption {
	lo := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.NaNValues(NaNValues),
		dataframe.DetectTypes(opts.Detect),
		dataframe.DefaultType(series.String),
	}
	if len(opts.Types) > 0 {
		lo = append(lo, dataframe.WithTypes(opts.Types))
	}
	return lo
}

// ReadXLSX 用 excelize 读取工作表；时间列里的 Excel 序列值转换成时间文本
func ReadXLSX(path string, opts Options) (dataframe.DataFrame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return dataframe.New(), fmt.Errorf("打开xlsx文件失败: %w", err)
	}
	defer f.Close()

	sheet := opts.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return dataframe.New(), fmt.Errorf("excel文件中没有工作表: %s", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return dataframe.New(), fmt.Errorf("读取工作表 %s 失败: %w", sheet, err)
	}

	records := normalizeRows(rows)
	if len(records) == 0 {
		return dataframe.New(), nil
	}
	convertTimeColumns(records)

	df := dataframe.LoadRecords(records, loadOptions(opts)...)
	if df.Err != nil {
		return df, fmt.Errorf("转换工作表 %s 失败: %w", sheet, df.Err)
	}
	return df, nil
}

// normalizeRows 补齐短行，去掉完全空的行
func normalizeRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	out := make([][]string, 0, len(rows))
	for i, row := range rows {
		if i > 0 && isBlank(row) {
			continue
		}
		rec := make([]string, width)
		copy(rec, row)
		out = append(out, rec)
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// findTimeColumns 查找可能是时间类型的列
func findTimeColumns(headers []string) []int {
	var idx []int
	timeKeywords := []string{"datetime", "date", "data_", "time"}

	for i, col := range headers {
		lower := strings.ToLower(col)
		for _, kw := range timeKeywords {
			if strings.Contains(lower, kw) {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

func convertTimeColumns(records [][]string) {
	cols := findTimeColumns(records[0])
	for _, row := range records[1:] {
		for _, c := range cols {
			row[c] = excelToTime(row[c])
		}
	}
}

// excelToTime Excel 日期序列值转成 "2006-01-02 15:04:05"，非数值原样返回
func excelToTime(v string) string {
	serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || serial <= 0 {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v
	}
	return t.Round(time.Second).Format("2006-01-02 15:04:05")
}

// ReadSheet 用 tealeg/xlsx 把工作表整体读成字符串记录，第一行为表头
func ReadSheet(path, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(path)
	if err != nil {
		return dataframe.New(), fmt.Errorf("xlsx open file false: %w", err)
	}
	if len(xlFile.Sheets) == 0 {
		return dataframe.New(), fmt.Errorf("excel文件中没有工作表: %s", path)
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.New(), fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}
	return convertSheetToDataFrame(sheet)
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.New(), nil
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.String())
	}
	if len(headers) == 0 {
		return dataframe.New(), nil
	}

	records := [][]string{headers}
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		rec := make([]string, len(headers))
		for i, cell := range row.Cells {
			if i < len(headers) {
				rec[i] = cell.String()
			}
		}
		if isBlank(rec) {
			continue
		}
		records = append(records, rec)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.NaNValues(NaNValues),
		dataframe.DetectTypes(true),
	)
	return df, df.Err
}

// SetupSignalHandler 设置信号处理器
func SetupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived signal: %v, shutting down...\n", sig)
		cancel()
	}()
}
