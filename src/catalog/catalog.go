// catalog.go
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"DeliveryDashboard/src/datasource/file"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var (
	// ErrFileNotFound 文件或数据目录不存在
	ErrFileNotFound = errors.New("arquivo não encontrado")
	// ErrUnsupported 不是 csv / xlsx 文件
	ErrUnsupported = errors.New("tipo de arquivo não suportado")
)

// Catalog 数据目录下任意表格文件的通用读取
type Catalog struct {
	dir string
}

// New 创建目录读取器
func New(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Table 单个文件转换成的记录
type Table struct {
	Arquivo             string           `json:"arquivo"`
	QuantidadeRegistros int              `json:"quantidade_registros"`
	Colunas             []string         `json:"colunas"`
	Dados               []map[string]any `json:"dados"`
}

// Entry 目录列表中的一项，读取失败时只有 arquivo 和 erro
type Entry struct {
	Arquivo             string           `json:"arquivo"`
	QuantidadeRegistros *int             `json:"quantidade_registros,omitempty"`
	Colunas             []string         `json:"colunas,omitempty"`
	Dados               []map[string]any `json:"dados,omitempty"`
	Erro                string           `json:"erro,omitempty"`
}

// Listing 目录下所有文件
type Listing struct {
	ArquivosProcessados int     `json:"arquivos_processados"`
	Dados               []Entry `json:"dados"`
}

// ColumnInfo 单列概况；数值列额外给出 min/max/media/mediana
type ColumnInfo struct {
	Nome          string   `json:"nome"`
	Tipo          string   `json:"tipo"`
	ValoresNulos  int      `json:"valores_nulos"`
	ValoresUnicos int      `json:"valores_unicos"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Media         *float64 `json:"media,omitempty"`
	Mediana       *float64 `json:"mediana,omitempty"`
}

// Columns 文件的列概况
type Columns struct {
	Arquivo        string       `json:"arquivo"`
	TotalRegistros int          `json:"total_registros"`
	TotalColunas   int          `json:"total_colunas"`
	Colunas        []ColumnInfo `json:"colunas"`
}

// Files 目录下支持的文件名，按名称排序
func (c *Catalog) Files() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: diretório %s", ErrFileNotFound, c.dir)
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && file.IsSupported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadAll 读取目录下全部文件，单个文件失败记录在 erro 中
func (c *Catalog) ReadAll() (Listing, error) {
	out := Listing{Dados: []Entry{}}
	names, err := c.Files()
	if err != nil {
		return out, err
	}
	for _, name := range names {
		t, err := c.Read(name)
		if err != nil {
			out.Dados = append(out.Dados, Entry{Arquivo: name, Erro: err.Error()})
			continue
		}
		n := t.QuantidadeRegistros
		out.Dados = append(out.Dados, Entry{
			Arquivo:             name,
			QuantidadeRegistros: &n,
			Colunas:             t.Colunas,
			Dados:               t.Dados,
		})
	}
	out.ArquivosProcessados = len(out.Dados)
	return out, nil
}

// Read 把一个文件整体转换成记录
func (c *Catalog) Read(name string) (Table, error) {
	df, err := c.frame(name)
	if err != nil {
		return Table{}, err
	}
	return Table{
		Arquivo:             name,
		QuantidadeRegistros: df.Nrow(),
		Colunas:             df.Names(),
		Dados:               records(df),
	}, nil
}

// Describe 每列的类型、缺失数、不同值个数和数值统计
func (c *Catalog) Describe(name string) (Columns, error) {
	df, err := c.frame(name)
	if err != nil {
		return Columns{}, err
	}
	out := Columns{
		Arquivo:        name,
		TotalRegistros: df.Nrow(),
		TotalColunas:   df.Ncol(),
		Colunas:        []ColumnInfo{},
	}
	for _, col := range df.Names() {
		out.Colunas = append(out.Colunas, describe(df.Col(col)))
	}
	return out, nil
}

// resolve 只接受目录下的文件名，拒绝包含路径的名称
func (c *Catalog) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	path := filepath.Join(c.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	if !file.IsSupported(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return path, nil
}

// frame csv 用 gota 读取并推断类型，xlsx 用 tealeg/xlsx 读取第一个工作表
func (c *Catalog) frame(name string) (dataframe.DataFrame, error) {
	path, err := c.resolve(name)
	if err != nil {
		return dataframe.New(), err
	}
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return file.ReadCSV(path, file.Options{Detect: true})
	}
	return file.ReadSheet(path, "")
}

func records(df dataframe.DataFrame) []map[string]any {
	names := df.Names()
	cols := make([]series.Series, len(names))
	for i, name := range names {
		cols[i] = df.Col(name)
	}

	out := make([]map[string]any, df.Nrow())
	for r := range out {
		rec := make(map[string]any, len(names))
		for i, name := range names {
			rec[name] = value(cols[i].Elem(r))
		}
		out[r] = rec
	}
	return out
}

// value 缺失值为 null，数值为数字，其余为文本
func value(e series.Element) any {
	if e.IsNA() {
		return nil
	}
	switch e.Type() {
	case series.Int:
		if v, err := e.Int(); err == nil {
			return v
		}
	case series.Float:
		if v := e.Float(); !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
		return nil
	case series.Bool:
		if v, err := e.Bool(); err == nil {
			return v
		}
	}
	return e.String()
}

func typeName(t series.Type) string {
	switch t {
	case series.Int:
		return "int64"
	case series.Float:
		return "float64"
	case series.Bool:
		return "bool"
	default:
		return "object"
	}
}

func describe(s series.Series) ColumnInfo {
	info := ColumnInfo{Nome: s.Name, Tipo: typeName(s.Type())}

	unique := make(map[string]struct{})
	var nums []float64
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			info.ValoresNulos++
			continue
		}
		unique[e.String()] = struct{}{}
		if t := s.Type(); t == series.Int || t == series.Float {
			nums = append(nums, e.Float())
		}
	}
	info.ValoresUnicos = len(unique)

	if len(nums) > 0 {
		valid := series.Floats(nums)
		lo, hi, mean, median := valid.Min(), valid.Max(), valid.Mean(), valid.Median()
		info.Min, info.Max, info.Media, info.Mediana = &lo, &hi, &mean, &median
	}
	return info
}
