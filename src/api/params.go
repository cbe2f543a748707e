// params.go
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"DeliveryDashboard/src/processor"
)

// parseParams 读取各接口共用的查询参数；数值参数格式错误时返回 ErrInvalidParam
func parseParams(r *http.Request) (processor.Params, error) {
	q := r.URL.Query()
	p := processor.Params{
		Inicio:      strings.TrimSpace(q.Get("inicio")),
		Fim:         strings.TrimSpace(q.Get("fim")),
		Granularity: strings.TrimSpace(q.Get("granularidade")),
		Metric:      strings.TrimSpace(q.Get("metric")),
		Bairro:      q.Get("bairro"),
		Mes:         strings.TrimSpace(q.Get("mes")),
		Tipo:        strings.TrimSpace(q.Get("tipo")),
	}

	var err error
	if p.TopN, err = intParam(q.Get("top_n"), "top_n", processor.DefaultTopN); err != nil {
		return p, err
	}
	if p.Limit, err = intParam(q.Get("limit"), "limit", processor.DefaultLimit); err != nil {
		return p, err
	}
	if p.Threshold, err = floatParam(q.Get("threshold_minutos"), "threshold_minutos", processor.DefaultThreshold); err != nil {
		return p, err
	}
	if p.PctOwn, err = floatParam(q.Get("pct_canal_proprio"), "pct_canal_proprio", 0); err != nil {
		return p, err
	}
	return p, nil
}

// requireParams 检查必填参数
func requireParams(r *http.Request, names ...string) error {
	q := r.URL.Query()
	for _, name := range names {
		if strings.TrimSpace(q.Get(name)) == "" {
			return fmt.Errorf("%w: %s é obrigatório", processor.ErrInvalidParam, name)
		}
	}
	return nil
}

func intParam(raw, name string, def int) (int, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def, fmt.Errorf("%w: %s deve ser um inteiro positivo", processor.ErrInvalidParam, name)
	}
	return v, nil
}

func floatParam(raw, name string, def float64) (float64, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s deve ser numérico", processor.ErrInvalidParam, name)
	}
	return v, nil
}
