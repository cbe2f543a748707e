// response.go
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"DeliveryDashboard/src/catalog"
	"DeliveryDashboard/src/dataset"
	"DeliveryDashboard/src/period"
	"DeliveryDashboard/src/processor"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeJSON 先编码到缓冲区，编码失败时返回 500 而不是空的 200
func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "erro interno",
			Details: map[string]interface{}{"message": err.Error()},
		})
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// respond 输出成功结果，编码失败时记录日志
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v interface{}) {
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		s.logger.Error(r.Method + " " + r.URL.Path + ": 编码响应失败: " + err.Error())
	}
}

// statusOf 错误 -> HTTP 状态码和对外的错误描述
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		return http.StatusNotFound, "dados não encontrados"
	case errors.Is(err, catalog.ErrFileNotFound):
		return http.StatusNotFound, "arquivo não encontrado"
	case errors.Is(err, period.ErrInvalidDate):
		return http.StatusBadRequest, "data inválida"
	case errors.Is(err, processor.ErrInvalidParam), errors.Is(err, catalog.ErrUnsupported):
		return http.StatusBadRequest, "parâmetro inválido"
	default:
		return http.StatusInternalServerError, "erro interno"
	}
}

// fail 记录日志并输出错误响应
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Method + " " + r.URL.Path + ": " + err.Error())
	} else {
		s.logger.Warning(r.Method + " " + r.URL.Path + ": " + err.Error())
	}
	writeJSON(w, status, ErrorResponse{
		Error:   msg,
		Details: map[string]interface{}{"message": err.Error()},
	})
}
