// server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"DeliveryDashboard/src/catalog"
	"DeliveryDashboard/src/processor"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Logger 服务端使用的日志接口，storage.Logger 满足该接口
type Logger interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
	Subscribe() <-chan string
	Unsubscribe(ch <-chan string)
}

// DatasetStatus 数据集缓存状态，dataset.Cache 满足该接口
type DatasetStatus interface {
	Stats() (rows int, modTime, loadedAt time.Time, ok bool)
}

// Options 服务端依赖
type Options struct {
	Addr           string
	AllowedOrigins []string
	Service        *processor.Service
	Files          *catalog.Catalog
	Logger         Logger
	Status         DatasetStatus
}

// Server HTTP 服务
type Server struct {
	svc     *processor.Service
	files   *catalog.Catalog
	logger  Logger
	status  DatasetStatus
	origins []string
	srv     *http.Server
}

// New 创建服务并注册全部路由
func New(opts Options) *Server {
	s := &Server{
		svc:     opts.Service,
		files:   opts.Files,
		logger:  opts.Logger,
		status:  opts.Status,
		origins: opts.AllowedOrigins,
	}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router 全部路由；/logs 是长连接，所以不设置写超时
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "API de Dashboards funcionando!"})
	})
	r.Get("/health", s.health)
	r.Get("/logs", s.streamLogs)

	r.Get("/api/dados", s.listFiles)
	r.Get("/api/dados/{arquivo}", s.readFile)
	r.Get("/api/colunas/{arquivo}", s.describeFile)

	for prefix, routes := range s.metricRoutes() {
		r.Route(prefix, func(r chi.Router) {
			for _, rt := range routes {
				r.Get(rt.path, s.metric(rt.call, rt.required...))
			}
		})
	}
	return r
}

// ListenAndServe 阻塞直到服务关闭
func (s *Server) ListenAndServe() error {
	s.logger.Info(fmt.Sprintf("API 服务启动: %s", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API 服务关闭中...")
	return s.srv.Shutdown(ctx)
}

// requestLog 每个请求一行日志
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/logs" {
			return
		}
		s.logger.Info(fmt.Sprintf("%s %s %d %v", r.Method, r.URL.RequestURI(), ww.Status(), time.Since(start)))
	})
}

// metric 解析参数 -> 计算 -> 输出 JSON
func (s *Server) metric(call metricFunc, required ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireParams(r, required...); err != nil {
			s.fail(w, r, err)
			return
		}
		p, err := parseParams(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out, err := call(p)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, r, out)
	}
}

// HealthResponse GET /health
type HealthResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Dataset *DatasetHealth `json:"dataset,omitempty"`
}

// DatasetHealth 已加载的数据集快照
type DatasetHealth struct {
	Linhas       int       `json:"linhas"`
	ModificadoEm time.Time `json:"modificado_em"`
	CarregadoEm  time.Time `json:"carregado_em"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Message: "API está funcionando corretamente"}
	if s.status != nil {
		if rows, mod, loaded, ok := s.status.Stats(); ok {
			resp.Dataset = &DatasetHealth{Linhas: rows, ModificadoEm: mod, CarregadoEm: loaded}
		}
	}
	s.respond(w, r, resp)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	out, err := s.files.ReadAll()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, out)
}

func (s *Server) readFile(w http.ResponseWriter, r *http.Request) {
	out, err := s.files.Read(chi.URLParam(r, "arquivo"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, out)
}

func (s *Server) describeFile(w http.ResponseWriter, r *http.Request) {
	out, err := s.files.Describe(chi.URLParam(r, "arquivo"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, out)
}

// streamLogs 以 chunked 方式持续推送日志，客户端断开时退出
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
