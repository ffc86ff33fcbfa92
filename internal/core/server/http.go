package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/solatis/itemfilter/internal/core/api"
	"github.com/solatis/itemfilter/internal/core/config"
	"github.com/solatis/itemfilter/internal/core/logging"
	"github.com/solatis/itemfilter/internal/types"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HTTPServer exposes the read and apply operations of FilterService as JSON
// over HTTP. Administrative operations are gRPC only.
type HTTPServer struct {
	server  *http.Server
	service api.FilterServer
	maxBody int64
	logger  *zap.Logger
}

// maxItemBytes is a generous JSON size for one item at the attribute limits.
const maxItemBytes = 256 + types.MaxAttributePairs*(types.MaxAttributeKeyLength+types.MaxAttributeValueLength+16)

// maxParamsBytes allows for caller parameters and envelope.
const maxParamsBytes = 64 << 10

// NewHTTPServer routes requests to service.
func NewHTTPServer(cfg *config.ServerConfig, service api.FilterServer, logger *zap.Logger) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	s := &HTTPServer{
		service: service,
		maxBody: int64(cfg.MaxBatchSize)*maxItemBytes + maxParamsBytes,
		logger:  logging.OrNop(logger),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
	}
	return s, nil
}

// Handler returns the router. Exposed for tests.
func (s *HTTPServer) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/healthz", s.healthz)
	router.GET("/v1/filters", s.listFilters)
	router.GET("/v1/filters/:name", s.getFilter)
	router.GET("/v1/filters/:name/explain", s.explainFilter)
	router.POST("/v1/filters/:name/apply", s.applyFilter)
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.logger.Error("http handler panic", zap.String("path", r.URL.Path), zap.Any("panic", v))
		writeError(w, status.Error(codes.Internal, "internal error"))
	}
	return router
}

// Start binds and serves. Returns nil after Shutdown.
func (s *HTTPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.server.Addr, err)
	}
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) healthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) listFilters(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp, err := s.service.ListFilters(r.Context(), &api.ListFiltersRequest{
		IfNoneMatch: unquote(r.Header.Get("If-None-Match")),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("ETag", `"`+resp.ETag+`"`)
	if resp.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) getFilter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resp, err := s.service.GetFilter(r.Context(), &api.GetFilterRequest{Name: ps.ByName("name")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) explainFilter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resp, err := s.service.ExplainFilter(r.Context(), &api.ExplainFilterRequest{Filter: ps.ByName("name")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) applyFilter(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req api.ApplyFilterRequest
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"code":  codes.InvalidArgument.String(),
				"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeError(w, status.Error(codes.InvalidArgument, "decode body: "+err.Error()))
		return
	}
	req.Filter = ps.ByName("name")

	resp, err := s.service.ApplyFilter(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// httpStatus maps gRPC codes to HTTP statuses.
var httpStatus = map[codes.Code]int{
	codes.OK:                 http.StatusOK,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.Aborted:            http.StatusConflict,
	codes.FailedPrecondition: http.StatusUnprocessableEntity,
	codes.Unauthenticated:    http.StatusUnauthorized,
	codes.PermissionDenied:   http.StatusForbidden,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
	codes.Canceled:           499,
	codes.Unavailable:        http.StatusServiceUnavailable,
}

func writeError(w http.ResponseWriter, err error) {
	code := api.Code(err)
	httpCode, ok := httpStatus[code]
	if !ok {
		httpCode = http.StatusInternalServerError
	}
	msg := err.Error()
	if s, ok := status.FromError(err); ok {
		msg = s.Message()
	}
	writeJSON(w, httpCode, map[string]string{"code": code.String(), "error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func unquote(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}
