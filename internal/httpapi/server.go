package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/maia-sdr/sdrd/internal/apperror"
)

// Server is sdrd's HTTP server (component J's httpd task, spec.md
// §4.J / original_source httpd.rs's Server).
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// NewServer builds the chi router and records the listen address. The
// address is bound, and the server starts listening, when Run is
// called.
func NewServer(listen string, deps Deps, logger *log.Logger) (*Server, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	h := &handlers{deps: deps, logger: logger}

	r.Get("/api/status", h.getStatus)
	r.Get("/api/spectrometer", h.getSpectrometer)
	r.Patch("/api/spectrometer", h.patchSpectrometer)
	r.Get("/api/ddc/design", h.getDDCDesign)
	r.Put("/api/ddc/design", h.putDDCDesign)
	r.Get("/api/ddc", h.getDDC)
	r.Patch("/api/ddc", h.patchDDC)
	r.Get("/api/recorder", h.getRecorder)
	r.Patch("/api/recorder", h.patchRecorder)
	r.Get("/api/recording/metadata", h.getRecordingMetadata)
	r.Put("/api/recording/metadata", h.putRecordingMetadata)
	r.Patch("/api/recording/metadata", h.patchRecordingMetadata)
	r.Get("/recording", h.getRecording)
	r.Get("/api/ad9361", h.getAd9361)
	r.Patch("/api/ad9361", h.patchAd9361)
	r.Get("/ws/waterfall", h.waterfall)

	return &Server{
		httpServer: &http.Server{Addr: listen, Handler: r},
		logger:     logger,
	}, nil
}

// Run listens until ctx is cancelled, then shuts the server down
// gracefully (spec.md §5's context.Context-based cancellation).
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return <-errCh
	}
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}

func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

// jsonError mirrors the {status, error} shape of httpd.rs's JsonError,
// with Go-idiomatic field names (exact schema is not a goal).
type jsonError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperror.KindOf(err) {
	case apperror.KindConfigOutOfRange, apperror.KindDesignInfeasible:
		status = http.StatusBadRequest
	case apperror.KindHardwareUnavailable, apperror.KindTransientIO:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, jsonError{Status: status, Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
