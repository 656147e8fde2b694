// Package server exposes the policy engine over HTTP for agents that cannot
// run a hook process per tool call.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gzhole/toolgate/internal/audit"
	"github.com/gzhole/toolgate/internal/policy"
)

// MaxEnvelopeBytes bounds the request body of /v1/evaluate.
const MaxEnvelopeBytes = 4 << 20

// state is swapped as a unit when the configuration is reloaded.
type state struct {
	engine   *policy.Engine
	recorder *audit.Recorder
}

type Server struct {
	current    atomic.Pointer[state]
	apiKeyHash []byte
	logger     *zap.Logger
	router     chi.Router
	server     *http.Server
}

type Options struct {
	Engine *policy.Engine
	// Recorder receives every evaluation; nil disables auditing.
	Recorder *audit.Recorder
	// APIKeyHash is a bcrypt hash. When empty, requests are not authenticated.
	APIKeyHash string
	Logger     *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if opts.APIKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(opts.APIKeyHash)); err != nil {
			return nil, fmt.Errorf("server: api key hash: %w", err)
		}
	}

	s := &Server{
		apiKeyHash: []byte(opts.APIKeyHash),
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.current.Store(&state{
		engine:   opts.Engine,
		recorder: opts.Recorder.WithMode(opts.Engine.Mode()),
	})
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Engine returns the engine currently serving requests.
func (s *Server) Engine() *policy.Engine {
	return s.current.Load().engine
}

// SetEngine swaps the engine used for subsequent requests. In-flight
// requests finish on the engine they started with.
func (s *Server) SetEngine(e *policy.Engine) {
	if e == nil {
		return
	}
	old := s.current.Load()
	s.current.Store(&state{engine: e, recorder: old.recorder.WithMode(e.Mode())})
	s.logger.Info("policy engine reloaded", zap.String("mode", string(e.Mode())))
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/v1/evaluate", s.handleEvaluate)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("toolgate server listening",
		zap.String("addr", addr),
		zap.Bool("auth", len(s.apiKeyHash) > 0))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type evaluateResponse struct {
	Decision policy.Decision `json:"decision"`
	Category policy.Category `json:"category,omitempty"`
	Message  string          `json:"message,omitempty"`
	Detector string          `json:"detector,omitempty"`
	Mode     policy.Mode     `json:"mode"`
	// Enforced is false when a block is only reported (monitor mode).
	Enforced bool   `json:"enforced"`
	Error    string `json:"error,omitempty"`
}

// handleEvaluate answers 200 with a decision for every readable request.
// Oversized or unreadable bodies are allowed like malformed envelopes.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	st := s.current.Load()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxEnvelopeBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = fmt.Errorf("envelope larger than %d bytes", MaxEnvelopeBytes)
		}
		s.logger.Warn("unreadable envelope, allowing", zap.Error(err))
		writeJSON(w, http.StatusOK, evaluateResponse{
			Decision: policy.DecisionAllow,
			Mode:     st.engine.Mode(),
			Error:    err.Error(),
		})
		return
	}

	inv, res := st.engine.EvaluateJSON(body)
	// Recorded whenever the envelope named a tool, faults included.
	if inv.ToolName != "" {
		st.recorder.Record(r.Context(), inv, res)
	}

	resp := evaluateResponse{
		Decision: res.Decision,
		Category: res.Category,
		Message:  res.Message,
		Detector: res.DetectorID,
		Mode:     st.engine.Mode(),
		Enforced: res.Blocked() && st.engine.Mode() == policy.ModeEnforce,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mode":      s.Engine().Mode(),
		"detectors": len(s.Engine().Registry().Detectors()),
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeyHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok || bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(token)) != nil {
			s.logger.Warn("auth failed",
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", chimw.GetReqID(r.Context())))
			w.Header().Set("WWW-Authenticate", `Bearer realm="toolgate"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
