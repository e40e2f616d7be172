package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/lang"
	"github.com/ppiankov/pywiz/internal/ratelimit"
	"github.com/ppiankov/pywiz/internal/tracer"
)

// Response headers set on every trace reply.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderOutcome   = "X-Pywiz-Outcome"
)

type traceRequest struct {
	Code     *string `json:"code"`
	Filename string  `json:"filename"`
}

// Handler returns the HTTP API: POST /trace and GET /healthz, wrapped in
// CORS handling for the configured origins.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trace", s.handleTrace)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && slices.Contains(s.Config().Server.AllowedOrigins, origin)
		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
				h.Set("Access-Control-Allow-Headers", req)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if limit := s.Config().Server.MaxBodyBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read body"})
		return
	}

	var req traceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Code == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": `missing "code"`})
		return
	}

	run, err := s.RunTrace(r.Context(), Request{Transport: "http", Filename: req.Filename, Code: *req.Code})
	w.Header().Set(HeaderRequestID, run.RequestID)
	w.Header().Set(HeaderOutcome, run.Outcome)

	var ce *lang.CompileError
	var ee *budget.ExceededError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": ce.Error(),
			"line":  ce.Line,
			"col":   ce.Col,
		})
	case errors.Is(err, ratelimit.ErrLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": err.Error()})
	case errors.As(err, &ee):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     ee.Error(),
			"dimension": ee.Result.Dimension,
			"partial":   run.Result,
		})
	case err != nil:
		s.log.Errorf("trace %s failed: %v", run.RequestID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	default:
		writeDocument(w, run.Result)
	}
}

func writeDocument(w http.ResponseWriter, res tracer.Result) {
	data, err := res.JSON("")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
