package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Layr-Labs/walletlink-go/pkg/types"
)

const maxBodyBytes = 64 << 10

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, types.OpenResponse{Error: "rate limit exceeded"})
		return
	}

	var req types.OpenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, types.OpenResponse{Error: fmt.Sprintf("failed to parse request: %v", err)})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, types.OpenResponse{Error: "url is required"})
		return
	}

	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" {
		writeJSON(w, http.StatusBadRequest, types.OpenResponse{Error: "url must be absolute"})
		return
	}

	// Signing and callback delivery outlive the requester's connection.
	if s.handler == nil || !s.handler(context.WithoutCancel(r.Context()), u) {
		s.logger.Sugar().Debugw("URL not handled", "scheme", u.Scheme, "host", u.Host)
		writeJSON(w, http.StatusNotFound, types.OpenResponse{Handled: false})
		return
	}

	writeJSON(w, http.StatusOK, types.OpenResponse{Handled: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.ObserveBridgeRequest(path, rec.status)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
