package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/suviet/agent/agent"
	"github.com/suviet/agent/config"
)

// Server hosts the chat API, health probe and metrics endpoint.
type Server struct {
	cfg      *config.Config
	agent    *agent.Agent
	registry *prometheus.Registry
	logger   *zap.Logger

	httpServer *http.Server
}

// NewServer creates the server. Start must be called before requests are
// served.
func NewServer(cfg *config.Config, ag *agent.Agent, registry *prometheus.Registry, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		agent:    ag,
		registry: registry,
		logger:   logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()

	s.logger.Info("server listening", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then drains the server.
func (s *Server) WaitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	s.logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": Version})
}

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// handleChatStream runs one turn and streams the result over SSE. Each
// event's data is a JSON object: {"context": ...} carries answer text,
// {"error": ...} a turn failure.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Thread-ID", req.ThreadID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for frag := range s.agent.RunTurn(r.Context(), req.ThreadID, req.Message) {
		switch frag.Kind {
		case agent.FragmentAnswer:
			s.writeEvent(w, flusher, map[string]string{"context": frag.Content})
		case agent.FragmentError:
			s.writeEvent(w, flusher, map[string]string{"error": frag.Err.Error()})
			return
		case agent.FragmentDone:
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal sse payload", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
