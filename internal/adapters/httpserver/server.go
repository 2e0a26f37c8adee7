package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mailwarden/mailwarden/internal/adapters/dom"
	"github.com/mailwarden/mailwarden/internal/adapters/manual"
	"github.com/mailwarden/mailwarden/internal/core"
	"go.uber.org/zap"
)

// Server exposes the analyzer over HTTP. Browser-side callers post the view
// event plus whatever evidence they scraped; the response is the finished
// analysis, or null when analysis is suspended.
type Server struct {
	analyzer   *core.Analyzer
	domSource  *dom.Provider
	manSource  *manual.Provider
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer creates a new analysis HTTP server.
func NewServer(
	analyzer *core.Analyzer,
	domSource *dom.Provider,
	manSource *manual.Provider,
	logger *zap.Logger,
	listenAddr string,
) *Server {
	s := &Server{
		analyzer:  analyzer,
		domSource: domSource,
		manSource: manSource,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// analyzeRequest is the body of POST /analyze.
type analyzeRequest struct {
	View       core.View     `json:"view"`
	Snapshot   *dom.Snapshot `json:"snapshot,omitempty"`
	RawHeaders string        `json:"raw_headers,omitempty"`
	Force      bool          `json:"force,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Snapshot != nil && s.domSource != nil {
		if req.Snapshot.MessageID == "" {
			req.Snapshot.MessageID = req.View.MessageID
		}
		s.domSource.Supply(*req.Snapshot)
	}
	if req.RawHeaders != "" && s.manSource != nil {
		s.manSource.Supply(req.View.MessageID, req.RawHeaders)
	}

	var (
		analysis *core.EmailAnalysis
		err      error
	)
	if req.Force {
		analysis, err = s.analyzer.ForceAnalyze(r.Context(), req.View)
	} else {
		analysis, err = s.analyzer.Analyze(r.Context(), req.View)
	}
	if err != nil {
		s.logger.Error("Analysis failed",
			zap.String("message_id", req.View.MessageID),
			zap.Error(err))
		http.Error(w, "analysis failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(analysis); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting analysis HTTP server",
		zap.String("listen_addr", s.httpServer.Addr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping analysis HTTP server")
	return s.httpServer.Close()
}
