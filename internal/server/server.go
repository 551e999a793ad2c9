// Package server exposes the webhook transport: one endpoint that accepts a
// raw SMS record, checks the pre-shared secret, and runs the pipeline.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lusakalabs/kwachaflow/internal/model"
)

// secretHeader carries the pre-shared webhook secret.
const secretHeader = "X-Webhook-Secret"

// Processor runs the ingestion pipeline for one message.
type Processor interface {
	Process(ctx context.Context, msg model.Message) (*model.Result, error)
}

// Server is the HTTP webhook transport.
type Server struct {
	processor Processor
	logger    *slog.Logger
	httpSrv   *http.Server
	secret    string
	now       func() time.Time
}

// New creates a server listening on addr.
func New(addr, secret string, processor Processor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		processor: processor,
		secret:    secret,
		logger:    logger,
		now:       time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("webhook server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// ingestRequest is the inbound message contract. ReceivedAt is best-effort
// parseable; invalid or missing values fall back to the processing instant.
type ingestRequest struct {
	Sender     string `json:"sender"`
	Body       string `json:"body"`
	ReceivedAt string `json:"received_at"`
	Source     string `json:"source"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(s.secret)) != 1 {
		s.logger.Warn("rejected request with bad webhook secret", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if req.Sender == "" || req.Body == "" {
		http.Error(w, "sender and body are required", http.StatusBadRequest)
		return
	}

	msg := model.Message{
		Sender:     req.Sender,
		Body:       req.Body,
		ReceivedAt: s.parseReceivedAt(req.ReceivedAt),
		Source:     req.Source,
	}

	result, err := s.processor.Process(r.Context(), msg)
	if err != nil {
		s.logger.Error("pipeline run failed",
			"sender", msg.Sender,
			"source", msg.Source,
			"reason", result.Reason,
			"error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("failed to encode result", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// timestampLayouts are tried in order when parsing the caller's timestamp.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

func (s *Server) parseReceivedAt(raw string) time.Time {
	if raw == "" {
		return s.now()
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	s.logger.Warn("unparseable received_at, using processing time", "received_at", raw)
	return s.now()
}
