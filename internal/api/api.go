package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"salespipe/internal/metrics"
	"salespipe/internal/model"
	"salespipe/internal/publish"
)

// Server is the Sales Producer API: health check plus the order ingestion
// endpoint. Handlers are request-scoped and safe to call concurrently; the
// publisher handle is shared.
type Server struct {
	pub            publish.Publisher
	mreg           *metrics.Registry
	publishTimeout time.Duration
}

func NewServer(pub publish.Publisher, mreg *metrics.Registry) *Server {
	return &Server{
		pub:            pub,
		mreg:           mreg,
		publishTimeout: 10 * time.Second,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.instrument("health", s.handleHealth))
	mux.HandleFunc("/order", s.instrument("order", s.handleOrder))
	mux.Handle("/metrics", s.mreg.Handler())
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Sales Producer API",
	})
}

type publishResponse struct {
	Status    string           `json:"status"`
	MessageID string           `json:"message_id"`
	Data      model.SalesEvent `json:"data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 10*1024)
	var req model.OrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}

	ev, err := model.Enrich(req)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: verr.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.publishTimeout)
	defer cancel()
	rcpt, err := s.pub.Publish(ctx, ev)
	if err != nil {
		s.mreg.PublishErrors.Inc()
		log.Printf("publish failed for order %d: %v", ev.OrderID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	s.mreg.OrdersPublished.Inc()

	writeJSON(w, http.StatusOK, publishResponse{
		Status:    "published",
		MessageID: rcpt.MessageID,
		Data:      ev,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// instrument wraps a handler with request count and duration metrics.
func (s *Server) instrument(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(wrapped, r)
		s.mreg.HTTPRequestDuration.WithLabelValues(name, r.Method).Observe(time.Since(start).Seconds())
		s.mreg.HTTPRequestsTotal.WithLabelValues(name, r.Method, strconv.Itoa(wrapped.status)).Inc()
	}
}

// statusWriter captures the response status code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
