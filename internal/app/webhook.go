package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"imgresize/internal/event"

	"go.uber.org/zap"
)

const maxPayloadBytes = 1 << 20

type eventResult struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	Outcome    string `json:"outcome"`
	ResizedKey string `json:"resized_key,omitempty"`
	Error      string `json:"error,omitempty"`
}

type webhookResponse struct {
	Status  string        `json:"status"`
	Results []eventResult `json:"results,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Routes returns the webhook HTTP handler
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", a.handleEvents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ok"})
	})
	mux.Handle("/metrics", a.metrics.Handler())
	return mux
}

func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, webhookResponse{Status: "error", Error: "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, webhookResponse{Status: "error", Error: err.Error()})
		return
	}

	events, err := event.Decode(body)
	if errors.Is(err, event.ErrNoEvents) {
		// Removals and test deliveries are acknowledged so the sender does not retry
		writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}
	if err != nil {
		a.logger.Warn("Rejected webhook payload", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, webhookResponse{Status: "error", Error: err.Error()})
		return
	}

	resp := webhookResponse{Status: "ok", Results: make([]eventResult, 0, len(events))}
	for _, ev := range events {
		res, err := a.processor.Process(r.Context(), ev)
		result := eventResult{
			Bucket:     ev.Bucket,
			Key:        ev.Key,
			Outcome:    string(res.Outcome),
			ResizedKey: res.Paths.ResizedKey,
		}
		if err != nil {
			result.Outcome = "failed"
			result.Error = err.Error()
			resp.Status = "error"
			resp.Results = append(resp.Results, result)
			writeJSON(w, http.StatusInternalServerError, resp)
			return
		}
		resp.Results = append(resp.Results, result)
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Serve runs the webhook server until ctx is cancelled
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.cfg.MetricsAddr != "" && a.cfg.MetricsAddr != a.cfg.Server.Addr {
		a.startMetrics(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Webhook server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("Webhook server stopped")
	return nil
}
