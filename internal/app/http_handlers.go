package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jarvis394/snapshot-interpolation/internal/net/ws"
	"github.com/jarvis394/snapshot-interpolation/internal/observability"
	"github.com/jarvis394/snapshot-interpolation/internal/telemetry"
)

type ServerHandlerConfig struct {
	Metrics       *telemetry.Prometheus
	TickRate      float64
	Observability observability.Config
}

// NewServerHandler routes the feed, health, diagnostics and metrics endpoints.
func NewServerHandler(broadcaster *ws.Broadcaster, cfg ServerHandlerConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/feed", broadcaster.Handle)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Status      string  `json:"status"`
			ServerTime  int64   `json:"serverTime"`
			Subscribers int     `json:"subscribers"`
			LastFrame   uint64  `json:"lastFrame"`
			TickRate    float64 `json:"tickRate"`
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			Subscribers: broadcaster.Subscribers(),
			TickRate:    cfg.TickRate,
		}
		if last, ok := broadcaster.Last(); ok {
			payload.LastFrame = last.Sequence
		}

		data, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, "failed to encode", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics.Handler())
	}
	observability.Register(mux, cfg.Observability)

	return mux
}
