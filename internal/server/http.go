package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/smart-quiz/internal/config"
	"github.com/gokatarajesh/smart-quiz/internal/logging"
)

// WSUpgrader handles WebSocket upgrades (configure CORS/security as needed).
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Routes is implemented by every handler that mounts endpoints.
type Routes interface {
	Register(mux *http.ServeMux)
}

// StorageProbe reports on the key-value store.
type StorageProbe interface {
	Ping(ctx context.Context) error
	Degraded() bool
}

// ConnectionCounter reports open WebSocket connections.
type ConnectionCounter interface {
	Count() int
}

// Deps are the shared pieces the base routes need.
type Deps struct {
	Storage     StorageProbe
	Connections ConnectionCounter
	Gatherer    prometheus.Gatherer
	Middleware  func(http.Handler) http.Handler
}

type healthResponse struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Connections int    `json:"connections"`
}

// NewHTTPServer wires base routes (health, metrics, ping) plus every handler in routes.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, deps Deps, routes ...Routes) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewMux(logger, deps, routes...),
	}
}

// NewMux builds the request handler without binding an address.
func NewMux(logger zerolog.Logger, deps Deps, routes ...Routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Storage: "durable"}
		if deps.Storage != nil && deps.Storage.Degraded() {
			resp.Storage = "memory"
		}
		if deps.Connections != nil {
			resp.Connections = deps.Connections.Count()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx := loggingContext(r.Context(), logger)
		if err := pingDependencies(ctx, deps.Storage); err != nil {
			l := logging.FromContext(ctx)
			l.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	for _, r := range routes {
		if r != nil {
			r.Register(mux)
		}
	}

	var handler http.Handler = mux
	if deps.Middleware != nil {
		handler = deps.Middleware(handler)
	}
	return handler
}

func pingDependencies(ctx context.Context, store StorageProbe) error {
	if store == nil {
		return nil
	}
	return store.Ping(ctx)
}

func loggingContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logging.IntoContext(ctx, logger)
}
