package health

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"go.uber.org/zap"
)

// DefaultPort is used when no port is configured.
const DefaultPort = 8080

// Server serves /health, /status, / and /metrics.
type Server struct {
	status     *Status
	metrics    *Metrics
	staleAfter time.Duration
	log        *logger.Logger

	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a server. staleAfter > 0 makes /health fail when the running
// session has not ticked for that long. metrics may be nil.
func NewServer(status *Status, metrics *Metrics, staleAfter time.Duration, log *logger.Logger) *Server {
	return &Server{
		status:     status,
		metrics:    metrics,
		staleAfter: staleAfter,
		log:        log.Named("health"),
		httpServer: nil,
		listener:   nil,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	if s.metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}

// Start listens on address and serves in the background.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("Health server stopped", zap.Error(err))
		}
	}()

	s.log.Info("Health server listening", zap.String("address", listener.Addr().String()))

	return nil
}

// Run serves until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context, address string) error {
	if err := s.Start(address); err != nil {
		return err
	}

	<-ctx.Done()

	return s.Stop()
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

type healthResponse struct {
	Status         string  `json:"status"`
	Timestamp      float64 `json:"timestamp"`
	AutotradeState string  `json:"autotrade_status"`
	LastUpdate     float64 `json:"last_update"`
}

type statusResponse struct {
	Snapshot

	Running       bool    `json:"autotrade_running"`
	UptimeSeconds float64 `json:"uptime"`
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}

	return float64(t.UnixNano()) / float64(time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()

	code := http.StatusOK
	state := "healthy"

	if s.status.Stale(s.staleAfter) {
		code = http.StatusServiceUnavailable
		state = "stale"
	}

	writeJSON(w, code, healthResponse{
		Status:         state,
		Timestamp:      unixSeconds(s.status.now()),
		AutotradeState: string(snap.Status),
		LastUpdate:     unixSeconds(snap.LastUpdate),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()

	writeJSON(w, http.StatusOK, statusResponse{
		Snapshot:      snap,
		Running:       snap.Status == types.EngineStatusRunning,
		UptimeSeconds: s.status.Uptime().Seconds(),
	})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>US Equity Auto Trading</title>
<meta charset="utf-8">
<meta http-equiv="refresh" content="30">
</head>
<body>
<h1>US Equity Auto Trading</h1>
<p><strong>Status:</strong> {{.Status}}</p>
<p><strong>Phase:</strong> {{.Phase}}</p>
<p><strong>Open positions:</strong> {{.OpenPositions}}</p>
<p><strong>Last update:</strong> {{.LastUpdate}}</p>
<p><strong>Uptime:</strong> {{.Uptime}}</p>
<ul>
<li><a href="/health">/health</a></li>
<li><a href="/status">/status</a></li>
<li><a href="/metrics">/metrics</a></li>
</ul>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	snap := s.status.Snapshot()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	_ = indexTemplate.Execute(w, map[string]any{
		"Status":        snap.Status,
		"Phase":         snap.Phase,
		"OpenPositions": snap.OpenPositions,
		"LastUpdate":    snap.LastUpdate.Format(time.DateTime),
		"Uptime":        s.status.Uptime().Truncate(time.Second).String(),
	})
}
