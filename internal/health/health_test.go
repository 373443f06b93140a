package health

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/internal/types"
	"github.com/stretchr/testify/suite"
)

type HealthTestSuite struct {
	suite.Suite
	now     time.Time
	status  *Status
	metrics *Metrics
	server  *Server
}

func TestHealthSuite(t *testing.T) {
	suite.Run(t, new(HealthTestSuite))
}

func (suite *HealthTestSuite) SetupTest() {
	suite.now = time.Date(2025, 6, 2, 13, 35, 0, 0, time.UTC)
	suite.status = NewStatus(func() time.Time { return suite.now })
	suite.metrics = NewMetrics()
	suite.server = NewServer(suite.status, suite.metrics, time.Minute, logger.NewNopLogger())
}

func (suite *HealthTestSuite) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	suite.server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func (suite *HealthTestSuite) TestHealthStarting() {
	rec := suite.get("/health")
	suite.Equal(http.StatusOK, rec.Code)

	var body healthResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal("healthy", body.Status)
	suite.Equal("starting", body.AutotradeState)
	suite.Equal(float64(suite.now.Unix()), body.Timestamp)
}

func (suite *HealthTestSuite) TestHealthStale() {
	suite.status.SetStatus(types.EngineStatusRunning, nil)
	suite.status.Beat(suite.now, types.PhaseActive, 2)

	suite.Equal(http.StatusOK, suite.get("/health").Code)

	suite.now = suite.now.Add(2 * time.Minute)
	rec := suite.get("/health")
	suite.Equal(http.StatusServiceUnavailable, rec.Code)
	suite.Contains(rec.Body.String(), `"stale"`)

	// a stopped session is not stale
	suite.status.SetStatus(types.EngineStatusStopped, nil)
	suite.Equal(http.StatusOK, suite.get("/health").Code)
}

func (suite *HealthTestSuite) TestStatus() {
	suite.status.SetStatus(types.EngineStatusRunning, nil)
	suite.status.Beat(suite.now, types.PhaseActive, 3)
	suite.status.SetStatus(types.EngineStatusRunning, errors.New("price timeout"))
	suite.now = suite.now.Add(90 * time.Second)

	rec := suite.get("/status")
	suite.Equal(http.StatusOK, rec.Code)

	var body map[string]any
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal(true, body["autotrade_running"])
	suite.Equal("ACTIVE", body["phase"])
	suite.Equal(float64(3), body["open_positions"])
	suite.Equal("price timeout", body["last_error"])
	suite.Equal(90.0, body["uptime"])
}

func (suite *HealthTestSuite) TestIndex() {
	rec := suite.get("/")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Header().Get("Content-Type"), "text/html")
	suite.Contains(rec.Body.String(), "<strong>Status:</strong> starting")
}

func (suite *HealthTestSuite) TestMetrics() {
	suite.metrics.ObserveTick(suite.now, types.PhaseActive, 2)
	suite.metrics.ObserveOrder(types.PurchaseTypeBuy, types.OrderStatusFilled)
	suite.metrics.ObserveExit(types.OrderReasonStopLoss)
	suite.metrics.SetBuyingPower(1234.5)

	rec := suite.get("/metrics")
	suite.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	suite.Contains(body, "autotrade_ticks_total 1")
	suite.Contains(body, "autotrade_open_positions 2")
	suite.Contains(body, `autotrade_session_phase{phase="ACTIVE"} 1`)
	suite.Contains(body, `autotrade_session_phase{phase="CLOSED"} 0`)
	suite.Contains(body, `autotrade_orders_total{outcome="FILLED",side="BUY"} 1`)
	suite.Contains(body, `autotrade_exit_signals_total{reason="stop_loss"} 1`)
	suite.Contains(body, "autotrade_buying_power_usd 1234.5")
}

func (suite *HealthTestSuite) TestMetricsDisabled() {
	server := NewServer(suite.status, nil, 0, logger.NewNopLogger())
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	suite.Equal(http.StatusNotFound, rec.Code)
}

func (suite *HealthTestSuite) TestStartStop() {
	suite.Require().NoError(suite.server.Start("127.0.0.1:0"))
	defer func() { suite.NoError(suite.server.Stop()) }()

	resp, err := http.Get("http://" + suite.server.Addr() + "/health")
	suite.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.True(strings.Contains(string(body), "healthy"))
}
