package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockerhq/stocker/internal/config"
	"github.com/stockerhq/stocker/internal/modules/feed"
	feedhandlers "github.com/stockerhq/stocker/internal/modules/feed/handlers"
	"github.com/stockerhq/stocker/internal/modules/ledger"
	ledgerhandlers "github.com/stockerhq/stocker/internal/modules/ledger/handlers"
	"github.com/stockerhq/stocker/internal/modules/portfolio"
	portfoliohandlers "github.com/stockerhq/stocker/internal/modules/portfolio/handlers"
	"github.com/stockerhq/stocker/internal/modules/reporting"
	reportinghandlers "github.com/stockerhq/stocker/internal/modules/reporting/handlers"
	"github.com/stockerhq/stocker/internal/modules/trading"
	tradinghandlers "github.com/stockerhq/stocker/internal/modules/trading/handlers"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()

	simulator, err := feed.New(feed.Config{
		Instruments: feed.DefaultUniverse(),
		PriceFloor:  decimal.RequireFromString("0.01"),
		Seed:        42,
	}, log)
	require.NoError(t, err)

	orders := ledger.NewMemoryOrderRepository(log)
	positions := portfolio.NewMemoryPositionRepository(log)
	engine := trading.NewEngine(simulator, orders, positions, log)
	reconciler := trading.NewReconciler(orders, positions, engine, log)
	reportingService := reporting.NewService(simulator, orders, positions, log)

	cfg := &config.Config{
		DataDir:      t.TempDir(),
		Port:         0,
		DevMode:      true,
		Storage:      config.StorageMemory,
		TickInterval: 10 * time.Second,
	}

	srv := New(Config{
		Log:    log,
		Config: cfg,
		Modules: []RouteRegistrar{
			feedhandlers.NewHandler(simulator, cfg.TickInterval, log),
			ledgerhandlers.NewHandler(orders, log),
			portfoliohandlers.NewHandler(reportingService, log),
			tradinghandlers.NewHandler(engine, reconciler, log),
			reportinghandlers.NewHandler(reportingService, log),
		},
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postOrder(t *testing.T, ts *httptest.Server, body map[string]interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/trading/orders", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFeedPricesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/feed/prices")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Prices []struct {
				Symbol string `json:"symbol"`
				Price  string `json:"price"`
			} `json:"prices"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Data.Prices)
}

func TestOrderRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp := postOrder(t, ts, map[string]interface{}{
		"holder_id": "alice",
		"symbol":    "AAPL",
		"side":      "BUY",
		"quantity":  5,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var executed struct {
		Data struct {
			Execution struct {
				OrderUID string `json:"order_uid"`
			} `json:"execution"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&executed))
	assert.NotEmpty(t, executed.Data.Execution.OrderUID)

	// The portfolio view reflects the trade
	pResp, err := http.Get(ts.URL + "/api/portfolio/alice")
	require.NoError(t, err)
	defer pResp.Body.Close()
	require.Equal(t, http.StatusOK, pResp.StatusCode)

	var pBody struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(pResp.Body).Decode(&pBody))
	assert.Equal(t, 1, pBody.Data.Count)

	// The trade history records it
	hResp, err := http.Get(ts.URL + "/api/ledger/trades/alice")
	require.NoError(t, err)
	defer hResp.Body.Close()
	require.Equal(t, http.StatusOK, hResp.StatusCode)
}

func TestOrderErrorStatuses(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{
			name:   "unknown symbol",
			body:   map[string]interface{}{"holder_id": "alice", "symbol": "NOPE", "side": "BUY", "quantity": 1},
			status: http.StatusBadRequest,
		},
		{
			name:   "zero quantity",
			body:   map[string]interface{}{"holder_id": "alice", "symbol": "AAPL", "side": "BUY", "quantity": 0},
			status: http.StatusBadRequest,
		},
		{
			name:   "bad side",
			body:   map[string]interface{}{"holder_id": "alice", "symbol": "AAPL", "side": "HOLD", "quantity": 1},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing holder",
			body:   map[string]interface{}{"symbol": "AAPL", "side": "BUY", "quantity": 1},
			status: http.StatusBadRequest,
		},
		{
			name:   "sell without position",
			body:   map[string]interface{}{"holder_id": "alice", "symbol": "AAPL", "side": "SELL", "quantity": 1},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postOrder(t, ts, tt.body)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := postOrder(t, ts, map[string]interface{}{
		"holder_id": "alice",
		"symbol":    "MSFT",
		"side":      "BUY",
		"quantity":  2,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sResp, err := http.Get(ts.URL + "/api/admin/summary")
	require.NoError(t, err)
	defer sResp.Body.Close()
	require.Equal(t, http.StatusOK, sResp.StatusCode)

	var summary struct {
		Data struct {
			Summary struct {
				Holders     int   `json:"holders"`
				TotalTrades int64 `json:"total_trades"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(sResp.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Data.Summary.Holders)
	assert.Equal(t, int64(1), summary.Data.Summary.TotalTrades)

	rResp, err := http.Post(ts.URL+"/api/admin/reconcile", "application/json", nil)
	require.NoError(t, err)
	defer rResp.Body.Close()
	assert.Equal(t, http.StatusOK, rResp.StatusCode)
}
