package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candlebot/internal/config"
	"candlebot/internal/db"
	"candlebot/internal/exchange"
	"candlebot/internal/journal"
	"candlebot/internal/position"
)

func testServer(t *testing.T, token string) (*Server, *db.MemoryJournal) {
	t.Helper()

	mem := db.NewMemory()
	m := position.NewManager(config.Default().Strategy, "BTCUSDT", 0.01, &exchange.MockExchange{}, mem, nil)
	s := NewServer(config.APIConfig{ListenAddr: ":0", AuthToken: token}, m, mem, nil, false)
	return s, mem
}

func doRequest(s *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerHealth(t *testing.T) {
	s, _ := testServer(t, "secret")

	rec := doRequest(s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health check must not require auth")
}

func TestServerAuth(t *testing.T) {
	s, _ := testServer(t, "secret")

	tests := []struct {
		name  string
		token string
		code  int
	}{
		{name: "missing token", token: "", code: http.StatusUnauthorized},
		{name: "wrong token", token: "nope", code: http.StatusUnauthorized},
		{name: "valid token", token: "secret", code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, "/status", tt.token)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestServerAuthDisabledWhenNoToken(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(s, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerStatus(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(s, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Position position.Status `json:"position"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, position.Flat, body.Position.State)
}

func TestServerTrades(t *testing.T) {
	s, mem := testServer(t, "")

	err := mem.RecordTrade(context.Background(), journal.Trade{
		Time: time.Now(), Symbol: "BTCUSDT", Side: "BUY", Price: 100, Quantity: 0.01,
	})
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count  int             `json:"count"`
		Trades []journal.Trade `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Trades, 1)
	assert.Equal(t, "BUY", body.Trades[0].Side)
}

func TestServerTradesBadHours(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(s, http.MethodGet, "/trades?hours=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/trades?hours=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerSellWhileFlat(t *testing.T) {
	s, _ := testServer(t, "")

	rec := doRequest(s, http.MethodPost, "/sell", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res position.ExitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "warning", res.Status)
}
