package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGatewayClient(srv *httptest.Server) *GatewayClient {
	cfg := loadConfigFromEnv()
	cfg.GatewayURL = srv.URL
	cfg.ReqTimeout = 2 * time.Second
	cfg.DrainWindow = 20 * time.Millisecond
	return NewGatewayClient(cfg)
}

func TestGatewayQualify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/contracts/qualify", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AAPL", body["symbol"])
		assert.Equal(t, "SMART", body["exchange"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ContractRef{ConID: 265598, Symbol: "AAPL", Currency: "USD", Exchange: "SMART"})
	}))
	defer srv.Close()

	ref, err := testGatewayClient(srv).Qualify(context.Background(), ContractSpec{Symbol: "AAPL", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, int64(265598), ref.ConID)
}

func TestGatewayQualifyErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":200,"message":"No security definition has been found"}`))
	}))
	defer srv.Close()

	_, err := testGatewayClient(srv).Qualify(context.Background(), ContractSpec{Symbol: "XXXX", Currency: "USD"})
	require.Error(t, err)
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 200, gerr.Code)
	assert.Equal(t, ErrClassContract, classifyCode(gerr.Code))
}

func TestGatewayHTTPErrorUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	_, err := testGatewayClient(srv).Positions(context.Background())
	require.Error(t, err)
	var gerr *GatewayError
	assert.False(t, errors.As(err, &gerr), "plain-text failures stay transient, not classified")
	assert.Contains(t, err.Error(), "gateway http 502")
}

func TestGatewayFetchBars(t *testing.T) {
	t0 := time.Date(2026, 6, 2, 13, 30, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bars", r.URL.Path)
		assert.Equal(t, "2 D", r.URL.Query().Get("duration"))
		assert.Equal(t, "5 mins", r.URL.Query().Get("bar_size"))
		assert.Equal(t, "true", r.URL.Query().Get("rth"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bars": []Bar{
				{Time: t0, Open: 100, High: 101, Low: 99.5, Close: 100.5, Volume: 1200},
				{Time: t0.Add(5 * time.Minute), Open: 100.5, High: 101.2, Low: 100.1, Close: 101.0, Volume: 900},
			},
		})
	}))
	defer srv.Close()

	ref := &ContractRef{ConID: 265598, Symbol: "AAPL"}
	s, err := testGatewayClient(srv).FetchBars(context.Background(), ref, "2 D", "5 mins", true)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 101.0, s.Last().Close)
}

func TestGatewayFetchBarsEmptyIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"bars":[]}`))
	}))
	defer srv.Close()

	s, err := testGatewayClient(srv).FetchBars(context.Background(), &ContractRef{ConID: 1, Symbol: "THIN"}, "2 D", "5 mins", true)
	require.NoError(t, err, "zero rows is a data-quality outcome, not a transport error")
	assert.Zero(t, s.Len())
}

func TestGatewayPlaceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders", r.URL.Path)
		var body struct {
			ConID int64 `json:"con_id"`
			OrderSpec
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(265598), body.ConID)
		assert.Equal(t, SideBuy, body.Side)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(OrderHandle{OrderID: 77, Status: "PreSubmitted"})
	}))
	defer srv.Close()

	h, err := testGatewayClient(srv).PlaceOrder(context.Background(), &ContractRef{ConID: 265598, Symbol: "AAPL"},
		OrderSpec{Side: SideBuy, Type: TypeMarket, Qty: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(77), h.OrderID)
	assert.Equal(t, "AAPL", h.Symbol, "symbol backfilled from the contract")
}

func TestGatewayConnectRetriesThenFails(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"connected":false}`))
	}))
	defer srv.Close()

	cfg := loadConfigFromEnv()
	cfg.GatewayURL = srv.URL
	cfg.ConnectAttempts = 3
	cfg.ConnectBackoff = time.Millisecond
	err := NewGatewayClient(cfg).Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, hits)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
