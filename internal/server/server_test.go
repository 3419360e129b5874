package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"async-transfers/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		ServerPort:         "0",
		StoreDriver:        config.StoreDriverMemory,
		ProcessingInterval: time.Second,
		TransferTTL:        time.Minute,
		ClaimGrace:         time.Minute,
		Dispatcher:         config.DispatcherPool,
		WorkerCount:        2,
		WorkerQueueSize:    8,
		ExchangeRates:      "USD:1,EUR:0.5",
	}
}

func post(t *testing.T, url string, body interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Less(t, resp.StatusCode, 300)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func TestServer_ProcessesTransfersInMemory(t *testing.T) {
	srv, port, err := StartServer(memoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
	})
	baseURL := fmt.Sprintf("http://localhost:%s", port)

	resp, err := http.Get(baseURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	a := post(t, baseURL+"/accounts", map[string]string{"owner_id": "a", "initial_balance": "1000", "currency": "USD"})
	b := post(t, baseURL+"/accounts", map[string]string{"owner_id": "b", "initial_balance": "0", "currency": "EUR"})
	transfer := post(t, baseURL+"/transfers", map[string]string{
		"source_account_id":      a["account_id"].(string),
		"destination_account_id": b["account_id"].(string),
		"amount":                 "100",
		"currency":               "USD",
	})
	assert.Equal(t, "NEW", transfer["status"])

	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/transfers/" + transfer["transfer_id"].(string))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var envelope struct {
			Data map[string]interface{} `json:"data"`
		}
		if json.NewDecoder(resp.Body).Decode(&envelope) != nil {
			return false
		}
		return envelope.Data["status"] == "COMPLETED"
	}, 10*time.Second, 100*time.Millisecond)

	resp, err = http.Get(baseURL + "/accounts/" + b["account_id"].(string))
	require.NoError(t, err)
	defer resp.Body.Close()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "50", envelope.Data["balance"])
}

func TestNewServer_InvalidExchangeRates(t *testing.T) {
	cfg := memoryConfig()
	cfg.ExchangeRates = "USD:-1"

	_, _, err := StartServer(cfg)
	assert.Error(t, err)
}
