package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.Ledger) {
	t.Helper()
	svc := ledger.NewLedger(memory.NewMemoryLedgerStore())
	srv := httptest.NewServer(newRouter(svc, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestCreateAccountAndBalance(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/accounts", `{"id":"alice","initial_balance":"100.50"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "100.50", body["balance"])

	resp, body = do(t, http.MethodGet, srv.URL+"/accounts/alice/balance", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "100.50", body["balance"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/accounts/ghost/balance", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/accounts", `{"id":"bob","initial_balance":"1.001"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransferEndpoint(t *testing.T) {
	srv, svc := newTestServer(t)
	ctx := context.Background()
	_, err := svc.EnsureAccount(ctx, "alice", 10000)
	require.NoError(t, err)
	_, err = svc.EnsureAccount(ctx, "bob", 5000)
	require.NoError(t, err)

	resp, body := do(t, http.MethodPost, srv.URL+"/transfers", `{"sender_id":"alice","recipient_id":"bob","amount":"30"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "30.00", body["amount"])
	assert.Equal(t, "committed", body["status"])
	id := body["id"]

	resp, body = do(t, http.MethodGet, fmt.Sprintf("%s/transactions/%v", srv.URL, id), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["sender_id"])

	cases := []struct {
		body string
		want int
	}{
		{`{"sender_id":"alice","recipient_id":"bob","amount":"1000"}`, http.StatusUnprocessableEntity},
		{`{"sender_id":"alice","recipient_id":"alice","amount":"1"}`, http.StatusBadRequest},
		{`{"sender_id":"alice","recipient_id":"bob","amount":"-1"}`, http.StatusBadRequest},
		{`{"sender_id":"alice","recipient_id":"carol","amount":"1"}`, http.StatusNotFound},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, _ := do(t, http.MethodPost, srv.URL+"/transfers", tc.body, nil)
		assert.Equal(t, tc.want, resp.StatusCode, tc.body)
	}

	balance, err := svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.Amount(7000), balance)
}

func TestTransferIdempotencyKey(t *testing.T) {
	srv, svc := newTestServer(t)
	ctx := context.Background()
	_, _ = svc.EnsureAccount(ctx, "alice", 10000)
	_, _ = svc.EnsureAccount(ctx, "bob", 0)

	headers := map[string]string{"Idempotency-Key": "req-1"}
	payload := `{"sender_id":"alice","recipient_id":"bob","amount":"10"}`

	first, firstBody := do(t, http.MethodPost, srv.URL+"/transfers", payload, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second, secondBody := do(t, http.MethodPost, srv.URL+"/transfers", payload, headers)
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, firstBody["id"], secondBody["id"])

	conflict, _ := do(t, http.MethodPost, srv.URL+"/transfers", `{"sender_id":"alice","recipient_id":"bob","amount":"11"}`, headers)
	assert.Equal(t, http.StatusConflict, conflict.StatusCode)

	balance, err := svc.GetBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.Amount(1000), balance)
}

func TestListEndpoints(t *testing.T) {
	srv, svc := newTestServer(t)
	ctx := context.Background()
	_, _ = svc.EnsureAccount(ctx, "alice", 500)
	_, _ = svc.EnsureAccount(ctx, "bob", 500)
	_, err := svc.Transfer(ctx, "alice", "bob", 100)
	require.NoError(t, err)

	resp, body := do(t, http.MethodGet, srv.URL+"/accounts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10.00", body["total"])
	assert.Len(t, body["accounts"], 2)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/accounts/bob/transactions", nil)
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	var txs []transactionResponse
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&txs))
	require.Len(t, txs, 1)
	assert.Equal(t, "1.00", txs[0].Amount)

	resp, _ = do(t, http.MethodGet, srv.URL+"/transactions/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/transactions/99", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusOf(fmt.Errorf("%w: %w", models.ErrCancelled, context.DeadlineExceeded)))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(fmt.Errorf("%w: %w", models.ErrCancelled, context.Canceled)))
	assert.Equal(t, http.StatusInternalServerError, statusOf(fmt.Errorf("%w: %w", models.ErrStorageFault, errors.New("disk"))))
}
