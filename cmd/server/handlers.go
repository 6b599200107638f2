package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/sheikh-saqib/wallet-ledger/internal/metrics"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

type api struct {
	ledger *ledger.Ledger
	logger zerolog.Logger
}

func newRouter(l *ledger.Ledger, logger zerolog.Logger) http.Handler {
	a := &api{ledger: l, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.accessLog)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", a.listAccounts)
		r.Post("/", a.createAccount)
		r.Get("/{id}/balance", a.getBalance)
		r.Get("/{id}/transactions", a.listTransactions)
	})
	r.Post("/transfers", a.createTransfer)
	r.Get("/transactions/{id}", a.getTransaction)

	return r
}

func (a *api) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

type accountResponse struct {
	ID        string    `json:"id"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID          uint64    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAccountResponse(acct models.Account) accountResponse {
	return accountResponse{ID: acct.ID, Balance: acct.Balance.String(), CreatedAt: acct.CreatedAt}
}

func toTransactionResponse(tx models.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		SenderID:    tx.SenderID,
		RecipientID: tx.RecipientID,
		Amount:      tx.Amount.String(),
		Status:      string(tx.Status),
		CreatedAt:   tx.CreatedAt,
	}
}

type createAccountRequest struct {
	ID             string `json:"id"`
	InitialBalance string `json:"initial_balance"`
}

func (a *api) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InitialBalance == "" {
		req.InitialBalance = "0"
	}
	initial, err := models.ParseAmount(req.InitialBalance)
	if err != nil {
		a.fail(w, err)
		return
	}

	acct, err := a.ledger.EnsureAccount(r.Context(), req.ID, initial)
	if err != nil {
		a.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAccountResponse(acct))
}

func (a *api) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.ledger.ListAccounts(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	var total models.Amount
	for _, acct := range accounts {
		out = append(out, toAccountResponse(acct))
		total += acct.Balance
	}
	respondJSON(w, http.StatusOK, map[string]any{"accounts": out, "total": total.String()})
}

func (a *api) getBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	balance, err := a.ledger.GetBalance(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"account_id": id, "balance": balance.String()})
}

func (a *api) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := a.ledger.ListTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *api) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "transaction id must be a positive integer")
		return
	}
	tx, err := a.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionResponse(tx))
}

type createTransferRequest struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Amount      string `json:"amount"`
}

func (a *api) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		a.fail(w, err)
		return
	}

	var (
		tx       models.Transaction
		replayed bool
	)
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		tx, replayed, err = a.ledger.TransferIdempotent(r.Context(), key, req.SenderID, req.RecipientID, amount)
	} else {
		tx, err = a.ledger.Transfer(r.Context(), req.SenderID, req.RecipientID, amount)
	}
	if err != nil {
		a.fail(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	respondJSON(w, status, toTransactionResponse(tx))
}

// statusOf maps the ledger error taxonomy onto HTTP.
func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidTransfer),
		errors.Is(err, models.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *api) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		a.logger.Error().Err(err).Msg("request failed")
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
