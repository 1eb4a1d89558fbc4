package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"custodian/internal/ledger"
	"custodian/internal/market"
	"custodian/internal/repository"
	"custodian/internal/scheduler"
	"custodian/pkg/metrics"
	"custodian/pkg/validator"
)

// PriceBoard lists every symbol the system can quote. Optional; when nil
// the market prices endpoint answers 503.
type PriceBoard interface {
	AllPrices() map[string]decimal.Decimal
}

type APIHandler struct {
	engine         *ledger.Engine
	bot            *scheduler.AutoInvestBot
	prices         PriceBoard
	validator      *validator.RequestValidator
	metrics        *metrics.Collector
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(
	engine *ledger.Engine,
	bot *scheduler.AutoInvestBot,
	prices PriceBoard,
	metrics *metrics.Collector,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		engine:         engine,
		bot:            bot,
		prices:         prices,
		validator:      validator.NewRequestValidator(),
		metrics:        metrics,
		logger:         logger,
		requestTimeout: 30 * time.Second,
	}
}

type CreateAccountRequest struct {
	Password string `json:"password"`
}

type CashRequest struct {
	Pin    string          `json:"pin"`
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	Pin             string          `json:"pin"`
	TargetAccountID string          `json:"target_account_id"`
	Amount          decimal.Decimal `json:"amount"`
}

type PurchaseRequest struct {
	Pin    string          `json:"pin"`
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

type SaleRequest struct {
	Pin      string          `json:"pin"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

type CreatePinRequest struct {
	Password string `json:"password"`
	Pin      string `json:"pin"`
}

type UpdatePinRequest struct {
	Password string `json:"password"`
	OldPin   string `json:"old_pin"`
	NewPin   string `json:"new_pin"`
}

type SubscriptionRequest struct {
	Pin             string          `json:"pin"`
	Amount          decimal.Decimal `json:"amount"`
	IntervalSeconds int64           `json:"interval_seconds"`
}

type PinOnlyRequest struct {
	Pin string `json:"pin"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusForError maps the domain failure taxonomy onto HTTP statuses.
// Anything outside the taxonomy is a store or infrastructure failure
// and surfaces as a 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, ledger.ErrPinNotSet):
		return http.StatusForbidden, "PIN_NOT_SET"
	case errors.Is(err, ledger.ErrInvalidPin):
		return http.StatusForbidden, "INVALID_PIN"
	case errors.Is(err, ledger.ErrInvalidCredentials):
		return http.StatusForbidden, "INVALID_CREDENTIALS"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusBadRequest, "INSUFFICIENT_FUNDS"
	case errors.Is(err, ledger.ErrInsufficientHoldings):
		return http.StatusBadRequest, "INSUFFICIENT_HOLDINGS"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, ledger.ErrSameAccountTransfer):
		return http.StatusBadRequest, "SAME_ACCOUNT_TRANSFER"
	case errors.Is(err, market.ErrPriceUnavailable):
		return http.StatusBadGateway, "PRICE_UNAVAILABLE"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "SERVER_ERROR"
	}
}

func (h *APIHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.Password == "" {
		h.sendError(w, "password is required", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	account, err := h.engine.CreateAccount(ctx, req.Password)
	if err != nil {
		h.handleFailure(w, "create_account", started, err)
		return
	}

	h.recordSuccess("create_account", started)
	h.sendJSON(w, account, http.StatusCreated)
}

func (h *APIHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validateCash(accountID, req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	msg, err := h.engine.Deposit(ctx, accountID, req.Pin, req.Amount)
	if err != nil {
		h.handleFailure(w, "deposit", started, err)
		return
	}

	h.recordSuccess("deposit", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req CashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validateCash(accountID, req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	msg, err := h.engine.Withdraw(ctx, accountID, req.Pin, req.Amount)
	if err != nil {
		h.handleFailure(w, "withdraw", started, err)
		return
	}

	h.recordSuccess("withdraw", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	sourceID := r.PathValue("id")
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validator.ValidateTransfer(sourceID, req.TargetAccountID, req.Amount); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}
	if err := h.validator.ValidatePin(req.Pin); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	msg, err := h.engine.Transfer(ctx, sourceID, req.Pin, req.TargetAccountID, req.Amount)
	if err != nil {
		h.handleFailure(w, "transfer", started, err)
		return
	}

	h.recordSuccess("transfer", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) BuyAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validateTrade(accountID, req.Pin, req.Symbol, req.Amount); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	msg, err := h.engine.BuyAsset(ctx, accountID, req.Pin, req.Symbol, req.Amount)
	if err != nil {
		h.handleFailure(w, "buy_asset", started, err)
		return
	}

	h.recordSuccess("buy_asset", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) SellAssetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validateSale(accountID, req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	msg, err := h.engine.SellAsset(ctx, accountID, req.Pin, req.Symbol, req.Quantity)
	if err != nil {
		h.handleFailure(w, "sell_asset", started, err)
		return
	}

	h.recordSuccess("sell_asset", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) AccountInfoHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	account, err := h.engine.AccountInfo(ctx, accountID)
	if err != nil {
		h.handleFailure(w, "account_info", started, err)
		return
	}

	if h.metrics != nil {
		balance, _ := account.Balance.Float64()
		h.metrics.UpdateAccountBalance(account.ID, balance)
	}
	h.sendJSON(w, account, http.StatusOK)
}

func (h *APIHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accounts, err := h.engine.ActiveAccounts(ctx)
	if err != nil {
		h.handleFailure(w, "list_accounts", started, err)
		return
	}

	h.sendJSON(w, accounts, http.StatusOK)
}

// TransactionsByPeriodHandler serves the platform-wide activity feed. The
// from and to query parameters are RFC 3339; the window defaults to the last
// 24 hours.
func (h *APIHandler) TransactionsByPeriodHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.sendError(w, "from must be RFC 3339", http.StatusBadRequest, "VALIDATION_ERROR")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.sendError(w, "to must be RFC 3339", http.StatusBadRequest, "VALIDATION_ERROR")
			return
		}
		to = parsed
	}
	if to.Before(from) {
		h.sendError(w, "to must not precede from", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	records, err := h.engine.TransactionsByPeriod(ctx, from, to)
	if err != nil {
		h.handleFailure(w, "transactions_by_period", started, err)
		return
	}

	h.sendJSON(w, records, http.StatusOK)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	records, err := h.engine.TransactionHistory(ctx, r.PathValue("id"))
	if err != nil {
		h.handleFailure(w, "history", started, err)
		return
	}
	h.sendJSON(w, records, http.StatusOK)
}

func (h *APIHandler) HoldingsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	holdings, err := h.engine.Holdings(ctx, r.PathValue("id"))
	if err != nil {
		h.handleFailure(w, "holdings", started, err)
		return
	}
	h.sendJSON(w, holdings, http.StatusOK)
}

func (h *APIHandler) NetWorthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	total, err := h.engine.NetWorth(ctx, r.PathValue("id"))
	if err != nil {
		h.handleFailure(w, "net_worth", started, err)
		return
	}
	h.sendJSON(w, map[string]decimal.Decimal{"net_worth": total}, http.StatusOK)
}

func (h *APIHandler) CreatePinHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req CreatePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validator.ValidatePin(req.Pin); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	msg, err := h.engine.CreatePin(ctx, accountID, req.Password, req.Pin)
	if err != nil {
		h.handleFailure(w, "create_pin", started, err)
		return
	}

	h.recordSuccess("create_pin", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusCreated)
}

func (h *APIHandler) UpdatePinHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req UpdatePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validator.ValidatePin(req.NewPin); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	msg, err := h.engine.UpdatePin(ctx, accountID, req.OldPin, req.Password, req.NewPin)
	if err != nil {
		h.handleFailure(w, "update_pin", started, err)
		return
	}

	h.recordSuccess("update_pin", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) CreateSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if err := h.validateCash(accountID, CashRequest{Pin: req.Pin, Amount: req.Amount}); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}
	if req.IntervalSeconds < 0 {
		h.sendError(w, "interval_seconds must not be negative", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	interval := time.Duration(req.IntervalSeconds) * time.Second
	msg, err := h.engine.CreateSubscription(ctx, accountID, req.Pin, req.Amount, interval)
	if err != nil {
		h.handleFailure(w, "create_subscription", started, err)
		return
	}

	h.recordSuccess("create_subscription", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusCreated)
}

func (h *APIHandler) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req PinOnlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	msg, err := h.engine.CancelSubscription(ctx, accountID, req.Pin)
	if err != nil {
		h.handleFailure(w, "cancel_subscription", started, err)
		return
	}

	h.recordSuccess("cancel_subscription", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) EnableAutoInvestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req PinOnlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	msg, err := h.bot.Activate(ctx, accountID, req.Pin)
	if err != nil {
		h.handleFailure(w, "enable_auto_invest", started, err)
		return
	}

	h.recordSuccess("enable_auto_invest", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) DisableAutoInvestHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()
	started := time.Now()

	accountID := r.PathValue("id")
	var req PinOnlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	msg, err := h.bot.Deactivate(ctx, accountID, req.Pin)
	if err != nil {
		h.handleFailure(w, "disable_auto_invest", started, err)
		return
	}

	h.recordSuccess("disable_auto_invest", started)
	h.sendJSON(w, MessageResponse{Message: msg}, http.StatusOK)
}

func (h *APIHandler) MarketPricesHandler(w http.ResponseWriter, r *http.Request) {
	if h.prices == nil {
		h.sendError(w, "Price listing not available", http.StatusServiceUnavailable, "NO_PRICE_BOARD")
		return
	}
	h.sendJSON(w, h.prices.AllPrices(), http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}
	h.sendJSON(w, response, http.StatusOK)
}

func (h *APIHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.requestTimeout)
}

func (h *APIHandler) validateCash(accountID string, req CashRequest) error {
	if err := h.validator.ValidateAccountID(accountID); err != nil {
		return err
	}
	if err := h.validator.ValidatePin(req.Pin); err != nil {
		return err
	}
	return h.validator.ValidateAmount(req.Amount)
}

func (h *APIHandler) validateTrade(accountID, pin, symbol string, size decimal.Decimal) error {
	if err := h.validator.ValidateAccountID(accountID); err != nil {
		return err
	}
	if err := h.validator.ValidatePin(pin); err != nil {
		return err
	}
	if err := h.validator.ValidateSymbol(symbol); err != nil {
		return err
	}
	return h.validator.ValidateAmount(size)
}

func (h *APIHandler) validateSale(accountID string, req SaleRequest) error {
	if err := h.validator.ValidateAccountID(accountID); err != nil {
		return err
	}
	if err := h.validator.ValidatePin(req.Pin); err != nil {
		return err
	}
	if err := h.validator.ValidateSymbol(req.Symbol); err != nil {
		return err
	}
	return h.validator.ValidateQuantity(req.Quantity)
}

func (h *APIHandler) handleFailure(w http.ResponseWriter, operation string, started time.Time, err error) {
	status, code := statusForError(err)
	if h.metrics != nil {
		h.metrics.RecordOperation(operation, time.Since(started), false)
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Operation failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
		h.sendError(w, "Internal server error", status, code)
		return
	}
	h.sendError(w, err.Error(), status, code)
}

func (h *APIHandler) recordSuccess(operation string, started time.Time) {
	if h.metrics != nil {
		h.metrics.RecordOperation(operation, time.Since(started), true)
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse)

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/accounts", h.CreateAccountHandler)
	mux.HandleFunc("GET /api/v1/accounts", h.ListAccountsHandler)
	mux.HandleFunc("GET /api/v1/accounts/{id}", h.AccountInfoHandler)
	mux.HandleFunc("GET /api/v1/transactions", h.TransactionsByPeriodHandler)
	mux.HandleFunc("GET /api/v1/accounts/{id}/history", h.HistoryHandler)
	mux.HandleFunc("GET /api/v1/accounts/{id}/holdings", h.HoldingsHandler)
	mux.HandleFunc("GET /api/v1/accounts/{id}/net-worth", h.NetWorthHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/deposit", h.DepositHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/withdraw", h.WithdrawHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/transfer", h.TransferHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/purchases", h.BuyAssetHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/sales", h.SellAssetHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/pin", h.CreatePinHandler)
	mux.HandleFunc("PUT /api/v1/accounts/{id}/pin", h.UpdatePinHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/subscriptions", h.CreateSubscriptionHandler)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}/subscriptions", h.CancelSubscriptionHandler)
	mux.HandleFunc("POST /api/v1/accounts/{id}/auto-invest", h.EnableAutoInvestHandler)
	mux.HandleFunc("DELETE /api/v1/accounts/{id}/auto-invest", h.DisableAutoInvestHandler)
	mux.HandleFunc("GET /api/v1/market/prices", h.MarketPricesHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}
