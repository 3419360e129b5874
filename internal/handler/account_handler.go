package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
	"async-transfers/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
	logger         *slog.Logger
}

func NewAccountHandler(accountService *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

type CreateAccountRequest struct {
	AccountID      string `json:"account_id,omitempty"`
	DisplayName    string `json:"display_name"`
	OwnerID        string `json:"owner_id"`
	InitialBalance string `json:"initial_balance"`
	Currency       string `json:"currency"`
}

type AccountResponse struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	OwnerID     string `json:"owner_id"`
	Balance     string `json:"balance"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func newAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:   account.ID.String(),
		DisplayName: account.DisplayName,
		OwnerID:     account.OwnerID,
		Balance:     account.Balance.String(),
		Currency:    account.Currency,
		CreatedAt:   formatTime(account.CreatedAt),
		UpdatedAt:   formatTime(account.UpdatedAt),
	}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeAppError(w, appErr)
		return
	}

	initialBalance := decimal.Zero
	if req.InitialBalance != "" {
		var err error
		initialBalance, err = decimal.NewFromString(req.InitialBalance)
		if err != nil {
			writeAppError(w, errors.NewAppError(errors.InvalidAmount, "invalid initial_balance format").WithDetails(err.Error()))
			return
		}
	}

	account, err := h.accountService.CreateAccount(r.Context(), service.CreateAccountInput{
		AccountID:      req.AccountID,
		DisplayName:    req.DisplayName,
		OwnerID:        req.OwnerID,
		InitialBalance: initialBalance,
		Currency:       req.Currency,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["account_id"]

	account, err := h.accountService.GetAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountService.ListAccounts(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		response = append(response, newAccountResponse(account))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.accountService.DeleteAccount(r.Context(), vars["account_id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
