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

type TransferHandler struct {
	transferService *service.TransferService
	logger          *slog.Logger
}

func NewTransferHandler(transferService *service.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

type SubmitTransferRequest struct {
	SourceAccountID      string `json:"source_account_id"`
	DestinationAccountID string `json:"destination_account_id"`
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	CreatedBy            string `json:"created_by,omitempty"`
}

type TransferResponse struct {
	TransferID           string  `json:"transfer_id"`
	SourceAccountID      string  `json:"source_account_id"`
	DestinationAccountID string  `json:"destination_account_id"`
	Amount               string  `json:"amount"`
	Currency             string  `json:"currency"`
	Status               string  `json:"status"`
	ErrorMessage         *string `json:"error_message,omitempty"`
	CreatedBy            string  `json:"created_by,omitempty"`
	CreatedAt            string  `json:"created_at"`
	ExpiresAt            string  `json:"expires_at"`
	UpdatedAt            string  `json:"updated_at"`
}

func newTransferResponse(transfer *domain.TransferRequest) TransferResponse {
	return TransferResponse{
		TransferID:           transfer.ID.String(),
		SourceAccountID:      transfer.SourceAccountID.String(),
		DestinationAccountID: transfer.DestinationAccountID.String(),
		Amount:               transfer.Amount.String(),
		Currency:             transfer.Currency,
		Status:               transfer.Status.String(),
		ErrorMessage:         transfer.ErrorMessage,
		CreatedBy:            transfer.CreatedBy,
		CreatedAt:            formatTime(transfer.CreatedAt),
		ExpiresAt:            formatTime(transfer.ExpiresAt),
		UpdatedAt:            formatTime(transfer.UpdatedAt),
	}
}

// SubmitTransfer accepts a transfer request. The response carries the request
// in status NEW; clients poll GetTransfer for the outcome.
func (h *TransferHandler) SubmitTransfer(w http.ResponseWriter, r *http.Request) {
	var req SubmitTransferRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		writeAppError(w, appErr)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeAppError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	transfer, err := h.transferService.Submit(r.Context(), service.SubmitTransferInput{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               amount,
		Currency:             req.Currency,
		CreatedBy:            req.CreatedBy,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/transfers/"+transfer.ID.String())
	writeJSON(w, http.StatusAccepted, newTransferResponse(transfer))
}

func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	transfer, err := h.transferService.GetTransfer(r.Context(), vars["transfer_id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newTransferResponse(transfer))
}

func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.transferService.ListTransfers(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := make([]TransferResponse, 0, len(transfers))
	for _, transfer := range transfers {
		response = append(response, newTransferResponse(transfer))
	}
	writeJSON(w, http.StatusOK, response)
}

// DeleteTransfer removes a terminal request; NEW and IN_PROGRESS requests
// get 409.
func (h *TransferHandler) DeleteTransfer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.transferService.DeleteTransfer(r.Context(), vars["transfer_id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
