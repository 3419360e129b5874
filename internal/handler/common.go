package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"async-transfers/internal/errors"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeAppError(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")

	statusCode := appErr.HTTPStatus()
	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

// writeError renders err. Errors outside the AppError taxonomy are logged and
// reported as internal errors without their text.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr, ok := errors.FromError(err)
	if !ok {
		logger.Error("Unexpected error", "error", err)
		appErr = errors.NewAppError(errors.InternalError, "an unexpected error occurred")
	}
	if appErr.Code == errors.InternalError {
		logger.Error("Request failed", "error", err)
		appErr = errors.NewAppError(errors.InternalError, "an unexpected error occurred")
	}
	writeAppError(w, appErr)
}

func decodeJSON(r *http.Request, dst interface{}) *errors.AppError {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error())
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
