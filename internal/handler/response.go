package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/cookshare/internal/apperror"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the shape of every error body. Details is only set for
// validation failures.
type ErrorResponse struct {
	Error   string                `json:"error"`
	Details []apperror.FieldError `json:"details,omitempty"`
}

// MessageResponse acknowledges a write that has nothing else to return.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps the domain error taxonomy onto HTTP. Conflicts are storage
// consistency failures the client cannot fix, so they surface as 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders err as an ErrorResponse. Messages of 500s never reach
// the client; they may carry SQL or file paths.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, status, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := ErrorResponse{Error: err.Error()}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		if status == http.StatusBadRequest {
			resp.Details = appErr.Details
		}
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads one JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return nil
}
