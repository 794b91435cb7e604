package handler

// RESPONSE ENVELOPE:
// Every response from /api has the same outer shape, the one the legacy
// browser client reads:
//
//	{"success": true,  "message": "Member approved successfully"}
//	{"success": true,  "members": [...], "currentRole": "admin"}
//	{"success": false, "message": "Admin access required", "error": "forbidden"}
//
// "message" is the human-readable text the client shows. "error" is a
// machine-readable kind added for new clients; together with the HTTP status
// it lets a caller branch without string-matching messages.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/rzn-members/internal/apperror"
)

// envelope is the response body. Payload keys sit beside success/message.
type envelope map[string]any

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; once
// json.Encode writes, later header changes are silently ignored.
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

// writeOK sends {"success": true, ...payload}.
func writeOK(w http.ResponseWriter, message string, payload envelope) {
	body := envelope{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeFailure sends {"success": false, "message": ..., "error": kind}.
func writeFailure(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, envelope{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

// writeError maps a service error to an HTTP status and sends it.
//
// ERROR MAPPING:
// The service layer returns *apperror.AppError values whose sentinel says
// what kind of failure it was. errors.Is walks the chain, so the pending
// check must come before the general authentication check: ErrPendingApproval
// wraps ErrAuthentication.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// NEVER expose internal error details; the service already logged them.
		writeFailure(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		return
	}

	writeFailure(w, statusFor(err), apperror.Kind(err), appErr.Message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest // 400
	case errors.Is(err, apperror.ErrPendingApproval):
		return http.StatusForbidden // 403
	case errors.Is(err, apperror.ErrAuthentication):
		return http.StatusUnauthorized // 401
	case errors.Is(err, apperror.ErrForbidden), errors.Is(err, apperror.ErrSelfAction):
		return http.StatusForbidden // 403
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, apperror.ErrConflict), errors.Is(err, apperror.ErrState):
		return http.StatusConflict // 409
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError
	}
}
