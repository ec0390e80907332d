package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	dErrors "wishguard/pkg/domain-errors"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the envelope for every rejected request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto its HTTP status and error envelope.
// Internal errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	msg := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal {
		msg = "an unexpected error occurred"
	}
	WriteJSON(w, StatusFor(code), ErrorResponse{
		Success:   false,
		Message:   msg,
		ErrorCode: string(code),
	})
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBotDetected, dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeCaptchaRequired:
		// A soft gate: the client should solve a challenge and retry.
		return http.StatusOK
	case dErrors.CodeInvalidRequest, dErrors.CodeExpired, dErrors.CodeExhausted,
		dErrors.CodeNotFound, dErrors.CodeAlreadySolved, dErrors.CodeConflict,
		dErrors.CodeDeliveryFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a bounded request body into dst. An empty body decodes to
// the zero value.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return dErrors.Wrap(fmt.Errorf("decode body: %w", err), dErrors.CodeInvalidRequest, "invalid JSON body")
	}
	return nil
}
