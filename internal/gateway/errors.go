package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haasonsaas/spider/internal/auth"
)

// GatewayErrorKind names one of spec §7's seven error kinds so HTTP
// responses carry a stable machine-readable code alongside the message.
type GatewayErrorKind string

const (
	ErrKindAuth        GatewayErrorKind = "auth_error"
	ErrKindConfig      GatewayErrorKind = "config_error"
	ErrKindUpstream    GatewayErrorKind = "upstream_error"
	ErrKindToolFailure GatewayErrorKind = "tool_error"
	ErrKindCancelled   GatewayErrorKind = "cancelled"
	ErrKindStorage     GatewayErrorKind = "storage_error"
	ErrKindBadRequest  GatewayErrorKind = "bad_request"
)

// GatewayError carries an HTTP-safe code and message for one failed
// request, grounded on spec §7's error-kind table.
type GatewayError struct {
	Kind    GatewayErrorKind
	Message string
}

func (e *GatewayError) Error() string { return e.Message }

func (e *GatewayError) statusCode() int {
	switch e.Kind {
	case ErrKindAuth:
		return http.StatusUnauthorized
	case ErrKindBadRequest, ErrKindConfig:
		return http.StatusBadRequest
	case ErrKindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func writeError(w http.ResponseWriter, err error) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		writeJSON(w, gwErr.statusCode(), map[string]string{"error": gwErr.Message, "kind": string(gwErr.Kind)})
		return
	}
	if errors.Is(err, auth.ErrInvalidKey) || errors.Is(err, auth.ErrForbidden) || errors.Is(err, auth.ErrAuthDisabled) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error(), "kind": string(ErrKindAuth)})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &GatewayError{Kind: ErrKindBadRequest, Message: "malformed request body: " + err.Error()}
	}
	return nil
}
