package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
)

var (
	// ErrCircuitOpen is returned without a request when the breaker is open.
	ErrCircuitOpen = fmt.Errorf("membership api circuit open: %w", domain.ErrNetwork)
	// ErrMissingCheckoutURL means the server accepted the request but sent no redirect.
	ErrMissingCheckoutURL = fmt.Errorf("checkout response has no url: %w", domain.ErrCheckoutCreationFailed)
)

// Error is a non-2xx response from the platform API.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("membership api: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("membership api: status=%d: %s", e.StatusCode, e.Message)
}

// ErrorKind classifies the response by inspecting its status and code.
// An empty kind leaves the choice to the calling operation.
func (e *Error) ErrorKind() domain.ErrorKind {
	switch e.Code {
	case "already_subscribed":
		return domain.KindAlreadySubscribed
	case "active_membership_exists", "conflicting_active_membership":
		return domain.KindConflictingActiveMembership
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.KindUnauthenticated
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.KindNetwork
	}
	return ""
}

// Temporary reports whether the breaker should count this response.
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500
}

func newError(status int, body []byte) *Error {
	apiErr := &Error{StatusCode: status}
	var dto errorDTO
	if err := json.Unmarshal(body, &dto); err == nil {
		apiErr.Code = dto.Code
		switch {
		case dto.Detail != "":
			apiErr.Message = dto.Detail
		case dto.Error != "":
			apiErr.Message = dto.Error
		case dto.Message != "":
			apiErr.Message = dto.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// breakerSuccess decides which results keep the breaker closed. Client
// errors are the caller's problem, not the backend's.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return !apiErr.Temporary()
	}
	return false
}
