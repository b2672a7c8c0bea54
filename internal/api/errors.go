package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GenericMessage is reported when the server gives no usable message.
const GenericMessage = "Network error. Please check your connection."

// ErrUnauthorized is wrapped by errors for HTTP 401 responses. The session
// has already been cleared when it is returned.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a failed API call.
type Error struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// serverMessage extracts the server-provided message from an error body.
func serverMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "detail"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if nested, ok := payload["error"].(map[string]any); ok {
		if s, ok := nested["message"].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// validationError turns validator output into a single readable error.
func validationError(what string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid %s: %w", what, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email")
		case "e164":
			parts = append(parts, field+" must be in international format (+15551234567)")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "datetime":
			parts = append(parts, field+" must be a date (YYYY-MM-DD)")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s %s", field, fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("invalid %s: %s", what, strings.Join(parts, "; "))
}
