package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BackendError is a non-2xx response from a backend.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return e.Message
}

// DecodeErrorMessage extracts the user-facing message of an error response.
// Backends answer with {"error": "..."} or {"detail": "..."}; anything else,
// including an empty or non-JSON body, yields a generic message.
func DecodeErrorMessage(status int, body []byte) string {
	var payload struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := rawMessage(payload.Error); msg != "" {
			return msg
		}
		if msg := rawMessage(payload.Detail); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

// rawMessage turns a JSON string into its value. FastAPI validation errors
// put a list under "detail"; those are returned as compact JSON.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
