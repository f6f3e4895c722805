package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/PaesslerAG/jsonpath"
)

// Error is a non successful response of the platform.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string // extracted from the body, can be empty.
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Unauthorized returns true if the platform rejected the credentials.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Message returns the message sent by the platform with an error, if any.
func Message(err error) (string, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}

// messagePaths are the places where the platform puts a human readable message.
var messagePaths = []string{"$.message", "$.error"}

// extractMessage reads the human readable message in a response body.
//
// The platform answers with plain text, a json string, or a json object with
// a "message" (or "error") attribute.
func extractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		// plain text
		return string(body)
	}
	switch v := jobj.(type) {
	case string:
		return v
	case map[string]any:
		for _, path := range messagePaths {
			jval, err := jsonpath.Get(path, v)
			if err != nil {
				continue
			}
			if s, ok := jval.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
