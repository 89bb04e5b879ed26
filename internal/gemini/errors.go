package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// ErrTransient marks failures worth retrying on another model: rate limits,
// server errors and timeouts.
var ErrTransient = errors.New("transient gemini failure")

// ErrEmptyResponse is returned when the model answers without usable text.
var ErrEmptyResponse = errors.New("gemini returned an empty response")

// apiCode extracts the HTTP status of a genai API error, or 0.
func apiCode(err error) int {
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return val.Code
	}
	return 0
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	code := apiCode(err)
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// classify tags transient errors with ErrTransient so callers can use errors.Is.
func classify(op string, err error) error {
	if IsTransient(err) && !errors.Is(err, ErrTransient) {
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
