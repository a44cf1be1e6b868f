package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelNotFound is returned when a model id is not in the catalog.
	ErrModelNotFound = errors.New("model not found")

	// ErrFatalAPI marks provider errors that will not go away on retry:
	// exhausted credit, quota or rate limits, and rejected credentials.
	ErrFatalAPI = errors.New("fatal LLM API error")
)

// fatalPatterns are matched case-insensitively against provider error text.
var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"invalid x-api-key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal provider errors with ErrFatalAPI and returns
// every other error unchanged.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
