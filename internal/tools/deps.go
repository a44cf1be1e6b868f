// Package tools provides the tools a chat model may call, their argument
// validation and the allow-list registry that executes them.
package tools

import (
	"log/slog"
	"net/http"

	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

// DefaultWeatherBaseURL is the Open-Meteo API root.
const DefaultWeatherBaseURL = "https://api.open-meteo.com"

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Store          store.Store
	HTTPClient     *http.Client
	WeatherBaseURL string
	Logger         *slog.Logger
	Metrics        *metrics.Collector
}

// Env is the per-request environment a tool runs in.
type Env struct {
	// Data receives UI events for the block editor.
	Data *stream.Data
	// Model is the chat's model, used for nested generation.
	Model *llm.Client
	// UserID owns anything the tool persists.
	UserID string
}
