package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/chatblocks/internal/metrics"
)

// Tool names.
const (
	NameGetWeather         = "getWeather"
	NameCreateDocument     = "createDocument"
	NameUpdateDocument     = "updateDocument"
	NameRequestSuggestions = "requestSuggestions"
)

// ToolSet is the allow-list of tools offered to the model for a request.
type ToolSet []string

// Presets.
var (
	BlocksTools  = ToolSet{NameCreateDocument, NameUpdateDocument, NameRequestSuggestions}
	WeatherTools = ToolSet{NameGetWeather}
	AllTools     = append(slices.Clone(BlocksTools), WeatherTools...)
)

// ParseToolSet accepts a preset name ("all", "blocks", "weather", "none")
// or a comma-separated list of tool names.
func ParseToolSet(s string) (ToolSet, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "all":
		return slices.Clone(AllTools), nil
	case "blocks":
		return slices.Clone(BlocksTools), nil
	case "weather":
		return slices.Clone(WeatherTools), nil
	case "none":
		return ToolSet{}, nil
	}

	var set ToolSet
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !slices.Contains(AllTools, name) {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		if !slices.Contains(set, name) {
			set = append(set, name)
		}
	}
	return set, nil
}

// Allows reports whether name is in the set.
func (s ToolSet) Allows(name string) bool {
	return slices.Contains(s, name)
}

// Registry holds every known tool and executes calls against an allow-list.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
	mc     *metrics.Collector
}

// NewRegistry registers the built-in tools.
func NewRegistry(deps *Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if deps.WeatherBaseURL == "" {
		deps.WeatherBaseURL = DefaultWeatherBaseURL
	}

	r := &Registry{tools: make(map[string]Tool), logger: deps.Logger, mc: deps.Metrics}
	r.Register(NewGetWeather(deps))
	r.Register(NewCreateDocument(deps))
	r.Register(NewUpdateDocument(deps))
	r.Register(NewRequestSuggestions(deps))
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Definitions returns the langchaingo tool definitions for the allowed tools,
// in registration order.
func (r *Registry) Definitions(set ToolSet) []llms.Tool {
	var out []llms.Tool
	for _, name := range r.order {
		if !set.Allows(name) {
			continue
		}
		t := r.tools[name]
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// Execute runs one tool call. It never fails: unknown or disallowed tools,
// invalid arguments and execution errors all become {"error": ...} results.
func (r *Registry) Execute(ctx context.Context, env Env, set ToolSet, name string, args json.RawMessage) json.RawMessage {
	start := time.Now()
	result, outcome := r.execute(ctx, env, set, name, args)

	r.mc.RecordTiming(metrics.OpToolCall, time.Since(start))
	metrics.ToolCalls.WithLabelValues(name, outcome).Inc()
	return result
}

func (r *Registry) execute(ctx context.Context, env Env, set ToolSet, name string, args json.RawMessage) (json.RawMessage, string) {
	t, ok := r.tools[name]
	if !ok || !set.Allows(name) {
		r.logger.Warn("model called unavailable tool", "tool", name)
		return ErrorResult(fmt.Sprintf("Tool %s is not available", name), ""), "error"
	}

	result, err := t.Execute(ctx, env, args)
	switch {
	case errors.Is(err, ErrInvalidArgs):
		r.logger.Warn("tool called with invalid arguments", "tool", name, "error", err)
		return ErrorResult(fmt.Sprintf("Invalid arguments for %s", name), err.Error()), "error"
	case err != nil:
		r.logger.Error("tool failed", "tool", name, "error", err)
		return ErrorResult(fmt.Sprintf("Tool %s failed", name), err.Error()), "error"
	}

	if IsErrorResult(result) {
		return result, "error"
	}
	r.logger.Debug("tool completed", "tool", name)
	return result, "ok"
}
