package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/llm/llmtest"
	"github.com/raphaelgruber/chatblocks/internal/store"
	"github.com/raphaelgruber/chatblocks/internal/stream"
)

// testHarness wires a registry to an in-memory store, a scripted model and
// a side channel whose events can be inspected after the call.
type testHarness struct {
	store *store.Memory
	model *llmtest.Model
	pipe  *stream.Pipe
	reg   *Registry
	env   Env
}

func newHarness(t *testing.T, deps *Dependencies, turns ...llmtest.Turn) *testHarness {
	t.Helper()
	mem := store.NewMemory()
	if deps == nil {
		deps = &Dependencies{}
	}
	deps.Store = mem
	deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	model := llmtest.NewModel(turns...)
	pipe := stream.NewPipe(256)
	return &testHarness{
		store: mem,
		model: model,
		pipe:  pipe,
		reg:   NewRegistry(deps),
		env: Env{
			Data:   stream.NewData(pipe),
			Model:  llm.NewClient(model, "test", nil),
			UserID: "user-1",
		},
	}
}

type seenEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// events closes the pipe and returns every side channel event sent so far.
func (h *testHarness) events(t *testing.T) []seenEvent {
	t.Helper()
	h.pipe.Close()
	var out []seenEvent
	for part := range h.pipe.Parts() {
		if part.Code != stream.CodeData {
			continue
		}
		var batch []seenEvent
		require.NoError(t, json.Unmarshal(part.Payload, &batch))
		out = append(out, batch...)
	}
	return out
}

func (h *testHarness) exec(name, args string) map[string]any {
	raw := h.reg.Execute(context.Background(), h.env, AllTools, name, json.RawMessage(args))
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

func eventTypes(evs []seenEvent) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
