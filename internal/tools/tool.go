package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgs wraps argument decoding and validation failures.
var ErrInvalidArgs = errors.New("invalid arguments")

// Tool is one callable function exposed to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON schema of the argument object.
	Parameters() map[string]any
	// Execute decodes args, runs the tool and returns its result. Failures the
	// model should see are returned as ErrorResult values, not errors.
	Execute(ctx context.Context, env Env, args json.RawMessage) (json.RawMessage, error)
}

// Validator is implemented by argument structs that check themselves after
// decoding.
type Validator interface {
	Validate() error
}

// typedTool adapts a function over a typed argument struct to Tool.
type typedTool[A any] struct {
	name        string
	description string
	params      map[string]any
	run         func(ctx context.Context, env Env, args A) (any, error)
}

func newTool[A any](name, description string, params map[string]any, run func(context.Context, Env, A) (any, error)) Tool {
	return &typedTool[A]{name: name, description: description, params: params, run: run}
}

func (t *typedTool[A]) Name() string               { return t.name }
func (t *typedTool[A]) Description() string        { return t.description }
func (t *typedTool[A]) Parameters() map[string]any { return t.params }

func (t *typedTool[A]) Execute(ctx context.Context, env Env, raw json.RawMessage) (json.RawMessage, error) {
	args, err := decodeArgs[A](raw)
	if err != nil {
		return nil, err
	}
	out, err := t.run(ctx, env, args)
	if err != nil {
		return nil, err
	}
	return JSONResult(out)
}

func decodeArgs[A any](raw json.RawMessage) (A, error) {
	var args A
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if v, ok := any(&args).(Validator); ok {
		if err := v.Validate(); err != nil {
			return args, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}
	}
	return args, nil
}

// objectSchema builds a JSON schema object with the given properties, all
// required.
func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func prop(typ, description string) map[string]any {
	p := map[string]any{"type": typ}
	if description != "" {
		p["description"] = description
	}
	return p
}
