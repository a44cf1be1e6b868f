package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/chatblocks/internal/models"
)

// failingModel rejects every request with err.
type failingModel struct{ err error }

func (m failingModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, m.err
}

func (m failingModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", m.err
}

func TestClientErrors(t *testing.T) {
	ops := []struct {
		name   string
		prefix string
		run    func(c *Client) error
	}{
		{"step", "stream step: ", func(c *Client) error {
			tools := []llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "getWeather"}}}
			_, err := c.StreamStep(context.Background(), "", []models.Message{models.TextMessage(models.RoleUser, "hi")}, tools,
				func(string) error { return nil })
			return err
		}},
		{"text", "stream step: ", func(c *Client) error {
			_, err := c.StreamText(context.Background(), "", nil, func(string) error { return nil })
			return err
		}},
		{"objects", "stream objects: ", func(c *Client) error {
			_, err := c.StreamObjects(context.Background(), "", "ideas",
				ObjectSchema{Fields: []Field{{Name: "title"}}}, func(map[string]string) error { return nil })
			return err
		}},
		{"title", "generate title: ", func(c *Client) error {
			_, err := c.GenerateTitle(context.Background(), "hello")
			return err
		}},
	}

	providerErrs := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"anthropic credit", errors.New("API returned unexpected status code: 400: Your credit balance is too low"), true},
		{"openai key", errors.New("API returned unexpected status code: 401: Incorrect API key provided: invalid api key"), true},
		{"openai rate limit", errors.New("API returned unexpected status code: 429: Rate limit reached for gpt-4o-mini"), true},
		{"bedrock access", errors.New("operation error Bedrock Runtime: InvokeModel, StatusCode: 403, AccessDeniedException"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), false},
		{"server error", errors.New("API returned unexpected status code: 500: internal error"), false},
		{"cancelled", context.Canceled, false},
	}

	for _, op := range ops {
		for _, pe := range providerErrs {
			t.Run(op.name+"/"+pe.name, func(t *testing.T) {
				err := op.run(NewClient(failingModel{err: pe.err}, "test", nil))
				require.Error(t, err)

				assert.True(t, strings.HasPrefix(err.Error(), op.prefix), "got %q", err)
				assert.ErrorIs(t, err, pe.err)
				assert.Equal(t, pe.fatal, errors.Is(err, ErrFatalAPI))
			})
		}
	}
}

func TestWrapFatalError(t *testing.T) {
	assert.NoError(t, wrapFatalError(nil))

	transient := errors.New("network timeout")
	assert.Same(t, transient, wrapFatalError(transient))

	quota := errors.New("You exceeded your current QUOTA")
	wrapped := wrapFatalError(quota)
	assert.ErrorIs(t, wrapped, ErrFatalAPI)
	assert.ErrorIs(t, wrapped, quota)
	assert.Equal(t, "fatal LLM API error: You exceeded your current QUOTA", wrapped.Error())
}
