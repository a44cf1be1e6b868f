package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/chatblocks/internal/llm"
	"github.com/raphaelgruber/chatblocks/internal/metrics"
	"github.com/raphaelgruber/chatblocks/internal/models"
	"github.com/raphaelgruber/chatblocks/internal/stream"
	"github.com/raphaelgruber/chatblocks/internal/tools"
)

// tailTimeout bounds the closing parts written after the request context
// has ended.
const tailTimeout = 5 * time.Second

const (
	msgGenerationFailed = "An error occurred while generating the response."
	msgProviderFailed   = "The model provider rejected the request. Please try again later."
)

type state int

const (
	stateAwaitingModel state = iota
	stateExecutingTools
	stateFinalizing
	stateDone
)

// Session is a prepared chat request, ready to stream.
type Session struct {
	// ChatID is the resolved chat, sent to the client before streaming.
	ChatID string

	userID       string
	client       *llm.Client
	conversation []models.Message
	svc          *Service
}

// run holds the mutable state of one Stream call.
type run struct {
	step      int
	pending   *llm.StepResult
	produced  []models.Message
	usage     stream.Usage
	finish    string
	streamErr error
}

// Stream runs the step loop, writing protocol parts to out and tool events
// to data. The response messages are persisted once the loop ends, even if
// ctx was cancelled. data is closed on every path. The returned error is the
// model failure already reported to the client as an error part, if any.
func (s *Session) Stream(ctx context.Context, out *stream.Writer, data *stream.Data) error {
	defer data.Close()

	log := s.svc.deps.Logger.With("chat_id", s.ChatID, "model", s.client.Name())
	cfg := s.svc.cfg
	defs := s.svc.deps.Registry.Definitions(cfg.Tools)
	env := tools.Env{Data: data, Model: s.client, UserID: s.userID}

	r := &run{}
	st := stateAwaitingModel
	for st != stateDone {
		switch st {
		case stateAwaitingModel:
			r.step++
			if err := out.StartStep(ctx, uuid.NewString()); err != nil {
				r.abort(err)
				st = stateFinalizing
				continue
			}

			history := append(append([]models.Message{}, s.conversation...), r.produced...)
			res, err := s.client.StreamStep(ctx, cfg.SystemPrompt, history, defs, func(delta string) error {
				return out.Text(ctx, delta)
			})
			if err != nil {
				log.Error("model step failed", "step", r.step, "error", err)
				r.abort(err)
				s.writeTail(ctx, func(tctx context.Context) error {
					return out.Error(tctx, clientErrorMessage(err))
				})
				st = stateFinalizing
				continue
			}

			r.pending = res
			r.usage = r.usage.Add(res.Usage)
			r.produced = append(r.produced, assistantMessage(res))

			if len(res.ToolCalls) == 0 {
				r.finish = res.FinishReason
				if err := out.FinishStep(ctx, res.FinishReason, res.Usage, false); err != nil {
					r.abort(err)
				}
				st = stateFinalizing
				continue
			}
			for _, call := range res.ToolCalls {
				if err := out.ToolCall(ctx, call.ID, call.Name, call.Args); err != nil {
					r.abort(err)
					break
				}
			}
			if r.streamErr != nil {
				st = stateFinalizing
				continue
			}
			st = stateExecutingTools

		case stateExecutingTools:
			results := models.Message{Role: models.RoleTool}
			for _, call := range r.pending.ToolCalls {
				if ctx.Err() != nil {
					break
				}
				result := s.svc.deps.Registry.Execute(ctx, env, cfg.Tools, call.Name, call.Args)
				results.Content = append(results.Content, models.ToolResultPart(call.ID, call.Name, result))
				if err := out.ToolResult(ctx, call.ID, result); err != nil {
					r.abort(err)
					break
				}
			}
			r.produced = append(r.produced, results)
			r.finish = llm.FinishToolCalls

			continued := r.streamErr == nil && ctx.Err() == nil && r.step < cfg.MaxSteps
			if r.streamErr == nil {
				if err := out.FinishStep(ctx, llm.FinishToolCalls, r.pending.Usage, continued); err != nil {
					r.abort(err)
					continued = false
				}
			}
			if continued {
				st = stateAwaitingModel
			} else {
				if r.step >= cfg.MaxSteps {
					log.Debug("step limit reached", "steps", r.step)
				}
				st = stateFinalizing
			}

		case stateFinalizing:
			if r.finish == "" {
				r.finish = llm.FinishError
			}
			s.writeTail(ctx, func(tctx context.Context) error {
				return out.FinishMessage(tctx, r.finish, r.usage)
			})
			s.persist(ctx, log, r.produced)
			metrics.ChatSteps.Observe(float64(r.step))
			st = stateDone
		}
	}

	log.Info("chat streamed", "steps", r.step, "finish", r.finish,
		"prompt_tokens", r.usage.PromptTokens, "completion_tokens", r.usage.CompletionTokens)
	return r.streamErr
}

func (r *run) abort(err error) {
	if r.streamErr == nil {
		r.streamErr = err
	}
	r.finish = llm.FinishError
}

// writeTail writes closing parts with a context detached from ctx, so a
// timed out request still tells the client how it ended.
func (s *Session) writeTail(ctx context.Context, write func(context.Context) error) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tailTimeout)
	defer cancel()
	if err := write(tctx); err != nil && !errors.Is(err, stream.ErrClosed) {
		s.svc.deps.Logger.Debug("closing part not delivered", "chat_id", s.ChatID, "error", err)
	}
}

// persist saves the sanitized response. Failures are logged and counted,
// never surfaced: the client already has the streamed answer.
func (s *Session) persist(ctx context.Context, log *slog.Logger, produced []models.Message) {
	msgs := Sanitize(produced)
	if len(msgs) == 0 {
		return
	}
	for i := range msgs {
		msgs[i].ChatID = s.ChatID
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.svc.cfg.PersistTimeout)
	defer cancel()
	if _, err := s.svc.deps.Store.SaveMessages(pctx, msgs); err != nil {
		metrics.PersistFailures.Inc()
		log.Error("failed to save chat", "error", err)
	}
}

func assistantMessage(res *llm.StepResult) models.Message {
	m := models.Message{Role: models.RoleAssistant}
	if res.Text != "" {
		m.Content = append(m.Content, models.TextPart(res.Text))
	}
	for _, call := range res.ToolCalls {
		m.Content = append(m.Content, models.ToolCallPart(call.ID, call.Name, call.Args))
	}
	return m
}

func clientErrorMessage(err error) string {
	if errors.Is(err, llm.ErrFatalAPI) {
		return msgProviderFailed
	}
	return msgGenerationFailed
}
