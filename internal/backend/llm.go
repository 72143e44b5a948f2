package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/klemjul/chatai/internal/llm"
)

var ErrPromptTooLong = errors.New("prompt exceeds token limit")

const DEFAULT_BOT_NAME = "DoppioBot"

// DefaultPrompt is the system prompt used when none is configured.
func DefaultPrompt(botName string) string {
	return fmt.Sprintf("The following is a friendly conversation between a human and an AI. "+
		"The AI is named %s and provides detailed responses with contextual data. "+
		"When context data is provided, the AI analyzes it and answers accordingly, "+
		"providing insights and summaries.", botName)
}

type LLMResponderOptions struct {
	Prompt           string
	ContextData      string
	PromptTokenLimit int
}

// LLMResponder answers prompts with a language model, replaying the
// conversation of the request's session on every call.
type LLMResponder struct {
	client   llm.LLMClient
	opts     LLMResponderOptions
	sessions *sessionStore
}

func NewLLMResponder(client llm.LLMClient, opts LLMResponderOptions) *LLMResponder {
	return &LLMResponder{
		client:   client,
		opts:     opts,
		sessions: newSessionStore(),
	}
}

func (r *LLMResponder) systemPrompt() string {
	prompt := r.opts.Prompt
	if strings.TrimSpace(r.opts.ContextData) != "" {
		prompt += "\n\nContext data:\n" + r.opts.ContextData
	}
	return prompt
}

func (r *LLMResponder) buildMessages(req Request) ([]llm.Message, error) {
	if r.opts.PromptTokenLimit > 0 {
		if tokens := llm.RoughEstimateTokens(req.PromptText); tokens > r.opts.PromptTokenLimit {
			return nil, fmt.Errorf("%w: ~%d tokens, limit is %d", ErrPromptTooLong, tokens, r.opts.PromptTokenLimit)
		}
	}

	messages := []llm.Message{}
	if prompt := r.systemPrompt(); prompt != "" {
		messages = append(messages, llm.Message{Role: llm.System, Content: prompt})
	}
	messages = append(messages, r.sessions.history(req.SessionID)...)
	messages = append(messages, llm.Message{Role: llm.User, Content: req.PromptText})

	return messages, nil
}

func (r *LLMResponder) Respond(ctx context.Context, req Request) (*Response, error) {
	messages, err := r.buildMessages(req)
	if err != nil {
		return nil, err
	}

	res, err := r.client.Send(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	r.logUsage(req, res.Usage)
	r.remember(req, res.Content)
	return &Response{Message: res.Content}, nil
}

// RespondStream forwards the client events. The channel always ends with a
// complete or error event, a canceled context ends it with an error event
// carrying ctx.Err().
func (r *LLMResponder) RespondStream(ctx context.Context, req Request) <-chan llm.LLMStreamEvent {
	out := make(chan llm.LLMStreamEvent)

	go func() {
		defer close(out)

		messages, err := r.buildMessages(req)
		if err != nil {
			out <- llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeError, Content: err.Error()}
			return
		}

		events := r.client.Stream(ctx, messages)
		// the client goroutine owns events until it closes them
		defer func() {
			go func() {
				for range events {
				}
			}()
		}()

		var content strings.Builder
		for event := range events {
			switch event.Type {
			case llm.LLMStreamEventTypeMessage:
				content.WriteString(event.Content)
				select {
				case out <- event:
					continue
				case <-ctx.Done():
				}
				out <- llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeError, Content: ctx.Err().Error()}
				return
			case llm.LLMStreamEventTypeComplete:
				r.logUsage(req, event.Usage)
				r.remember(req, content.String())
			}
			out <- event
			return
		}

		reason := errors.New("stream closed before completion")
		if ctx.Err() != nil {
			reason = ctx.Err()
		}
		out <- llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeError, Content: reason.Error()}
	}()

	return out
}

func (r *LLMResponder) logUsage(req Request, usage llm.LLMTokenUsage) {
	slog.Debug("response generated",
		"session_id", req.SessionID,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)
}

func (r *LLMResponder) remember(req Request, reply string) {
	r.sessions.append(req.SessionID,
		llm.Message{Role: llm.User, Content: req.PromptText},
		llm.Message{Role: llm.Assistant, Content: reply},
	)
}
