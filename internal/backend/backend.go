// Package backend holds the responders a conversation panel sends prompts to.
package backend

import (
	"context"

	"github.com/klemjul/chatai/internal/llm"
)

type Request struct {
	PromptText string
	SessionID  string
}

type Response struct {
	Message string
}

type Responder interface {
	Respond(ctx context.Context, req Request) (*Response, error)
}

// StreamResponder delivers the reply incrementally. The channel is closed
// after a complete or error event.
type StreamResponder interface {
	Responder
	RespondStream(ctx context.Context, req Request) <-chan llm.LLMStreamEvent
}

type Provider string

const (
	ProviderHTTP   Provider = "http"
	ProviderOpenAI Provider = Provider(llm.LLMProviderOpenAI)
	ProviderOllama Provider = Provider(llm.LLMProviderOllama)
)

var Providers = []Provider{ProviderHTTP, ProviderOpenAI, ProviderOllama}
