package llm

import (
	"context"
	"fmt"
	"net/url"
	"os"
)

const DEFAULT_OPENAI_MODEL = "gpt-3.5-turbo"

type LLMTokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

type LLMSendResponse struct {
	Content string
	Usage   LLMTokenUsage
}

type LLMStreamEventType string

const (
	LLMStreamEventTypeMessage  LLMStreamEventType = "content"
	LLMStreamEventTypeComplete LLMStreamEventType = "complete"
	LLMStreamEventTypeError    LLMStreamEventType = "error"
)

type LLMStreamEvent struct {
	Content string
	Usage   LLMTokenUsage
	Type    LLMStreamEventType
}

type LLMClient interface {
	Send(ctx context.Context, messages []Message) (*LLMSendResponse, error)
	Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent
}

type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderOllama LLMProvider = "ollama"
)

var LLMProviders = []LLMProvider{LLMProviderOpenAI, LLMProviderOllama}

type LLMClientOptions struct {
	Model string
}

func NewClient(provider LLMProvider, opts LLMClientOptions) (LLMClient, error) {
	switch provider {
	case LLMProviderOpenAI:
		apiKey, exists := os.LookupEnv("OPENAI_API_KEY")
		if !exists || apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		model := opts.Model
		if model == "" {
			model = DEFAULT_OPENAI_MODEL
		}
		return newOpenAIClient(apiKey, model), nil
	case LLMProviderOllama:
		ollamaEndpoint, exists := os.LookupEnv("OLLAMA_ENDPOINT")
		if !exists || ollamaEndpoint == "" {
			return nil, fmt.Errorf("OLLAMA_ENDPOINT environment variable is not set")
		}
		localEndpoint, err := url.Parse(ollamaEndpoint)
		if err != nil {
			return nil, fmt.Errorf("OLLAMA_ENDPOINT URL is invalid: %v", err)
		}
		return newOllamaClient(*localEndpoint, opts.Model), nil
	default:
		return nil, fmt.Errorf("%s: invalid provider", provider)
	}
}
