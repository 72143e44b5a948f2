package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

type httpRequestBody struct {
	PromptMessage string `json:"prompt_message"`
	SessionID     string `json:"session_id"`
}

// HTTPResponder posts prompts to a remote chat endpoint answering {"message": "..."}.
type HTTPResponder struct {
	endpoint string
	client   *http.Client
}

func NewHTTPResponder(endpoint string, client *http.Client) *HTTPResponder {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResponder{endpoint: endpoint, client: client}
}

func (r *HTTPResponder) Respond(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(httpRequestBody{
		PromptMessage: req.PromptText,
		SessionID:     req.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", r.endpoint, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("backend returned status %d: %s", res.StatusCode, truncate(string(data), 200))
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("backend returned invalid JSON")
	}

	return &Response{Message: gjson.GetBytes(data, "message").String()}, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
