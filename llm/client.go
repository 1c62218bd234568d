// Package llm is a minimal client for single-turn language-model
// completions. Providers are swappable behind the Provider interface so the
// rest of the application can be tested without network access.
package llm

import "context"

type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is one system+user completion request. Model and MaxTokens are
// filled in by Client when left zero.
type Request struct {
	System    string
	User      string
	Model     string
	MaxTokens int
}

type Response struct {
	Text       string `json:"text"`
	Usage      Usage  `json:"usage"`
	StopReason string `json:"stop_reason"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Options struct {
	Model     string
	MaxTokens int
}

// Client wraps a provider with a default model and token budget.
type Client struct {
	provider Provider
	opts     Options
}

func New(provider Provider, opts Options) *Client {
	return &Client{provider: provider, opts: opts}
}

const defaultMaxTokens = 300

func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.opts.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.opts.MaxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = defaultMaxTokens
	}
	return c.provider.Complete(ctx, req)
}
