package llm

import "context"

// Provider abstracts the chat-capable inference collaborator used by the
// history specialist and the delegated adjudicator.
type Provider interface {
	// Chat sends a system instruction and a user message and returns
	// the model's reply.
	Chat(ctx context.Context, system, user string, opts ...Option) (*Response, error)
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// WithModel overrides the configured model for one call.
func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

type Response struct {
	Content string
	Usage   Usage
}

// ProviderFunc allows functions to implement Provider (adapter pattern).
// Useful for testing and simple inline implementations.
type ProviderFunc func(ctx context.Context, system, user string) (*Response, error)

func (f ProviderFunc) Chat(ctx context.Context, system, user string, opts ...Option) (*Response, error) {
	return f(ctx, system, user)
}
