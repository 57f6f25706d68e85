package alert

import "context"

// Provider is the interface for any generative text backend.
type Provider interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Request is one text generation call. An empty Model lets the provider use
// its configured default.
type Request struct {
	Prompt      string
	System      string
	Model       string
	Temperature float64
	MaxTokens   int
	Context     map[string]string
}

// Response is the provider's generated text and accounting.
type Response struct {
	Content     string
	TokensTotal int
	CostTotal   float64
	Model       string
}
