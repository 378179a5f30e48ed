package llm

import (
	"context"
	"errors"
	"time"
)

// Timeout applied to every provider call. Model calls that exceed it fail
// like any other call: the failure is recorded and dedupe state is cleaned up.
const (
	TimeoutLLMCall = 60 * time.Second
)

// Domain errors for the LLM package.
var (
	ErrProviderNotAvailable = errors.New("provider not available")
	ErrUnknownModel         = errors.New("unknown model")
	ErrInvalidMode          = errors.New("invalid model selection mode")
	ErrNoBalanceReader      = errors.New("auto mode requires a balance reader")
)

// Provider is the interface all model providers must implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai").
	Name() string
	// Generate sends a completion request to the model and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request represents a model generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Message represents a chat message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Response represents a model generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}
