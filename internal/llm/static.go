package llm

import (
	"context"
)

// StaticProvider returns a canned reply for every call. Used in development
// when no API key is configured, and in tests.
type StaticProvider struct {
	Reply string
}

func (p *StaticProvider) Name() string { return "static" }

// Generate echoes the canned reply with token counts approximated at four
// characters per token, so cost accounting stays non-zero in dev runs.
func (p *StaticProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	reply := p.Reply
	if reply == "" {
		reply = "static provider reply"
	}
	var promptLen int
	for _, m := range req.Messages {
		promptLen += len(m.Content)
	}
	return &Response{
		Content:      reply,
		FinishReason: "stop",
		InputTokens:  promptLen / 4,
		OutputTokens: len(reply) / 4,
		Model:        req.Model,
	}, nil
}

var _ Provider = (*StaticProvider)(nil)
