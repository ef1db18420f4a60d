package enrichment

import (
	"context"
	"sync"
)

type mockLLM struct {
	name     string
	response string
	err      error

	mu     sync.Mutex
	calls  int
	system string
	user   string
}

func (m *mockLLM) Name() string { return m.name }

func (m *mockLLM) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.system = systemPrompt
	m.user = userPrompt
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// blockingProvider waits for its context to end.
type blockingProvider struct{ name string }

func (p *blockingProvider) Name() string { return p.name }

func (p *blockingProvider) AttemptEnrich(ctx context.Context, prompt Prompt) (*Insight, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type nilProvider struct{}

func (nilProvider) Name() string { return "nil" }

func (nilProvider) AttemptEnrich(ctx context.Context, prompt Prompt) (*Insight, error) {
	return nil, nil
}
