package model

import (
	"context"
	"sync"
)

// MockTurn scripts the events of one Generate call of a MockLanguageModel.
type MockTurn struct {
	Responses []Response
	Err       error // Sent on the error channel after Responses
}

// MockLanguageModel is a lightweight in-memory LanguageModel useful for tests
// and examples. Each Generate call consumes the next scripted turn; calls
// beyond the script replay the last turn. All requests are recorded.
type MockLanguageModel struct {
	info  Info
	turns []MockTurn

	mu       sync.Mutex
	calls    int
	requests []Request
}

// NewMockLanguageModel constructs a mock with the given name.
func NewMockLanguageModel(name string, turns ...MockTurn) *MockLanguageModel {
	return &MockLanguageModel{
		info:  Info{Name: name, Provider: "mock"},
		turns: turns,
	}
}

// TextTurn scripts a plain streamed completion: one delta per chunk followed
// by a final stop event with usage.
func TextTurn(chunks ...string) MockTurn {
	turn := MockTurn{}
	total := 0
	for _, c := range chunks {
		turn.Responses = append(turn.Responses, Response{Partial: true, Delta: c})
		total += len(c)
	}
	turn.Responses = append(turn.Responses, Response{
		FinishReason: "stop",
		Usage:        &TokenUsage{CompletionTokens: total, TotalTokens: total},
	})
	return turn
}

// ErrTurn scripts a turn that emits the given responses then fails.
func ErrTurn(err error, responses ...Response) MockTurn {
	return MockTurn{Responses: responses, Err: err}
}

// Generate implements LanguageModel by replaying the scripted turns.
func (m *MockLanguageModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	idx := m.calls
	m.calls++
	m.mu.Unlock()

	out := make(chan Response, len(m.turns)+8)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		turn := MockTurn{Responses: []Response{{FinishReason: "stop", Usage: &TokenUsage{}}}}
		if len(m.turns) > 0 {
			if idx >= len(m.turns) {
				idx = len(m.turns) - 1
			}
			turn = m.turns[idx]
		}
		for _, resp := range turn.Responses {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- resp:
			}
		}
		if turn.Err != nil {
			errCh <- turn.Err
		}
	}()

	return out, errCh
}

// Info implements LanguageModel.
func (m *MockLanguageModel) Info() Info { return m.info }

// Requests returns a copy of every recorded request, in call order.
func (m *MockLanguageModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
