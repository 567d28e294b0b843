package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/toolgate/core"
)

// MockModel is a scripted in-memory Model for tests. Each Generate call pops
// the next scripted step; requests are recorded for later inspection.
type MockModel struct {
	info Info

	mu       sync.Mutex
	steps    []mockStep
	requests []Request
}

type mockStep struct {
	parts []core.Part
	err   error
}

var _ Model = (*MockModel)(nil)

// NewMockModel constructs an empty MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// Reply scripts a text response.
func (m *MockModel) Reply(text string) *MockModel {
	return m.Respond(core.TextPart{Text: text})
}

// Call scripts a response requesting the given function calls.
func (m *MockModel) Call(calls ...core.FunctionCall) *MockModel {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}

	return m.Respond(parts...)
}

// Respond scripts a response with arbitrary parts. No parts scripts an empty response.
func (m *MockModel) Respond(parts ...core.Part) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, mockStep{parts: parts})

	return m
}

// Fail scripts a transport error.
func (m *MockModel) Fail(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, mockStep{err: err})

	return m
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Request(nil), m.requests...)
}

// LastRequest returns the most recent request.
func (m *MockModel) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.requests) == 0 {
		return Request{}, false
	}

	return m.requests[len(m.requests)-1], true
}

// Remaining reports how many scripted steps are left.
func (m *MockModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.steps)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)

	var (
		step mockStep
		ok   bool
	)

	if len(m.steps) > 0 {
		step, m.steps, ok = m.steps[0], m.steps[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		switch {
		case ctx.Err() != nil:
			errCh <- ctx.Err()
		case !ok:
			errCh <- fmt.Errorf("mock: no scripted response left (request %d)", len(m.Requests()))
		case step.err != nil:
			errCh <- step.err
		default:
			respCh <- Response{
				Content:      core.Content{Role: core.RoleModel, Parts: step.parts},
				FinishReason: "stop",
			}
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
