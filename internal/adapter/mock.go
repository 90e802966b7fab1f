package adapter

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockAdapter is a scriptable in-process adapter for tests and dry
// runs: fixed latency, fixed payload, optional per-call failures.
type MockAdapter struct {
	Name    string
	Latency time.Duration
	Payload int

	mu     sync.Mutex
	failOn map[int]ErrorKind // 1-based call number -> failure kind
	calls  atomic.Int64
}

func NewMockAdapter(name string, latency time.Duration, payloadSize int) *MockAdapter {
	return &MockAdapter{
		Name:    name,
		Latency: latency,
		Payload: payloadSize,
		failOn:  make(map[int]ErrorKind),
	}
}

// FailOn makes the nth call (1-based, counted across operations) fail
// with the given kind.
func (m *MockAdapter) FailOn(n int, kind ErrorKind) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[n] = kind
	return m
}

// Calls reports how many Execute calls have been made.
func (m *MockAdapter) Calls() int64 { return m.calls.Load() }

func (m *MockAdapter) Protocol() string { return m.Name }

func (m *MockAdapter) Execute(ctx context.Context, operation string, p Params) (*Response, error) {
	n := int(m.calls.Add(1))

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, OpError(KindTimeout, "request timeout")
		}
	}

	m.mu.Lock()
	kind, fail := m.failOn[n]
	m.mu.Unlock()
	if fail {
		return nil, OpError(kind, "scripted failure on call %d", n)
	}

	body := bytes.Repeat([]byte("x"), m.Payload)
	return &Response{Body: body, Size: len(body)}, nil
}

func (m *MockAdapter) PayloadSize(resp *Response) int {
	if resp == nil {
		return 0
	}
	return len(resp.Body)
}

func (m *MockAdapter) Check(ctx context.Context) error { return nil }

func (m *MockAdapter) Close() error { return nil }
