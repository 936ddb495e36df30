// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"slices"
	"sync"
)

// ErrMockClosed is returned by Send after Close.
var ErrMockClosed = errors.New("mock transport closed")

// MockTransport records everything it is sent instead of transmitting.
// Float slices are copied so later mutation by the caller is not observed.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
	Err    error // returned by Send when set
}

// Send stores data.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMockClosed
	}
	if m.Err != nil {
		return m.Err
	}
	if values, ok := data.([]float64); ok {
		data = slices.Clone(values)
	}
	m.sent = append(m.sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
