// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"

	"rtspectrum/internal/analysis"
	"rtspectrum/internal/log"
)

// Transport sends emitted frames, or anything else a consumer wants to
// forward, to somewhere outside the process. Implementations must be safe
// for concurrent use and must not block the caller for long: Send runs on
// the capture thread.
type Transport interface {
	Send(data any) error
	Close() error
}

var logger = log.Named("Transport")

// Fanout forwards every frame to a set of transports. Send errors are
// logged and never stop delivery to the remaining transports.
type Fanout struct {
	mu         sync.Mutex
	transports []Transport
	errors     uint64
}

// Compile-time checks for interface implementations.
var _ analysis.Observer = (*Fanout)(nil)

// NewFanout returns a Fanout over the given transports. Nil entries are
// skipped.
func NewFanout(transports ...Transport) *Fanout {
	f := &Fanout{}
	for _, t := range transports {
		f.Add(t)
	}
	return f
}

// Add registers another transport.
func (f *Fanout) Add(t Transport) {
	if t == nil {
		return
	}
	f.mu.Lock()
	f.transports = append(f.transports, t)
	f.mu.Unlock()
}

// Len returns the number of registered transports.
func (f *Fanout) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transports)
}

// OnFrame sends frame to every transport.
func (f *Fanout) OnFrame(frame analysis.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.transports {
		if err := t.Send(frame); err != nil {
			f.errors++
			// Log the first failure and then every 1000th to keep the capture
			// thread quiet when a consumer goes away.
			if f.errors%1000 == 1 {
				logger.Warnf("send failed (%d so far): %v", f.errors, err)
			}
		}
	}
}

// Close closes every transport and returns the joined errors.
func (f *Fanout) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, t := range f.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.transports = nil
	return errors.Join(errs...)
}
