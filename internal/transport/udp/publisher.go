// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"rtspectrum/internal/analysis"
)

/*
Packet layout (BigEndian):

	+-----------------+---------+------+------------------------------------+
	| Field           | Type    | Size | Description                        |
	+-----------------+---------+------+------------------------------------+
	| Sequence Number | uint32  | 4    | Packet counter, starts at 1        |
	| Timestamp       | int64   | 8    | Send time, ns since epoch          |
	| Frame Sequence  | uint32  | 4    | Frame.Seq (low 32 bits)            |
	| Elapsed         | uint32  | 4    | Frame processing time, µs          |
	| Value Count     | uint16  | 2    | Number of values (N)               |
	| Values          | float32 | N*4  | Band values                        |
	+-----------------+---------+------+------------------------------------+
*/
const (
	HeaderSize = 4 + 8 + 4 + 4 + 2

	// MaxValues keeps a packet inside the largest IPv4 UDP payload.
	MaxValues = (65507 - HeaderSize) / 4
)

// Packet is a decoded datagram.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	FrameSeq  uint32
	Elapsed   time.Duration
	Values    []float32
}

// DecodePacket parses a datagram produced by Publisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(b))
	}

	p := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:]),
		Timestamp: time.Unix(0, int64(binary.BigEndian.Uint64(b[4:]))),
		FrameSeq:  binary.BigEndian.Uint32(b[12:]),
		Elapsed:   time.Duration(binary.BigEndian.Uint32(b[16:])) * time.Microsecond,
	}
	n := int(binary.BigEndian.Uint16(b[20:]))
	if len(b) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("packet holds %d bytes of values, header says %d values", len(b)-HeaderSize, n)
	}

	p.Values = make([]float32, n)
	for i := range p.Values {
		p.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(b[HeaderSize+4*i:]))
	}
	return p, nil
}

// Publisher keeps the most recent frame and sends it on a fixed interval.
// Frames arrive through OnFrame on the capture thread; the network write
// happens on the publisher goroutine. A frame is sent at most once, so a
// stalled capture produces no duplicate packets.
type Publisher struct {
	sender   *Sender
	interval time.Duration

	latest   atomic.Pointer[analysis.Frame]
	lastSent uint64

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	sequenceNum uint32

	f32Buffer    []float32
	packetBuffer *bytes.Buffer
	truncated    bool
}

// Compile-time checks for interface implementations.
var (
	_ analysis.Observer          = (*Publisher)(nil)
	_ interface{ Close() error } = (*Publisher)(nil)
)

// NewPublisher creates a publisher over sender. An interval <= 0 defaults to
// 16ms (~60Hz).
func NewPublisher(interval time.Duration, sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		logger.Warnf("invalid publish interval, defaulting to %s", interval)
	}

	return &Publisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// OnFrame records frame as the next one to publish. It never blocks.
func (p *Publisher) OnFrame(frame analysis.Frame) {
	p.latest.Store(&frame)
}

// Start launches the publisher goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("publisher already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Infof("publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop terminates the publisher goroutine and waits for it. Calling Stop
// while stopped is a no-op.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// Close stops the publisher and closes the sender.
func (p *Publisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// publish sends the latest frame if it has not been sent yet.
func (p *Publisher) publish() {
	frame := p.latest.Load()
	if frame == nil || frame.Seq == p.lastSent {
		return
	}
	p.lastSent = frame.Seq

	packet := p.encode(frame, time.Now())
	if err := p.sender.Send(packet); err != nil {
		logger.Debugf("packet %d: %v", p.sequenceNum, err)
		return
	}
	logger.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(packet))
}

// encode packs frame into the reusable packet buffer.
func (p *Publisher) encode(frame *analysis.Frame, now time.Time) []byte {
	values := frame.Values
	if len(values) > MaxValues {
		if !p.truncated {
			logger.Warnf("frame has %d values, sending the first %d", len(values), MaxValues)
			p.truncated = true
		}
		values = values[:MaxValues]
	}

	// --- 1. Convert ---
	if cap(p.f32Buffer) < len(values) {
		p.f32Buffer = make([]float32, len(values))
	}
	p.f32Buffer = p.f32Buffer[:len(values)]
	for i, v := range values {
		p.f32Buffer[i] = float32(v)
	}

	// --- 2. Pack ---
	p.sequenceNum++
	elapsed := min(frame.Elapsed.Microseconds(), math.MaxUint32)

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:], p.sequenceNum)
	binary.BigEndian.PutUint64(header[4:], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(header[12:], uint32(frame.Seq))
	binary.BigEndian.PutUint32(header[16:], uint32(max(0, elapsed)))
	binary.BigEndian.PutUint16(header[20:], uint16(len(values)))

	p.packetBuffer.Reset()
	p.packetBuffer.Write(header[:])
	// Writing to a bytes.Buffer cannot fail.
	_ = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)

	return p.packetBuffer.Bytes()
}
