// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"net"
	"testing"
	"time"

	"rtspectrum/internal/analysis"
)

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn *net.UDPConn, timeout time.Duration) (Packet, error) {
	t.Helper()
	buf := make([]byte, 65536)
	conn.SetReadDeadline(time.Now().Add(timeout))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return Packet{}, err
	}
	return DecodePacket(buf[:n])
}

func TestEncodeDecode(t *testing.T) {
	p, err := NewPublisher(time.Millisecond, &Sender{})
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	now := time.Unix(1700000000, 123)
	frame := &analysis.Frame{Seq: 42, Values: []float64{0, 0.5, 1}, Elapsed: 2500 * time.Microsecond}
	got, err := DecodePacket(p.encode(frame, now))
	if err != nil {
		t.Fatalf("DecodePacket() error = %v", err)
	}

	if got.Sequence != 1 || got.FrameSeq != 42 {
		t.Errorf("Sequence = %d FrameSeq = %d, want 1 42", got.Sequence, got.FrameSeq)
	}
	if !got.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, now)
	}
	if got.Elapsed != 2500*time.Microsecond {
		t.Errorf("Elapsed = %v, want 2.5ms", got.Elapsed)
	}
	want := []float32{0, 0.5, 1}
	if len(got.Values) != len(want) {
		t.Fatalf("Values = %v, want %v", got.Values, want)
	}
	for i := range want {
		if got.Values[i] != want[i] {
			t.Errorf("Values[%d] = %v, want %v", i, got.Values[i], want[i])
		}
	}
}

func TestEncodeTruncates(t *testing.T) {
	p, _ := NewPublisher(time.Millisecond, &Sender{})
	frame := &analysis.Frame{Seq: 1, Values: make([]float64, MaxValues+10)}

	packet := p.encode(frame, time.Now())
	if len(packet) != HeaderSize+4*MaxValues {
		t.Errorf("packet length = %d, want %d", len(packet), HeaderSize+4*MaxValues)
	}
}

func TestDecodePacketErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", make([]byte, HeaderSize-1)},
		{"count mismatch", append(make([]byte, HeaderSize-2), 0, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePacket(tt.data); err == nil {
				t.Error("DecodePacket() expected error")
			}
		})
	}
}

func TestNewPublisher(t *testing.T) {
	if _, err := NewPublisher(time.Millisecond, nil); err == nil {
		t.Error("NewPublisher(nil sender) expected error")
	}

	p, err := NewPublisher(0, &Sender{})
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if p.interval != 16*time.Millisecond {
		t.Errorf("interval = %v, want 16ms", p.interval)
	}
}

func TestPublisherSendsEachFrameOnce(t *testing.T) {
	conn := listen(t)

	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	p, err := NewPublisher(5*time.Millisecond, sender)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	defer p.Close()

	p.Start()
	p.Start() // no-op

	p.OnFrame(analysis.Frame{Seq: 1, Values: []float64{0.25, 0.75}})

	got, err := readPacket(t, conn, 2*time.Second)
	if err != nil {
		t.Fatalf("reading first packet: %v", err)
	}
	if got.FrameSeq != 1 || len(got.Values) != 2 || got.Values[1] != 0.75 {
		t.Errorf("first packet = %+v", got)
	}

	// Several ticks pass without a new frame.
	if _, err := readPacket(t, conn, 50*time.Millisecond); err == nil {
		t.Error("received a duplicate packet for an unchanged frame")
	}

	p.OnFrame(analysis.Frame{Seq: 2, Values: []float64{1}})
	got, err = readPacket(t, conn, 2*time.Second)
	if err != nil {
		t.Fatalf("reading second packet: %v", err)
	}
	if got.FrameSeq != 2 || got.Sequence != 2 {
		t.Errorf("second packet FrameSeq = %d Sequence = %d, want 2 2", got.FrameSeq, got.Sequence)
	}
}

func TestPublisherStopRestart(t *testing.T) {
	conn := listen(t)

	sender, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	p, _ := NewPublisher(5*time.Millisecond, sender)

	p.Start()
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	p.Start()
	p.OnFrame(analysis.Frame{Seq: 9, Values: []float64{0.5}})
	if _, err := readPacket(t, conn, 2*time.Second); err != nil {
		t.Fatalf("no packet after restart: %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sender.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send() after Close error = %v, want ErrSenderClosed", err)
	}
}

func TestNewSenderBadAddress(t *testing.T) {
	if _, err := NewSender("not an address"); err == nil {
		t.Error("NewSender() expected error")
	}
}
