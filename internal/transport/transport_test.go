// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rtspectrum/internal/analysis"
	"rtspectrum/pkg/utils"
)

func testFrame(seq uint64, values ...float64) analysis.Frame {
	return analysis.Frame{Seq: seq, Values: values, Elapsed: 1500 * time.Microsecond}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFanout(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	failing := &utils.MockTransport{Err: errors.New("unreachable")}

	f := NewFanout(a, nil, failing, b)
	if f.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (nil skipped)", f.Len())
	}

	f.OnFrame(testFrame(1, 0.5))
	f.OnFrame(testFrame(2, 0.25))

	for name, m := range map[string]*utils.MockTransport{"a": a, "b": b} {
		sent := m.Sent()
		if len(sent) != 2 {
			t.Fatalf("%s received %d frames, want 2", name, len(sent))
		}
		if got := sent[1].(analysis.Frame).Seq; got != 2 {
			t.Errorf("%s second frame Seq = %d, want 2", name, got)
		}
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !a.Closed() || !b.Closed() || !failing.Closed() {
		t.Error("Close() did not close every transport")
	}
	if f.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", f.Len())
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(testFrame(3, 0, 0.5, 1, 0.25))

	for _, want := range []string{"#3", "n=4", "peak=1.000@2", "t=1.500ms", "| ▄█▂|"} {
		if !strings.Contains(got, want) {
			t.Errorf("Summarize() = %q, missing %q", got, want)
		}
	}

	if empty := Summarize(analysis.Frame{}); !strings.Contains(empty, "n=0") {
		t.Errorf("Summarize(empty) = %q", empty)
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport(0)
	if lt.every != 1 {
		t.Errorf("every = %d, want 1", lt.every)
	}
	for i := range 3 {
		if err := lt.Send(testFrame(uint64(i+1), 0.1)); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if lt.count.Load() != 3 {
		t.Errorf("count = %d, want 3", lt.count.Load())
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+SpectrumPath, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitFor(t, "client registration", func() bool { return wst.ClientCount() == 1 })

	if err := wst.Send(testFrame(7, 0.1, 0.9)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg SpectrumMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	if msg.Type != "spectrum" || msg.Seq != 7 || msg.Length != 2 {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Values) != 2 || msg.Values[1] != 0.9 {
		t.Errorf("Values = %v, want [0.1 0.9]", msg.Values)
	}
	if msg.ElapsedMs != 1.5 {
		t.Errorf("ElapsedMs = %v, want 1.5", msg.ElapsedMs)
	}

	conn.Close()
	waitFor(t, "client removal", func() bool { return wst.ClientCount() == 0 })
}

func TestWebSocketClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}

	if err := wst.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := wst.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := wst.Send(testFrame(1, 0)); err == nil {
		t.Error("Send() after Close expected error")
	}
	if _, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+SpectrumPath, nil); err == nil {
		t.Error("Dial() after Close expected error")
	}
}

func TestWebSocketListenError(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWebSocketTransport() error = %v", err)
	}
	defer wst.Close()

	if _, err := NewWebSocketTransport(wst.Addr()); err == nil {
		t.Error("listening twice on the same address expected error")
	}
}
