// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"rtspectrum/internal/analysis"
	"rtspectrum/internal/log"
)

// SpectrumPath is the endpoint clients connect to.
const SpectrumPath = "/spectrum"

const (
	broadcastQueue = 256
	writeTimeout   = 2 * time.Second
)

// SpectrumMessage is the JSON form of a frame.
type SpectrumMessage struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Values    []float64 `json:"values"`
	Length    int       `json:"length"`
	ElapsedMs float64   `json:"elapsed_ms"`
}

// NewSpectrumMessage wraps frame for the wire.
func NewSpectrumMessage(frame analysis.Frame) SpectrumMessage {
	return SpectrumMessage{
		Type:      "spectrum",
		Seq:       frame.Seq,
		Values:    frame.Values,
		Length:    frame.Len(),
		ElapsedMs: frame.ElapsedMs(),
	}
}

// WebSocketTransport broadcasts frames as JSON to every connected client.
// Send never blocks: when the broadcast queue is full the message is
// dropped.
type WebSocketTransport struct {
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	log log.Logger
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport listens on addr ("host:port", port 0 picks one) and
// starts serving SpectrumPath.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // visualizers are served from anywhere
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
		log:       log.Named("WebSocket"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SpectrumPath, wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		wst.log.Infof("serving ws://%s%s", ln.Addr(), SpectrumPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.log.Errorf("server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()

	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() string {
	return wst.listener.Addr().String()
}

// ClientCount returns the number of connected clients.
func (wst *WebSocketTransport) ClientCount() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = struct{}{}
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.log.Infof("client %s connected, total: %d", conn.RemoteAddr(), total)

	// Clients only listen; the read loop exists to notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.drop(conn)
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		conn.Close()
		wst.log.Infof("client %s disconnected, total: %d", conn.RemoteAddr(), total)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteJSON(data); err != nil {
					wst.log.Warnf("error sending to %s: %v", client.RemoteAddr(), err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Send queues data for broadcast. Frames are converted to SpectrumMessage,
// anything else is encoded as is. A full queue drops the message silently.
func (wst *WebSocketTransport) Send(data any) error {
	if frame, ok := data.(analysis.Frame); ok {
		data = NewSpectrumMessage(frame)
	}

	select {
	case <-wst.done:
		return errors.New("websocket transport closed")
	default:
	}

	select {
	case wst.broadcast <- data:
	default:
		// Channel full, drop message
	}
	return nil
}

// Close stops the server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.log.Infof("closing server")
		close(wst.done)

		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		clear(wst.clients)
		wst.clientsMu.Unlock()

		wst.wg.Wait()
	})
	return err
}
