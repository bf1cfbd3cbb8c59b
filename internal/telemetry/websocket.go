// SPDX-License-Identifier: MIT
package telemetry

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "ici/internal/log"
)

// WebSocketTransport implements Transport over WebSocket connections. It
// serves a single endpoint (/ici) and broadcasts every snapshot it receives
// as a JSON message to all connected clients. Send never blocks: when the
// broadcast queue is full the snapshot is dropped, since a newer one is
// always on the way.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
}

// Compile-time check for the Transport implementation.
var _ Transport = (*WebSocketTransport)(nil)

// NewWebSocketTransport creates the transport and starts its HTTP server on
// addr (e.g. "127.0.0.1:8090").
func NewWebSocketTransport(addr string) *WebSocketTransport {
	t := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local telemetry endpoint; any origin may read.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 64),
	}
	t.start()
	return t
}

func (t *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ici", t.handleWebSocket)

	t.server = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	go func() {
		applog.Infof("Telemetry: WebSocket server listening on %s", t.addr)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("Telemetry: WebSocket server error: %v", err)
		}
	}()

	go t.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections and tracks the client until it
// disconnects.
func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Errorf("Telemetry: WebSocket upgrade error: %v", err)
		return
	}

	t.clientsMu.Lock()
	t.clients[conn] = true
	total := len(t.clients)
	t.clientsMu.Unlock()
	applog.Infof("Telemetry: WebSocket client connected, total: %d", total)

	go func() {
		// Block until the client goes away; we never expect inbound data.
		if _, _, err := conn.ReadMessage(); err != nil {
			t.clientsMu.Lock()
			delete(t.clients, conn)
			total := len(t.clients)
			t.clientsMu.Unlock()
			conn.Close()
			applog.Infof("Telemetry: WebSocket client disconnected, total: %d", total)
		}
	}()
}

// handleBroadcasts drains the queue and writes each snapshot to every
// connected client, dropping clients whose writes fail.
func (t *WebSocketTransport) handleBroadcasts() {
	for data := range t.broadcast {
		t.clientsMu.Lock()
		for client := range t.clients {
			if err := client.WriteJSON(data); err != nil {
				applog.Warnf("Telemetry: dropping WebSocket client: %v", err)
				client.Close()
				delete(t.clients, client)
			}
		}
		t.clientsMu.Unlock()
	}
}

// Send queues data for broadcast. Implements Transport.
func (t *WebSocketTransport) Send(data any) error {
	select {
	case t.broadcast <- data:
	default:
		// Queue full; drop in favor of fresher snapshots.
	}
	return nil
}

// Close shuts down the server and all client connections.
func (t *WebSocketTransport) Close() error {
	close(t.broadcast)

	t.clientsMu.Lock()
	for client := range t.clients {
		client.Close()
	}
	t.clients = make(map[*websocket.Conn]bool)
	t.clientsMu.Unlock()

	if t.server != nil {
		return t.server.Close()
	}
	return nil
}
