// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	applog "nowplaying/internal/log"
)

const (
	wsWriteTimeout = 2 * time.Second
	wsQueueSize    = 64
)

// WebSocketTransport broadcasts JSON messages to every connected client.
// Send only queues; a single goroutine writes, dropping messages while the
// queue is full.
type WebSocketTransport struct {
	path     string
	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	mu        sync.RWMutex // guards closed and sends on broadcast
	closed    bool
	broadcast chan any
	wg        sync.WaitGroup

	server  *http.Server
	dropped atomic.Uint64
	log     *applog.Logger
}

// NewWebSocketTransport returns a transport serving clients on path. It does
// not listen; use ListenAndServe or mount Handler.
func NewWebSocketTransport(path string) *WebSocketTransport {
	if path == "" {
		path = "/ws"
	}
	wst := &WebSocketTransport{
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // local display clients
			},
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan any, wsQueueSize),
		log:       applog.Named("websocket"),
	}
	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Handler returns an http.Handler upgrading requests on the transport path.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wst.path, wst.handleWebSocket)
	return mux
}

// ListenAndServe serves Handler on addr until Close. The listener is bound
// before it returns so startup errors surface immediately.
func (wst *WebSocketTransport) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	wst.mu.Lock()
	wst.server = &http.Server{Handler: wst.Handler(), ReadHeaderTimeout: 5 * time.Second}
	server := wst.server
	wst.mu.Unlock()

	wst.wg.Add(1)
	go func() {
		defer wst.wg.Done()
		wst.log.Infof("serving ws://%s%s", ln.Addr(), wst.path)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.log.Errorf("server error: %v", err)
		}
	}()
	return nil
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = struct{}{}
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.log.Infof("client %s connected, total: %d", conn.RemoteAddr(), n)

	// Reads only detect the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		wst.log.Infof("client %s disconnected, total: %d", conn.RemoteAddr(), n)
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()
	for data := range wst.broadcast {
		wst.clientsMu.Lock()
		conns := make([]*websocket.Conn, 0, len(wst.clients))
		for c := range wst.clients {
			conns = append(conns, c)
		}
		wst.clientsMu.Unlock()

		for _, c := range conns {
			_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.WriteJSON(data); err != nil {
				wst.log.Warnf("sending to %s: %v", c.RemoteAddr(), err)
				wst.drop(c)
			}
		}
	}
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns the number of messages discarded on a full queue.
func (wst *WebSocketTransport) Dropped() uint64 { return wst.dropped.Load() }

// Send queues data for all clients. A full queue drops the message.
func (wst *WebSocketTransport) Send(data any) error {
	wst.mu.RLock()
	defer wst.mu.RUnlock()
	if wst.closed {
		return ErrClosed
	}
	select {
	case wst.broadcast <- data:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Close disconnects clients, stops the server and waits for the writer.
func (wst *WebSocketTransport) Close() error {
	wst.mu.Lock()
	if wst.closed {
		wst.mu.Unlock()
		return nil
	}
	wst.closed = true
	close(wst.broadcast)
	server := wst.server
	wst.mu.Unlock()

	var err error
	if server != nil {
		err = server.Close()
	}

	wst.clientsMu.Lock()
	for c := range wst.clients {
		c.Close()
	}
	clear(wst.clients)
	wst.clientsMu.Unlock()

	wst.wg.Wait()
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
