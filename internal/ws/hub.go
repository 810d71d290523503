// Package ws fans daemon events out to WebSocket subscribers.
// A subscriber may narrow its feed with ?types=state,position; without it
// every event is delivered. Ping/pong keepalives drop dead peers.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pingEvery    = 20 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
)

type client struct {
	conn  *websocket.Conn
	types map[string]struct{} // nil: everything
}

func (c *client) wants(kind string) bool {
	if c.types == nil {
		return true
	}
	_, ok := c.types[kind]
	return ok
}

type message struct {
	kind string
	data []byte
}

// Hub owns the subscriber set. Register, unregister and broadcast all go
// through channels drained by Run, so the set itself is single-goroutine.
type Hub struct {
	log        zerolog.Logger
	clients    map[*websocket.Conn]*client
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan message
	upgrader   websocket.Upgrader
	done       chan struct{} // closed when Run returns

	count   atomic.Int64
	dropped atomic.Uint64
}

// NewHub allocates a hub. Call Run in a goroutine to start delivery.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client, 16),
		unregister: make(chan *websocket.Conn, 16),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Dropped returns how many events were discarded because the broadcast
// queue was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) remove(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	h.count.Store(int64(len(h.clients)))
	_ = conn.Close()
	h.log.Debug().Str("peer", conn.RemoteAddr().String()).Msg("subscriber left")
}

// Run delivers events until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			for conn := range h.clients {
				h.remove(conn)
			}
			return

		case c := <-h.register:
			h.clients[c.conn] = c
			h.count.Store(int64(len(h.clients)))
			h.log.Debug().Str("peer", c.conn.RemoteAddr().String()).Msg("subscriber joined")

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			for conn, c := range h.clients {
				if !c.wants(msg.kind) {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
					h.remove(conn)
				}
			}

		case <-ping.C:
			for conn := range h.clients {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.remove(conn)
				}
			}
		}
	}
}

func parseTypes(q string) map[string]struct{} {
	if q == "" {
		return nil
	}
	types := make(map[string]struct{})
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = struct{}{}
		}
	}
	if len(types) == 0 {
		return nil
	}
	return types
}

// join hands c to Run. It reports false once the hub has stopped.
func (h *Hub) join(c *client) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave asks Run to drop conn, or closes it directly once Run has returned.
func (h *Hub) leave(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		if conn != nil {
			_ = conn.Close()
		}
	}
}

// Handler upgrades requests to WebSocket connections and registers them.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types := parseTypes(r.URL.Query().Get("types"))
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		if !h.join(&client{conn: conn, types: types}) {
			_ = conn.Close()
			return
		}

		go func() {
			defer h.leave(conn)
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			conn.SetPongHandler(func(string) error {
				_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
				return nil
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// Broadcast marshals v and queues it for subscribers that want kind. A full
// queue drops the event rather than block the caller, which may be the
// reactor goroutine.
func (h *Hub) Broadcast(kind string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Warn().Err(err).Str("type", kind).Msg("event marshal failed")
		return
	}
	select {
	case h.broadcast <- message{kind: kind, data: b}:
	default:
		h.dropped.Add(1)
	}
}
