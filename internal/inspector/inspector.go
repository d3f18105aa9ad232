// Package inspector implements SiMBA's optional live record stream
// (SPEC_FULL.md §10): an http+websocket server that fans every flushed
// record batch out to any number of connected viewers, grounded on
// `tabular`'s fastview websocket client (ping/pong liveness, per-client
// write serialization, best-effort delivery that never blocks the
// simulation on a slow viewer).
package inspector

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mescourrou/simba/internal/record"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 1 * time.Second
	pingPeriod = 20 * time.Second
	pongWait   = pingPeriod * 2

	// clientBacklog bounds how many un-delivered batches a slow viewer can
	// accumulate before batches are dropped for it; the inspector is a
	// best-effort viewer, never a feedback path into the simulation.
	clientBacklog = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is a record.Sink that also serves an http.Handler: every
// flushed batch is broadcast, best-effort, to every currently connected
// websocket viewer.
type Server struct {
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New returns a Server ready to be mounted as an http.Handler and
// attached to the record store as a Sink.
func New(logger *logrus.Logger) *Server {
	return &Server{logger: logger, clients: make(map[*client]struct{})}
}

// Flush implements record.Sink: it broadcasts the batch to every
// connected viewer and never returns an error, since a viewer outage
// must never abort a run.
func (s *Server) Flush(records []record.Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		s.logger.WithError(err).Warn("inspector: marshaling record batch")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.outbox <- payload:
		default:
			s.logger.WithField("remote", c.remote).Warn("inspector: viewer backlog full, dropping batch")
		}
	}
	return nil
}

// ServeHTTP upgrades the request to a websocket and registers a new
// viewer, which receives every subsequent Flush broadcast until it
// disconnects or the request's context is done.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("inspector: websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		outbox: make(chan []byte, clientBacklog),
		remote: r.RemoteAddr,
	}
	s.register(c)
	defer s.unregister(c)

	c.run(r.Context(), s.logger)
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.conn.Close()
}

// client serializes writes to one viewer's websocket, sends it periodic
// pings and extends its read deadline on each pong, the way tabular's
// fastview.client does.
type client struct {
	conn   *websocket.Conn
	outbox chan []byte
	remote string
}

func (c *client) run(ctx context.Context, logger *logrus.Logger) {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.drainReads(logger)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-c.outbox:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, batch); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainReads discards any client-sent frames; the inspector is a
// one-way viewer, but this read loop must run for the pong handler to fire.
func (c *client) drainReads(logger *logrus.Logger) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
