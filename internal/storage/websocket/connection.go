package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/tidewatch/battlecore/pkg/streaming"
)

const (
	sendChSize   = 10_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	ackTimeout   = 10 * time.Second
)

// firstBackoff is the delay before the first reconnect attempt.
var firstBackoff = time.Second

var errClosed = errors.New("websocket connection closed")

// ackKey identifies the acknowledgement a sender waits for. Session is empty
// when the server does not echo it.
type ackKey struct {
	For     string
	Session string
}

// connection owns one dashboard socket at a time. A single writer goroutine
// serializes writes and pings; the reader routes acks to their waiters. Both
// loops exit when the socket they were started for is replaced.
type connection struct {
	mu      sync.Mutex
	conn    *ws.Conn
	closed  bool
	pending map[ackKey][]chan struct{}
	// start_battle frames of running sessions, replayed after a reconnect
	running map[string][]byte

	sendCh chan []byte
	done   chan struct{}

	wsURL  string
	secret string
	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		pending: make(map[ackKey][]chan struct{}),
		running: make(map[string][]byte),
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach makes conn current and starts its loops.
func (c *connection) attach(conn *ws.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)
}

func (c *connection) current(conn *ws.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn && !c.closed
}

func (c *connection) writeLoop(conn *ws.Conn) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		var data []byte
		select {
		case <-c.done:
			return
		case <-ping.C:
		case data = <-c.sendCh:
		}
		if !c.current(conn) {
			if data != nil {
				c.requeue(data)
			}
			return
		}

		if err := write(conn, data); err != nil {
			c.logger.Warn("WebSocket write error", "error", err)
			if data != nil {
				c.requeue(data)
			}
			go c.reconnect(conn)
			return
		}
	}
}

// write sends data as a text frame, or a ping when data is nil.
func write(conn *ws.Conn, data []byte) error {
	deadline := time.Now().Add(writeWait)
	if data == nil {
		return conn.WriteControl(ws.PingMessage, nil, deadline)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// requeue puts back a frame the old socket could not deliver.
func (c *connection) requeue(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.current(conn) {
				c.logger.Warn("WebSocket read error", "error", err)
				go c.reconnect(conn)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		if !c.resolve(ackKey{For: ack.For, Session: ack.Session}) {
			c.logger.Debug("Unexpected ack", "for", ack.For, "session", ack.Session)
		}
	}
}

// resolve wakes the oldest waiter for key. An ack without a session falls back
// to any waiter for the same message type.
func (c *connection) resolve(key ackKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key.Session == "" {
		for k := range c.pending {
			if k.For == key.For {
				key = k
				break
			}
		}
	}
	waiters := c.pending[key]
	if len(waiters) == 0 {
		return false
	}
	close(waiters[0])
	if len(waiters) == 1 {
		delete(c.pending, key)
	} else {
		c.pending[key] = waiters[1:]
	}
	return true
}

func (c *connection) wait(key ackKey) chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.pending[key] = append(c.pending[key], ch)
	c.mu.Unlock()
	return ch
}

func (c *connection) abandon(key ackKey, ch chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.pending[key]
	for i, w := range waiters {
		if w == ch {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(c.pending, key)
	} else {
		c.pending[key] = waiters
	}
}

// reconnect replaces the broken socket, backing off exponentially. The running
// sessions' start frames are replayed before normal traffic resumes.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	_ = broken.Close()

	backoff := firstBackoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce()
		if err == nil {
			err = c.replay(conn)
			if err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			c.logger.Warn("Reconnect failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

func (c *connection) replay(conn *ws.Conn) error {
	c.mu.Lock()
	frames := make([][]byte, 0, len(c.running))
	for _, f := range c.running {
		frames = append(frames, f)
	}
	c.mu.Unlock()

	for _, f := range frames {
		if err := write(conn, f); err != nil {
			return fmt.Errorf("replay start_battle: %w", err)
		}
	}
	return nil
}

func (c *connection) markRunning(sessionID string, startFrame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running[sessionID] = startFrame
}

func (c *connection) markEnded(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, sessionID)
}

// send queues data for the writer and drops it when the queue is full.
func (c *connection) send(data []byte) {
	select {
	case <-c.done:
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait queues data and blocks until the server acks key or timeout passes.
func (c *connection) sendAndWait(data []byte, key ackKey, timeout time.Duration) error {
	ch := c.wait(key)
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		c.abandon(key, ch)
		return fmt.Errorf("timeout waiting for ack of %q (session %q)", key.For, key.Session)
	case <-c.done:
		c.abandon(key, ch)
		return fmt.Errorf("waiting for ack of %q: %w", key.For, errClosed)
	}
}

// close sends a close frame and stops both loops. Closing twice is a no-op.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return conn.Close()
}
