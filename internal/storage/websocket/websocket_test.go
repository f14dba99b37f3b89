package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/internal/notify"
	"github.com/tidewatch/battlecore/internal/storage"
	"github.com/tidewatch/battlecore/pkg/core"
	"github.com/tidewatch/battlecore/pkg/streaming"
)

// Compile-time interface check.
var (
	_ storage.Backend = (*Backend)(nil)
	_ notify.Notifier = (*Backend)(nil)
)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and sends acks for start_battle/end_battle.
func testServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartBattle || env.Type == streaming.TypeEndBattle {
				var p streaming.BattlePayload
				_ = json.Unmarshal(env.Payload, &p)
				ack := streaming.AckMessage{Type: "ack", For: env.Type, Session: p.Record.SessionID}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	secret   string
	messages []streaming.Envelope
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) getSecret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) count(msgType string) int {
	n := 0
	for _, env := range m.all() {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndBattle(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "test"})
	require.NoError(t, b.Init())
	defer b.Close()

	rec := &core.BattleRecord{SessionID: "s1", Objective: "destroy_all", StartedAt: time.Now()}
	require.NoError(t, b.StartBattle(rec))

	rec.Turns = 4
	rec.Winner = core.SidePlayer
	require.NoError(t, b.EndBattle(rec))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartBattle, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndBattle, msgs[len(msgs)-1].Type)
	assert.Equal(t, "test", ml.getSecret())

	var end streaming.BattlePayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &end))
	assert.Equal(t, 4, end.Record.Turns)
	assert.Equal(t, core.SidePlayer, end.Record.Winner)

	b.conn.mu.Lock()
	assert.Empty(t, b.conn.running)
	assert.Empty(t, b.conn.pending)
	b.conn.mu.Unlock()
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), Secret: "s"})
	require.NoError(t, b.Init())
	defer b.Close()

	rec := &core.BattleRecord{SessionID: "s1", StartedAt: time.Now()}
	require.NoError(t, b.StartBattle(rec))

	require.NoError(t, b.RecordEvent(&core.BattleEvent{ID: "e1", SessionID: "s1", Type: core.EventAttack, Damage: 25}))
	require.NoError(t, b.Notify("s1", []string{"Fubuki fires."}))
	require.NoError(t, b.Notify("s1", nil))
	require.NoError(t, b.RequestRefresh(core.Snapshot{SessionID: "s1", Turn: 3}))

	require.NoError(t, b.EndBattle(rec))

	assert.Eventually(t, func() bool {
		return ml.count(streaming.TypeRefresh) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, ml.count(streaming.TypeStartBattle))
	assert.Equal(t, 1, ml.count(streaming.TypeEndBattle))
	assert.Equal(t, 1, ml.count(streaming.TypeBattleEvent))
	assert.Equal(t, 1, ml.count(streaming.TypeNarration))
}

func TestAckTimeoutWhenServerSilent(t *testing.T) {
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	require.NoError(t, b.Init())
	data, err := marshalEnvelope(streaming.TypeEndBattle, nil)
	require.NoError(t, err)
	err = b.conn.sendAndWait(data, ackKey{For: streaming.TypeEndBattle, Session: "s1"}, 50*time.Millisecond)
	assert.ErrorContains(t, err, "timeout waiting for ack")
	b.conn.mu.Lock()
	assert.Empty(t, b.conn.pending)
	b.conn.mu.Unlock()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestInit_BadURL(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/stream"})
	assert.Error(t, b.Init())

	b = New(Config{URL: "://bad"})
	assert.ErrorContains(t, b.Init(), "invalid websocket URL")
}

func TestEnvelopeSerialization(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeNarration, streaming.NarrationPayload{SessionID: "s1", Messages: []string{"a"}})
	require.NoError(t, err)

	var decoded streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, streaming.TypeNarration, decoded.Type)

	var p streaming.NarrationPayload
	require.NoError(t, json.Unmarshal(decoded.Payload, &p))
	assert.Equal(t, "s1", p.SessionID)
	assert.Equal(t, []string{"a"}, p.Messages)
}

func TestConcurrentStarts_AckedPerSession(t *testing.T) {
	srv, ml := testServer(t)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	require.NoError(t, b.Init())
	defer b.Close()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := &core.BattleRecord{SessionID: string(rune('a' + i)), StartedAt: time.Now()}
			errs[i] = b.StartBattle(rec)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 4, ml.count(streaming.TypeStartBattle))
}

func TestResolve_AckWithoutSession(t *testing.T) {
	c := newConnection(nil)
	ch := c.wait(ackKey{For: streaming.TypeStartBattle, Session: "s1"})

	assert.False(t, c.resolve(ackKey{For: streaming.TypeEndBattle}))
	assert.True(t, c.resolve(ackKey{For: streaming.TypeStartBattle}))

	select {
	case <-ch:
	default:
		t.Fatal("waiter was not released")
	}
	assert.Empty(t, c.pending)
}

func TestReconnect_ReplaysRunningSessions(t *testing.T) {
	firstBackoff = 10 * time.Millisecond
	defer func() { firstBackoff = time.Second }()

	var (
		mu    sync.Mutex
		conns int
		first = make(chan *ws.Conn, 1)
	)
	ml := &messageLog{}
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		if n == 1 {
			first <- c
		}
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if json.Unmarshal(msg, &env) == nil {
				ml.add(env)
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	require.NoError(t, b.Init())
	defer b.Close()

	start, err := marshalEnvelope(streaming.TypeStartBattle, streaming.BattlePayload{Record: core.BattleRecord{SessionID: "s1"}})
	require.NoError(t, err)
	b.conn.markRunning("s1", start)

	(<-first).Close()

	assert.Eventually(t, func() bool {
		return ml.count(streaming.TypeStartBattle) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Notify("s1", []string{"after reconnect"}))
	assert.Eventually(t, func() bool {
		return ml.count(streaming.TypeNarration) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
