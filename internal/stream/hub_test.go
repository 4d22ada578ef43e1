package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	id       string
	capacity int

	mu     sync.Mutex
	frames []Message
	closed bool
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id, capacity: 1000}
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.frames) >= c.capacity {
		return false
	}
	var m Message
	if err := json.Unmarshal(msg, &m); err != nil {
		panic(err)
	}
	c.frames = append(c.frames, m)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type staticSnapshots struct {
	mu   sync.Mutex
	snap engine.Snapshot
}

func (s *staticSnapshots) Snapshot() engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *staticSnapshots) set(snap engine.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

var testBase = map[string]int64{"INFY": 1450, "TCS": 3200, "WIPRO": 450}

func makeSnapshot(seq uint64, prices map[string]string) engine.Snapshot {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := engine.Snapshot{Seq: seq, At: at, Prices: make(map[string]domain.PriceState)}
	for sym, base := range testBase {
		price := decimal.NewFromInt(base)
		if p, ok := prices[sym]; ok {
			price = decimal.RequireFromString(p)
		}
		snap.Prices[sym] = domain.NewPriceState(sym, decimal.NewFromInt(base), price, at)
	}
	return snap
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHub(t *testing.T, m *metrics.Metrics) (*Hub, *staticSnapshots) {
	t.Helper()
	prices := &staticSnapshots{snap: makeSnapshot(1, nil)}
	known := func(s string) bool { _, ok := testBase[s]; return ok }
	return NewHub(NewRegistry(known), prices, m, discardLogger()), prices
}

func subscribe(t *testing.T, h *Hub, c Client, symbols ...string) {
	t.Helper()
	raw, err := json.Marshal(Request{Event: EventSubscribe, Symbols: symbols})
	require.NoError(t, err)
	h.HandleMessage(c, raw)
}

func symbolsOf(m Message) []string {
	out := make([]string, len(m.Data))
	for i, p := range m.Data {
		out[i] = p.Symbol
	}
	return out
}

func TestHub_SubscribeAcksAndSendsSnapshot(t *testing.T) {
	h, _ := newTestHub(t, nil)
	c := newFakeClient("c1")
	h.OnConnect(c)

	subscribe(t, h, c, "tcs", "INFY")

	msgs := c.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, EventSubscribed, msgs[0].Event)
	assert.Equal(t, []string{"INFY", "TCS"}, msgs[0].Symbols)
	assert.Equal(t, EventUpdate, msgs[1].Event)
	assert.Equal(t, uint64(1), msgs[1].Seq)
	assert.Equal(t, []string{"INFY", "TCS"}, symbolsOf(msgs[1]))
	assert.Equal(t, 1450.0, msgs[1].Data[0].CurrentPrice)
}

func TestHub_BroadcastDeliversOnlySubscribedSymbols(t *testing.T) {
	h, _ := newTestHub(t, nil)
	a := newFakeClient("a")
	b := newFakeClient("b")
	idle := newFakeClient("idle")
	h.OnConnect(a)
	h.OnConnect(b)
	h.OnConnect(idle)
	subscribe(t, h, a, "INFY")
	subscribe(t, h, b, "TCS", "WIPRO")
	a.reset()
	b.reset()

	h.Broadcast(makeSnapshot(2, map[string]string{"INFY": "1421.00"}))

	msgsA := a.messages()
	require.Len(t, msgsA, 1)
	assert.Equal(t, []string{"INFY"}, symbolsOf(msgsA[0]))
	assert.Equal(t, 1421.0, msgsA[0].Data[0].CurrentPrice)
	assert.Equal(t, -29.0, msgsA[0].Data[0].Change)
	assert.Equal(t, -2.0, msgsA[0].Data[0].ChangePercent)
	assert.True(t, msgsA[0].Data[0].IsDown)

	msgsB := b.messages()
	require.Len(t, msgsB, 1)
	assert.Equal(t, []string{"TCS", "WIPRO"}, symbolsOf(msgsB[0]))

	assert.Empty(t, idle.messages())
}

func TestHub_PartialSubscriptionWarns(t *testing.T) {
	h, _ := newTestHub(t, nil)
	c := newFakeClient("c1")
	h.OnConnect(c)

	subscribe(t, h, c, "INFY", "FAKE")

	msgs := c.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, EventWarning, msgs[0].Event)
	assert.Equal(t, []string{"FAKE"}, msgs[0].Invalid)
	assert.Equal(t, EventSubscribed, msgs[1].Event)
	assert.Equal(t, []string{"INFY"}, msgs[1].Symbols)
	assert.Equal(t, EventUpdate, msgs[2].Event)
}

func TestHub_InvalidOnlySubscriptionKeepsPrevious(t *testing.T) {
	h, _ := newTestHub(t, nil)
	c := newFakeClient("c1")
	h.OnConnect(c)
	subscribe(t, h, c, "INFY")
	c.reset()

	subscribe(t, h, c, "NOPE")

	msgs := c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, EventWarning, msgs[0].Event)
	assert.Equal(t, []string{"NOPE"}, msgs[0].Invalid)

	c.reset()
	h.Broadcast(makeSnapshot(2, nil))
	msgs = c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"INFY"}, symbolsOf(msgs[0]))
}

func TestHub_ResubscribeReplacesSet(t *testing.T) {
	h, _ := newTestHub(t, nil)
	c := newFakeClient("c1")
	h.OnConnect(c)
	subscribe(t, h, c, "INFY", "TCS")
	subscribe(t, h, c, "WIPRO")
	c.reset()

	h.Broadcast(makeSnapshot(2, nil))

	msgs := c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"WIPRO"}, symbolsOf(msgs[0]))
}

func TestHub_UnsubscribeStopsUpdates(t *testing.T) {
	h, _ := newTestHub(t, nil)
	c := newFakeClient("c1")
	h.OnConnect(c)
	subscribe(t, h, c, "INFY")
	c.reset()

	h.HandleMessage(c, []byte(`{"event":"unsubscribe_watchlist"}`))
	h.Broadcast(makeSnapshot(2, nil))

	msgs := c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, EventUnsubscribed, msgs[0].Event)
}

func TestHub_DisconnectReleasesSubscription(t *testing.T) {
	h, _ := newTestHub(t, nil)
	c := newFakeClient("c1")
	h.OnConnect(c)
	subscribe(t, h, c, "INFY")
	c.reset()

	h.OnDisconnect(c)
	h.OnDisconnect(c)
	h.Broadcast(makeSnapshot(2, nil))

	assert.Empty(t, c.messages())
	assert.Zero(t, h.Connections())
	assert.Zero(t, h.registry.Len())
}

func TestHub_BadFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"event":`},
		{"unknown event", `{"event":"dance"}`},
		{"empty event", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHub(t, nil)
			c := newFakeClient("c1")
			h.OnConnect(c)

			h.HandleMessage(c, []byte(tt.raw))

			msgs := c.messages()
			require.Len(t, msgs, 1)
			assert.Equal(t, EventError, msgs[0].Event)
			assert.NotEmpty(t, msgs[0].Message)
			assert.Equal(t, 1, h.Connections())
		})
	}
}

func TestHub_SkipsAlreadyDeliveredSnapshot(t *testing.T) {
	h, prices := newTestHub(t, nil)
	prices.set(makeSnapshot(5, nil))
	c := newFakeClient("c1")
	h.OnConnect(c)
	subscribe(t, h, c, "INFY")
	c.reset()

	h.Broadcast(makeSnapshot(5, nil))
	h.Broadcast(makeSnapshot(6, nil))

	msgs := c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, uint64(6), msgs[0].Seq)
}

func TestHub_SeqIsMonotonicPerClient(t *testing.T) {
	h, _ := newTestHub(t, nil)
	c := newFakeClient("c1")
	h.OnConnect(c)
	subscribe(t, h, c, "INFY")

	for seq := uint64(2); seq <= 20; seq++ {
		h.Broadcast(makeSnapshot(seq, nil))
	}

	var last uint64
	for _, m := range c.messages() {
		if m.Event != EventUpdate {
			continue
		}
		assert.Greater(t, m.Seq, last)
		last = m.Seq
	}
	assert.Equal(t, uint64(20), last)
}

func TestHub_DropsLaggingClient(t *testing.T) {
	m := metrics.New()
	h, _ := newTestHub(t, m)
	slow := newFakeClient("slow")
	fast := newFakeClient("fast")
	h.OnConnect(slow)
	h.OnConnect(fast)
	subscribe(t, h, slow, "INFY")
	subscribe(t, h, fast, "INFY")
	slow.mu.Lock()
	slow.capacity = len(slow.frames)
	slow.mu.Unlock()

	h.Broadcast(makeSnapshot(2, nil))

	assert.True(t, slow.isClosed())
	assert.False(t, fast.isClosed())
	assert.Equal(t, 1, h.Connections())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Subscriptions))

	h.Broadcast(makeSnapshot(3, nil))
	last := fast.messages()
	assert.Equal(t, uint64(3), last[len(last)-1].Seq)
}

func TestHub_ConcurrentBroadcastAndSubscribe(t *testing.T) {
	h, _ := newTestHub(t, nil)
	clients := make([]*fakeClient, 10)
	for i := range clients {
		clients[i] = newFakeClient(string(rune('a' + i)))
		clients[i].capacity = 1 << 20
		h.OnConnect(clients[i])
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for seq := uint64(2); seq < 200; seq++ {
			h.Broadcast(makeSnapshot(seq, nil))
		}
	}()
	for _, c := range clients {
		wg.Add(1)
		go func(c *fakeClient) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				subscribe(t, h, c, "INFY", "TCS")
			}
		}(c)
	}
	wg.Wait()

	for _, c := range clients {
		var last uint64
		for _, m := range c.messages() {
			if m.Event != EventUpdate {
				continue
			}
			require.GreaterOrEqual(t, m.Seq, last, "client %s saw seq go backwards", c.id)
			last = m.Seq
		}
	}
}

type rawClient struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *rawClient) ID() string { return "raw" }

func (c *rawClient) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, msg)
	return true
}

func (c *rawClient) Close() {}

func TestHub_UpdateCarriesSeqBeforeFirstTick(t *testing.T) {
	h, prices := newTestHub(t, nil)
	prices.set(makeSnapshot(0, nil))
	c := &rawClient{}
	h.OnConnect(c)

	subscribe(t, h, c, "INFY")

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.frames, 2)

	var update map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(c.frames[1], &update))
	assert.JSONEq(t, `"watchlist_update"`, string(update["event"]))
	seq, ok := update["seq"]
	require.True(t, ok, "update frame has no seq: %s", c.frames[1])
	assert.Equal(t, "0", string(seq))
}
