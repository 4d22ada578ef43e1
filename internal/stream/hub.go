package stream

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/metrics"
)

// Client is one connected subscriber as seen by the hub.
type Client interface {
	ID() string
	// Send enqueues msg without blocking. It returns false when the
	// client is closed or its buffer is full.
	Send(msg []byte) bool
	Close()
}

// Snapshotter provides the latest consistent price snapshot.
type Snapshotter interface {
	Snapshot() engine.Snapshot
}

type member struct {
	client    Client
	delivered bool
	lastSeq   uint64
}

// Hub routes price snapshots to subscribed clients. Every delivery happens
// under mu, so a client never observes snapshots out of order.
type Hub struct {
	registry *Registry
	prices   Snapshotter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	members map[string]*member
}

func NewHub(registry *Registry, prices Snapshotter, m *metrics.Metrics, logger *slog.Logger) *Hub {
	return &Hub{
		registry: registry,
		prices:   prices,
		metrics:  m,
		logger:   logger,
		members:  make(map[string]*member),
	}
}

// OnConnect registers c. It receives nothing until it subscribes.
func (h *Hub) OnConnect(c Client) {
	h.mu.Lock()
	h.members[c.ID()] = &member{client: c}
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Debug("client connected", "conn_id", c.ID())
}

// OnDisconnect forgets c and its subscription. It is safe to call more
// than once.
func (h *Hub) OnDisconnect(c Client) {
	h.mu.Lock()
	removed := h.removeLocked(c.ID())
	h.mu.Unlock()

	if removed {
		h.metrics.ConnectionClosed()
		h.logger.Debug("client disconnected", "conn_id", c.ID())
	}
}

// Connections returns the number of registered clients.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members)
}

// HandleMessage decodes and dispatches a client frame.
func (h *Hub) HandleMessage(c Client, raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		h.send(c, Message{Event: EventError, Message: "invalid message format"})
		return
	}

	switch strings.TrimSpace(req.Event) {
	case EventSubscribe:
		h.subscribe(c, req.Symbols)
	case EventUnsubscribe:
		h.unsubscribe(c)
	default:
		h.send(c, Message{Event: EventError, Message: "unknown event: " + req.Event})
	}
}

// Broadcast delivers snap to every subscriber, each receiving only the
// symbols it watches. Clients whose buffer is full are disconnected.
func (h *Hub) Broadcast(snap engine.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var lagging []string
	h.registry.Each(func(connID string, symbols []string) {
		mem, ok := h.members[connID]
		if !ok {
			return
		}
		if !h.deliverLocked(mem, snap, symbols, false) {
			lagging = append(lagging, connID)
		}
	})

	for _, id := range lagging {
		mem := h.members[id]
		h.removeLocked(id)
		mem.client.Close()
		h.metrics.ConnectionClosed()
		h.metrics.ObserveDroppedClient()
		h.logger.Warn("dropping lagging client", "conn_id", id)
	}
}

func (h *Hub) subscribe(c Client, symbols []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	mem, ok := h.members[c.ID()]
	if !ok {
		return
	}

	accepted, rejected := h.registry.Subscribe(c.ID(), symbols)
	if len(accepted) == 0 {
		h.sendLocked(mem, Message{
			Event:   EventWarning,
			Message: "no valid symbols in subscription",
			Invalid: rejected,
		})
		return
	}
	h.metrics.SetSubscriptions(h.registry.Len())

	if len(rejected) > 0 {
		h.sendLocked(mem, Message{
			Event:   EventWarning,
			Message: "some symbols are unknown and were ignored",
			Invalid: rejected,
		})
	}
	h.sendLocked(mem, Message{Event: EventSubscribed, Symbols: accepted})

	// Deliver the current state right away instead of waiting for the
	// next tick.
	h.deliverLocked(mem, h.prices.Snapshot(), accepted, true)

	h.logger.Debug("client subscribed", "conn_id", c.ID(), "symbols", accepted)
}

func (h *Hub) unsubscribe(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	mem, ok := h.members[c.ID()]
	if !ok {
		return
	}
	h.registry.Unsubscribe(c.ID())
	h.metrics.SetSubscriptions(h.registry.Len())
	h.sendLocked(mem, Message{Event: EventUnsubscribed})
}

// deliverLocked sends the subscribed slice of snap to mem. Older snapshots
// are never sent, and the last one is resent only when force is set.
func (h *Hub) deliverLocked(mem *member, snap engine.Snapshot, symbols []string, force bool) bool {
	if mem.delivered && (snap.Seq < mem.lastSeq || (snap.Seq == mem.lastSeq && !force)) {
		return true
	}
	states := snap.Select(symbols)
	if len(states) == 0 {
		return true
	}
	ok := h.sendLocked(mem, Message{
		Event: EventUpdate,
		Seq:   snap.Seq,
		Data:  priceViews(states),
	})
	if ok {
		mem.delivered = true
		mem.lastSeq = snap.Seq
	}
	return ok
}

func (h *Hub) send(c Client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if mem, ok := h.members[c.ID()]; ok {
		h.sendLocked(mem, msg)
	}
}

func (h *Hub) sendLocked(mem *member, msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode message", "event", msg.Event, "error", err)
		return true
	}
	return mem.client.Send(data)
}

func (h *Hub) removeLocked(connID string) bool {
	if _, ok := h.members[connID]; !ok {
		return false
	}
	delete(h.members, connID)
	h.registry.OnDisconnect(connID)
	h.metrics.SetSubscriptions(h.registry.Len())
	return true
}
