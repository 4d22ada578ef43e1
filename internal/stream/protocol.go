package stream

import (
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Client → server events.
const (
	EventSubscribe   = "subscribe_watchlist"
	EventUnsubscribe = "unsubscribe_watchlist"
)

// Server → client events.
const (
	EventUpdate       = "watchlist_update"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventWarning      = "warning"
	EventError        = "error"
)

// Request is a frame sent by a client.
type Request struct {
	Event   string   `json:"event"`
	Symbols []string `json:"symbols,omitempty"`
}

// Message is a frame sent to a client.
type Message struct {
	Event   string      `json:"event"`
	Seq     uint64      `json:"seq"`
	Data    []PriceView `json:"data,omitempty"`
	Symbols []string    `json:"symbols,omitempty"`
	Message string      `json:"message,omitempty"`
	Invalid []string    `json:"invalid,omitempty"`
}

// PriceView is the wire form of a price state.
type PriceView struct {
	Symbol        string    `json:"symbol"`
	BasePrice     float64   `json:"basePrice"`
	CurrentPrice  float64   `json:"currentPrice"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	IsDown        bool      `json:"isDown"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func NewPriceView(ps domain.PriceState) PriceView {
	return PriceView{
		Symbol:        ps.Symbol,
		BasePrice:     domain.ToFloat(ps.BasePrice),
		CurrentPrice:  domain.ToFloat(ps.CurrentPrice),
		Change:        domain.ToFloat(ps.Change),
		ChangePercent: domain.ToFloat(ps.ChangePercent),
		IsDown:        ps.IsDown,
		LastUpdated:   ps.LastUpdated,
	}
}

func priceViews(states []domain.PriceState) []PriceView {
	out := make([]PriceView, len(states))
	for i, ps := range states {
		out[i] = NewPriceView(ps)
	}
	return out
}
