package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	applogger "MarketPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream maintains a WebSocket subscription to the realtime price feed
// and keeps the last trade per symbol in memory. Readers never block on
// the socket; they see whatever the feed delivered most recently.
type Stream struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	last      map[string]lastTrade
}

type lastTrade struct {
	price     float64
	prevClose float64
	at        time.Time
}

// NewStream creates a realtime price stream for the given universe.
func NewStream(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *Stream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
		last:           make(map[string]lastTrade),
	}
}

// Connect establishes the WebSocket connection and subscribes to the
// configured symbols.
func (s *Stream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("quotes connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	for _, sym := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
	}
	s.l.Info("quotes stream connected", applogger.Strings("symbols", s.symbols))
	return nil
}

type wireTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	T int64   `json:"t"` // ms
}

type wireMessage struct {
	Type string      `json:"type"`
	Data []wireTrade `json:"data"`
}

// Run reads the feed until ctx is cancelled, reconnecting after errors.
func (s *Stream) Run(ctx context.Context) {
	go s.pingLoop(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.readLoop(ctx); err != nil && ctx.Err() == nil {
			s.l.Warn("quotes stream read error, reconnecting", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
		if err := s.Connect(ctx); err != nil {
			s.l.Warn("quotes stream reconnect failed", applogger.Error(err))
		}
	}
}

func (s *Stream) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return fmt.Errorf("quotes conn nil")
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			s.markDisconnected()
			return fmt.Errorf("quotes read: %w", err)
		}
		var m wireMessage
		if err := json.Unmarshal(b, &m); err != nil {
			// non-trade frames are expected, skip them
			continue
		}
		if m.Type != "trade" {
			continue
		}
		s.mu.Lock()
		for _, d := range m.Data {
			prev := s.last[d.S]
			s.last[d.S] = lastTrade{
				price:     d.P,
				prevClose: prev.prevClose,
				at:        time.UnixMilli(d.T),
			}
		}
		s.mu.Unlock()
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

// SeedPrevClose primes percent-change baselines from stored closes.
func (s *Stream) SeedPrevClose(symbol string, close float64) {
	s.mu.Lock()
	lt := s.last[symbol]
	lt.prevClose = close
	s.last[symbol] = lt
	s.mu.Unlock()
}

// Last returns the most recent trade for symbol, if the feed has seen
// one, together with the percent change against the seeded close.
func (s *Stream) Last(symbol string) (price, pctChange float64, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lt, found := s.last[symbol]
	if !found || lt.at.IsZero() {
		return 0, 0, time.Time{}, false
	}
	pct := 0.0
	if lt.prevClose > 0 {
		pct = (lt.price - lt.prevClose) / lt.prevClose * 100
	}
	return lt.price, pct, lt.at, true
}

// IsConnected indicates feed status.
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Stream) markDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

// Close closes the WebSocket connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
