package feed

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/agentarena/internal/positions"
)

// Stream pushes live odds updates over the venue's market WebSocket as a fast
// path ahead of HTTP polling. Optional: the trackers work without it.
type Stream struct {
	url  string
	conn *websocket.Conn
	mu   sync.RWMutex

	subscribed  map[string]bool // marketID -> subscribed
	isConnected bool
	stopped     bool

	onOdds func(marketID string, odds positions.Odds)

	stopCh chan struct{}
}

// wsPriceChange is a real-time price update frame.
type wsPriceChange struct {
	Market       string `json:"market"`
	EventType    string `json:"event_type"`
	PriceChanges []struct {
		AssetID string `json:"asset_id"`
		Price   string `json:"price"`
		BestBid string `json:"best_bid"`
		BestAsk string `json:"best_ask"`
	} `json:"price_changes"`
}

// NewStream creates a stream client for the given WebSocket URL.
func NewStream(url string) *Stream {
	return &Stream{
		url:        url,
		subscribed: make(map[string]bool),
		stopCh:     make(chan struct{}),
	}
}

// SetOddsCallback registers the handler invoked on each odds push.
func (s *Stream) SetOddsCallback(cb func(marketID string, odds positions.Odds)) {
	s.onOdds = cb
}

// Connect establishes the WebSocket connection and starts the read loop.
func (s *Stream) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isConnected {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("feed: websocket dial: %w", err)
	}

	s.conn = conn
	s.isConnected = true
	go s.readMessages()

	log.Info().Str("url", s.url).Msg("📡 Odds stream connected")
	return nil
}

// Subscribe registers interest in a market's yes/no tokens.
func (s *Stream) Subscribe(marketID string, tokenIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isConnected {
		return fmt.Errorf("feed: stream not connected")
	}
	if s.subscribed[marketID] {
		return nil
	}

	msg := map[string]interface{}{
		"type":       "market",
		"assets_ids": tokenIDs,
	}
	msgBytes, _ := json.Marshal(msg)
	if err := s.conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}

	s.subscribed[marketID] = true
	log.Debug().Str("market", marketID).Msg("Subscribed to odds stream")
	return nil
}

func (s *Stream) readMessages() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Odds stream read failed, closing")
			s.mu.Lock()
			s.isConnected = false
			s.mu.Unlock()
			return
		}

		var change wsPriceChange
		if err := json.Unmarshal(data, &change); err != nil || change.EventType != "price_change" {
			continue
		}
		if len(change.PriceChanges) == 0 || s.onOdds == nil {
			continue
		}

		yes := parseDecimal(change.PriceChanges[0].Price)
		if yes.IsZero() {
			continue
		}
		odds := positions.Odds{
			YesPrice: clampPrice(yes),
			NoPrice:  decimal.NewFromInt(1).Sub(clampPrice(yes)),
		}
		s.onOdds(change.Market, odds)
	}
}

// Stop closes the stream. Safe to call more than once.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
	if s.conn != nil {
		s.conn.Close()
	}
	s.isConnected = false
}
