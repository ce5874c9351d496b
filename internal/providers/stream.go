package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/optiondesk/internal/domain/risk"
)

// indexFrame is the wire format of one streamed index update.
type indexFrame struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

// IndexStream is a VolatilityIndexProvider fed by a websocket feed. It
// serves the last received level and reports DataUnavailable once the
// feed goes stale, so a silent outage never under-protects sizing.
type IndexStream struct {
	mu         sync.Mutex
	conn       *websocket.Conn
	last       float64
	lastAt     time.Time
	staleAfter time.Duration
	closed     bool
}

// DialIndexStream connects to the feed and starts the read loop.
func DialIndexStream(ctx context.Context, url string, staleAfter time.Duration) (*IndexStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial index stream %s: %w", url, err)
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	s := &IndexStream{conn: conn, staleAfter: staleAfter}
	go s.run()
	return s, nil
}

func (s *IndexStream) run() {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				log.Warn().Err(err).Msg("index stream read failed")
			}
			return
		}
		var frame indexFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			log.Warn().Err(err).Msg("index stream frame malformed")
			continue
		}
		s.mu.Lock()
		s.last = frame.Value
		s.lastAt = time.Now()
		s.mu.Unlock()
	}
}

// Read implements VolatilityIndexProvider. A never-seen or stale level
// is ErrDataUnavailable.
func (s *IndexStream) Read(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAt.IsZero() {
		return 0, fmt.Errorf("no index frame received yet: %w", risk.ErrDataUnavailable)
	}
	if time.Since(s.lastAt) > s.staleAfter {
		return 0, fmt.Errorf("index feed stale since %s: %w", s.lastAt.Format(time.RFC3339), risk.ErrDataUnavailable)
	}
	return s.last, nil
}

// Close shuts the stream down.
func (s *IndexStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}
