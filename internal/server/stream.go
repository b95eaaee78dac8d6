package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// tick is one price update pushed to stream clients.
type tick struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	TS            int64   `json:"ts"` // unix millis
}

type tickState struct {
	symbol        string
	price         float64
	previousClose float64
}

func (t *tickState) frame(now time.Time) tick {
	change := t.price - t.previousClose
	pct := 0.0
	if t.previousClose > 0 {
		pct = change / t.previousClose * 100
	}
	return tick{
		Symbol:        t.symbol,
		Price:         round2(t.price),
		Change:        round2(change),
		ChangePercent: round2(pct),
		TS:            now.UnixMilli(),
	}
}

// handleTicks seeds each requested symbol from the quote chain and then
// advances it by one tick per interval until the client goes away.
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"), s.stream.MaxSymbols)
	if len(symbols) == 0 {
		symbols = s.deps.Instruments.Symbols(analysisDefaults)
	}

	conn, err := s.upgrader.Upgrade(w, r, http.Header{requestIDHeader: {RequestID(r.Context())}})
	if err != nil {
		// Upgrade has already written the error response
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.StreamClients.Inc()
	defer s.metrics.StreamClients.Dec()
	log := s.logger.With(zap.String("remote", r.RemoteAddr), zap.Int("symbols", len(symbols)))
	log.Info("stream client connected")
	defer log.Info("stream client disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readPump(conn, cancel)

	quotes := s.deps.Selector.Quotes(ctx, symbols)
	states := make([]tickState, len(quotes))
	for i, q := range quotes {
		states[i] = tickState{symbol: q.Symbol, price: q.Price, previousClose: q.PreviousClose}
	}
	if err := s.writeTicks(conn, states); err != nil {
		return
	}

	ticker := time.NewTicker(s.stream.TickInterval)
	defer ticker.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ticker.C:
			for i := range states {
				states[i].price = s.deps.Ticker.NextPrice(states[i].price)
			}
			if err := s.writeTicks(conn, states); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) writeTicks(conn *websocket.Conn, states []tickState) error {
	now := time.Now()
	for i := range states {
		_ = conn.SetWriteDeadline(now.Add(writeWait))
		if err := conn.WriteJSON(states[i].frame(now)); err != nil {
			return err
		}
	}
	return nil
}

// readPump drains client frames so control messages are processed, and
// cancels the stream once the connection drops.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
