package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	drepo "SignalForge/internal/domain/repository"
	applogger "SignalForge/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream over a WebSocket candle feed. One frame
// carries a batch of closed candles; incomplete bars are the upstream's
// concern and never appear here.
type Client struct {
	apiKey         string
	websocketURL   string
	instruments    []string
	timeframe      string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a candle feed MarketStream.
func New(apiKey, websocketURL string, instruments []string, timeframe string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) drepo.MarketStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		instruments:    instruments,
		timeframe:      timeframe,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	if c.l != nil {
		c.l.Info("feed connected", applogger.String("url", c.websocketURL))
	}
	return nil
}

// Subscribe subscribes to configured instruments at the configured timeframe.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("feed not connected")
	}
	for _, inst := range c.instruments {
		msg := map[string]string{"type": "subscribe", "instrument": inst, "tf": c.timeframe}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", inst, err)
		}
		if c.l != nil {
			c.l.Info("feed subscribed",
				applogger.String("instrument", inst),
				applogger.String("tf", c.timeframe),
			)
		}
	}
	return nil
}

type wsCandle struct {
	S  string  `json:"s"`
	TF string  `json:"tf"`
	T  int64   `json:"t"` // ms
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	C  float64 `json:"c"`
	V  float64 `json:"v"`
}

type wsMessage struct {
	Type string     `json:"type"`
	Data []wsCandle `json:"data"`
}

// Read streams candle events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.CandleEvent, <-chan error) {
	events := make(chan *models.CandleEvent, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("feed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("feed read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-candle frames
					continue
				}
				if m.Type != "candle" {
					continue
				}
				for _, d := range m.Data {
					tf := d.TF
					if tf == "" {
						tf = c.timeframe
					}
					ev := &models.CandleEvent{
						Instrument: d.S,
						Timeframe:  tf,
						Candle: models.Candle{
							Timestamp: d.T,
							Open:      d.O,
							High:      d.H,
							Low:       d.L,
							Close:     d.C,
							Volume:    d.V,
						},
					}
					select {
					case events <- ev:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
