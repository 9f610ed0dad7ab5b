package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"aperture-backend/internal/domain"
)

// phoenixMessage is the framing used by the data service's realtime endpoint
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// SocketConfig holds the websocket feed configuration
type SocketConfig struct {
	// URL is the realtime websocket endpoint including the apikey parameter
	URL string
	// Relations are the unscoped relations to subscribe to
	Relations []string
	// HeartbeatInterval keeps the connection alive
	HeartbeatInterval time.Duration
	// ReconnectMinWait and ReconnectMaxWait bound the backoff between attempts
	ReconnectMinWait time.Duration
	ReconnectMaxWait time.Duration
}

// SocketFeed is the websocket Feed implementation. It joins one channel per
// relation, scoping the activities channel to the current viewer, and
// reconnects with exponential backoff. After any reconnect it emits
// EventReconnect before further change events.
type SocketFeed struct {
	config SocketConfig
	viewer ViewerFunc
	events chan ChangeEvent
	logger *zap.Logger
	refSeq atomic.Int64

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSocketFeed creates a websocket-backed change feed
func NewSocketFeed(config SocketConfig, viewer ViewerFunc, logger *zap.Logger) *SocketFeed {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.ReconnectMinWait <= 0 {
		config.ReconnectMinWait = time.Second
	}
	if config.ReconnectMaxWait <= 0 {
		config.ReconnectMaxWait = 30 * time.Second
	}
	return &SocketFeed{
		config: config,
		viewer: viewer,
		events: make(chan ChangeEvent, 64),
		logger: logger,
	}
}

// Events returns the stream of change events
func (f *SocketFeed) Events() <-chan ChangeEvent {
	return f.events
}

// Rejoin drops the current connection so the next one subscribes with the
// current viewer identity. Channel topics are fixed at join time, so a
// sign-in or sign-out after connect needs a fresh join for the viewer-scoped
// activities channel. The resulting reconnect event marks all cache entries
// stale, which also covers anything missed under the old subscription.
func (f *SocketFeed) Rejoin() {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (f *SocketFeed) setConn(conn *websocket.Conn) {
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
}

// Run connects and pumps events until the context is cancelled
func (f *SocketFeed) Run(ctx context.Context) error {
	defer close(f.events)

	wait := f.config.ReconnectMinWait
	connected := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.config.URL, nil)
		if err != nil {
			f.logger.Warn("Change feed dial failed",
				zap.Error(err),
				zap.Duration("retryIn", wait),
			)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			wait = backoff(wait, f.config.ReconnectMaxWait)
			continue
		}

		f.setConn(conn)
		if err := f.join(conn); err != nil {
			f.logger.Warn("Change feed join failed", zap.Error(err))
			f.setConn(nil)
			conn.Close()
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			wait = backoff(wait, f.config.ReconnectMaxWait)
			continue
		}

		wait = f.config.ReconnectMinWait
		if connected {
			// A gap happened; downstream must distrust everything cached.
			f.emit(ctx, ChangeEvent{Type: EventReconnect})
		}
		connected = true
		f.logger.Info("Change feed connected",
			zap.Int("relations", len(f.config.Relations)),
		)

		err = f.pump(ctx, conn)
		f.setConn(nil)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("Change feed disconnected", zap.Error(err))
	}
}

// join subscribes to one channel per relation
func (f *SocketFeed) join(conn *websocket.Conn) error {
	for _, relation := range f.config.Relations {
		topic := "realtime:public:" + relation
		if relation == domain.RelationActivities {
			viewerID, ok := f.viewer()
			if !ok {
				// No viewer signed in; activity changes are per-recipient,
				// so there is nothing to scope the subscription to.
				continue
			}
			topic = fmt.Sprintf("%s:user_id=eq.%s", topic, viewerID)
		}
		msg := phoenixMessage{
			Topic:   topic,
			Event:   "phx_join",
			Payload: json.RawMessage(`{}`),
			Ref:     f.nextRef(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("join %s: %w", topic, err)
		}
	}
	return nil
}

// pump reads events and sends heartbeats until the connection fails
func (f *SocketFeed) pump(ctx context.Context, conn *websocket.Conn) error {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(f.config.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pumpCtx.Done():
				// Also unblocks the read loop on shutdown or Rejoin.
				conn.Close()
				return
			case <-ticker.C:
				hb := phoenixMessage{
					Topic:   "phoenix",
					Event:   "heartbeat",
					Payload: json.RawMessage(`{}`),
					Ref:     f.nextRef(),
				}
				if err := conn.WriteJSON(hb); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		var msg phoenixMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		switch msg.Event {
		case string(EventInsert), string(EventUpdate), string(EventDelete):
			relation := topicRelation(msg.Topic)
			if relation == "" {
				continue
			}
			f.emit(ctx, ChangeEvent{Relation: relation, Type: EventType(msg.Event)})
		case "phx_reply", "phx_close", "heartbeat":
			// Protocol chatter; nothing to propagate.
		}
	}
}

func (f *SocketFeed) emit(ctx context.Context, ev ChangeEvent) {
	select {
	case f.events <- ev:
	case <-ctx.Done():
	}
}

func (f *SocketFeed) nextRef() string {
	return strconv.FormatInt(f.refSeq.Add(1), 10)
}

// topicRelation extracts the relation from "realtime:public:<relation>[:filter]"
func topicRelation(topic string) string {
	parts := strings.SplitN(topic, ":", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func backoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
