package websocket

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"onechurch/logger"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrGaveUp is returned by Run once MaxAttempts consecutive dials failed.
var ErrGaveUp = errors.New("websocket: giving up after max reconnect attempts")

const seenLimit = 1024

type ListenerConfig struct {
	// URL of the /ws endpoint, ws:// or wss://.
	URL         string
	Token       string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OnState is called on every state change.
	OnState func(State)
}

// EventHandler receives every server event except duplicates of new-* events.
type EventHandler func(event string, payload json.RawMessage)

// Listener keeps a feed connection open: it joins the actor's room and the
// feed, reconnects with a doubling delay and stops for good after
// MaxAttempts failed dials in a row.
type Listener struct {
	cfg     ListenerConfig
	handler EventHandler

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	seen      map[string]struct{}
	seenOrder []string

	closed    chan struct{}
	closeOnce sync.Once
}

func NewListener(cfg ListenerConfig, handler EventHandler) *Listener {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &Listener{
		cfg:     cfg,
		handler: handler,
		seen:    make(map[string]struct{}),
		closed:  make(chan struct{}),
	}
}

func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	if l.state == s || l.state == StateClosed {
		l.mu.Unlock()
		return
	}
	l.state = s
	l.mu.Unlock()
	if l.cfg.OnState != nil {
		l.cfg.OnState(s)
	}
}

// delay returns the wait before retry number attempt (1-based).
func (l *Listener) delay(attempt int) time.Duration {
	d := l.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= l.cfg.MaxDelay {
			return l.cfg.MaxDelay
		}
	}
	return d
}

// Run blocks until Close is called, ctx ends, or reconnecting gives up.
func (l *Listener) Run(ctx context.Context) error {
	failures := 0
	l.setState(StateConnecting)
	for {
		conn, err := l.dial(ctx)
		if err != nil {
			if l.isClosed() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			logger.Warn.Printf("Feed connection attempt %d failed: %v", failures, err)
			if failures >= l.cfg.MaxAttempts {
				l.setState(StateError)
				return errors.Wrap(ErrGaveUp, err.Error())
			}
			l.setState(StateReconnecting)
			select {
			case <-time.After(l.delay(failures)):
				continue
			case <-ctx.Done():
				return ctx.Err()
			case <-l.closed:
				return nil
			}
		}

		failures = 0
		l.setState(StateConnected)
		err = l.serve(ctx, conn)
		if l.isClosed() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn.Printf("Feed connection lost: %v", err)
		l.setState(StateReconnecting)
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(l.cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse url")
	}
	if l.cfg.Token != "" {
		q := u.Query()
		q.Set("token", l.cfg.Token)
		u.RawQuery = q.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial")
	}
	return conn, nil
}

func (l *Listener) serve(ctx context.Context, conn *websocket.Conn) error {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
		conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-l.closed:
		case <-done:
		}
	}()

	for _, t := range []string{MsgJoin, MsgJoinFeed} {
		if err := conn.WriteJSON(Frame{Type: t}); err != nil {
			return errors.Wrap(err, "send "+t)
		}
	}

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return errors.Wrap(err, "read")
		}
		if l.duplicate(msg) {
			continue
		}
		if l.handler != nil {
			l.handler(msg.Type, msg.Payload)
		}
	}
}

type entityID struct {
	ID string `json:"id"`
}

// payloadID is the id of the entity a new-* event announces: the top level
// id for posts, tweets and stories, or the wrapped comment or tweet for
// new-comment and new-retweet.
func payloadID(payload json.RawMessage) string {
	var body struct {
		ID      string    `json:"id"`
		Comment *entityID `json:"comment"`
		Tweet   *entityID `json:"tweet"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	switch {
	case body.ID != "":
		return body.ID
	case body.Comment != nil:
		return body.Comment.ID
	case body.Tweet != nil:
		return body.Tweet.ID
	}
	return ""
}

// duplicate reports whether a new-* event with the same payload id was
// already handled.
func (l *Listener) duplicate(msg inbound) bool {
	if !strings.HasPrefix(msg.Type, "new-") {
		return false
	}
	id := payloadID(msg.Payload)
	if id == "" {
		return false
	}
	key := msg.Type + ":" + id
	if _, ok := l.seen[key]; ok {
		return true
	}
	l.seen[key] = struct{}{}
	l.seenOrder = append(l.seenOrder, key)
	if len(l.seenOrder) > seenLimit {
		delete(l.seen, l.seenOrder[0])
		l.seenOrder = l.seenOrder[1:]
	}
	return false
}

func (l *Listener) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Close ends the connection and stops Run. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.mu.Lock()
		conn := l.conn
		l.mu.Unlock()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "logout"),
				time.Now().Add(writeWait))
			_ = conn.Close()
		}
		l.setState(StateClosed)
	})
	return nil
}
