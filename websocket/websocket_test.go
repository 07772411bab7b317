package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onechurch/config"
	"onechurch/logger"
	"onechurch/middleware"
	"onechurch/models"
	"onechurch/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
}

type fixture struct {
	hub    *Hub
	server *httptest.Server
	actor  *models.Actor
	token  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Auth.AccessTokenSecret = "ws-secret"
	tokens := middleware.NewTokens(cfg)
	s := memory.New()

	actor := &models.Actor{Kind: models.KindUser, Email: "u@x.io"}
	require.NoError(t, s.CreateActor(context.Background(), actor))
	token, err := tokens.IssueAccess(actor)
	require.NoError(t, err)

	hub := NewHub()
	go hub.Start()

	r := gin.New()
	r.Use(middleware.ErrorHandler(true))
	r.GET("/ws", hub.Handler(middleware.NewAuthenticator(tokens, s)))
	server := httptest.NewServer(r)

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})
	return &fixture{hub: hub, server: server, actor: actor, token: token}
}

func (f *fixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL()+"?token="+f.token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, EventConnected, frame.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg inbound
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips frames until one of type event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) inbound {
	t.Helper()
	for i := 0; i < 10; i++ {
		if msg := readFrame(t, conn); msg.Type == event {
			return msg
		}
	}
	t.Fatalf("no %s frame", event)
	return inbound{}
}

func TestUpgradeRequiresToken(t *testing.T) {
	f := newFixture(t)
	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFeedDelivery(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(Frame{Type: MsgJoinFeed}))
	joined := readUntil(t, conn, EventJoined)
	assert.JSONEq(t, `{"room":"feed"}`, string(joined.Payload))

	f.hub.Emit(FeedRoom, EventNewPost, map[string]string{"id": "p1"})
	got := readUntil(t, conn, EventNewPost)
	assert.JSONEq(t, `{"id":"p1"}`, string(got.Payload))

	require.NoError(t, conn.WriteJSON(Frame{Type: MsgPing}))
	readUntil(t, conn, EventPong)
}

func TestJoinOwnRoomOnly(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(Frame{Type: MsgJoin, Payload: "someone-else"}))
	msg := readUntil(t, conn, EventError)
	assert.Contains(t, string(msg.Payload), "another user")

	require.NoError(t, conn.WriteJSON(Frame{Type: MsgJoin, Payload: map[string]string{"userId": f.actor.ID.Hex()}}))
	joined := readUntil(t, conn, EventJoined)
	assert.Contains(t, string(joined.Payload), UserRoom(f.actor.ID.Hex()))

	f.hub.Emit(UserRoom(f.actor.ID.Hex()), EventNewFollow, map[string]string{"followerId": "x"})
	readUntil(t, conn, EventNewFollow)
}

func TestListenerDedupAndClose(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var events []string
	joined := make(chan struct{}, 2)
	l := NewListener(ListenerConfig{URL: f.wsURL(), Token: f.token}, func(event string, payload json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		if event == EventJoined {
			joined <- struct{}{}
			return
		}
		events = append(events, event+string(payload))
	})

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	for i := 0; i < 2; i++ {
		select {
		case <-joined:
		case <-time.After(3 * time.Second):
			t.Fatal("listener did not join")
		}
	}
	assert.Equal(t, StateConnected, l.State())

	f.hub.Emit(FeedRoom, EventNewTweet, map[string]string{"id": "t1"})
	f.hub.Emit(FeedRoom, EventNewTweet, map[string]string{"id": "t1"})
	f.hub.Emit(FeedRoom, EventNewTweet, map[string]string{"id": "t2"})

	comment := map[string]interface{}{"contentType": "post", "contentId": "p1", "comment": map[string]string{"id": "c1"}}
	f.hub.Emit(FeedRoom, EventNewComment, comment)
	f.hub.Emit(FeedRoom, EventNewComment, comment)
	retweet := map[string]interface{}{"originalTweetId": "t1", "tweet": map[string]string{"id": "r1"}}
	f.hub.Emit(FeedRoom, EventNewRetweet, retweet)
	f.hub.Emit(FeedRoom, EventNewRetweet, retweet)
	f.hub.Emit(FeedRoom, EventNewPost, map[string]string{"id": "last"})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if strings.HasPrefix(e, EventNewPost) {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Equal(t, StateClosed, l.State())

	mu.Lock()
	defer mu.Unlock()
	counts := map[string]int{}
	for _, e := range events {
		for _, name := range []string{EventNewTweet, EventNewComment, EventNewRetweet} {
			if strings.HasPrefix(e, name+"{") {
				counts[name]++
			}
		}
	}
	assert.Equal(t, 2, counts[EventNewTweet])
	assert.Equal(t, 1, counts[EventNewComment])
	assert.Equal(t, 1, counts[EventNewRetweet])
}

func TestPayloadID(t *testing.T) {
	cases := map[string]string{
		`{"id":"p1","title":"x"}`:                      "p1",
		`{"contentId":"p1","comment":{"id":"c1"}}`:     "c1",
		`{"originalTweetId":"t1","tweet":{"id":"r1"}}`: "r1",
		`{"followerId":"u1"}`:                          "",
		`not json`:                                     "",
	}
	for payload, want := range cases {
		assert.Equal(t, want, payloadID(json.RawMessage(payload)), payload)
	}
}

func TestListenerGivesUp(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	server.Close()

	var states []State
	l := NewListener(ListenerConfig{
		URL:         url,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		OnState:     func(s State) { states = append(states, s) },
	}, nil)

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, StateError, l.State())
	assert.Equal(t, []State{StateConnecting, StateReconnecting, StateError}, states)
}

func TestListenerDelay(t *testing.T) {
	l := NewListener(ListenerConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}, nil)
	assert.Equal(t, time.Second, l.delay(1))
	assert.Equal(t, 2*time.Second, l.delay(2))
	assert.Equal(t, 4*time.Second, l.delay(3))
	assert.Equal(t, 5*time.Second, l.delay(4))
}
