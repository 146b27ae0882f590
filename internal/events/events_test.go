package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.Handle))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTranscriptionPayload(t *testing.T) {
	b, err := json.Marshal(NewTranscription("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(b); got != `{"type":"transcription","text":"hi"}` {
		t.Fatalf("unexpected payload %s", got)
	}
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	h := NewHub()
	a := dialHub(t, h)
	b := dialHub(t, h)
	waitFor(t, func() bool { return h.Subscribers() == 2 })

	if err := h.Publish(context.Background(), NewTranscription("hello there")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got map[string]any
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("read: %v", err)
		}
		if got["type"] != "transcription" || got["text"] != "hello there" {
			t.Fatalf("unexpected event %v", got)
		}
		if _, ok := got["translations"]; ok {
			t.Fatalf("translations should be omitted when empty: %v", got)
		}
	}
}

func TestHubPreservesPublishOrder(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h)
	waitFor(t, func() bool { return h.Subscribers() == 1 })

	for _, text := range []string{"one", "two", "three"} {
		h.Publish(context.Background(), NewTranscription(text))
	}
	for _, want := range []string{"one", "two", "three"} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Text != want {
			t.Fatalf("want %q, got %q", want, ev.Text)
		}
	}
}

func TestHubPingPong(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h)
	if err := conn.WriteJSON(map[string]any{"type": "ping", "ts": 42}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["type"] != "pong" || got["ts"] != float64(42) {
		t.Fatalf("unexpected reply %v", got)
	}
}

func TestHubKeepsListenOnlySubscriber(t *testing.T) {
	h := NewHub()
	h.readWait = 200 * time.Millisecond
	h.pingInterval = 50 * time.Millisecond
	conn := dialHub(t, h)
	waitFor(t, func() bool { return h.Subscribers() == 1 })

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	// The client never writes a message; it only reads, which answers pings.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(4 * h.readWait)
	if n := h.Subscribers(); n != 1 {
		t.Fatalf("listen-only subscriber dropped after %d pings", pings.Load())
	}
	if pings.Load() == 0 {
		t.Fatal("server sent no pings")
	}

	if err := h.Publish(context.Background(), NewTranscription("still here")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if n := h.Subscribers(); n != 1 {
		t.Fatalf("subscriber dropped by publish, %d left", n)
	}
}

func TestHubDropsClosedSubscriber(t *testing.T) {
	h := NewHub()
	conn := dialHub(t, h)
	waitFor(t, func() bool { return h.Subscribers() == 1 })
	conn.Close()
	waitFor(t, func() bool { return h.Subscribers() == 0 })
	if err := h.Publish(context.Background(), NewTranscription("nobody")); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}

func TestRedisEmitter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "transcription")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	em := NewRedisEmitter(client, "")
	if em.Channel() != "transcription" {
		t.Fatalf("unexpected channel %q", em.Channel())
	}
	if err := em.Publish(ctx, NewTranscription("from redis")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Type != Transcription || ev.Text != "from redis" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisEmitterServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	if err := NewRedisEmitter(client, "x").Publish(context.Background(), NewTranscription("lost")); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestMultiPublishesToAllAndJoinsErrors(t *testing.T) {
	var got []string
	ok := Func(func(_ context.Context, ev Event) error {
		got = append(got, "ok:"+ev.Text)
		return nil
	})
	boom := errors.New("boom")
	bad := Func(func(context.Context, Event) error { return boom })

	err := Multi{ok, nil, bad, ok}.Publish(context.Background(), NewTranscription("x"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both healthy emitters to run, got %v", got)
	}
}
