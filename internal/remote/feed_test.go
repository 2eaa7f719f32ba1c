package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cutplan/internal/models"
)

func TestFeedSubscriberDecodesEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("want bearer token on dial, got %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		// A heartbeat frame first, then a real event.
		conn.WriteMessage(websocket.TextMessage, []byte(`{"ping":true}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"entity_type":"cutting_order","event_kind":"updated","entity_id":"o7"}`))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	events := make(chan models.FeedEvent, 1)
	sub := NewFeedSubscriber("ws"+strings.TrimPrefix(srv.URL, "http"), "tok", func(e models.FeedEvent) {
		events <- e
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	select {
	case e := <-events:
		if e.EntityType != "cutting_order" || e.EventKind != "updated" || e.EntityID != "o7" {
			t.Errorf("unexpected event %+v", e)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
	}
}
