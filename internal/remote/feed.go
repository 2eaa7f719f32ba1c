package remote

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"cutplan/internal/models"
)

// FeedSubscriber maintains a websocket connection to the remote change
// feed and hands every decoded event to the handler. The connection is
// re-dialed with backoff after any failure; missed events are harmless
// because a refetch cycle always reloads full pages.
type FeedSubscriber struct {
	url     string
	token   string
	handler func(models.FeedEvent)

	// dial is swappable for tests.
	dial func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error)
}

func NewFeedSubscriber(url, token string, handler func(models.FeedEvent)) *FeedSubscriber {
	return &FeedSubscriber{
		url:     url,
		token:   token,
		handler: handler,
		dial: func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
			return conn, err
		},
	}
}

// Run blocks until the context is cancelled, reconnecting as needed.
// Backoff doubles from one second up to thirty between failed attempts
// and resets after a successful read.
func (s *FeedSubscriber) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		header := map[string][]string{}
		if s.token != "" {
			header["Authorization"] = []string{"Bearer " + s.token}
		}
		conn, err := s.dial(ctx, s.url, header)
		if err != nil {
			log.Printf("feed: dial %s: %v (retrying in %s)", s.url, err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		if err := s.readLoop(ctx, conn, &backoff); err != nil && ctx.Err() == nil {
			log.Printf("feed: connection lost: %v", err)
		}
		conn.Close()
	}
}

func (s *FeedSubscriber) readLoop(ctx context.Context, conn *websocket.Conn, backoff *time.Duration) error {
	// Drop the connection when the context goes away; ReadMessage has no
	// context parameter of its own.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		*backoff = time.Second

		var e models.FeedEvent
		if err := json.Unmarshal(msg, &e); err != nil || e.EntityType == "" {
			// Unknown frames (pings, heartbeats) are ignored.
			continue
		}
		s.handler(e)
	}
}
