package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/notification"
)

// sseClient reads one SSE stream line by line in the background.
type sseClient struct {
	lines  chan string
	cancel context.CancelFunc
}

func openStream(t *testing.T, baseURL, userID string) *sseClient {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/sse/"+userID, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &sseClient{lines: make(chan string, 64), cancel: cancel}
	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
	})

	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				c.lines <- line
			}
		}
		close(c.lines)
	}()

	return c
}

// waitFor returns the first line matching pred, skipping others.
func (c *sseClient) waitFor(t *testing.T, pred func(string) bool) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				t.Fatal("stream ended before expected line")
			}
			if pred(line) {
				return line
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream line")
		}
	}
}

func newStreamServer(t *testing.T, bus *notification.Bus, heartbeat time.Duration) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/sse/{user_id}", NewHandler(bus, heartbeat, nil).ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_ServeHTTP(t *testing.T) {
	t.Parallel()

	t.Run("forwards only matching envelopes", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(100)
		defer bus.Close()
		srv := newStreamServer(t, bus, time.Hour)

		alice := openStream(t, srv.URL, "alice")
		bob := openStream(t, srv.URL, "bob")

		// Give both handlers time to subscribe.
		time.Sleep(50 * time.Millisecond)

		require.NoError(t, bus.Publish(notification.Envelope{
			UserID:  "alice",
			Message: notification.Data("hello"),
		}))

		line := alice.waitFor(t, func(s string) bool { return strings.HasPrefix(s, "data: ") })
		env := notification.Decode([]byte(strings.TrimPrefix(line, "data: ")))
		assert.Equal(t, "alice", env.UserID)
		assert.Equal(t, notification.KindData, env.Message.Kind())
		assert.Equal(t, "hello", env.Message.Payload())

		select {
		case got := <-bob.lines:
			t.Fatalf("bob received %q for alice's notification", got)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("emits heartbeats while idle", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(100)
		defer bus.Close()
		srv := newStreamServer(t, bus, 20*time.Millisecond)

		client := openStream(t, srv.URL, "alice")

		for i := 0; i < 3; i++ {
			line := client.waitFor(t, func(s string) bool { return strings.HasPrefix(s, ":") })
			assert.Equal(t, ": keep-alive-text", line)
		}
	})

	t.Run("heartbeats continue between envelopes", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(100)
		defer bus.Close()
		srv := newStreamServer(t, bus, 20*time.Millisecond)

		client := openStream(t, srv.URL, "alice")
		time.Sleep(50 * time.Millisecond)

		require.NoError(t, bus.Publish(notification.Envelope{
			UserID:  "alice",
			Message: notification.Data("one"),
		}))

		client.waitFor(t, func(s string) bool { return strings.HasPrefix(s, "data: ") })
		client.waitFor(t, func(s string) bool { return strings.HasPrefix(s, ":") })
	})
}

func TestNextEvent(t *testing.T) {
	t.Parallel()

	t.Run("filters out other users", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(10)
		defer bus.Close()
		sub := bus.Subscribe(context.Background())
		defer sub.Close()

		require.NoError(t, bus.Publish(notification.Envelope{UserID: "bob", Message: notification.Data("x")}))
		require.NoError(t, bus.Publish(notification.Envelope{UserID: "alice", Message: notification.Data("y")}))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		data, ok := nextEvent(ctx, sub, "alice")
		require.True(t, ok)
		env := notification.Decode([]byte(data))
		assert.Equal(t, "alice", env.UserID)
		assert.Equal(t, "y", env.Message.Payload())
	})

	t.Run("synthesizes self-addressed error envelope on lag", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(2)
		defer bus.Close()
		sub := bus.Subscribe(context.Background())
		defer sub.Close()

		for i := 0; i < 5; i++ {
			require.NoError(t, bus.Publish(notification.Envelope{UserID: "bob", Message: notification.Ping()}))
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		data, ok := nextEvent(ctx, sub, "alice")
		require.True(t, ok)
		env := notification.Decode([]byte(data))
		assert.Equal(t, "alice", env.UserID, "lag envelope must pass the filter by being self-addressed")
		assert.Equal(t, notification.KindError, env.Message.Kind())
		assert.Contains(t, env.Message.Payload(), "lagged")
	})

	t.Run("ends on context cancellation", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(10)
		defer bus.Close()
		sub := bus.Subscribe(context.Background())
		defer sub.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, ok := nextEvent(ctx, sub, "alice")
		assert.False(t, ok)
	})

	t.Run("ends on bus close", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(10)
		sub := bus.Subscribe(context.Background())
		defer sub.Close()
		require.NoError(t, bus.Close())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, ok := nextEvent(ctx, sub, "alice")
		assert.False(t, ok)
	})
}
