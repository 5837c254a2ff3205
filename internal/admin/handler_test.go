package admin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/internal/admin"
	"github.com/dmitrymomot/notifyhub/notification"
)

func newRouter(bus *notification.Bus) http.Handler {
	r := chi.NewRouter()
	h := admin.NewHandler(notification.NewPublisher(bus, nil), nil)
	r.Post("/admin/send_notification/{user_id}", h.SendNotification)
	return r
}

func TestSendNotification(t *testing.T) {
	t.Parallel()

	t.Run("publishes data envelope and answers status 200", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(10)
		defer bus.Close()
		sub := bus.Subscribe(context.Background())
		defer sub.Close()

		req := httptest.NewRequest(http.MethodPost, "/admin/send_notification/alice",
			strings.NewReader(`{"message":"hello"}`))
		rec := httptest.NewRecorder()
		newRouter(bus).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":200}`, rec.Body.String())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		env, err := sub.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "alice", env.UserID)
		assert.Equal(t, notification.KindData, env.Message.Kind())
		assert.Equal(t, "hello", env.Message.Payload())
	})

	t.Run("malformed body answers 400 and publishes nothing", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(10)
		defer bus.Close()
		sub := bus.Subscribe(context.Background())
		defer sub.Close()

		req := httptest.NewRequest(http.MethodPost, "/admin/send_notification/alice",
			strings.NewReader(`{"message":`))
		rec := httptest.NewRecorder()
		newRouter(bus).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"status":400}`, rec.Body.String())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := sub.Recv(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("missing message field answers 400 and publishes nothing", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(10)
		defer bus.Close()
		sub := bus.Subscribe(context.Background())
		defer sub.Close()

		req := httptest.NewRequest(http.MethodPost, "/admin/send_notification/bob",
			strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		newRouter(bus).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"status":400}`, rec.Body.String())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := sub.Recv(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("explicit empty message is still published", func(t *testing.T) {
		t.Parallel()

		bus := notification.NewBus(10)
		defer bus.Close()
		sub := bus.Subscribe(context.Background())
		defer sub.Close()

		req := httptest.NewRequest(http.MethodPost, "/admin/send_notification/bob",
			strings.NewReader(`{"message":""}`))
		rec := httptest.NewRecorder()
		newRouter(bus).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		env, err := sub.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "bob", env.UserID)
		assert.Empty(t, env.Message.Payload())
	})
}
