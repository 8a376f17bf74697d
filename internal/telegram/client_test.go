package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		BaseURL:        srv.URL,
		Token:          "testtoken",
		PollTimeout:    time.Second,
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, logger)
}

func TestGetUpdates(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottesttoken/getUpdates", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("offset"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "1", r.URL.Query().Get("timeout"))

		fmt.Fprint(w, `{
			"ok": true,
			"result": [
				{
					"update_id": 5,
					"channel_post": {
						"message_id": 77,
						"date": 1700000000,
						"chat": {"id": -100, "type": "channel", "username": "tc"},
						"text": "hi"
					}
				}
			]
		}`)
	}))

	updates, err := c.GetUpdates(context.Background(), 5, 50)
	require.NoError(t, err)
	require.Len(t, updates, 1)

	assert.Equal(t, int64(5), updates[0].UpdateID)
	require.NotNil(t, updates[0].ChannelPost)
	assert.Equal(t, int64(77), updates[0].ChannelPost.MessageID)
	assert.Equal(t, "channel", updates[0].ChannelPost.Chat.Type)
}

func TestGetUpdates_APIError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok": false, "error_code": 401, "description": "Unauthorized"}`)
	}))

	_, err := c.GetUpdates(context.Background(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestResolve(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottesttoken/getFile", r.URL.Path)
		assert.Equal(t, "abc123", r.URL.Query().Get("file_id"))
		fmt.Fprint(w, `{"ok": true, "result": {"file_id": "abc123", "file_path": "photos/file_1.jpg"}}`)
	}))

	url, err := c.Resolve(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, c.baseURL+"/file/bottesttoken/photos/file_1.jpg", url)
}

func TestResolve_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			fmt.Fprint(w, `{"ok": false, "error_code": 429, "description": "Too Many Requests"}`)
			return
		}
		fmt.Fprint(w, `{"ok": true, "result": {"file_id": "abc", "file_path": "docs/f.pdf"}}`)
	}))

	url, err := c.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	assert.Contains(t, url, "docs/f.pdf")
	assert.Equal(t, int32(3), calls.Load())
}

func TestResolve_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"ok": false, "error_code": 400, "description": "file is too big"}`)
	}))

	_, err := c.Resolve(context.Background(), "huge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestResolve_ContextCancelled(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok": false, "error_code": 500, "description": "boom"}`)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Resolve(ctx, "abc")
	require.Error(t, err)
}

func TestSetWebhook(t *testing.T) {
	var deleteCalled, setCalled bool
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottesttoken/deleteWebhook":
			deleteCalled = true
			assert.False(t, setCalled, "deleteWebhook must precede setWebhook")
			assert.Equal(t, "true", r.URL.Query().Get("drop_pending_updates"))
		case "/bottesttoken/setWebhook":
			setCalled = true
			assert.Equal(t, "https://example.com/telegram/webhook", r.URL.Query().Get("url"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"ok": true}`)
	}))

	err := c.SetWebhook(context.Background(), "https://example.com/telegram/webhook")
	require.NoError(t, err)
	assert.True(t, deleteCalled)
	assert.True(t, setCalled)
}
