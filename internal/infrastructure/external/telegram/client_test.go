package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:abc"

// fakeBotAPI records sendMessage calls and answers like the Bot API.
type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []map[string]string
	failSend string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		if !strings.Contains(r.URL.Path, "/bot"+testToken+"/") {
			w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Homework","username":"homework_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		f.mu.Lock()
		f.sent = append(f.sent, map[string]string{
			"chat_id": r.FormValue("chat_id"),
			"text":    r.FormValue("text"),
		})
		failSend := f.failSend
		f.mu.Unlock()
		if failSend != "" {
			w.Write([]byte(failSend))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestNotifier(t *testing.T, api *fakeBotAPI, token string) (*Notifier, error) {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := DefaultClientConfig(token, 42)
	cfg.APIEndpoint = server.URL + "/bot%s/%s"
	return NewNotifier(cfg)
}

func TestNotifier_Send(t *testing.T) {
	api := &fakeBotAPI{}
	n, err := newTestNotifier(t, api, testToken)
	require.NoError(t, err)

	err = n.Send(context.Background(), `Изменился статус проверки работы "proj1".`)

	require.NoError(t, err)
	require.Len(t, api.sent, 1)
	assert.Equal(t, "42", api.sent[0]["chat_id"])
	assert.Equal(t, `Изменился статус проверки работы "proj1".`, api.sent[0]["text"])
	assert.Equal(t, int64(42), n.ChatID())
}

func TestNotifier_SendFailure(t *testing.T) {
	api := &fakeBotAPI{failSend: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`}
	n, err := newTestNotifier(t, api, testToken)
	require.NoError(t, err)

	err = n.Send(context.Background(), "hello")

	require.Error(t, err)
	assert.True(t, IsChatNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
}

func TestNotifier_CancelledContext(t *testing.T) {
	api := &fakeBotAPI{}
	n, err := newTestNotifier(t, api, testToken)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, n.Send(ctx, "hello"), context.Canceled)
	assert.Empty(t, api.sent)
}

func TestNewNotifier_InvalidToken(t *testing.T) {
	_, err := newTestNotifier(t, &fakeBotAPI{}, "wrong")

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestNewNotifier_BotAPIUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	cfg := DefaultClientConfig(testToken, 42)
	cfg.APIEndpoint = server.URL + "/bot%s/%s"

	n, err := NewNotifier(cfg)

	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Error(t, n.Send(context.Background(), "hello"))
}

func TestNewNotifier_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/bot%s/%s"
	server.Close()

	cfg := DefaultClientConfig(testToken, 42)
	cfg.APIEndpoint = endpoint

	n, err := NewNotifier(cfg)
	require.NoError(t, err)

	err = n.Send(context.Background(), "hello")

	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))
}
