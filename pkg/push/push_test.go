package push

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestServiceSendPostsPayload(t *testing.T) {
	var received sendRequest
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	svc, err := New(Config{Endpoint: server.URL, ServerKey: "secret", Timeout: time.Second}, zerolog.New(io.Discard))
	require.NoError(t, err)

	err = svc.Send(context.Background(), Message{
		Token: "device-token-123",
		Title: "Results published",
		Body:  "Unit Test results are available",
		Data:  map[string]string{"type": "RESULT_PUBLISHED"},
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", authorization)
	require.Equal(t, "device-token-123", received.To)
	require.Equal(t, "Results published", received.Notification.Title)
	require.Equal(t, "RESULT_PUBLISHED", received.Data["type"])
}

func TestServiceSendRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"DeviceNotRegistered"}`))
	}))
	defer server.Close()

	svc, err := New(Config{Endpoint: server.URL}, zerolog.New(io.Discard))
	require.NoError(t, err)

	err = svc.Send(context.Background(), Message{Token: "device-token-123", Title: "t", Body: "b"})
	require.ErrorIs(t, err, ErrTokenRejected)
}

func TestServiceSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc, err := New(Config{Endpoint: server.URL}, zerolog.New(io.Discard))
	require.NoError(t, err)

	err = svc.Send(context.Background(), Message{Token: "device-token-123", Title: "t", Body: "b"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTokenRejected)
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Config{}, zerolog.New(io.Discard))
	require.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "***", MaskToken("abc"))
	require.Equal(t, "***456789", MaskToken("token-123456789"))
}
