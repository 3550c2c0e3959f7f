package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	apperrors "github.com/keepstack/keepsync/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(HTTPConfig{
		BaseURL:      server.URL,
		DeviceID:     "device-1",
		DeviceSecret: "test-secret",
		Timeout:      2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestHTTPClientFetch(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/insights", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"ins-1","created_at":"2024-01-02T00:00:00Z","is_read":false,"title":"Reminder","content":"Call the dentist","metadata":{"capture_id":"cap-1","type":"reminder"}},
			{"id":"ins-2","created_at":"2024-01-03T00:00:00Z","is_read":true,"title":"Seen","content":"Already read"}
		]`))
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "ins-1", records[0].ID)
	require.False(t, records[0].IsRead)
	require.Equal(t, "cap-1", records[0].CaptureID())
	require.Equal(t, TypeReminder, records[0].Type())
	require.True(t, records[1].IsRead)

	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(gotAuth, "Bearer "), &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(*jwt.RegisteredClaims)
	require.Equal(t, "device-1", claims.Subject)
	require.Equal(t, "keepsync", claims.Issuer)
}

func TestHTTPClientFetchEmptyFeed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestHTTPClientFetchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Fetch(context.Background())
	require.ErrorIs(t, err, apperrors.ErrFetch)
}

func TestHTTPClientFetchMalformedPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := client.Fetch(context.Background())
	require.ErrorIs(t, err, apperrors.ErrFetch)
}

func TestHTTPClientFetchInvalidRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"title":"missing id and created_at"}]`))
	})

	_, err := client.Fetch(context.Background())
	require.ErrorIs(t, err, apperrors.ErrFetch)
}

func TestHTTPClientFetchTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	})
	client.client.Timeout = 50 * time.Millisecond

	_, err := client.Fetch(context.Background())
	require.ErrorIs(t, err, apperrors.ErrFetch)
}

func TestHTTPClientConfigValidation(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{DeviceID: "d", DeviceSecret: "s"})
	require.Error(t, err)

	_, err = NewHTTPClient(HTTPConfig{BaseURL: "http://example.com", DeviceSecret: "s"})
	require.Error(t, err)

	_, err = NewHTTPClient(HTTPConfig{BaseURL: "http://example.com", DeviceID: "d"})
	require.Error(t, err)
}

func TestTokenSourceCaching(t *testing.T) {
	source, err := newTokenSource("device-1", "secret")
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source.now = func() time.Time { return now }

	first, err := source.Token()
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	second, err := source.Token()
	require.NoError(t, err)
	require.Equal(t, first, second)

	now = now.Add(2 * time.Minute)
	third, err := source.Token()
	require.NoError(t, err)
	require.NotEqual(t, first, third)
}
