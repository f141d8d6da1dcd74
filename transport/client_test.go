package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mealkeeper/go-grocery-client/transport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, token string, options ...transport.ClientOption) (*transport.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := transport.NewClient(server.URL, func() string { return token }, options...)
	require.NoError(t, err)
	return client, server
}

func TestDoAttachesBearerToken(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}, "token-123")

	_, err := client.Do(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/grocery-lists"})
	require.NoError(t, err)
	require.Equal(t, "Bearer token-123", gotAuth)
}

func TestDoSkipsBearerForRefreshCall(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}, "token-123")

	_, err := client.Do(context.Background(), &transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		NoAuth: true,
	})
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestDoSetsRequestID(t *testing.T) {
	var gotID string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	}, "")

	_, err := client.Do(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)
	require.NotEmpty(t, gotID)
}

func TestDoClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   transport.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, transport.KindUnauthorized},
		{"forbidden", http.StatusForbidden, transport.KindForbidden},
		{"conflict", http.StatusConflict, transport.KindConflict},
		{"validation", http.StatusUnprocessableEntity, transport.KindValidation},
		{"rate limited", http.StatusTooManyRequests, transport.KindRateLimited},
		{"server", http.StatusInternalServerError, transport.KindServer},
		{"bad gateway", http.StatusBadGateway, transport.KindServer},
		{"unnamed status", http.StatusNotFound, transport.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, "t")

			_, err := client.Do(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/x"})
			require.Error(t, err)
			require.Equal(t, tt.kind, transport.KindOf(err))
			require.True(t, transport.IsKind(err, tt.kind))
		})
	}
}

func TestDoParsesErrorBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"quantity must be positive","code":"INVALID_QUANTITY"}`))
	}, "t")

	_, err := client.Do(context.Background(), &transport.Request{Method: http.MethodPost, Path: "/x"})
	require.Error(t, err)

	var te *transport.Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, transport.KindValidation, te.Kind)
	require.Equal(t, 422, te.Status)
	require.Equal(t, "quantity must be positive", te.Message)
	require.Equal(t, "INVALID_QUANTITY", te.Payload["code"])
}

func TestDoParsesDetailField(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"list already exists"}`))
	}, "t")

	_, err := client.Do(context.Background(), &transport.Request{Method: http.MethodPost, Path: "/x"})
	var te *transport.Error
	require.ErrorAs(t, err, &te)
	require.Equal(t, "list already exists", te.Message)
}

func TestDoTimeoutClassifiesAsNetwork(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, "t", transport.WithTimeout(20*time.Millisecond))

	_, err := client.Do(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/slow"})
	require.Error(t, err)
	require.Equal(t, transport.KindNetwork, transport.KindOf(err))
}

func TestDoConnectionRefusedClassifiesAsNetwork(t *testing.T) {
	client, err := transport.NewClient("http://127.0.0.1:1", func() string { return "" })
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	require.Equal(t, transport.KindNetwork, transport.KindOf(err))
}

func TestDoCancelledContext(t *testing.T) {
	started := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
	}, "t")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/x"})
	require.Error(t, err)
	require.Equal(t, transport.KindCancelled, transport.KindOf(err))
}

func TestResponseDecode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"weekly shop"}`))
	}, "t")

	resp, err := client.Do(context.Background(), &transport.Request{Method: http.MethodGet, Path: "/x"})
	require.NoError(t, err)

	var body struct {
		Name string `json:"name"`
	}
	require.NoError(t, resp.Decode(&body))
	require.Equal(t, "weekly shop", body.Name)
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, transport.KindUnknown, transport.KindOf(context.Canceled))
}
