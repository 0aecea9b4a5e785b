package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Layr-Labs/walletlink-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHTTPOpener(t *testing.T) {
	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req types.OpenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received = append(received, req.URL)

		switch req.URL {
		case "app://sign-message?result=EjQ%3D":
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(types.OpenResponse{Handled: true})
		case "app://unknown":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(types.OpenResponse{Handled: false})
		default:
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(types.OpenResponse{Error: "slow down"})
		}
	}))
	defer server.Close()

	opener := NewHTTPOpener(server.URL+"/", nil)
	ctx := context.Background()

	require.NoError(t, opener.Open(ctx, mustURL(t, "app://sign-message?result=EjQ%3D")))
	assert.True(t, errors.Is(opener.Open(ctx, mustURL(t, "app://unknown")), ErrNotHandled))

	err := opener.Open(ctx, mustURL(t, "app://other"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")

	assert.Equal(t, []string{"app://sign-message?result=EjQ%3D", "app://unknown", "app://other"}, received)
	require.Error(t, opener.Open(ctx, nil))
}

func TestHTTPOpener_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	err := NewHTTPOpener(server.URL, nil).Open(context.Background(), mustURL(t, "app://sign-message"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotHandled))
}

func TestWriterOpener(t *testing.T) {
	var buf bytes.Buffer
	opener := NewWriterOpener(&buf)

	require.NoError(t, opener.Open(context.Background(), mustURL(t, "trust://sign-message?message=EjQ%3D")))
	require.NoError(t, opener.Open(context.Background(), mustURL(t, "app://sign-message?result=EjQ%3D")))
	assert.Equal(t, "trust://sign-message?message=EjQ%3D\napp://sign-message?result=EjQ%3D\n", buf.String())
	require.Error(t, opener.Open(context.Background(), nil))
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	assert.Nil(t, rec.Last())

	var opener IOpener = rec
	require.NoError(t, opener.Open(context.Background(), mustURL(t, "app://a")))

	rec.FailWith(errors.New("no handler"))
	require.Error(t, opener.Open(context.Background(), mustURL(t, "app://b")))

	urls := rec.URLs()
	require.Len(t, urls, 2)
	assert.Equal(t, "app://b", rec.Last().String())
}

func TestOpenerFunc(t *testing.T) {
	var got string
	opener := OpenerFunc(func(_ context.Context, u *url.URL) error {
		got = u.String()
		return nil
	})
	require.NoError(t, opener.Open(context.Background(), mustURL(t, "app://x")))
	assert.Equal(t, "app://x", got)
}
