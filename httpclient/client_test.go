package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e14n/pump2status/types"
)

func newTestClient() *Client {
	return NewClient(types.WorkerConfig{HTTPTimeout: 2 * time.Second, RateLimit: 100, RateBurst: 100}, "pump2status-test")
}

func TestDo_SetsUserAgentAndReadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pump2status-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient()
	resp, err := c.Get(context.Background(), c.Standard(), srv.URL, "application/json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.True(t, strings.HasPrefix(resp.ContentType, "application/json"))
}

func TestDo_MapsStatusCodes(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := newTestClient()

	_, err := c.Get(context.Background(), c.Standard(), srv.URL, "")
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	for _, code := range []int{http.StatusForbidden, http.StatusBadGateway} {
		status = code
		_, err = c.Get(context.Background(), c.Standard(), srv.URL, "")
		var terr *types.TransientError
		require.ErrorAs(t, err, &terr, "status %d", code)
		assert.NotErrorIs(t, err, types.ErrUnauthorized, "status %d", code)
	}
}

func TestDo_ForbiddenKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"code":187,"message":"Status is a duplicate."}]}`))
	}))
	defer srv.Close()

	c := newTestClient()
	resp, err := c.Post(context.Background(), c.Standard(), srv.URL, "application/x-www-form-urlencoded", strings.NewReader("status=hi"))
	var terr *types.TransientError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "duplicate")
}

func TestDo_NetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient()
	_, err := c.Get(context.Background(), c.Standard(), url, "")
	var terr *types.TransientError
	assert.ErrorAs(t, err, &terr)
}

func TestSigned_AddsOAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "))
		assert.Contains(t, auth, `oauth_token="tok"`)
		assert.Contains(t, auth, `oauth_consumer_key="key"`)
	}))
	defer srv.Close()

	c := newTestClient()
	hc := c.Signed(context.Background(), oauth1.NewConfig("key", "secret"), "tok", "toksecret")
	_, err := c.Post(context.Background(), hc, srv.URL, "application/x-www-form-urlencoded", strings.NewReader("status=hi"))
	require.NoError(t, err)
}

func TestTransport_LimiterPerHost(t *testing.T) {
	c := newTestClient()
	a := c.transport.limiter("a.example")
	assert.Same(t, a, c.transport.limiter("a.example"))
	assert.NotSame(t, a, c.transport.limiter("b.example"))
}
