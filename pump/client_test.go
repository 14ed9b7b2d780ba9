package pump

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e14n/pump2status/httpclient"
	"github.com/e14n/pump2status/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, types.LocalUser) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	config := types.PumpConfig{Hosts: map[string]types.ClientCredential{
		u.Host: {ClientID: "bridge", ClientSecret: "bridge-secret"},
	}}
	hc := httpclient.NewClient(types.WorkerConfig{HTTPTimeout: 2 * time.Second, RateLimit: 1000, RateBurst: 1000}, "")
	c := NewClient(hc, config, 10)
	c.scheme = "http"

	user := types.LocalUser{
		ID:        "alice@" + u.Host,
		Outbox:    srv.URL + "/api/user/alice/feed",
		Following: srv.URL + "/api/user/alice/following",
		Token:     "tok",
		Secret:    "sec",
	}
	return c, user
}

func TestOutbox_SinceCursor(t *testing.T) {
	c, user := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user/alice/feed", r.URL.Path)
		assert.Equal(t, "https://pump.example/api/activity/1", r.URL.Query().Get("since"))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"items":[
			{"id":"https://pump.example/api/activity/3","verb":"post","object":{"objectType":"note","content":"three"}},
			{"id":"https://pump.example/api/activity/2","verb":"share","object":{"objectType":"note"}}
		]}`))
	})
	user.LastSeen = "https://pump.example/api/activity/1"

	activities, err := c.Outbox(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "https://pump.example/api/activity/3", activities[0].ID)
	assert.Equal(t, "three", activities[0].Object.Content)
}

func TestOutbox_RejectsNonJSON(t *testing.T) {
	c, user := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("since"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	})

	_, err := c.Outbox(context.Background(), user)
	var terr *types.TransientError
	assert.ErrorAs(t, err, &terr)
}

func TestOutbox_UnknownHost(t *testing.T) {
	c, user := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	user.ID = "alice@unknown.example"

	_, err := c.Outbox(context.Background(), user)
	assert.Error(t, err)
}

func TestPostActivity(t *testing.T) {
	var got types.Activity
	c, user := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("Authorization"), `oauth_consumer_key="bridge"`)
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{}`))
	})

	err := c.PostActivity(context.Background(), user, types.Activity{
		Verb:   types.VerbFollow,
		Object: types.Object{ObjectType: types.ObjectPerson, ID: "acct:bob@pump.example"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.VerbFollow, got.Verb)
	assert.Equal(t, "acct:bob@pump.example", got.Object.ID)
}

func TestFollowing_FollowsNextLinks(t *testing.T) {
	var base string
	c, user := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("before") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"id": "acct:bob@pump.example"}, {"id": "acct:carol@pump.example"}},
				"links": map[string]any{"next": map[string]any{"href": base + "/api/user/alice/following?before=2"}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"id": "acct:dave@pump.example"}},
		})
	})
	u, _ := url.Parse(user.Outbox)
	base = u.Scheme + "://" + u.Host

	ids, err := c.Following(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob@pump.example", "carol@pump.example", "dave@pump.example"}, ids)
}

func TestWhoami(t *testing.T) {
	c, user := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/whoami", r.URL.Path)
		w.Write([]byte(`{"id":"acct:alice@pump.example","displayName":"Alice"}`))
	})

	person, err := c.Whoami(context.Background(), user.Hostname(), "tok", "sec")
	require.NoError(t, err)
	assert.Equal(t, "Alice", person.MustGetString("displayName"))
}

func TestFromPerson(t *testing.T) {
	person := types.NewRawObj(map[string]any{
		"id":          "acct:alice@pump.example",
		"displayName": "Alice",
		"links": map[string]any{
			"activity-inbox":  map[string]any{"href": "https://pump.example/api/user/alice/inbox"},
			"activity-outbox": map[string]any{"href": "https://pump.example/api/user/alice/feed"},
		},
		"following": map[string]any{"url": "https://pump.example/api/user/alice/following"},
	})

	user, err := FromPerson(person, "tok", "sec")
	require.NoError(t, err)
	assert.Equal(t, "alice@pump.example", user.ID)
	assert.Equal(t, "pump.example", user.Hostname())
	assert.Equal(t, "https://pump.example/api/user/alice/feed", user.Outbox)
	assert.Equal(t, "tok", user.Token)

	delete(person.GetData(), "following")
	_, err = FromPerson(person, "tok", "sec")
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "following.url", verr.Field)
}
