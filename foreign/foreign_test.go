package foreign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e14n/pump2status/httpclient"
	"github.com/e14n/pump2status/store/storetest"
	"github.com/e14n/pump2status/types"
)

func testClient() *httpclient.Client {
	return httpclient.NewClient(types.WorkerConfig{HTTPTimeout: 2 * time.Second, RateLimit: 1000, RateBurst: 1000}, "")
}

// statusNetServer fakes a StatusNet host whose bob follows `friends` accounts.
func statusNetServer(t *testing.T, friends int, probes *int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/statusnet/config.json":
			if probes != nil {
				atomic.AddInt32(probes, 1)
			}
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/api/statuses/friends/bob.json":
			var page int
			fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
			profiles := []map[string]any{}
			for i := (page - 1) * 100; i < friends && i < page*100; i++ {
				profiles = append(profiles, map[string]any{
					"screen_name":           fmt.Sprintf("friend%d", i),
					"statusnet_profile_url": "http://other.example/friend" + fmt.Sprint(i),
				})
			}
			json.NewEncoder(w).Encode(profiles)
		case r.URL.Path == "/api/statuses/user_timeline/bob.atom":
			assert.Equal(t, "application/atom+xml", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), "<activity:verb>http://activitystrea.ms/schema/1.0/post</activity:verb>")
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/api/account/verify_credentials.json":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hostOf(srv *httptest.Server) string {
	u, _ := url.Parse(srv.URL)
	return u.Host
}

func TestRegistry_DiscoversAndCaches(t *testing.T) {
	var probes int32
	srv := statusNetServer(t, 0, &probes)
	hostname := hostOf(srv)

	s := storetest.New(t)
	registry := NewRegistry(s, NewMemoryHostCache(time.Minute, 100), testClient(), types.StatusNetConfig{})

	host, err := registry.EnsureHost(context.Background(), hostname)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", host.ClientID)
	assert.Equal(t, "http://"+hostname+"/api/oauth/request_token", host.RequestTokenEndpoint)
	assert.Equal(t, "http://"+hostname+"/api/account/verify_credentials.json", host.WhoamiEndpoint)

	again, err := registry.EnsureHost(context.Background(), strings.ToUpper(hostname))
	require.NoError(t, err)
	assert.Equal(t, host.RequestTokenEndpoint, again.RequestTokenEndpoint)
	assert.EqualValues(t, 1, atomic.LoadInt32(&probes))

	stored, err := s.GetHost(context.Background(), hostname)
	require.NoError(t, err)
	assert.Equal(t, hostname, stored.Hostname)
}

func TestRegistry_UsesConfiguredCredentials(t *testing.T) {
	srv := statusNetServer(t, 0, nil)
	hostname := hostOf(srv)

	config := types.StatusNetConfig{Credentials: map[string]types.ClientCredential{
		hostname: {ClientID: "key", ClientSecret: "secret"},
	}}
	registry := NewRegistry(storetest.New(t), NewMemoryHostCache(time.Minute, 100), testClient(), config)

	host, err := registry.EnsureHost(context.Background(), hostname)
	require.NoError(t, err)
	assert.Equal(t, "key", host.ClientID)
	assert.Equal(t, "secret", host.ClientSecret)
}

func TestRegistry_DiscoveryError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := storetest.New(t)
	registry := NewRegistry(s, NewMemoryHostCache(time.Minute, 100), testClient(), types.StatusNetConfig{})

	_, err := registry.EnsureHost(context.Background(), hostOf(srv))
	var derr *types.DiscoveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, hostOf(srv), derr.Hostname)

	_, err = s.GetHost(context.Background(), hostOf(srv))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestResolver_FromProfile(t *testing.T) {
	s := storetest.New(t)
	resolver := NewResolver(s)
	ctx := context.Background()

	profile := types.NewRawObj(map[string]any{
		"id":                    float64(42),
		"screen_name":           "bob",
		"name":                  "Bob",
		"statusnet_profile_url": "http://Example.org/bob",
	})
	user, err := resolver.FromProfile(ctx, types.KindStatusNet, profile, "tok", "sec")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.org", user.ID)
	assert.Equal(t, "42", user.IDStr)
	assert.Equal(t, "http://example.org/api/statuses/friends/bob.json", user.Following)
	assert.Equal(t, "tok", user.Token)
	assert.False(t, user.Autopost)

	tw := types.NewRawObj(map[string]any{"id_str": "12345", "screen_name": "bobby"})
	user, err = resolver.FromProfile(ctx, types.KindTwitter, tw, "tok", "sec")
	require.NoError(t, err)
	assert.Equal(t, "12345@twitter.com", user.ID)
}

func TestResolver_RejectsMalformedProfiles(t *testing.T) {
	s := storetest.New(t)
	resolver := NewResolver(s)
	ctx := context.Background()

	for name, profile := range map[string]map[string]any{
		"no handle":   {"statusnet_profile_url": "http://example.org/bob"},
		"no hostname": {"screen_name": "bob"},
		"bad url":     {"screen_name": "bob", "statusnet_profile_url": "bob"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.FromProfile(ctx, types.KindStatusNet, types.NewRawObj(profile), "", "")
			var verr *types.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	_, err := resolver.FromProfile(ctx, types.KindTwitter, types.NewRawObj(map[string]any{"screen_name": "bob"}), "", "")
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)

	count := 0
	require.NoError(t, s.ForEachForeignUser(ctx, func(types.ForeignUser) error { count++; return nil }))
	assert.Zero(t, count)
}

func newStatusNet(t *testing.T) *StatusNet {
	registry := NewRegistry(storetest.New(t), NewMemoryHostCache(time.Minute, 100), testClient(), types.StatusNetConfig{})
	return NewStatusNet(registry, testClient(), 50)
}

func TestStatusNet_FollowingPages(t *testing.T) {
	srv := statusNetServer(t, 103, nil)
	sn := newStatusNet(t)

	user := types.ForeignUser{
		ID:         "bob@" + hostOf(srv),
		Hostname:   hostOf(srv),
		ScreenName: "bob",
		Following:  srv.URL + "/api/statuses/friends/bob.json",
	}
	ids, err := sn.Following(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, ids, 103)
	assert.Equal(t, "friend0@other.example", ids[0])
	assert.Equal(t, "friend102@other.example", ids[102])
}

func TestStatusNet_FollowingStopsAtPageCap(t *testing.T) {
	srv := statusNetServer(t, 1000, nil)
	sn := newStatusNet(t)
	sn.maxPages = 2

	user := types.ForeignUser{Hostname: hostOf(srv), Following: srv.URL + "/api/statuses/friends/bob.json"}
	ids, err := sn.Following(context.Background(), user)
	assert.ErrorIs(t, err, types.ErrTruncated)
	assert.Len(t, ids, 200)
}

func TestTwitter_FollowingStopsAtPageCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ids":["1","2"],"next_cursor_str":"99"}`))
	}))
	defer srv.Close()

	tw := NewTwitterAt(srv.URL, testClient(), types.ClientCredential{ClientID: "k", ClientSecret: "s"}, 1)
	ids, err := tw.Following(context.Background(), types.ForeignUser{ID: "777@twitter.com", IDStr: "777"})
	assert.ErrorIs(t, err, types.ErrTruncated)
	assert.Equal(t, []string{"1@twitter.com", "2@twitter.com"}, ids)
}

func TestStatusNet_PostAndUnauthorized(t *testing.T) {
	srv := statusNetServer(t, 0, nil)
	sn := newStatusNet(t)
	ctx := context.Background()

	user := types.ForeignUser{ID: "bob@" + hostOf(srv), Hostname: hostOf(srv), ScreenName: "bob"}
	err := sn.PostActivity(ctx, user, types.Activity{
		ID:     "https://pump.example/api/activity/1",
		Verb:   types.VerbPost,
		Object: types.Object{ObjectType: types.ObjectNote, Content: "<p>hello</p>"},
	})
	require.NoError(t, err)

	host, err := sn.EnsureHost(ctx, hostOf(srv))
	require.NoError(t, err)
	_, err = sn.Whoami(ctx, host, "tok", "sec")
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestAuthorizeURL(t *testing.T) {
	host := HostFor("https", "example.org", types.ClientCredential{})
	u, err := authorizeURL(host, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/api/oauth/authorize?oauth_token=abc", u)
}

func TestTwitter_FollowingAndPost(t *testing.T) {
	var posted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/friends/ids.json":
			assert.Equal(t, "777", r.URL.Query().Get("user_id"))
			if r.URL.Query().Get("cursor") == "-1" {
				w.Write([]byte(`{"ids":["1","2"],"next_cursor_str":"99"}`))
				return
			}
			w.Write([]byte(`{"ids":["3"],"next_cursor_str":"0"}`))
		case "/1.1/statuses/update.json":
			r.ParseForm()
			posted = r.PostForm.Get("status")
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tw := NewTwitterAt(srv.URL, testClient(), types.ClientCredential{ClientID: "k", ClientSecret: "s"}, 50)
	user := types.ForeignUser{ID: "777@twitter.com", IDStr: "777", Kind: types.KindTwitter}

	ids, err := tw.Following(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, []string{"1@twitter.com", "2@twitter.com", "3@twitter.com"}, ids)

	err = tw.PostActivity(context.Background(), user, types.Activity{
		Verb:   types.VerbPost,
		Object: types.Object{ObjectType: types.ObjectNote, Content: "<p>Hello &amp; goodbye</p>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello & goodbye", posted)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "hi there", StatusText("<b>hi</b> there", "http://x"))

	long := strings.Repeat("a", 141)
	got := StatusText(long, "https://pump.example/alice/note/1")
	assert.Equal(t, strings.Repeat("a", 125)+"… https://pump.example/alice/note/1", got)

	exact := strings.Repeat("é", 140)
	assert.Equal(t, exact, StatusText(exact, "http://x"))
}

func TestAtomEntry(t *testing.T) {
	body, err := AtomEntry(types.Activity{
		ID:        "https://pump.example/api/activity/1",
		Verb:      types.VerbPost,
		Published: "2013-05-01T00:00:00Z",
		Actor:     &types.Object{ID: "acct:alice@pump.example", DisplayName: "Alice"},
		Object: types.Object{
			ObjectType: types.ObjectNote,
			Content:    "<p>hi & bye</p>",
			URL:        "https://pump.example/alice/note/1",
		},
	})
	require.NoError(t, err)

	xml := string(body)
	assert.Contains(t, xml, `<entry xmlns="http://www.w3.org/2005/Atom" xmlns:activity="http://activitystrea.ms/spec/1.0/">`)
	assert.Contains(t, xml, "<id>https://pump.example/api/activity/1</id>")
	assert.Contains(t, xml, "<activity:object-type>http://activitystrea.ms/schema/1.0/note</activity:object-type>")
	assert.Contains(t, xml, `<content type="html">&lt;p&gt;hi &amp; bye&lt;/p&gt;</content>`)
	assert.Contains(t, xml, `<link href="https://pump.example/alice/note/1" rel="alternate" type="text/html"></link>`)
	assert.Contains(t, xml, "<uri>acct:alice@pump.example</uri>")
}
