package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/e14n/pump2status/foreign"
	"github.com/e14n/pump2status/store"
	"github.com/e14n/pump2status/store/storetest"
	"github.com/e14n/pump2status/types"
)

type fakeLocal struct {
	mu           sync.Mutex
	outboxes     map[string][]types.Activity
	outboxHits   map[string]int
	following    map[string][]string
	followingErr map[string]error
	posted       map[string][]types.Activity
	postErr      map[string]error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		outboxes:     map[string][]types.Activity{},
		outboxHits:   map[string]int{},
		following:    map[string][]string{},
		followingErr: map[string]error{},
		posted:       map[string][]types.Activity{},
		postErr:      map[string]error{},
	}
}

func (f *fakeLocal) Host(hostname string) (types.ForeignHost, error) {
	return types.ForeignHost{Hostname: hostname}, nil
}

func (f *fakeLocal) Outbox(ctx context.Context, user types.LocalUser) ([]types.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outboxHits[user.ID]++
	return f.outboxes[user.ID], nil
}

func (f *fakeLocal) PostActivity(ctx context.Context, user types.LocalUser, activity types.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.postErr[user.ID]; err != nil {
		return err
	}
	f.posted[user.ID] = append(f.posted[user.ID], activity)
	return nil
}

func (f *fakeLocal) Following(ctx context.Context, user types.LocalUser) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following[user.ID], f.followingErr[user.ID]
}

func (f *fakeLocal) postedBy(id string) []types.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Activity(nil), f.posted[id]...)
}

type fakeNetwork struct {
	kind      string
	mu        sync.Mutex
	profile   map[string]any
	following map[string][]string
	errs      map[string]error
	posted    map[string][]types.Activity
	postErr   map[string]error
}

func newFakeNetwork(kind string) *fakeNetwork {
	return &fakeNetwork{
		kind:      kind,
		following: map[string][]string{},
		errs:      map[string]error{},
		posted:    map[string][]types.Activity{},
		postErr:   map[string]error{},
	}
}

func (f *fakeNetwork) Kind() string { return f.kind }

func (f *fakeNetwork) EnsureHost(ctx context.Context, hostname string) (types.ForeignHost, error) {
	return types.ForeignHost{Hostname: hostname}, nil
}

func (f *fakeNetwork) RequestToken(ctx context.Context, host types.ForeignHost, callback string) (string, string, error) {
	return "rt", "rs", nil
}

func (f *fakeNetwork) AuthorizeURL(host types.ForeignHost, token string) (string, error) {
	return "https://" + host.Hostname + "/authorize?oauth_token=" + token, nil
}

func (f *fakeNetwork) AccessToken(ctx context.Context, host types.ForeignHost, token, secret, verifier string) (string, string, error) {
	return "at", "as", nil
}

func (f *fakeNetwork) Whoami(ctx context.Context, host types.ForeignHost, token, secret string) (*types.RawObj, error) {
	return types.NewRawObj(f.profile), nil
}

func (f *fakeNetwork) Following(ctx context.Context, user types.ForeignUser) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following[user.ID], f.errs[user.ID]
}

func (f *fakeNetwork) PostActivity(ctx context.Context, user types.ForeignUser, activity types.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.postErr[user.ID]; err != nil {
		return err
	}
	f.posted[user.ID] = append(f.posted[user.ID], activity)
	return nil
}

func (f *fakeNetwork) postedBy(id string) []types.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Activity(nil), f.posted[id]...)
}

type fixture struct {
	store     *store.Store
	local     *fakeLocal
	statusnet *fakeNetwork
	twitter   *fakeNetwork
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	local := newFakeLocal()
	sn := newFakeNetwork(types.KindStatusNet)
	tw := newFakeNetwork(types.KindTwitter)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(s, local, foreign.NewNetworks(sn, tw), foreign.NewResolver(s), types.WorkerConfig{}, logger)
	return &fixture{store: s, local: local, statusnet: sn, twitter: tw, service: service}
}

func (f *fixture) localUser(t *testing.T, id string) types.LocalUser {
	t.Helper()
	user, err := f.store.UpsertLocalUser(context.Background(), types.LocalUser{ID: id, Outbox: "https://pump.example/" + id + "/feed"})
	if err != nil {
		t.Fatal(err)
	}
	return user
}

func (f *fixture) foreignUser(t *testing.T, id, kind, owner string, autopost bool) types.ForeignUser {
	t.Helper()
	ctx := context.Background()
	fuser, err := f.store.UpsertForeignUser(ctx, types.ForeignUser{ID: id, Kind: kind, Hostname: types.HostOf(id)})
	if err != nil {
		t.Fatal(err)
	}
	if owner != "" {
		if _, err := f.store.CreateShadow(ctx, owner, id); err != nil {
			t.Fatal(err)
		}
	}
	if autopost {
		if err := f.store.UpdateAutopost(ctx, id, true); err != nil {
			t.Fatal(err)
		}
		fuser.Autopost = true
	}
	return fuser
}
