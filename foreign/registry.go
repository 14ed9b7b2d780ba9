package foreign

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/e14n/pump2status/httpclient"
	"github.com/e14n/pump2status/types"
)

const anonymous = "anonymous"

// HostStore persists discovered hosts.
type HostStore interface {
	GetHost(ctx context.Context, hostname string) (types.ForeignHost, error)
	CreateHost(ctx context.Context, host types.ForeignHost) (types.ForeignHost, error)
}

// Registry resolves StatusNet hostnames to their OAuth configuration,
// discovering unknown hosts on first contact. Known hosts are never
// re-discovered.
type Registry struct {
	store   HostStore
	cache   HostCache
	client  *httpclient.Client
	config  types.StatusNetConfig
	schemes []string
	group   singleflight.Group
}

// NewRegistry returns a Registry. Pre-provisioned consumer keys come from config;
// other hosts get anonymous credentials.
func NewRegistry(store HostStore, cache HostCache, client *httpclient.Client, config types.StatusNetConfig) *Registry {
	return &Registry{
		store:   store,
		cache:   cache,
		client:  client,
		config:  config,
		schemes: []string{"https", "http"},
	}
}

// EnsureHost returns the stored configuration of hostname, discovering it if needed.
func (r *Registry) EnsureHost(ctx context.Context, hostname string) (types.ForeignHost, error) {
	ctx, span := tracer.Start(ctx, "Foreign.Registry.EnsureHost")
	defer span.End()

	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return types.ForeignHost{}, &types.DiscoveryError{Hostname: hostname, Err: errors.New("empty hostname")}
	}

	if host, ok := r.cache.Get(hostname); ok {
		return host, nil
	}

	host, err := r.store.GetHost(ctx, hostname)
	if err == nil {
		r.cache.Set(host)
		return host, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		span.RecordError(err)
		return types.ForeignHost{}, errors.Wrap(err, "get host")
	}

	v, err, _ := r.group.Do(hostname, func() (any, error) {
		return r.discover(ctx, hostname)
	})
	if err != nil {
		span.RecordError(err)
		return types.ForeignHost{}, err
	}

	host = v.(types.ForeignHost)
	r.cache.Set(host)
	return host, nil
}

func (r *Registry) discover(ctx context.Context, hostname string) (types.ForeignHost, error) {
	scheme, err := r.probe(ctx, hostname)
	if err != nil {
		return types.ForeignHost{}, err
	}

	host := HostFor(scheme, hostname, r.config.Credentials[hostname])
	host, err = r.store.CreateHost(ctx, host)
	if err != nil {
		return types.ForeignHost{}, errors.Wrap(err, "create host")
	}
	return host, nil
}

// probe returns the first scheme on which hostname serves a StatusNet configuration.
func (r *Registry) probe(ctx context.Context, hostname string) (string, error) {
	var lastErr error
	for _, scheme := range r.schemes {
		req, err := http.NewRequest(http.MethodHead, scheme+"://"+hostname+"/api/statusnet/config.json", nil)
		if err != nil {
			return "", &types.DiscoveryError{Hostname: hostname, Err: err}
		}
		_, err = r.client.Do(ctx, r.client.Standard(), req)
		if err == nil {
			return scheme, nil
		}
		lastErr = err
	}
	return "", &types.DiscoveryError{Hostname: hostname, Err: lastErr}
}

// HostFor builds the OAuth configuration of a StatusNet host served on scheme.
func HostFor(scheme, hostname string, cred types.ClientCredential) types.ForeignHost {
	if cred.ClientID == "" {
		cred = types.ClientCredential{ClientID: anonymous, ClientSecret: anonymous}
	}
	base := scheme + "://" + hostname
	return types.ForeignHost{
		Hostname:              hostname,
		ClientID:              cred.ClientID,
		ClientSecret:          cred.ClientSecret,
		RequestTokenEndpoint:  base + "/api/oauth/request_token",
		AccessTokenEndpoint:   base + "/api/oauth/access_token",
		AuthorizationEndpoint: base + "/api/oauth/authorize",
		WhoamiEndpoint:        base + "/api/account/verify_credentials.json",
	}
}
