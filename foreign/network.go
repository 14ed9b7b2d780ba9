package foreign

import (
	"context"

	"go.opentelemetry.io/otel"

	"github.com/e14n/pump2status/types"
)

var tracer = otel.Tracer("foreign")

// Network is one kind of foreign network the bridge can link accounts with.
// Authorization failures of the foreign API are reported as types.ErrUnauthorized.
type Network interface {
	// Kind is the value stored in types.ForeignUser.Kind.
	Kind() string
	// EnsureHost returns the OAuth configuration of hostname.
	EnsureHost(ctx context.Context, hostname string) (types.ForeignHost, error)
	// RequestToken obtains a temporary credential for the authorization redirect.
	RequestToken(ctx context.Context, host types.ForeignHost, callback string) (token, secret string, err error)
	// AuthorizeURL is where the user approves the request token.
	AuthorizeURL(host types.ForeignHost, token string) (string, error)
	// AccessToken exchanges an approved request token for an access token.
	AccessToken(ctx context.Context, host types.ForeignHost, token, secret, verifier string) (string, string, error)
	// Whoami fetches the profile of the owner of an access token.
	Whoami(ctx context.Context, host types.ForeignHost, token, secret string) (*types.RawObj, error)
	// Following returns the ids of the accounts user follows.
	Following(ctx context.Context, user types.ForeignUser) ([]string, error)
	// PostActivity publishes a pump.io activity as user.
	PostActivity(ctx context.Context, user types.ForeignUser, activity types.Activity) error
}

// Networks indexes networks by kind.
type Networks map[string]Network

// NewNetworks builds the index.
func NewNetworks(networks ...Network) Networks {
	m := make(Networks, len(networks))
	for _, n := range networks {
		m[n.Kind()] = n
	}
	return m
}

// For returns the network of user.
func (n Networks) For(user types.ForeignUser) (Network, bool) {
	network, ok := n[user.Kind]
	return network, ok
}
