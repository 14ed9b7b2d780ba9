package pump

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/e14n/pump2status/types"
)

// Host describes the OAuth configuration this bridge uses with a pump.io host.
func (c *Client) Host(hostname string) (types.ForeignHost, error) {
	hostname = strings.ToLower(hostname)
	cred, ok := c.config.Hosts[hostname]
	if !ok {
		return types.ForeignHost{}, errors.Errorf("no client credentials for pump host %s", hostname)
	}
	base := c.scheme + "://" + hostname
	return types.ForeignHost{
		Hostname:              hostname,
		ClientID:              cred.ClientID,
		ClientSecret:          cred.ClientSecret,
		RequestTokenEndpoint:  base + "/oauth/request_token",
		AccessTokenEndpoint:   base + "/oauth/access_token",
		AuthorizationEndpoint: base + "/oauth/authorize",
		WhoamiEndpoint:        base + "/api/whoami",
	}, nil
}
