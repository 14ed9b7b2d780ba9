package foreign

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/dghubble/oauth1"
	"github.com/pkg/errors"

	"github.com/e14n/pump2status/httpclient"
	"github.com/e14n/pump2status/types"
)

const statusNetPageSize = 100

// StatusNet talks to StatusNet (OStatus) hosts.
type StatusNet struct {
	registry *Registry
	client   *httpclient.Client
	maxPages int
}

func NewStatusNet(registry *Registry, client *httpclient.Client, maxPages int) *StatusNet {
	return &StatusNet{registry: registry, client: client, maxPages: maxPages}
}

func (s *StatusNet) Kind() string { return types.KindStatusNet }

func (s *StatusNet) EnsureHost(ctx context.Context, hostname string) (types.ForeignHost, error) {
	return s.registry.EnsureHost(ctx, hostname)
}

func (s *StatusNet) RequestToken(ctx context.Context, host types.ForeignHost, callback string) (string, string, error) {
	_, span := tracer.Start(ctx, "Foreign.StatusNet.RequestToken")
	defer span.End()

	config := oauthConfig(host, s.client)
	config.CallbackURL = callback
	token, secret, err := config.RequestToken()
	if err != nil {
		span.RecordError(err)
		return "", "", &types.TransientError{Op: "request token from " + host.Hostname, Err: err}
	}
	return token, secret, nil
}

func (s *StatusNet) AuthorizeURL(host types.ForeignHost, token string) (string, error) {
	return authorizeURL(host, token)
}

func (s *StatusNet) AccessToken(ctx context.Context, host types.ForeignHost, token, secret, verifier string) (string, string, error) {
	_, span := tracer.Start(ctx, "Foreign.StatusNet.AccessToken")
	defer span.End()

	access, accessSecret, err := oauthConfig(host, s.client).AccessToken(token, secret, verifier)
	if err != nil {
		span.RecordError(err)
		return "", "", &types.TransientError{Op: "access token from " + host.Hostname, Err: err}
	}
	return access, accessSecret, nil
}

func (s *StatusNet) Whoami(ctx context.Context, host types.ForeignHost, token, secret string) (*types.RawObj, error) {
	ctx, span := tracer.Start(ctx, "Foreign.StatusNet.Whoami")
	defer span.End()

	hc := s.client.Signed(ctx, oauthConfig(host, s.client), token, secret)
	resp, err := s.client.Get(ctx, hc, host.WhoamiEndpoint, "application/json")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	profile, err := types.LoadAsRawObj(resp.Body)
	if err != nil {
		return nil, &types.TransientError{Op: "parse profile", Err: err}
	}
	return profile, nil
}

// Following pages through the friends list, 100 profiles per page. Past the
// page cap the ids read so far come back with types.ErrTruncated.
func (s *StatusNet) Following(ctx context.Context, user types.ForeignUser) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Foreign.StatusNet.Following")
	defer span.End()

	host, err := s.registry.EnsureHost(ctx, user.Hostname)
	if err != nil {
		return nil, err
	}
	hc := s.client.Signed(ctx, oauthConfig(host, s.client), user.Token, user.Secret)

	ids := []string{}
	truncated := true
	for page := 1; page <= s.maxPages; page++ {
		resp, err := s.client.Get(ctx, hc, user.Following+"?page="+strconv.Itoa(page), "application/json")
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		var profiles []map[string]any
		if err := json.Unmarshal(resp.Body, &profiles); err != nil {
			return nil, &types.TransientError{Op: "parse following of " + user.ID, Err: err}
		}
		for _, p := range profiles {
			id, err := StatusNetID(types.NewRawObj(p))
			if err != nil {
				slog.Debug("skipping friend without id", slog.String("fuser", user.ID), slog.String("error", err.Error()))
				continue
			}
			ids = append(ids, id)
		}
		if len(profiles) < statusNetPageSize {
			truncated = false
			break
		}
	}
	if truncated {
		return ids, errors.Wrapf(types.ErrTruncated, "following of %s after %d pages", user.ID, s.maxPages)
	}
	return ids, nil
}

// PostActivity publishes an Atom activity entry on the user's timeline.
func (s *StatusNet) PostActivity(ctx context.Context, user types.ForeignUser, activity types.Activity) error {
	ctx, span := tracer.Start(ctx, "Foreign.StatusNet.PostActivity")
	defer span.End()

	host, err := s.registry.EnsureHost(ctx, user.Hostname)
	if err != nil {
		return err
	}
	entry, err := AtomEntry(activity)
	if err != nil {
		return errors.Wrap(err, "render atom entry")
	}

	url := "http://" + user.Hostname + "/api/statuses/user_timeline/" + user.ScreenName + ".atom"
	hc := s.client.Signed(ctx, oauthConfig(host, s.client), user.Token, user.Secret)
	_, err = s.client.Post(ctx, hc, url, "application/atom+xml", bytes.NewReader(entry))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func oauthConfig(host types.ForeignHost, client *httpclient.Client) *oauth1.Config {
	config := &oauth1.Config{
		ConsumerKey:    host.ClientID,
		ConsumerSecret: host.ClientSecret,
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: host.RequestTokenEndpoint,
			AuthorizeURL:    host.AuthorizationEndpoint,
			AccessTokenURL:  host.AccessTokenEndpoint,
		},
	}
	if client != nil {
		config.HTTPClient = client.Standard()
	}
	return config
}

func authorizeURL(host types.ForeignHost, token string) (string, error) {
	u, err := oauthConfig(host, nil).AuthorizationURL(token)
	if err != nil {
		return "", errors.Wrap(err, "authorization url")
	}
	return u.String(), nil
}
