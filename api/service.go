package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/e14n/pump2status/bridge"
	"github.com/e14n/pump2status/foreign"
	"github.com/e14n/pump2status/pump"
	"github.com/e14n/pump2status/store"
	"github.com/e14n/pump2status/types"
)

// LocalAuth verifies pump.io credentials.
type LocalAuth interface {
	Whoami(ctx context.Context, hostname, token, secret string) (*types.RawObj, error)
}

// TokenStore keeps request tokens until the OAuth callback.
type TokenStore interface {
	Save(ctx context.Context, rt types.RequestToken) error
	Take(ctx context.Context, hostname, token string) (types.RequestToken, error)
}

type Service struct {
	store    *store.Store
	bridge   *bridge.Service
	networks foreign.Networks
	local    LocalAuth
	tokens   TokenStore
	site     types.SiteConfig
}

func NewService(
	store *store.Store,
	bridge *bridge.Service,
	networks foreign.Networks,
	local LocalAuth,
	tokens TokenStore,
	site types.SiteConfig,
) *Service {
	return &Service{
		store,
		bridge,
		networks,
		local,
		tokens,
		site,
	}
}

func (s *Service) network(kind string) (foreign.Network, error) {
	network, ok := s.networks[kind]
	if !ok {
		return nil, &types.ValidationError{Field: "kind", Reason: "unknown network " + kind}
	}
	return network, nil
}

// hostnameFor picks the foreign host an add-account request points at.
func hostnameFor(kind, webfinger string) (string, error) {
	if kind == types.KindTwitter {
		return foreign.TwitterHostname, nil
	}
	webfinger = strings.TrimSpace(strings.TrimPrefix(webfinger, "acct:"))
	if webfinger == "" {
		return "", &types.ValidationError{Field: "webfinger", Reason: "missing"}
	}
	hostname := types.HostOf(webfinger)
	if hostname == "" || strings.HasPrefix(webfinger, "@") {
		return "", &types.ValidationError{Field: "webfinger", Reason: "expected nickname@hostname"}
	}
	return hostname, nil
}

// CallbackURL is where the foreign host sends the user back after authorization.
func (s *Service) CallbackURL(kind, hostname string) string {
	return s.site.BaseURL() + "/authorized/" + kind + "/" + url.PathEscape(hostname)
}

// Login records the pump.io account owning token and returns it.
func (s *Service) Login(ctx context.Context, hostname, token, secret string) (types.LocalUser, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Login")
	defer span.End()

	if hostname == "" || token == "" {
		return types.LocalUser{}, &types.ValidationError{Field: "token", Reason: "hostname and token are required"}
	}

	person, err := s.local.Whoami(ctx, hostname, token, secret)
	if err != nil {
		span.RecordError(err)
		return types.LocalUser{}, errors.Wrap(err, "whoami")
	}
	user, err := pump.FromPerson(person, token, secret)
	if err != nil {
		span.RecordError(err)
		return types.LocalUser{}, err
	}
	if types.HostOf(user.ID) != strings.ToLower(hostname) {
		return types.LocalUser{}, &types.ValidationError{Field: "id", Reason: user.ID + " does not belong to " + hostname}
	}
	return s.store.UpsertLocalUser(ctx, user)
}

// StartLink begins linking a foreign account to requester and returns the
// URL the user must visit to authorize the bridge.
func (s *Service) StartLink(ctx context.Context, requester, kind, webfinger string) (string, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.StartLink")
	defer span.End()

	if _, err := s.store.GetLocalUser(ctx, requester); err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "get requester")
	}

	network, err := s.network(kind)
	if err != nil {
		return "", err
	}
	hostname, err := hostnameFor(kind, webfinger)
	if err != nil {
		return "", err
	}

	host, err := network.EnsureHost(ctx, hostname)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	token, secret, err := network.RequestToken(ctx, host, s.CallbackURL(kind, host.Hostname))
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "request token")
	}

	err = s.tokens.Save(ctx, types.RequestToken{
		Kind:     kind,
		Hostname: host.Hostname,
		Token:    token,
		Secret:   secret,
		Owner:    requester,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	return network.AuthorizeURL(host, token)
}

// Callback finishes an authorization started by StartLink.
func (s *Service) Callback(ctx context.Context, kind, hostname, token, verifier string) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Callback")
	defer span.End()

	if token == "" || verifier == "" {
		return types.ForeignUser{}, &types.ValidationError{Field: "oauth_verifier", Reason: "missing"}
	}

	network, err := s.network(kind)
	if err != nil {
		return types.ForeignUser{}, err
	}

	rt, err := s.tokens.Take(ctx, strings.ToLower(hostname), token)
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, errors.Wrap(err, "request token")
	}
	if rt.Kind != kind {
		return types.ForeignUser{}, &types.ValidationError{Field: "kind", Reason: "request token was issued for " + rt.Kind}
	}

	host, err := network.EnsureHost(ctx, rt.Hostname)
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, err
	}

	accessToken, accessSecret, err := network.AccessToken(ctx, host, rt.Token, rt.Secret, verifier)
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, errors.Wrap(err, "access token")
	}

	user, err := s.store.GetLocalUser(ctx, rt.Owner)
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, errors.Wrap(err, "get owner")
	}

	return s.bridge.Link(ctx, user, kind, host, accessToken, accessSecret)
}

// Accounts returns the foreign accounts linked to requester.
func (s *Service) Accounts(ctx context.Context, requester string) ([]types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Accounts")
	defer span.End()

	return s.bridge.LinkedAccounts(ctx, requester)
}

// FindFriends lists the local users requester can follow thanks to fid.
func (s *Service) FindFriends(ctx context.Context, requester, fid string) ([]types.LocalUser, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.FindFriends")
	defer span.End()

	fuser, err := s.bridge.OwnedAccount(ctx, requester, fid)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.bridge.FindFriends(ctx, fuser)
}

// SaveFriends makes requester follow the chosen friends found through fid.
func (s *Service) SaveFriends(ctx context.Context, requester, fid string, ids []string) error {
	ctx, span := tracer.Start(ctx, "Api.Service.SaveFriends")
	defer span.End()

	if _, err := s.bridge.OwnedAccount(ctx, requester, fid); err != nil {
		span.RecordError(err)
		return err
	}
	user, err := s.store.GetLocalUser(ctx, requester)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return s.bridge.SaveFriends(ctx, user, ids)
}

func (s *Service) GetSettings(ctx context.Context, requester, fid string) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.GetSettings")
	defer span.End()

	return s.bridge.OwnedAccount(ctx, requester, fid)
}

func (s *Service) UpdateSettings(ctx context.Context, requester, fid string, autopost bool) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.UpdateSettings")
	defer span.End()

	return s.bridge.UpdateSettings(ctx, requester, fid, autopost)
}

func (s *Service) Stats(ctx context.Context) (types.Stats, error) {
	ctx, span := tracer.Start(ctx, "Api.Service.Stats")
	defer span.End()

	return s.bridge.Stats(ctx)
}
