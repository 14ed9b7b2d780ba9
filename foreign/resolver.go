package foreign

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/e14n/pump2status/types"
)

const TwitterHostname = "twitter.com"

// AccountStore persists foreign accounts.
type AccountStore interface {
	UpsertForeignUser(ctx context.Context, user types.ForeignUser) (types.ForeignUser, error)
}

// Resolver turns foreign profile payloads into persisted foreign accounts.
type Resolver struct {
	store AccountStore
}

func NewResolver(store AccountStore) *Resolver {
	return &Resolver{store: store}
}

// FromProfile derives the account described by profile, attaches the access
// token and stores it. Nothing is stored when the profile is malformed.
func (r *Resolver) FromProfile(ctx context.Context, kind string, profile *types.RawObj, token, secret string) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Foreign.Resolver.FromProfile")
	defer span.End()

	var (
		user types.ForeignUser
		err  error
	)
	switch kind {
	case types.KindStatusNet:
		user, err = StatusNetUser(profile)
	case types.KindTwitter:
		user, err = TwitterUser(profile)
	default:
		err = &types.ValidationError{Field: "kind", Reason: "unknown network " + kind}
	}
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, err
	}

	user.Token = token
	user.Secret = secret

	user, err = r.store.UpsertForeignUser(ctx, user)
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, errors.Wrap(err, "upsert foreign user")
	}
	return user, nil
}

// StatusNetID returns screen_name@hostname for a StatusNet profile.
func StatusNetID(profile *types.RawObj) (string, error) {
	nick, ok := profile.GetString("screen_name")
	if !ok || nick == "" {
		return "", &types.ValidationError{Field: "screen_name", Reason: "missing"}
	}
	hostname, err := profileHostname(profile)
	if err != nil {
		return "", err
	}
	return nick + "@" + hostname, nil
}

func profileHostname(profile *types.RawObj) (string, error) {
	raw, ok := profile.GetString("statusnet_profile_url")
	if !ok || raw == "" {
		return "", &types.ValidationError{Field: "statusnet_profile_url", Reason: "missing"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", &types.ValidationError{Field: "statusnet_profile_url", Reason: "no hostname in " + raw}
	}
	return strings.ToLower(u.Host), nil
}

// StatusNetUser builds the account described by a StatusNet profile.
func StatusNetUser(profile *types.RawObj) (types.ForeignUser, error) {
	id, err := StatusNetID(profile)
	if err != nil {
		return types.ForeignUser{}, err
	}
	nick := profile.MustGetString("screen_name")
	hostname := types.HostOf(id)
	return types.ForeignUser{
		ID:         id,
		Kind:       types.KindStatusNet,
		Hostname:   hostname,
		ScreenName: nick,
		IDStr:      profile.MustGetString("id"),
		Name:       profile.MustGetString("name"),
		Avatar:     profile.MustGetString("profile_image_url"),
		ProfileURL: profile.MustGetString("statusnet_profile_url"),
		Following:  "http://" + hostname + "/api/statuses/friends/" + nick + ".json",
	}, nil
}

// TwitterID returns id_str@twitter.com for a Twitter profile.
func TwitterID(profile *types.RawObj) (string, error) {
	idStr, ok := profile.GetString("id_str")
	if !ok || idStr == "" {
		return "", &types.ValidationError{Field: "id_str", Reason: "missing"}
	}
	return idStr + "@" + TwitterHostname, nil
}

// TwitterUser builds the account described by a Twitter profile.
func TwitterUser(profile *types.RawObj) (types.ForeignUser, error) {
	id, err := TwitterID(profile)
	if err != nil {
		return types.ForeignUser{}, err
	}
	nick := profile.MustGetString("screen_name")
	return types.ForeignUser{
		ID:         id,
		Kind:       types.KindTwitter,
		Hostname:   TwitterHostname,
		ScreenName: nick,
		IDStr:      profile.MustGetString("id_str"),
		Name:       profile.MustGetString("name"),
		Avatar:     profile.MustGetString("profile_image_url_https"),
		ProfileURL: "https://twitter.com/" + nick,
	}, nil
}
