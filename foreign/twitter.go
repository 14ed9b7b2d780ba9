package foreign

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/e14n/pump2status/httpclient"
	"github.com/e14n/pump2status/types"
)

const twitterAPI = "https://api.twitter.com"

// Twitter talks to the Twitter API. There is a single static host.
type Twitter struct {
	client   *httpclient.Client
	host     types.ForeignHost
	apiBase  string
	maxPages int
}

func NewTwitter(client *httpclient.Client, cred types.ClientCredential, maxPages int) *Twitter {
	return NewTwitterAt(twitterAPI, client, cred, maxPages)
}

// NewTwitterAt points the adapter at another API root.
func NewTwitterAt(apiBase string, client *httpclient.Client, cred types.ClientCredential, maxPages int) *Twitter {
	apiBase = strings.TrimRight(apiBase, "/")
	return &Twitter{
		client:   client,
		apiBase:  apiBase,
		maxPages: maxPages,
		host: types.ForeignHost{
			Hostname:              TwitterHostname,
			ClientID:              cred.ClientID,
			ClientSecret:          cred.ClientSecret,
			RequestTokenEndpoint:  apiBase + "/oauth/request_token",
			AccessTokenEndpoint:   apiBase + "/oauth/access_token",
			AuthorizationEndpoint: apiBase + "/oauth/authorize",
			WhoamiEndpoint:        apiBase + "/1.1/account/verify_credentials.json",
		},
	}
}

func (t *Twitter) Kind() string { return types.KindTwitter }

func (t *Twitter) EnsureHost(ctx context.Context, hostname string) (types.ForeignHost, error) {
	return t.host, nil
}

func (t *Twitter) RequestToken(ctx context.Context, host types.ForeignHost, callback string) (string, string, error) {
	_, span := tracer.Start(ctx, "Foreign.Twitter.RequestToken")
	defer span.End()

	config := oauthConfig(t.host, t.client)
	config.CallbackURL = callback
	token, secret, err := config.RequestToken()
	if err != nil {
		span.RecordError(err)
		return "", "", &types.TransientError{Op: "request token from twitter", Err: err}
	}
	return token, secret, nil
}

func (t *Twitter) AuthorizeURL(host types.ForeignHost, token string) (string, error) {
	return authorizeURL(t.host, token)
}

func (t *Twitter) AccessToken(ctx context.Context, host types.ForeignHost, token, secret, verifier string) (string, string, error) {
	_, span := tracer.Start(ctx, "Foreign.Twitter.AccessToken")
	defer span.End()

	access, accessSecret, err := oauthConfig(t.host, t.client).AccessToken(token, secret, verifier)
	if err != nil {
		span.RecordError(err)
		return "", "", &types.TransientError{Op: "access token from twitter", Err: err}
	}
	return access, accessSecret, nil
}

func (t *Twitter) Whoami(ctx context.Context, host types.ForeignHost, token, secret string) (*types.RawObj, error) {
	ctx, span := tracer.Start(ctx, "Foreign.Twitter.Whoami")
	defer span.End()

	hc := t.client.Signed(ctx, oauthConfig(t.host, t.client), token, secret)
	resp, err := t.client.Get(ctx, hc, t.host.WhoamiEndpoint, "application/json")
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

type friendIDs struct {
	IDs           []string `json:"ids"`
	NextCursorStr string   `json:"next_cursor_str"`
}

// Following walks friends/ids cursors.
func (t *Twitter) Following(ctx context.Context, user types.ForeignUser) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Foreign.Twitter.Following")
	defer span.End()

	hc := t.client.Signed(ctx, oauthConfig(t.host, t.client), user.Token, user.Secret)

	ids := []string{}
	cursor := "-1"
	for page := 0; page < t.maxPages && cursor != "0" && cursor != ""; page++ {
		q := url.Values{}
		q.Set("cursor", cursor)
		q.Set("user_id", user.IDStr)
		q.Set("stringify_ids", "true")

		resp, err := t.client.Get(ctx, hc, t.apiBase+"/1.1/friends/ids.json?"+q.Encode(), "application/json")
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		var result friendIDs
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return nil, &types.TransientError{Op: "parse following of " + user.ID, Err: err}
		}
		for _, id := range result.IDs {
			ids = append(ids, id+"@"+TwitterHostname)
		}
		cursor = result.NextCursorStr
	}
	if cursor != "0" && cursor != "" {
		return ids, errors.Wrapf(types.ErrTruncated, "following of %s after %d pages", user.ID, t.maxPages)
	}
	return ids, nil
}

// PostActivity tweets the text of the note.
func (t *Twitter) PostActivity(ctx context.Context, user types.ForeignUser, activity types.Activity) error {
	ctx, span := tracer.Start(ctx, "Foreign.Twitter.PostActivity")
	defer span.End()

	form := url.Values{}
	form.Set("status", StatusText(activity.Object.Content, activity.Object.URL))

	hc := t.client.Signed(ctx, oauthConfig(t.host, t.client), user.Token, user.Secret)
	_, err := t.client.Post(ctx, hc, t.apiBase+"/1.1/statuses/update.json", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		span.RecordError(err)
	}
	return err
}
