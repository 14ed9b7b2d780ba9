package pump

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/e14n/pump2status/httpclient"
	"github.com/e14n/pump2status/types"
)

var tracer = otel.Tracer("pump")

// Client talks to pump.io hosts on behalf of local users.
type Client struct {
	client   *httpclient.Client
	config   types.PumpConfig
	maxPages int
	scheme   string
}

func NewClient(client *httpclient.Client, config types.PumpConfig, maxPages int) *Client {
	return &Client{client: client, config: config, maxPages: maxPages, scheme: "https"}
}

func (c *Client) consumer(hostname string) (*oauth1.Config, error) {
	cred, ok := c.config.Hosts[strings.ToLower(hostname)]
	if !ok {
		return nil, errors.Errorf("no client credentials for pump host %s", hostname)
	}
	return oauth1.NewConfig(cred.ClientID, cred.ClientSecret), nil
}

// Whoami fetches the person owning token on hostname.
func (c *Client) Whoami(ctx context.Context, hostname, token, secret string) (*types.RawObj, error) {
	ctx, span := tracer.Start(ctx, "Pump.Client.Whoami")
	defer span.End()

	config, err := c.consumer(hostname)
	if err != nil {
		return nil, err
	}
	hc := c.client.Signed(ctx, config, token, secret)
	resp, err := c.client.Get(ctx, hc, c.scheme+"://"+hostname+"/api/whoami", "application/json")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	person, err := types.LoadAsRawObj(resp.Body)
	if err != nil {
		return nil, &types.TransientError{Op: "parse whoami", Err: err}
	}
	return person, nil
}

// Outbox returns the activities of user newer than its cursor, newest first.
func (c *Client) Outbox(ctx context.Context, user types.LocalUser) ([]types.Activity, error) {
	ctx, span := tracer.Start(ctx, "Pump.Client.Outbox")
	defer span.End()

	config, err := c.consumer(user.Hostname())
	if err != nil {
		return nil, err
	}

	feed := user.Outbox
	if user.LastSeen != "" {
		feed = withQuery(feed, "since", user.LastSeen)
	}

	hc := c.client.Signed(ctx, config, user.Token, user.Secret)
	resp, err := c.client.Get(ctx, hc, feed, "application/json")
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.ContentType)
	if mediaType != "application/json" {
		return nil, &types.TransientError{Op: "GET " + feed, Err: errors.Errorf("unexpected content type %q", resp.ContentType)}
	}

	var collection types.Collection
	if err := json.Unmarshal(resp.Body, &collection); err != nil {
		return nil, &types.TransientError{Op: "parse outbox of " + user.ID, Err: err}
	}

	activities := make([]types.Activity, 0, len(collection.Items))
	for _, item := range collection.Items {
		var activity types.Activity
		if err := json.Unmarshal(item, &activity); err != nil {
			return nil, &types.TransientError{Op: "parse outbox item of " + user.ID, Err: err}
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

// PostActivity posts activity to the outbox of user.
func (c *Client) PostActivity(ctx context.Context, user types.LocalUser, activity types.Activity) error {
	ctx, span := tracer.Start(ctx, "Pump.Client.PostActivity")
	defer span.End()

	config, err := c.consumer(user.Hostname())
	if err != nil {
		return err
	}
	body, err := json.Marshal(activity)
	if err != nil {
		return err
	}

	hc := c.client.Signed(ctx, config, user.Token, user.Secret)
	_, err = c.client.Post(ctx, hc, user.Outbox, "application/json", bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Following returns the ids of the people user follows. A list cut off by the
// page cap is returned with types.ErrTruncated.
func (c *Client) Following(ctx context.Context, user types.LocalUser) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Pump.Client.Following")
	defer span.End()

	config, err := c.consumer(user.Hostname())
	if err != nil {
		return nil, err
	}
	hc := c.client.Signed(ctx, config, user.Token, user.Secret)

	ids := []string{}
	next := user.Following
	for page := 0; page < c.maxPages && next != ""; page++ {
		resp, err := c.client.Get(ctx, hc, next, "application/json")
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		var collection types.Collection
		if err := json.Unmarshal(resp.Body, &collection); err != nil {
			return nil, &types.TransientError{Op: "parse following of " + user.ID, Err: err}
		}
		for _, item := range collection.Items {
			var person types.Object
			if err := json.Unmarshal(item, &person); err != nil || person.ID == "" {
				continue
			}
			ids = append(ids, StripAcct(person.ID))
		}
		next = ""
		if link, ok := collection.Links["next"]; ok && len(collection.Items) > 0 {
			next = link.Href
		}
	}
	if next != "" {
		return ids, errors.Wrapf(types.ErrTruncated, "following of %s after %d pages", user.ID, c.maxPages)
	}
	return ids, nil
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
