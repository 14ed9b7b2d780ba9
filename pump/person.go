package pump

import (
	"strings"

	"github.com/e14n/pump2status/types"
)

// StripAcct removes the acct: scheme of a webfinger id.
func StripAcct(id string) string {
	return strings.TrimPrefix(id, "acct:")
}

// FromPerson builds a local user from a pump.io person document.
func FromPerson(person *types.RawObj, token, secret string) (types.LocalUser, error) {
	id, ok := person.GetString("id")
	if !ok || id == "" {
		return types.LocalUser{}, &types.ValidationError{Field: "id", Reason: "missing"}
	}
	id = StripAcct(id)
	if types.HostOf(id) == "" {
		return types.LocalUser{}, &types.ValidationError{Field: "id", Reason: "no hostname in " + id}
	}

	user := types.LocalUser{
		ID:        id,
		Name:      person.MustGetString("displayName"),
		Avatar:    person.MustGetString("image.url"),
		Homepage:  person.MustGetString("url"),
		Inbox:     person.MustGetString("links.activity-inbox.href"),
		Outbox:    person.MustGetString("links.activity-outbox.href"),
		Following: person.MustGetString("following.url"),
		Token:     token,
		Secret:    secret,
	}
	switch {
	case user.Inbox == "":
		return types.LocalUser{}, &types.ValidationError{Field: "links.activity-inbox", Reason: "missing"}
	case user.Outbox == "":
		return types.LocalUser{}, &types.ValidationError{Field: "links.activity-outbox", Reason: "missing"}
	case user.Following == "":
		return types.LocalUser{}, &types.ValidationError{Field: "following.url", Reason: "missing"}
	}
	return user, nil
}
