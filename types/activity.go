package types

import "encoding/json"

const (
	PublicCollection = "http://activityschema.org/collection/public"

	VerbPost   = "post"
	VerbFollow = "follow"

	ObjectNote       = "note"
	ObjectPerson     = "person"
	ObjectCollection = "collection"
)

// Activity is a pump.io activity as found in an outbox.
type Activity struct {
	ID        string     `json:"id,omitempty"`
	Verb      string     `json:"verb"`
	Actor     *Object    `json:"actor,omitempty"`
	Object    Object     `json:"object"`
	To        []Object   `json:"to,omitempty"`
	CC        []Object   `json:"cc,omitempty"`
	BTo       []Object   `json:"bto,omitempty"`
	BCC       []Object   `json:"bcc,omitempty"`
	Published string     `json:"published,omitempty"`
	Updated   string     `json:"updated,omitempty"`
	URL       string     `json:"url,omitempty"`
	Generator *Generator `json:"generator,omitempty"`
}

// Object is the object (or a recipient) of an activity.
type Object struct {
	ID          string `json:"id,omitempty"`
	ObjectType  string `json:"objectType,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Content     string `json:"content,omitempty"`
	URL         string `json:"url,omitempty"`
	Published   string `json:"published,omitempty"`
}

// Generator names the application that produced an activity.
type Generator struct {
	ObjectType  string `json:"objectType"`
	DisplayName string `json:"displayName"`
	URL         string `json:"url,omitempty"`
}

// Recipients returns to, cc, bto and bcc in that order.
func (a Activity) Recipients() []Object {
	all := make([]Object, 0, len(a.To)+len(a.CC)+len(a.BTo)+len(a.BCC))
	all = append(all, a.To...)
	all = append(all, a.CC...)
	all = append(all, a.BTo...)
	all = append(all, a.BCC...)
	return all
}

// Collection is a pump.io collection document (outbox, following list).
type Collection struct {
	ID          string            `json:"id,omitempty"`
	DisplayName string            `json:"displayName,omitempty"`
	TotalItems  int               `json:"totalItems"`
	Items       []json.RawMessage `json:"items"`
	Links       map[string]Link   `json:"links,omitempty"`
}

// Link is an entry of a pump.io "links" map.
type Link struct {
	Href string `json:"href"`
}
