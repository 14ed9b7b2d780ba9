package foreign

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/e14n/pump2status/types"
)

const (
	atomNS         = "http://www.w3.org/2005/Atom"
	activityNS     = "http://activitystrea.ms/spec/1.0/"
	activitySchema = "http://activitystrea.ms/schema/1.0/"
)

type atomActivity struct {
	XMLName       xml.Name `xml:"entry"`
	Xmlns         string   `xml:"xmlns,attr"`
	XmlnsActivity string   `xml:"xmlns:activity,attr"`
	ID            string   `xml:"id"`
	Title         string   `xml:"title"`
	Published     string   `xml:"published,omitempty"`
	Updated       string   `xml:"updated"`
	Verb          string   `xml:"activity:verb"`
	ObjectType    string   `xml:"activity:object-type"`
	Content       *feeds.AtomContent
	Author        *feeds.AtomAuthor
	Links         []feeds.AtomLink
}

// canonicalVerb expands bare activity streams names to their schema URI.
func canonicalVerb(s string) string {
	if strings.Contains(s, ":") {
		return s
	}
	return activitySchema + s
}

// AtomEntry renders a pump.io activity as the Atom activity entry StatusNet accepts.
func AtomEntry(activity types.Activity) ([]byte, error) {
	updated := activity.Updated
	if updated == "" {
		updated = activity.Published
	}
	if updated == "" {
		updated = time.Now().UTC().Format(time.RFC3339)
	}

	entry := atomActivity{
		Xmlns:         atomNS,
		XmlnsActivity: activityNS,
		ID:            activity.ID,
		Title:         activity.Object.DisplayName,
		Published:     activity.Published,
		Updated:       updated,
		Verb:          canonicalVerb(activity.Verb),
		ObjectType:    canonicalVerb(activity.Object.ObjectType),
	}
	if activity.Object.Content != "" {
		entry.Content = &feeds.AtomContent{Content: activity.Object.Content, Type: "html"}
	}
	if activity.Actor != nil {
		entry.Author = &feeds.AtomAuthor{AtomPerson: feeds.AtomPerson{Name: activity.Actor.DisplayName, Uri: activity.Actor.ID}}
	}
	if activity.Object.URL != "" {
		entry.Links = append(entry.Links, feeds.AtomLink{Href: activity.Object.URL, Rel: "alternate", Type: "text/html"})
	}

	body, err := xml.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
