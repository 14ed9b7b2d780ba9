package types

import (
	"strings"
	"time"
)

const (
	KindStatusNet = "statusnet"
	KindTwitter   = "twitter"
)

// LocalUser is a db model of a pump.io account.
type LocalUser struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	Name      string    `json:"name" gorm:"type:text"`
	Avatar    string    `json:"avatar" gorm:"type:text"`
	Homepage  string    `json:"homepage" gorm:"type:text"`
	Inbox     string    `json:"inbox" gorm:"type:text"`
	Outbox    string    `json:"outbox" gorm:"type:text"`
	Following string    `json:"following" gorm:"type:text"`
	Token     string    `json:"-" gorm:"type:text"`
	Secret    string    `json:"-" gorm:"type:text"`
	LastSeen  string    `json:"lastSeen" gorm:"type:text"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;autoCreateTime"`
	MDate     time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// Hostname returns the pump.io host part of the account id.
func (u LocalUser) Hostname() string {
	return HostOf(u.ID)
}

// ForeignUser is a db model of an account on a StatusNet host or on Twitter.
type ForeignUser struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	Kind       string    `json:"kind" gorm:"type:text;index"`
	Hostname   string    `json:"hostname" gorm:"type:text;index"`
	ScreenName string    `json:"screenName" gorm:"type:text"`
	IDStr      string    `json:"idStr,omitempty" gorm:"type:text"`
	Name       string    `json:"name" gorm:"type:text"`
	Avatar     string    `json:"avatar" gorm:"type:text"`
	ProfileURL string    `json:"profileURL" gorm:"type:text"`
	Following  string    `json:"following,omitempty" gorm:"type:text"`
	Token      string    `json:"-" gorm:"type:text"`
	Secret     string    `json:"-" gorm:"type:text"`
	Autopost   bool      `json:"autopost" gorm:"type:bool;default:false"`
	CDate      time.Time `json:"cdate" gorm:"->;<-:create;autoCreateTime"`
	MDate      time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// ForeignHost is a db model of a discovered StatusNet host (or the static Twitter host).
type ForeignHost struct {
	Hostname              string    `json:"hostname" gorm:"primaryKey;type:text"`
	ClientID              string    `json:"-" gorm:"type:text"`
	ClientSecret          string    `json:"-" gorm:"type:text"`
	RequestTokenEndpoint  string    `json:"requestTokenEndpoint" gorm:"type:text"`
	AccessTokenEndpoint   string    `json:"accessTokenEndpoint" gorm:"type:text"`
	AuthorizationEndpoint string    `json:"authorizationEndpoint" gorm:"type:text"`
	WhoamiEndpoint        string    `json:"whoamiEndpoint" gorm:"type:text"`
	CDate                 time.Time `json:"cdate" gorm:"->;<-:create;autoCreateTime"`
	MDate                 time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// Shadow links a foreign account to the local account that owns it.
type Shadow struct {
	ForeignID string    `json:"foreignID" gorm:"primaryKey;type:text"`
	LocalID   string    `json:"localID" gorm:"type:text;index"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;autoCreateTime"`
}

// Edge is a directed "from follows to" relation.
type Edge struct {
	FromTo   string    `json:"fromTo" gorm:"primaryKey;type:text"`
	From     string    `json:"from" gorm:"column:from_id;type:text;index"`
	To       string    `json:"to" gorm:"column:to_id;type:text;index"`
	Created  time.Time `json:"created"`
	Received time.Time `json:"received"`
}

// EdgeKey returns the primary key of the edge from -> to.
func EdgeKey(from, to string) string {
	return from + "→" + to
}

// HostCount is a snapshot of the number of linked accounts on one host.
type HostCount struct {
	ID       uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Snapshot string    `json:"-" gorm:"type:text;index"`
	Hostname string    `json:"hostname" gorm:"type:text;index"`
	Count    int64     `json:"count"`
	Taken    time.Time `json:"taken" gorm:"index"`
}

// TotalCount is a snapshot of the number of linked accounts across every host.
type TotalCount struct {
	ID       uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Snapshot string    `json:"-" gorm:"type:text;index"`
	Count    int64     `json:"count"`
	Taken    time.Time `json:"taken" gorm:"index"`
}

// RequestToken is a temporary OAuth request token waiting for its callback.
type RequestToken struct {
	Kind     string `json:"kind"`
	Hostname string `json:"hostname"`
	Token    string `json:"token"`
	Secret   string `json:"secret"`
	Owner    string `json:"owner"`
}

// Stats is the payload of the stats endpoint.
type Stats struct {
	Total int64       `json:"total"`
	Hosts []HostCount `json:"hosts"`
}

// HostOf returns the part after the last "@" of an account id.
func HostOf(id string) string {
	i := strings.LastIndex(id, "@")
	if i < 0 {
		return ""
	}
	return strings.ToLower(id[i+1:])
}

// NickOf returns the part before the last "@" of an account id.
func NickOf(id string) string {
	i := strings.LastIndex(id, "@")
	if i < 0 {
		return id
	}
	return id[:i]
}
