package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawObj is a loosely typed JSON document (a pump.io person, a StatusNet or
// Twitter profile) read through dotted paths such as "links.activity-outbox.href".
type RawObj struct {
	data map[string]any
}

func LoadAsRawObj(body []byte) (*RawObj, error) {
	var data map[string]any
	err := json.Unmarshal(body, &data)
	return &RawObj{data}, err
}

func NewRawObj(data map[string]any) *RawObj {
	return &RawObj{data}
}

func (r *RawObj) GetData() map[string]any {
	return r.data
}

func (r *RawObj) get(key string) (any, bool) {
	var value any = r.data
	for _, k := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[k]
		if !ok || value == nil {
			return nil, false
		}
	}
	return value, true
}

func (r *RawObj) GetRaw(key string) (*RawObj, bool) {
	value, ok := r.get(key)
	if !ok {
		return nil, false
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	return &RawObj{m}, true
}

// GetString returns the value at key as a string. Numbers are formatted
// without exponent so numeric ids survive.
func (r *RawObj) GetString(key string) (string, bool) {
	value, ok := r.get(key)
	if !ok {
		return "", false
	}

	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

func (r *RawObj) MustGetString(key string) string {
	str, _ := r.GetString(key)
	return str
}
