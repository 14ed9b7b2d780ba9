package foreign

import (
	"bytes"
	"encoding/gob"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/jellydator/ttlcache/v3"

	"github.com/e14n/pump2status/types"
)

// HostCache keeps discovered hosts close to the registry.
type HostCache interface {
	Get(hostname string) (types.ForeignHost, bool)
	Set(host types.ForeignHost)
}

const hostCachePrefix = "pump2status:host:"

// MemcacheHostCache stores hosts in memcached.
type MemcacheHostCache struct {
	mc         *memcache.Client
	expiration int32
}

func NewMemcacheHostCache(mc *memcache.Client) *MemcacheHostCache {
	return &MemcacheHostCache{mc: mc, expiration: 1800}
}

func (c *MemcacheHostCache) Get(hostname string) (types.ForeignHost, bool) {
	item, err := c.mc.Get(hostCachePrefix + hostname)
	if err != nil {
		return types.ForeignHost{}, false
	}
	var host types.ForeignHost
	if err := gob.NewDecoder(bytes.NewReader(item.Value)).Decode(&host); err != nil {
		return types.ForeignHost{}, false
	}
	return host, true
}

func (c *MemcacheHostCache) Set(host types.ForeignHost) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(host); err != nil {
		return
	}
	err := c.mc.Set(&memcache.Item{
		Key:        hostCachePrefix + host.Hostname,
		Value:      buf.Bytes(),
		Expiration: c.expiration,
	})
	if err != nil {
		slog.Debug("host cache set failed", slog.String("hostname", host.Hostname), slog.String("error", err.Error()))
	}
}

// MemoryHostCache stores hosts in process. Used when no memcached is configured.
type MemoryHostCache struct {
	cache *ttlcache.Cache[string, types.ForeignHost]
}

func NewMemoryHostCache(ttl time.Duration, capacity uint64) *MemoryHostCache {
	return &MemoryHostCache{
		cache: ttlcache.New[string, types.ForeignHost](
			ttlcache.WithTTL[string, types.ForeignHost](ttl),
			ttlcache.WithCapacity[string, types.ForeignHost](capacity),
		),
	}
}

func (c *MemoryHostCache) Get(hostname string) (types.ForeignHost, bool) {
	item := c.cache.Get(hostname)
	if item == nil {
		return types.ForeignHost{}, false
	}
	return item.Value(), true
}

func (c *MemoryHostCache) Set(host types.ForeignHost) {
	c.cache.Set(host.Hostname, host, ttlcache.DefaultTTL)
}
