package types

import "time"

// SiteConfig describes this bridge instance.
type SiteConfig struct {
	Hostname    string `yaml:"hostname"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Protocol    string `yaml:"protocol"`
	UserAgent   string `yaml:"userAgent"`
}

// BaseURL returns the public root URL of the bridge.
func (c SiteConfig) BaseURL() string {
	proto := c.Protocol
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + c.Hostname
}

// ClientCredential is an OAuth consumer key pair registered with a host.
type ClientCredential struct {
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
}

// StatusNetConfig holds the pre-provisioned consumer keys per StatusNet hostname.
type StatusNetConfig struct {
	Credentials map[string]ClientCredential `yaml:"credentials"`
}

// PumpConfig holds the consumer keys this bridge registered with pump.io hosts.
type PumpConfig struct {
	Hosts map[string]ClientCredential `yaml:"hosts"`
}

// WorkerConfig tunes the updater and the forwarder.
type WorkerConfig struct {
	UpdateInterval    time.Duration `yaml:"updateInterval"`
	ForwardInterval   time.Duration `yaml:"forwardInterval"`
	Concurrency       int           `yaml:"concurrency"`
	EdgeConcurrency   int           `yaml:"edgeConcurrency"`
	MaxFollowingPages int           `yaml:"maxFollowingPages"`
	HTTPTimeout       time.Duration `yaml:"httpTimeout"`
	RateLimit         float64       `yaml:"rateLimit"`
	RateBurst         int           `yaml:"rateBurst"`
	RequestTokenTTL   time.Duration `yaml:"requestTokenTTL"`
}

// WithDefaults fills every zero field with its default value.
func (c WorkerConfig) WithDefaults() WorkerConfig {
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = 12 * time.Hour
	}
	if c.ForwardInterval <= 0 {
		c.ForwardInterval = 15 * time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 25
	}
	if c.EdgeConcurrency <= 0 {
		c.EdgeConcurrency = 16
	}
	if c.MaxFollowingPages <= 0 {
		c.MaxFollowingPages = 50
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 5
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 10
	}
	if c.RequestTokenTTL <= 0 {
		c.RequestTokenTTL = time.Hour
	}
	return c
}
