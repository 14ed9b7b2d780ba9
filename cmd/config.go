package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/e14n/pump2status/types"
)

const defaultConfigPath = "/etc/pump2status/config.yaml"

type Config struct {
	Server    Server                 `yaml:"server"`
	Site      types.SiteConfig       `yaml:"site"`
	Twitter   types.ClientCredential `yaml:"twitter"`
	StatusNet types.StatusNetConfig  `yaml:"statusnet"`
	Pump      types.PumpConfig       `yaml:"pump"`
	Worker    types.WorkerConfig     `yaml:"worker"`
}

type Server struct {
	Dsn           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
}

// configPaths lists the files to load, from the --config flag or
// PUMP2STATUS_CONFIG, then the colon separated PUMP2STATUS_CONFIGS.
func configPaths(v *viper.Viper) []string {
	paths := []string{}
	if path := v.GetString("config"); path != "" {
		paths = append(paths, path)
	}
	if additional := v.GetString("configs"); additional != "" {
		for _, path := range strings.Split(additional, ":") {
			if path != "" {
				paths = append(paths, path)
			}
		}
	}
	if len(paths) == 0 {
		paths = append(paths, defaultConfigPath)
	}
	return paths
}

// loadConfig decodes every file in order; later files override earlier ones
// and extend their credential maps.
func loadConfig(paths []string) (Config, error) {
	var config Config
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}
	return config, nil
}

// applyOverrides copies the environment and flag settings over the file values.
func applyOverrides(v *viper.Viper, config *Config) {
	if dsn := v.GetString("dsn"); dsn != "" {
		config.Server.Dsn = dsn
	}
	if addr := v.GetString("redis_addr"); addr != "" {
		config.Server.RedisAddr = addr
	}
	if port := v.GetString("port"); port != "" {
		config.Server.Port = port
	}
	if level := v.GetString("log_level"); level != "" {
		config.Server.LogLevel = level
	}
	if format := v.GetString("log_format"); format != "" {
		config.Server.LogFormat = format
	}
	if config.Server.Port == "" {
		config.Server.Port = "8000"
	}
	config.Site.Hostname = strings.ToLower(config.Site.Hostname)
	config.StatusNet.Credentials = lowerKeys(config.StatusNet.Credentials)
	config.Pump.Hosts = lowerKeys(config.Pump.Hosts)
	config.Worker = config.Worker.WithDefaults()
}

func lowerKeys(m map[string]types.ClientCredential) map[string]types.ClientCredential {
	lowered := make(map[string]types.ClientCredential, len(m))
	for hostname, cred := range m {
		lowered[strings.ToLower(hostname)] = cred
	}
	return lowered
}

func (c Config) validate() error {
	if c.Site.Hostname == "" {
		return &types.ValidationError{Field: "site.hostname", Reason: "missing"}
	}
	if c.Server.Dsn == "" {
		return &types.ValidationError{Field: "server.dsn", Reason: "missing"}
	}
	if len(c.Pump.Hosts) == 0 {
		return &types.ValidationError{Field: "pump.hosts", Reason: "at least one pump.io host is required"}
	}
	return nil
}
