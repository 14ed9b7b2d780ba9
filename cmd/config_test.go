package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e14n/pump2status/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_MergesFiles(t *testing.T) {
	base := writeFile(t, "base.yaml", `
server:
  dsn: host=db user=pump2status
  redisAddr: redis:6379
site:
  hostname: Bridge.Example
  name: pump2status
statusnet:
  credentials:
    Identi.ca:
      clientID: ica
      clientSecret: ica-secret
pump:
  hosts:
    pump.example:
      clientID: pid
      clientSecret: psecret
worker:
  updateInterval: 6h
  concurrency: 10
`)
	secrets := writeFile(t, "secrets.yaml", `
twitter:
  clientID: tid
  clientSecret: tsecret
statusnet:
  credentials:
    status.example:
      clientID: sid
      clientSecret: ssecret
`)

	config, err := loadConfig([]string{base, secrets})
	require.NoError(t, err)
	applyOverrides(viper.New(), &config)
	require.NoError(t, config.validate())

	assert.Equal(t, "bridge.example", config.Site.Hostname)
	assert.Equal(t, "8000", config.Server.Port)
	assert.Equal(t, types.ClientCredential{ClientID: "tid", ClientSecret: "tsecret"}, config.Twitter)
	assert.Equal(t, "ica", config.StatusNet.Credentials["identi.ca"].ClientID)
	assert.Equal(t, "sid", config.StatusNet.Credentials["status.example"].ClientID)
	assert.Equal(t, 6*time.Hour, config.Worker.UpdateInterval)
	assert.Equal(t, 15*time.Minute, config.Worker.ForwardInterval)
	assert.Equal(t, 10, config.Worker.Concurrency)
	assert.Equal(t, 16, config.Worker.EdgeConcurrency)
}

func TestApplyOverrides_Environment(t *testing.T) {
	t.Setenv("PUMP2STATUS_PORT", "9000")
	t.Setenv("PUMP2STATUS_DSN", "host=other")
	t.Setenv("PUMP2STATUS_LOG_LEVEL", "debug")

	v := viper.New()
	v.SetEnvPrefix("PUMP2STATUS")
	v.AutomaticEnv()

	config := Config{Server: Server{Dsn: "host=db", Port: "8000"}}
	applyOverrides(v, &config)
	assert.Equal(t, "9000", config.Server.Port)
	assert.Equal(t, "host=other", config.Server.Dsn)
	assert.Equal(t, "debug", config.Server.LogLevel)
}

func TestConfigPaths(t *testing.T) {
	v := viper.New()
	assert.Equal(t, []string{defaultConfigPath}, configPaths(v))

	v.Set("config", "/a.yaml")
	v.Set("configs", "/b.yaml::/c.yaml")
	assert.Equal(t, []string{"/a.yaml", "/b.yaml", "/c.yaml"}, configPaths(v))
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "server: [")
	_, err = loadConfig([]string{bad})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	var verr *types.ValidationError
	assert.ErrorAs(t, Config{}.validate(), &verr)
	assert.Equal(t, "site.hostname", verr.Field)

	config := Config{Site: types.SiteConfig{Hostname: "bridge.example"}, Server: Server{Dsn: "host=db"}}
	assert.ErrorAs(t, config.validate(), &verr)
	assert.Equal(t, "pump.hosts", verr.Field)
}
