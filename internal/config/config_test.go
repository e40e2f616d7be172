package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, hash, err := LoadWithHash(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hash)
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	path := writeConfig(t, `
limits:
  max_steps: 50
  max_duration: 250ms
server:
  allowed_origins: ["https://viz.example"]
audit:
  path: /tmp/pywiz-audit.jsonl
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.Limits.MaxSteps)
	assert.Equal(t, 250*time.Millisecond, cfg.Limits.MaxDuration)
	assert.Equal(t, int64(1<<20), cfg.Limits.MaxOutputBytes, "unset limits keep defaults")
	assert.Equal(t, 1000, cfg.Limits.MaxCallDepth)
	assert.Equal(t, int64(16<<20), cfg.Limits.MaxTraceBytes)
	assert.Equal(t, []string{"https://viz.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/pywiz-audit.jsonl", cfg.Audit.Path)
}

func TestLoadRateLimits(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  rate_limits:
    http: {max_requests: 30, window: 1m}
    "*": {max_requests: 100, window: 10s}
`))
	require.NoError(t, err)

	require.True(t, cfg.Server.RateLimits.HasLimits())
	perHTTP := cfg.Server.RateLimits.For("http")
	require.NotNil(t, perHTTP)
	assert.Equal(t, 30, perHTTP.MaxRequests)
	assert.Equal(t, time.Minute, perHTTP.Window)
	assert.Equal(t, 10*time.Second, cfg.Server.RateLimits.For("grpc").Window)
}

func TestLoadHashTracksContent(t *testing.T) {
	_, h1, err := LoadWithHash(writeConfig(t, "limits:\n  max_steps: 1\n"))
	require.NoError(t, err)
	_, h2, err := LoadWithHash(writeConfig(t, "limits:\n  max_steps: 2\n"))
	require.NoError(t, err)
	_, h3, err := LoadWithHash(writeConfig(t, "limits:\n  max_steps: 1\n"))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, h3)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "limits: [unclosed\n"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []string{
		"server:\n  grpc_port: 70000\n",
		"limits:\n  max_steps: -1\n",
		"limits:\n  max_trace_bytes: -1\n",
		"server:\n  max_body_bytes: -5\n",
		"server:\n  rate_limits:\n    http: {max_requests: -1, window: 1m}\n",
	}
	for _, body := range tests {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, body)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.True(t, DefaultConfig().Limits.HasLimits())
}
