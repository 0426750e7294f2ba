package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
)

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name: "url only",
			envVars: map[string]string{
				"ES_URL": "http://localhost:9200",
			},
			wantErr: false,
		},
		{
			name: "api key",
			envVars: map[string]string{
				"ES_URL":     "https://es.example.com:9243",
				"ES_API_KEY": "test-api-key", // pragma: allowlist secret
			},
			wantErr: false,
		},
		{
			name: "basic auth",
			envVars: map[string]string{
				"ES_URL":      "https://es.example.com:9243",
				"ES_USERNAME": "elastic",
				"ES_PASSWORD": "changeme", // pragma: allowlist secret
			},
			wantErr: false,
		},
		{
			name:    "missing url",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "not an http url",
			envVars: map[string]string{
				"ES_URL": "localhost:9200",
			},
			wantErr: true,
		},
		{
			name: "api key and basic auth together",
			envVars: map[string]string{
				"ES_URL":      "http://localhost:9200",
				"ES_API_KEY":  "test-api-key", // pragma: allowlist secret
				"ES_USERNAME": "elastic",
				"ES_PASSWORD": "changeme", // pragma: allowlist secret
			},
			wantErr: true,
		},
		{
			name: "username without password",
			envVars: map[string]string{
				"ES_URL":      "http://localhost:9200",
				"ES_USERNAME": "elastic",
			},
			wantErr: true,
		},
		{
			name: "password without username",
			envVars: map[string]string{
				"ES_URL":      "http://localhost:9200",
				"ES_PASSWORD": "changeme", // pragma: allowlist secret
			},
			wantErr: true,
		},
		{
			name: "missing ca cert file",
			envVars: map[string]string{
				"ES_URL":     "https://localhost:9200",
				"ES_CA_CERT": "/nonexistent/ca.pem",
			},
			wantErr: true,
		},
		{
			name: "bad transport",
			envVars: map[string]string{
				"ES_URL":        "http://localhost:9200",
				"MCP_TRANSPORT": "websocket",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				_ = os.Setenv(k, v)
			}

			cfg, err := Load("")
			require.NoError(t, err)

			err = cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.CodeConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	os.Clearenv()
	_ = os.Setenv("ES_URL", "http://localhost:9200")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxTokenCall, cfg.MaxTokenCall)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 30*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.False(t, cfg.SkipTLSVerify)
	assert.Equal(t, "none", cfg.AuthMode())
}

func TestEnvOverrides(t *testing.T) {
	os.Clearenv()
	_ = os.Setenv("ES_URL", "http://localhost:9200")
	_ = os.Setenv("MAX_TOKEN_CALL", "5000")
	_ = os.Setenv("ES_SSL_SKIP_VERIFY", "true")
	_ = os.Setenv("ES_SEARCH_TIMEOUT", "45s")
	_ = os.Setenv("ES_MAX_RETRIES", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.MaxTokenCall)
	assert.True(t, cfg.SkipTLSVerify)
	assert.Equal(t, 45*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 7, cfg.MaxRetries)
}

func TestLoadFromYAMLFile(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	content := `
es_url: http://yaml-host:9200
max_token_call: 12000
search_timeout: 15s
transport: http
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://yaml-host:9200", cfg.ESURL)
	assert.Equal(t, 12000, cfg.MaxTokenCall)
	assert.Equal(t, 15*time.Second, cfg.SearchTimeout)
	assert.Equal(t, TransportHTTP, cfg.Transport)
	// untouched keys keep defaults
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestLoadFromJSONCFile(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.jsonc")
	content := `{
  // local development cluster
  "es_url": "http://jsonc-host:9200",
  "ssl_skip_verify": true,
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://jsonc-host:9200", cfg.ESURL)
	assert.True(t, cfg.SkipTLSVerify)
}

func TestEnvBeatsFile(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"es_url":"http://file:9200"}`), 0o600))
	_ = os.Setenv("ES_URL", "http://env:9200")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:9200", cfg.ESURL)
}

func TestLoadFromFile_InvalidDuration(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: soon\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFromFile_PathTraversal(t *testing.T) {
	os.Clearenv()
	_, err := Load("../../etc/passwd")
	assert.Error(t, err)
}

func TestFlagsApply(t *testing.T) {
	os.Clearenv()
	_ = os.Setenv("ES_URL", "http://env:9200")
	_ = os.Setenv("MAX_TOKEN_CALL", "9000")

	var flags Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--transport", "http", "--es-url", "http://flag:9200"}))

	cfg, err := Load("")
	require.NoError(t, err)
	flags.Apply(cfg)

	assert.Equal(t, "http://flag:9200", cfg.ESURL)
	assert.Equal(t, TransportHTTP, cfg.Transport)
	// not set on the command line, env value survives
	assert.Equal(t, 9000, cfg.MaxTokenCall)
}

func TestRedact(t *testing.T) {
	cfg := &Config{
		APIKey:   "abcd1234efgh5678", // pragma: allowlist secret
		Username: "elastic",
		Password: "supersecret", // pragma: allowlist secret
	}

	redacted := cfg.Redact()

	assert.Equal(t, "abcd...5678", redacted.APIKey)
	assert.Equal(t, "***REDACTED***", redacted.Password)
	assert.Equal(t, "elastic", redacted.Username)
	// original untouched
	assert.Equal(t, "supersecret", cfg.Password)
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "", MaskAPIKey(""))
	assert.Equal(t, "***", MaskAPIKey("short"))
	assert.Equal(t, "abcd...wxyz", MaskAPIKey("abcdefghijklmnopqrstuvwxyz"))
}
