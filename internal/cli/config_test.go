package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/docverify/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetEnvPrefix("DOCVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, registerDefaults(v, model.DefaultConfig()))
	return v
}

func TestDecodeConfig_Defaults(t *testing.T) {
	cfg, err := decodeConfig(newTestViper(t))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestDecodeConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DOCVERIFY_LLM_PROVIDER", "ollama")
	t.Setenv("DOCVERIFY_LLM_API_KEY", "sk-test")
	t.Setenv("DOCVERIFY_CONCURRENCY_WORKERS", "8")
	t.Setenv("DOCVERIFY_CACHE_MEMORY_TTL", "5m")
	t.Setenv("DOCVERIFY_PROCESSING_CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("DOCVERIFY_OCR_ENABLED", "false")

	cfg, err := decodeConfig(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 8, cfg.Concurrency.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Cache.MemoryTTL)
	assert.Equal(t, 0.55, cfg.Processing.ConfidenceThreshold)
	assert.False(t, cfg.OCR.Enabled)

	// untouched keys keep their defaults
	assert.Equal(t, model.DefaultConfig().Breaker, cfg.Breaker)
}

func TestDecodeConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: anthropic\noutput:\n  formats: [json, md]\n"), 0o644))

	v := newTestViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, []string{"json", "md"}, cfg.Output.Formats)
	assert.Equal(t, model.DefaultConfig().LLM.Model, cfg.LLM.Model)
}

func TestInitConfigFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".docverify")

	path, err := initConfigFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# docverify configuration file"))
	assert.Contains(t, string(data), "export OPENAI_API_KEY")

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, model.DefaultConfig(), &cfg)

	_, err = initConfigFile(dir)
	assert.ErrorContains(t, err, "already exists")
}

func TestWriteConfig_MasksAPIKey(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-abcdefghijklmnop"

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg))

	assert.Contains(t, buf.String(), "api_key: sk-a****mnop")
	assert.NotContains(t, buf.String(), "sk-abcdefghijklmnop")
	assert.Contains(t, buf.String(), "DOCVERIFY_")
	assert.Equal(t, "sk-abcdefghijklmnop", cfg.LLM.APIKey, "caller's config must not change")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "abcd****6789", maskSecret("abcdef0123456789"))
}
