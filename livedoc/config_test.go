package livedoc

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestParseConfig(t *testing.T) {
	configBytes := []byte(`
token = "abc"
base_url = "https://example.com/v1"
poll_interval = "10s"
save_dir = "/tmp/livedoc"
`)
	config, err := ParseConfig(configBytes, "test.hcl")
	assert.Equal(t, nil, err)
	assert.Equal(t, "abc", config.Token)
	assert.Equal(t, "https://example.com/v1", config.ApiUrl())
	assert.Equal(t, "/tmp/livedoc", config.SaveDir)
	assert.Equal(t, false, config.Credential().IsMissing())

	settings, err := config.LiveSyncSettings()
	assert.Equal(t, nil, err)
	assert.Equal(t, 10*time.Second, settings.PollInterval)
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("LIVEDOC_TEST_TOKEN", "from-env")

	configBytes := []byte(`token = env.LIVEDOC_TEST_TOKEN`)
	config, err := ParseConfig(configBytes, "test.hcl")
	assert.Equal(t, nil, err)
	assert.Equal(t, "from-env", config.Token)
}

func TestParseConfigDefaults(t *testing.T) {
	config, err := ParseConfig([]byte(``), "test.hcl")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, config.Credential().IsMissing())
	assert.Equal(t, "https://api.pixelsync.dev/v1", config.ApiUrl())

	settings, err := config.LiveSyncSettings()
	assert.Equal(t, nil, err)
	assert.Equal(t, DefaultLiveSyncSettings().PollInterval, settings.PollInterval)
}

func TestParseConfigInvalid(t *testing.T) {
	_, err := ParseConfig([]byte(`token = `), "test.hcl")
	assert.NotEqual(t, nil, err)

	config, err := ParseConfig([]byte(`poll_interval = "soon"`), "test.hcl")
	assert.Equal(t, nil, err)
	_, err = config.LiveSyncSettings()
	assert.NotEqual(t, nil, err)

	config, err = ParseConfig([]byte(`poll_interval = "-5s"`), "test.hcl")
	assert.Equal(t, nil, err)
	_, err = config.LiveSyncSettings()
	assert.NotEqual(t, nil, err)
}
