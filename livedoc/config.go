package livedoc

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// on-disk client configuration, hcl. Every field is optional; zero values
// fall back to defaults. Expressions may reference `env.NAME` to pull
// process environment values, e.g. `token = env.LIVEDOC_TOKEN`.
type Config struct {
	Token        string `hcl:"token,optional"`
	BaseUrl      string `hcl:"base_url,optional"`
	PushUrl      string `hcl:"push_url,optional"`
	PollInterval string `hcl:"poll_interval,optional"`
	SaveDir      string `hcl:"save_dir,optional"`
}

func LoadConfig(configPath string) (*Config, error) {
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return ParseConfig(configBytes, configPath)
}

func ParseConfig(configBytes []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(configBytes, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	config := &Config{}
	diags = gohcl.DecodeBody(file.Body, configEvalContext(), config)
	if diags.HasErrors() {
		return nil, diags
	}
	return config, nil
}

func configEvalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, entry := range os.Environ() {
		for i := 0; i < len(entry); i += 1 {
			if entry[i] == '=' {
				env[entry[:i]] = cty.StringVal(entry[i+1:])
				break
			}
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// Credential returns the configured access credential, which may be missing.
func (self *Config) Credential() *Credential {
	return &Credential{
		Token: self.Token,
	}
}

func (self *Config) ApiUrl() string {
	if self.BaseUrl != "" {
		return self.BaseUrl
	}
	return "https://api.pixelsync.dev/v1"
}

// LiveSyncSettings maps the config onto sync settings, keeping defaults for
// unset fields.
func (self *Config) LiveSyncSettings() (*LiveSyncSettings, error) {
	settings := DefaultLiveSyncSettings()
	if self.PollInterval != "" {
		pollInterval, err := time.ParseDuration(self.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("parse poll_interval: %w", err)
		}
		if pollInterval <= 0 {
			return nil, fmt.Errorf("poll_interval must be positive")
		}
		settings.PollInterval = pollInterval
	}
	return settings, nil
}
