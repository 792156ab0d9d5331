// Package config loads the runtime's §6 configuration keys the way
// thrasher-corp/gocryptotrader loads its own: a typed Config struct
// populated from a file plus environment overrides via viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Mode is a runtime's role, as selected at start (§6).
type Mode string

const (
	ModeMaster Mode = "master"
	ModeWorker Mode = "worker"
	ModeLocal  Mode = "local"
	ModeTest   Mode = "test"
)

// DeployTarget names the function the embedding application should call at
// boot to obtain the auto-deployed workflow. Go has no runtime
// apply(module, function, args); cmd/fluxion resolves Key against a
// registry the embedding application populates.
type DeployTarget struct {
	Key  string
	Args any
}

// Config is the recognised configuration surface of §6.
type Config struct {
	Mode      Mode     `mapstructure:"mode"`
	BindAddr  string   `mapstructure:"bind_addr"`
	Workers   []string `mapstructure:"workers"`
	Master    string   `mapstructure:"master"`
	Tags      []string `mapstructure:"tags"`
	Telemetry bool     `mapstructure:"telemetry"`

	JoinSecret string `mapstructure:"join_secret"`
	DataDir    string `mapstructure:"data_dir"`

	Deploy *DeployTarget `mapstructure:"-"`
}

// Load reads configuration from path (if non-empty), environment variables
// prefixed FLUXION_, and defaults. Environment variables override the file,
// and the file overrides the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("fluxion")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("bind_addr", "127.0.0.1:7331")
	v.SetDefault("telemetry", false)
	v.SetDefault("data_dir", "./data")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeMaster, ModeWorker, ModeLocal, ModeTest:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Mode == ModeWorker && c.Master == "" {
		return fmt.Errorf("config: mode worker requires master")
	}
	return nil
}
