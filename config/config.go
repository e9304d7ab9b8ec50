// Package config loads the layered configuration for a mix node process:
// a base file, a crypto.json key-material file, an environment-specific
// overlay, and finally process environment variables, in ascending
// priority order. It never touches secret key material beyond reading it
// off disk once at startup; nothing here persists it back.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/biomix/mixnode/curve"
)

const (
	defaultHost        = "0.0.0.0"
	defaultPort        = 8080
	defaultLogLevel    = "info"
	defaultLogOutput   = "stdout"
	defaultPeerTimeout = 10 * time.Second
	defaultEnvironment = "local"
)

// Config is the fully resolved configuration for one mix node process.
type Config struct {
	Environment string `mapstructure:"environment"`

	Application ApplicationConfig `mapstructure:"application"`
	Log         LogConfig         `mapstructure:"log"`
	Crypto      CryptoConfig      `mapstructure:"crypto"`
}

// ApplicationConfig holds the HTTP-facing parameters.
type ApplicationConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	AuthToken   string        `mapstructure:"authToken"`
	PeerTimeout time.Duration `mapstructure:"peerTimeout"`
}

// LogConfig holds logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// CryptoConfig is the shape of crypto.json: this node's identity, its
// share of the threshold key, and the peers it talks to.
type CryptoConfig struct {
	Whoami       uint32            `mapstructure:"whoami"`
	KeySet       curve.PublicKeySet `mapstructure:"key_set"`
	SecretKey    string            `mapstructure:"secret_key"`
	Participants []PeerConfig      `mapstructure:"participants"`
}

// PeerConfig is one entry of the participants list in crypto.json.
type PeerConfig struct {
	URL   string `mapstructure:"url"`
	Index uint32 `mapstructure:"index"`
}

// Load reads a base config file, crypto.json (merged under the "crypto"
// key), an environment overlay file, and APP_-prefixed environment
// variables, in that priority order (later sources win), and unmarshals the
// result into a Config. Command-line flags that are explicitly set take
// precedence over all of these; unset flags only supply defaults.
func Load(baseConfigPath, cryptoConfigPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", defaultEnvironment)
	v.SetDefault("application.host", defaultHost)
	v.SetDefault("application.port", defaultPort)
	v.SetDefault("application.peerTimeout", defaultPeerTimeout)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)

	flag.StringP("application.host", "h", defaultHost, "API host")
	flag.IntP("application.port", "p", defaultPort, "API port")
	flag.String("application.authToken", "", "bearer token guarding every endpoint (empty disables auth)")
	flag.Duration("application.peerTimeout", defaultPeerTimeout, "HTTP timeout applied to outbound peer requests")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.String("environment", defaultEnvironment, "deployment environment (local, production)")

	flag.CommandLine.SortFlags = false
	flag.Parse()

	if baseConfigPath != "" {
		v.SetConfigFile(baseConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading base config %s: %w", baseConfigPath, err)
		}
	}

	if cryptoConfigPath != "" {
		cv := viper.New()
		cv.SetConfigFile(cryptoConfigPath)
		if err := cv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading crypto config %s: %w", cryptoConfigPath, err)
		}
		if err := v.MergeConfigMap(map[string]any{"crypto": cv.AllSettings()}); err != nil {
			return nil, fmt.Errorf("config: merging crypto config: %w", err)
		}
	}

	environment := v.GetString("environment")
	overlayPath := fmt.Sprintf("%s.json", environment)
	if _, err := os.Stat(overlayPath); err == nil {
		v.SetConfigFile(overlayPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: merging %s overlay: %w", environment, err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("config: binding flags: %w", err)
	}

	if token := os.Getenv("AUTH_TOKEN"); token != "" && v.GetString("application.authToken") == "" {
		v.Set("application.authToken", token)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks the invariants Load cannot express through defaults
// alone: a valid key set and a sane threshold/participant count.
func validate(cfg *Config) error {
	if !cfg.Crypto.KeySet.Valid() {
		return fmt.Errorf("config: invalid key set: n=%d t=%d verificationKeys=%d",
			cfg.Crypto.KeySet.N, cfg.Crypto.KeySet.T, len(cfg.Crypto.KeySet.VerificationKeys))
	}
	if cfg.Crypto.SecretKey == "" {
		return fmt.Errorf("config: missing secret_key")
	}
	if len(cfg.Crypto.Participants) == 0 {
		return fmt.Errorf("config: missing participants")
	}
	found := false
	for _, p := range cfg.Crypto.Participants {
		if p.Index == cfg.Crypto.Whoami {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("config: whoami index %d not present in participants list", cfg.Crypto.Whoami)
	}
	return nil
}
