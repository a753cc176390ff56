// Package config loads pakstream settings with viper.
//
// Settings come from (highest precedence first) PAKSTREAM_* environment
// variables, a TOML/YAML/JSON file, and built-in defaults. Keys are
// case-insensitive; the streamer's keys live under the AssetStreamer
// section, for example:
//
//	[AssetStreamer]
//	ServerHost = "10.0.0.5:8081"
//	bSigned = true
//
// The same key is set from the environment as
// PAKSTREAM_ASSETSTREAMER_SERVERHOST.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "PAKSTREAM"

// Configuration keys.
const (
	KeyServerHost      = "AssetStreamer.ServerHost"
	KeySigned          = "AssetStreamer.bSigned"
	KeyContentDir      = "AssetStreamer.ContentDir"
	KeyMountPoint      = "AssetStreamer.MountPoint"
	KeyPakExtension    = "AssetStreamer.PakExtension"
	KeyAssetExtensions = "AssetStreamer.AssetExtensions"
	KeyMapExtensions   = "AssetStreamer.MapExtensions"
	KeyTrustedKeys     = "AssetStreamer.TrustedKeys"
	KeyLoaderWorkers   = "AssetStreamer.LoaderWorkers"
	KeyLogLevel        = "Logging.Level"
	KeyLogFormat       = "Logging.Format"
	KeyServerAddr      = "Server.Addr"
	KeyServerRoot      = "Server.Root"
	KeyMetricsEnabled  = "Metrics.Enabled"
)

// Default values.
const (
	DefaultServerHost    = "127.0.0.1:8081"
	DefaultContentDir    = "."
	DefaultMountPoint    = "Engine/Content"
	DefaultPakExtension  = ".pak"
	DefaultLoaderWorkers = 4
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Source is a read-only view of configuration. *viper.Viper satisfies it.
type Source interface {
	IsSet(key string) bool
	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetStringSlice(key string) []string
}

// Config is the complete pakstream configuration.
type Config struct {
	Streamer Streamer `mapstructure:"assetstreamer"`
	Logging  Logging  `mapstructure:"logging"`
	Server   Server   `mapstructure:"server"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

// Streamer holds the AssetStreamer section.
type Streamer struct {
	ServerHost      string   `mapstructure:"serverhost"`
	Signed          bool     `mapstructure:"bsigned"`
	ContentDir      string   `mapstructure:"contentdir"`
	MountPoint      string   `mapstructure:"mountpoint"`
	PakExtension    string   `mapstructure:"pakextension"`
	AssetExtensions []string `mapstructure:"assetextensions"`
	MapExtensions   []string `mapstructure:"mapextensions"`
	TrustedKeys     []string `mapstructure:"trustedkeys"`
	LoaderWorkers   int      `mapstructure:"loaderworkers"`
}

// Logging holds the Logging section.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds the Server section used by the file host.
type Server struct {
	Addr string `mapstructure:"addr"`
	Root string `mapstructure:"root"`
}

// Metrics holds the Metrics section.
type Metrics struct {
	Enabled bool `mapstructure:"enabled"`
}

func defaults() map[string]any {
	return map[string]any{
		KeyServerHost:      DefaultServerHost,
		KeySigned:          false,
		KeyContentDir:      DefaultContentDir,
		KeyMountPoint:      DefaultMountPoint,
		KeyPakExtension:    DefaultPakExtension,
		KeyAssetExtensions: []string{".uasset"},
		KeyMapExtensions:   []string{".umap"},
		KeyTrustedKeys:     []string{},
		KeyLoaderWorkers:   DefaultLoaderWorkers,
		KeyLogLevel:        DefaultLogLevel,
		KeyLogFormat:       DefaultLogFormat,
		KeyServerAddr:      DefaultServerHost,
		KeyServerRoot:      DefaultContentDir,
		KeyMetricsEnabled:  false,
	}
}

// DefaultStreamer returns the AssetStreamer defaults.
func DefaultStreamer() Streamer {
	return ReadStreamer(nil)
}

// New returns a viper instance with defaults and environment overrides,
// reading path if it is non-empty. With an empty path, a "pakstream" file
// in the working directory is read if present.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setupViper(v, path)
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	return v, nil
}

// setupViper configures defaults, environment variables and the config file search.
func setupViper(v *viper.Viper, path string) {
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	// PAKSTREAM_ASSETSTREAMER_SERVERHOST=10.0.0.5:8081
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("pakstream")
}

// readConfigFile reads the configuration file. A missing file is not an
// error when no explicit path was given.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load reads, decodes and validates the full configuration.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Decode decodes and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReadStreamer reads the AssetStreamer section from src, substituting
// defaults for absent keys. A nil src yields the defaults.
func ReadStreamer(src Source) Streamer {
	d := defaults()
	str := func(key string) string {
		if src != nil && src.IsSet(key) {
			return src.GetString(key)
		}
		return d[key].(string) //nolint:forcetypeassert // defaults table is fixed
	}
	list := func(key string) []string {
		if src != nil && src.IsSet(key) {
			return src.GetStringSlice(key)
		}
		return slices.Clone(d[key].([]string)) //nolint:forcetypeassert // defaults table is fixed
	}

	s := Streamer{
		ServerHost:      str(KeyServerHost),
		ContentDir:      str(KeyContentDir),
		MountPoint:      str(KeyMountPoint),
		PakExtension:    str(KeyPakExtension),
		AssetExtensions: list(KeyAssetExtensions),
		MapExtensions:   list(KeyMapExtensions),
		TrustedKeys:     list(KeyTrustedKeys),
		LoaderWorkers:   DefaultLoaderWorkers,
	}
	if src != nil && src.IsSet(KeySigned) {
		s.Signed = src.GetBool(KeySigned)
	}
	if src != nil && src.IsSet(KeyLoaderWorkers) {
		s.LoaderWorkers = src.GetInt(KeyLoaderWorkers)
	}
	return s
}

// Validate checks values that have a fixed set of meanings.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Logging.Format)) {
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if err := c.Streamer.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the AssetStreamer section.
func (s *Streamer) Validate() error {
	var errs []error
	if s.LoaderWorkers <= 0 {
		errs = append(errs, fmt.Errorf("assetstreamer.loaderworkers: must be positive, got %d", s.LoaderWorkers))
	}
	if !strings.HasPrefix(s.PakExtension, ".") {
		errs = append(errs, fmt.Errorf("assetstreamer.pakextension: %q must start with a dot", s.PakExtension))
	}
	for _, ext := range slices.Concat(s.AssetExtensions, s.MapExtensions) {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("assetstreamer: extension %q must start with a dot", ext))
		}
	}
	return errors.Join(errs...)
}
