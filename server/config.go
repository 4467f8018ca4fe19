package server

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/janelia-flyem/n5viewer/container"
	"github.com/janelia-flyem/n5viewer/display"
	"github.com/janelia-flyem/n5viewer/metadata"
	"github.com/janelia-flyem/n5viewer/n5v"
)

const (
	// DefaultWebAddress is the default address of the viewer's HTTP API.
	DefaultWebAddress = "localhost:8000"

	// DefaultTitle is shown when no viewer title is configured.
	DefaultTitle = "N5 Viewer"

	// DefaultBlockCacheMB is the default size of the shared block cache.
	DefaultBlockCacheMB = 256
)

// gitVersion is set by a file generated with cmd/gen-version.
var gitVersion = "unknown"

// Version returns the source code version of the viewer.
func Version() string {
	return gitVersion
}

// Config is the parsed TOML configuration.
type Config struct {
	Server  serverConfig
	Viewer  viewerConfig
	Cache   cacheConfig
	Logging n5v.LogConfig
	Parsers parsersConfig
}

type serverConfig struct {
	HTTPAddress string   `toml:"http_address"`
	CorsOrigins []string `toml:"cors_origins"`
}

type viewerConfig struct {
	Workers int
	Title   string
}

type cacheConfig struct {
	BlockCacheMB          int `toml:"block_cache_mb"`
	AttributeCacheEntries int `toml:"attribute_cache_entries"`
}

type parsersConfig struct {
	Generic metadata.GenericSingleScaleParser
}

// DefaultConfig returns the configuration used when no TOML file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: serverConfig{HTTPAddress: DefaultWebAddress},
		Viewer: viewerConfig{Title: DefaultTitle},
		Cache: cacheConfig{
			BlockCacheMB:          DefaultBlockCacheMB,
			AttributeCacheEntries: container.DefaultAttributeCacheEntries,
		},
		Parsers: parsersConfig{Generic: metadata.DefaultGenericParser},
	}
}

// LoadConfig loads the configuration from a TOML file.  Keys missing from the
// file keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := DefaultConfig()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	c.fillDefaults()
	n5v.Infof("Loaded configuration from %s: %+v\n", filename, *c)
	return c, nil
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = n5v.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("Error converting logfile setting to absolute path")
		}
	}
	return nil
}

// fillDefaults replaces zero values that were explicitly set in the file.
func (c *Config) fillDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = DefaultWebAddress
	}
	if c.Viewer.Title == "" {
		c.Viewer.Title = DefaultTitle
	}
	if c.Cache.BlockCacheMB <= 0 {
		c.Cache.BlockCacheMB = DefaultBlockCacheMB
	}
	if c.Cache.AttributeCacheEntries <= 0 {
		c.Cache.AttributeCacheEntries = container.DefaultAttributeCacheEntries
	}
}

// SessionOptions returns the options for the viewer session.
func (c *Config) SessionOptions() display.Options {
	return display.Options{
		NumWorkers:      c.Viewer.Workers,
		BlockCacheBytes: c.Cache.BlockCacheMB * n5v.Mega,
	}
}

// DatasetParsers returns the dataset parsers with the configured generic parser
// last.
func (c *Config) DatasetParsers() []metadata.Parser {
	return metadata.DatasetParsers(c.Parsers.Generic)
}
