// Package config reads the tileview configuration file.
package config

import (
	"fmt"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/BurntSushi/toml"
)

// Config stores the tileview configuration.
type Config struct {
	Host           string         `toml:"host"`
	Port           int            `toml:"port"`
	Root           string         `toml:"root"`
	UserAgent      string         `toml:"userAgent"`
	Timeout        int            `toml:"timeout"` // seconds
	TileSize       int            `toml:"tileSize"`
	RemoteProfiles bool           `toml:"remoteProfiles"`
	Viewport       ViewportConfig `toml:"viewport"`
	Cache          CacheConfig    `toml:"cache"`
}

// ViewportConfig is the default viewport used when a request gives none.
type ViewportConfig struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// CacheConfig represents the configuration information regarding the cache.
type CacheConfig struct {
	HTTP          int64  `toml:"http"` // max-age in seconds
	Metadata      string `toml:"metadata"`
	Tiles         string `toml:"tiles"`
	MetadataBytes int64  `toml:"-"`
	TilesBytes    int64  `toml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Host:           "localhost",
		Port:           8080,
		Root:           ".",
		Timeout:        30,
		TileSize:       256,
		RemoteProfiles: true,
		Viewport:       ViewportConfig{Width: 1024, Height: 768},
		Cache: CacheConfig{
			HTTP:     3600,
			Metadata: "16M",
			Tiles:    "128M",
		},
	}
}

// Read decodes file on top of the defaults.
func Read(file string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(file, config); err != nil {
		return nil, err
	}
	if err := config.resolve(); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return config, nil
}

// resolve parses the human readable sizes.
func (c *Config) resolve() error {
	var err error
	if c.Cache.MetadataBytes, err = toBytes(c.Cache.Metadata); err != nil {
		return fmt.Errorf("cache.metadata: %w", err)
	}
	if c.Cache.TilesBytes, err = toBytes(c.Cache.Tiles); err != nil {
		return fmt.Errorf("cache.tiles: %w", err)
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport: %vx%v is empty", c.Viewport.Width, c.Viewport.Height)
	}
	return nil
}

// Resolved is like Default with its sizes parsed.
func Resolved() *Config {
	c := Default()
	_ = c.resolve()
	return c
}

func toBytes(value string) (int64, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	b, err := bytefmt.ToBytes(value)
	return int64(b), err
}

// TimeoutDuration is the per request timeout.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Listen is the address the HTTP API listens on.
func (c *Config) Listen() string {
	return fmt.Sprintf("%v:%v", c.Host, c.Port)
}
