// Package config loads the YAML file cmd/remotemapctl reads to build a
// remotemap.Config. The core client package never parses configuration
// itself; this is an optional convenience layer for the demo binary.
package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/hybscloud/remotemap"
)

// File is the on-disk shape of a remotemapctl config file.
type File struct {
	RemoteAddress      string        `yaml:"remote_address"`
	Timeout            time.Duration `yaml:"timeout"`
	Name               string        `yaml:"name"`
	PutReturnsNull     bool          `yaml:"put_returns_null"`
	RemoveReturnsNull  bool          `yaml:"remove_returns_null"`
	EntrySizeHint      int           `yaml:"entry_size_hint"`
	ReconnectRateLimit float64       `yaml:"reconnect_rate_limit"`
	ReconnectBurst     int           `yaml:"reconnect_burst"`
}

// Load reads and parses path into a File.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if f.RemoteAddress == "" {
		return nil, fmt.Errorf("config: %s: remote_address is required", path)
	}
	return &f, nil
}

// ToClientConfig converts a parsed File into a remotemap.Config, leaving
// Logger and Metrics for the caller to attach.
func (f *File) ToClientConfig() remotemap.Config {
	return remotemap.Config{
		RemoteAddress:      f.RemoteAddress,
		Timeout:            f.Timeout,
		Name:               f.Name,
		PutReturnsNull:     f.PutReturnsNull,
		RemoveReturnsNull:  f.RemoveReturnsNull,
		EntrySizeHint:      f.EntrySizeHint,
		ReconnectRateLimit: rate.Limit(f.ReconnectRateLimit),
		ReconnectBurst:     f.ReconnectBurst,
	}
}
