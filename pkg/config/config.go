// Package config loads the YAML configuration shared by the preprocess and
// server commands.
package config

import (
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/azybler/road_router/pkg/ch"
	"github.com/azybler/road_router/pkg/profile"
	"github.com/azybler/road_router/pkg/routing"
)

// Config is the root document.
type Config struct {
	Contraction ch.Config         `yaml:"contraction"`
	Profiles    []profile.Profile `yaml:"profiles"`
	Storage     Storage           `yaml:"storage"`
	Server      Server            `yaml:"server"`
	Snap        Snap              `yaml:"snap"`
	Log         Log               `yaml:"log"`
}

// Storage locates the database.
type Storage struct {
	Path string `yaml:"path"`
	// GraphDir holds exported graph files served memory-mapped. Empty
	// serves graphs from the database.
	GraphDir string `yaml:"graph_dir"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CORSOrigin     string        `yaml:"cors_origin"`
	MaxTargets     int           `yaml:"max_targets"`
	DefaultProfile string        `yaml:"default_profile"`
}

// Snap configures router-point resolution.
type Snap struct {
	MaxDistance float64 `yaml:"max_distance"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns a usable configuration with the built-in profiles.
func Default() Config {
	return Config{
		Contraction: ch.DefaultConfig(),
		Profiles:    profile.Defaults(),
		Storage:     Storage{Path: "road_router.db"},
		Server: Server{
			Addr:           ":8080",
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			RequestTimeout: 5 * time.Second,
			MaxConcurrent:  runtime.NumCPU() * 2,
			MaxTargets:     100,
		},
		Snap: Snap{MaxDistance: routing.DefaultMaxSnapDistance},
		Log:  Log{Level: "info"},
	}
}

// Load reads path over the defaults. Sections missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid %s", path)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Profiles) == 0 {
		return errors.New("no profiles configured")
	}
	seen := make(map[string]bool, len(c.Profiles))
	for _, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return errors.Errorf("duplicate profile %q", p.Name)
		}
		seen[p.Name] = true
	}
	if c.Server.DefaultProfile != "" && !seen[c.Server.DefaultProfile] {
		return errors.Errorf("default profile %q is not configured", c.Server.DefaultProfile)
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if c.Server.MaxConcurrent <= 0 {
		return errors.New("server.max_concurrent must be positive")
	}
	if c.Contraction.Workers <= 0 {
		return errors.New("contraction.workers must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// Profile returns the named profile.
func (c Config) Profile(name string) (profile.Profile, bool) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return profile.Profile{}, false
}

// Logger returns a logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(c.Log.Level); err == nil {
		l.SetLevel(lvl)
	}
	return l
}
