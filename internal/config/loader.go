// Package config loads session configuration, including mock fixtures, from
// a YAML file. Every field is optional; explicit session.Config values and
// environment variables take precedence in the caller.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dlwiest/hass-go/internal/ha"
	"github.com/dlwiest/hass-go/internal/session"
)

// File is the on-disk configuration shape.
type File struct {
	URL                string `yaml:"url"`
	Token              string `yaml:"token"`
	AutoReconnect      *bool  `yaml:"auto_reconnect"`
	MinBackoff         string `yaml:"min_backoff"`
	MaxBackoff         string `yaml:"max_backoff"`
	CallTimeout        string `yaml:"call_timeout"`
	MaxRetries         int    `yaml:"max_retries"`
	RetainOnDisconnect bool   `yaml:"retain_on_disconnect"`
	Mock               Mock   `yaml:"mock"`
}

// Mock configures fixture-backed mock mode.
type Mock struct {
	Enabled bool      `yaml:"enabled"`
	User    *User     `yaml:"user"`
	States  []Fixture `yaml:"states"`
}

// User is a fixture user profile.
type User struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	IsOwner bool   `yaml:"is_owner"`
	IsAdmin bool   `yaml:"is_admin"`
}

// Fixture is one seeded entity state.
type Fixture struct {
	EntityID   string         `yaml:"entity_id"`
	State      string         `yaml:"state"`
	Attributes map[string]any `yaml:"attributes"`
}

// Load reads and parses the configuration file at path.
func Load(path string, logger *zap.Logger) (*File, error) {
	logger.Debug("Loading config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	logger.Info("Config loaded",
		zap.String("path", path),
		zap.Bool("mock", f.Mock.Enabled),
		zap.Int("fixtures", len(f.Mock.States)))
	return &f, nil
}

// SessionConfig converts the file into a session.Config.
func (f *File) SessionConfig(logger *zap.Logger) (session.Config, error) {
	cfg := session.Config{
		URL:                f.URL,
		Token:              f.Token,
		MaxRetries:         f.MaxRetries,
		RetainOnDisconnect: f.RetainOnDisconnect,
		Logger:             logger,
	}

	if f.AutoReconnect != nil && !*f.AutoReconnect {
		cfg.DisableAutoReconnect = true
	}

	var err error
	if cfg.MinBackoff, err = parseDuration(f.MinBackoff, "min_backoff"); err != nil {
		return session.Config{}, err
	}
	if cfg.MaxBackoff, err = parseDuration(f.MaxBackoff, "max_backoff"); err != nil {
		return session.Config{}, err
	}
	if cfg.CallTimeout, err = parseDuration(f.CallTimeout, "call_timeout"); err != nil {
		return session.Config{}, err
	}

	if f.Mock.Enabled {
		cfg.MockMode = true
		now := time.Now()
		for _, fx := range f.Mock.States {
			cfg.MockStates = append(cfg.MockStates, ha.State{
				EntityID:    fx.EntityID,
				State:       fx.State,
				Attributes:  fx.Attributes,
				LastChanged: now,
				LastUpdated: now,
			})
		}
		if f.Mock.User != nil {
			cfg.MockUser = &ha.User{
				ID:      f.Mock.User.ID,
				Name:    f.Mock.User.Name,
				IsOwner: f.Mock.User.IsOwner,
				IsAdmin: f.Mock.User.IsAdmin,
			}
		}
	}

	return cfg, nil
}

func parseDuration(s, field string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}
