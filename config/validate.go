package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	Drivers   = []string{"none", "memory", "sqlite", "kafka", "remote"}
	Providers = []string{"none", "static", "http"}
	levels    = []string{"debug", "info", "warn", "error"}
	formats   = []string{"text", "json"}
)

// Validate performs business-rule validation on the loaded configuration.
// It normalizes enum-like fields to lower case. Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Globe.validate(); err != nil {
		return fmt.Errorf("globe: %w", err)
	}
	if err := c.Simulation.validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if c.History.Lookback <= 0 {
		return fmt.Errorf("history: lookback must be > 0 (got %v)", c.History.Lookback)
	}
	if err := c.Location.validate(); err != nil {
		return fmt.Errorf("location: %w", err)
	}
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("audio: volume must be within [0,1] (got %v)", c.Audio.Volume)
	}
	if c.Feed.Size <= 0 || c.Feed.Messages <= 0 {
		return fmt.Errorf("feed: sizes must be > 0 (got %d, %d)", c.Feed.Size, c.Feed.Messages)
	}
	return nil
}

func (g *GlobeConfig) validate() error {
	if g.FPS <= 0 || g.FPS > 120 {
		return fmt.Errorf("fps must be within (0,120] (got %d)", g.FPS)
	}
	if g.MaxParticles <= 0 {
		return fmt.Errorf("max_particles must be > 0 (got %d)", g.MaxParticles)
	}
	if g.MaxTilt < 0 {
		return fmt.Errorf("max_tilt must be >= 0 (got %v)", g.MaxTilt)
	}
	if g.Stars < 0 {
		return fmt.Errorf("stars must be >= 0 (got %d)", g.Stars)
	}
	return nil
}

func (s *SimulationConfig) validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("interval must be > 0 (got %v)", s.Interval)
	}
	if s.InitialCount <= 0 {
		return fmt.Errorf("initial_count must be > 0 (got %d)", s.InitialCount)
	}
	if s.StartDelay < 0 || s.StartGap < 0 {
		return errors.New("start_delay and start_gap must be >= 0")
	}
	return nil
}

func (l *LocationConfig) validate() error {
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if !slices.Contains(Providers, l.Provider) {
		return fmt.Errorf("provider must be one of %v (got %q)", Providers, l.Provider)
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %v)", l.Timeout)
	}
	switch l.Provider {
	case "http":
		if l.URL == "" {
			return errors.New("url is required for the http provider")
		}
	case "static":
		if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
			return fmt.Errorf("static position out of range (%v, %v)", l.Lat, l.Lng)
		}
	}
	return nil
}

func (s *StoreConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if !slices.Contains(Drivers, s.Driver) {
		return fmt.Errorf("driver must be one of %v (got %q)", Drivers, s.Driver)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %v)", s.Timeout)
	}
	switch s.Driver {
	case "sqlite":
		if s.SQLitePath == "" {
			return errors.New("sqlite_path is required for the sqlite driver")
		}
		if s.PollInterval <= 0 {
			return fmt.Errorf("poll_interval must be > 0 (got %v)", s.PollInterval)
		}
	case "kafka":
		if len(s.Brokers()) == 0 {
			return errors.New("kafka_brokers is required for the kafka driver")
		}
	case "remote":
		if s.RemoteURL == "" {
			return errors.New("remote_url is required for the remote driver")
		}
	}
	return nil
}

func (l *LogConfig) validate() error {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if !slices.Contains(levels, l.Level) {
		return fmt.Errorf("level must be one of %v (got %q)", levels, l.Level)
	}
	if !slices.Contains(formats, l.Format) {
		return fmt.Errorf("format must be one of %v (got %q)", formats, l.Format)
	}
	if l.MaxSizeMB <= 0 || l.MaxBackups < 0 {
		return fmt.Errorf("invalid rotation (max_size_mb %d, max_backups %d)", l.MaxSizeMB, l.MaxBackups)
	}
	return nil
}
