// Package config loads world-mood settings from YAML with WORLDMOOD_* environment overrides.
package config

import (
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Globe      GlobeConfig      `yaml:"globe"`
	Simulation SimulationConfig `yaml:"simulation"`
	History    HistoryConfig    `yaml:"history"`
	Location   LocationConfig   `yaml:"location"`
	Store      StoreConfig      `yaml:"store"`
	Hub        HubConfig        `yaml:"hub"`
	Log        LogConfig        `yaml:"log"`
	Audio      AudioConfig      `yaml:"audio"`
	Feed       FeedConfig       `yaml:"feed"`
}

// GlobeConfig holds rendering and marker settings.
type GlobeConfig struct {
	FPS          int     `yaml:"fps"           env:"WORLDMOOD_GLOBE_FPS"           env-default:"30"`
	AutoRotate   float64 `yaml:"auto_rotate"   env:"WORLDMOOD_GLOBE_AUTO_ROTATE"   env-default:"0.0008"`
	MaxTilt      float64 `yaml:"max_tilt"      env:"WORLDMOOD_GLOBE_MAX_TILT"      env-default:"1.0471975512"`
	Stars        int     `yaml:"stars"         env:"WORLDMOOD_GLOBE_STARS"         env-default:"120"`
	MaxParticles int     `yaml:"max_particles" env:"WORLDMOOD_GLOBE_MAX_PARTICLES" env-default:"100"`
}

// SimulationConfig holds the demo event generator settings.
type SimulationConfig struct {
	Enabled      bool          `yaml:"enabled"       env:"WORLDMOOD_SIM_ENABLED"       env-default:"true"`
	Interval     time.Duration `yaml:"interval"      env:"WORLDMOOD_SIM_INTERVAL"      env-default:"3500ms"`
	InitialCount int           `yaml:"initial_count" env:"WORLDMOOD_SIM_INITIAL_COUNT" env-default:"8"`
	StartDelay   time.Duration `yaml:"start_delay"   env:"WORLDMOOD_SIM_START_DELAY"   env-default:"1500ms"`
	StartGap     time.Duration `yaml:"start_gap"     env:"WORLDMOOD_SIM_START_GAP"     env-default:"1s"`
	Seed         int64         `yaml:"seed"          env:"WORLDMOOD_SIM_SEED"`
}

// HistoryConfig holds the live subscription lookback.
type HistoryConfig struct {
	Lookback time.Duration `yaml:"lookback" env:"WORLDMOOD_HISTORY_LOOKBACK" env-default:"1h"`
}

// LocationConfig selects how the user's position is resolved.
// Provider is one of: none, static, http.
type LocationConfig struct {
	Provider string        `yaml:"provider" env:"WORLDMOOD_LOCATION_PROVIDER" env-default:"none"`
	URL      string        `yaml:"url"      env:"WORLDMOOD_LOCATION_URL"      env-default:"http://ip-api.com/json"`
	Timeout  time.Duration `yaml:"timeout"  env:"WORLDMOOD_LOCATION_TIMEOUT"  env-default:"5s"`
	MaxAge   time.Duration `yaml:"max_age"  env:"WORLDMOOD_LOCATION_MAX_AGE"  env-default:"5m"`
	Name     string        `yaml:"name"     env:"WORLDMOOD_LOCATION_NAME"`
	Lat      float64       `yaml:"lat"      env:"WORLDMOOD_LOCATION_LAT"`
	Lng      float64       `yaml:"lng"      env:"WORLDMOOD_LOCATION_LNG"`
}

// StoreConfig selects the mood store backend.
// Driver is one of: none, memory, sqlite, kafka, remote.
type StoreConfig struct {
	Driver       string        `yaml:"driver"        env:"WORLDMOOD_STORE_DRIVER"        env-default:"none"`
	Timeout      time.Duration `yaml:"timeout"       env:"WORLDMOOD_STORE_TIMEOUT"       env-default:"5s"`
	SQLitePath   string        `yaml:"sqlite_path"   env:"WORLDMOOD_STORE_SQLITE_PATH"   env-default:"world-mood.db"`
	PollInterval time.Duration `yaml:"poll_interval" env:"WORLDMOOD_STORE_POLL_INTERVAL" env-default:"500ms"`
	KafkaBrokers string        `yaml:"kafka_brokers" env:"WORLDMOOD_STORE_KAFKA_BROKERS" env-default:"localhost:9092"`
	MoodTopic    string        `yaml:"mood_topic"    env:"WORLDMOOD_STORE_MOOD_TOPIC"    env-default:"world-mood.moods"`
	MessageTopic string        `yaml:"message_topic" env:"WORLDMOOD_STORE_MESSAGE_TOPIC" env-default:"world-mood.messages"`
	RemoteURL    string        `yaml:"remote_url"    env:"WORLDMOOD_STORE_REMOTE_URL"    env-default:"http://localhost:8080"`
}

// Brokers splits the comma-separated broker list, dropping blanks.
func (s StoreConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(s.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// HubConfig holds HTTP hub settings.
type HubConfig struct {
	Addr      string `yaml:"addr"       env:"WORLDMOOD_HUB_ADDR"       env-default:":8080"`
	AccessLog bool   `yaml:"access_log" env:"WORLDMOOD_HUB_ACCESS_LOG" env-default:"true"`
}

// LogConfig holds logging settings. An empty File discards logs in the terminal UI.
type LogConfig struct {
	Level      string `yaml:"level"       env:"WORLDMOOD_LOG_LEVEL"       env-default:"info"`
	Format     string `yaml:"format"      env:"WORLDMOOD_LOG_FORMAT"      env-default:"text"`
	File       string `yaml:"file"        env:"WORLDMOOD_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"WORLDMOOD_LOG_MAX_SIZE_MB" env-default:"10"`
	MaxBackups int    `yaml:"max_backups" env:"WORLDMOOD_LOG_MAX_BACKUPS" env-default:"3"`
}

// AudioConfig holds chime settings.
type AudioConfig struct {
	Enabled bool    `yaml:"enabled" env:"WORLDMOOD_AUDIO_ENABLED" env-default:"true"`
	Volume  float64 `yaml:"volume"  env:"WORLDMOOD_AUDIO_VOLUME"  env-default:"0.5"`
}

// FeedConfig holds the sizes of the on-screen lists.
type FeedConfig struct {
	Size            int           `yaml:"size"             env:"WORLDMOOD_FEED_SIZE"             env-default:"25"`
	Messages        int           `yaml:"messages"         env:"WORLDMOOD_FEED_MESSAGES"         env-default:"15"`
	MessageLookback time.Duration `yaml:"message_lookback" env:"WORLDMOOD_FEED_MESSAGE_LOOKBACK" env-default:"10m"`
}
