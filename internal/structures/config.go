package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	Driver       string        `yaml:"driver" validate:"required|in:file,postgres"`
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	PostgresDSN  string        `yaml:"postgresDSN"`
	MaxRetries   int           `yaml:"maxRetries"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type EngineConfig struct {
	Shards          int           `yaml:"shards" validate:"required|min:1"`
	DuplicateWindow time.Duration `yaml:"duplicateWindow" validate:"required|min:1"`
	DuplicateCount  int           `yaml:"duplicateCount" validate:"required|min:2"`
	FingerprintTTL  time.Duration `yaml:"fingerprintTTL" validate:"required|min:1"`
	SweepInterval   time.Duration `yaml:"sweepInterval" validate:"required|min:1"`
	MaxTrackedUsers int           `yaml:"maxTrackedUsers"`
}

type DiscordConfig struct {
	Token string `yaml:"token"`
}

type TrackingDefaults struct {
	CallTracking  bool `yaml:"callTracking"`
	SpamDetection bool `yaml:"spamDetection"`
	EmojiTracking bool `yaml:"emojiTracking"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
	TTL     int  `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	Engine      EngineConfig     `yaml:"engine"`
	Discord     DiscordConfig    `yaml:"discord"`
	Tracking    TrackingDefaults `yaml:"tracking"`
	WebServer   Server           `yaml:"webServer"`
	Persistence Persistence      `yaml:"persistence"`
	Logger      LoggerConfig     `yaml:"logger"`
	Cache       CacheConfig      `yaml:"cache"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}
