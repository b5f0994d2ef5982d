package config

import (
	"time"
)

type ServerConfig struct {
	Port             int           `config:"port" default:"8080" description:"HTTP port for the server to listen on"`
	BaseURL          string        `config:"base-url" description:"Public URL used in watch pages (default http://localhost:<port>/)"`
	GracefulShutdown time.Duration `config:"graceful-shutdown" default:"10s" description:"Grace period for in-flight streams on shutdown"`
	ReadTimeout      time.Duration `config:"read-timeout" default:"1h" description:"HTTP server read timeout"`
	WriteTimeout     time.Duration `config:"write-timeout" default:"1h" description:"HTTP server write timeout"`
}

type LoggingConfig struct {
	Level      string `config:"level" default:"info" description:"Logging level"`
	File       string `config:"file" description:"JSON log file path, rotated by size"`
	MaxSize    int    `config:"max-size" default:"50" validate:"min=1" description:"Log file size in megabytes before rotation"`
	MaxBackups int    `config:"max-backups" default:"5" validate:"min=0" description:"Rotated log files to keep"`
	MaxAge     int    `config:"max-age" default:"30" validate:"min=0" description:"Days to keep rotated log files"`
}

type CacheConfig struct {
	MaxSize   int           `config:"max-size" default:"10485760" description:"In-memory cache size in bytes"`
	RedisAddr string        `config:"redis-addr" description:"Redis address, the in-memory cache is used when empty"`
	RedisPass string        `config:"redis-pass" description:"Redis password"`
	TTL       time.Duration `config:"ttl" default:"30m" description:"Lifetime of cached media info"`
}

type StreamConfig struct {
	ChunkTimeout      time.Duration `config:"chunk-timeout" default:"20s" description:"Timeout of a single upload.getFile call"`
	MinChunkExponent  int           `config:"min-chunk-exponent" default:"2" validate:"min=0,max=10" description:"Smallest chunk is 1KiB shifted by this exponent"`
	MaxChunkExponent  int           `config:"max-chunk-exponent" default:"10" validate:"min=0,max=10,gtefield=MinChunkExponent" description:"Largest chunk is 1KiB shifted by this exponent"`
	FallbackChunkSize int64         `config:"fallback-chunk-size" default:"262144" validate:"min=1024,max=1048576,pow2" description:"Chunk size for empty or single byte ranges, a power of two"`
	FloodRetries      int           `config:"flood-retries" default:"5" validate:"min=0" description:"FLOOD_WAIT retries per chunk"`
	MaxFloodWait      time.Duration `config:"max-flood-wait" default:"1m" description:"Longest FLOOD_WAIT honoured before failing the stream"`
	ImportRetries     int           `config:"import-retries" default:"3" validate:"min=1" description:"Authorization import attempts for foreign datacenters"`
}

type TGConfig struct {
	AppId            int           `config:"app-id" validate:"required" description:"Telegram app ID"`
	AppHash          string        `config:"app-hash" validate:"required" description:"Telegram app hash"`
	BotToken         string        `config:"bot-token" validate:"required" description:"Bot token"`
	BinChannel       int64         `config:"bin-channel" validate:"required" description:"Channel holding the streamed media"`
	SessionFile      string        `config:"session-file" description:"Bot session file path"`
	Proxy            string        `config:"proxy" description:"HTTP OR SOCKS5 proxy URL"`
	TestMode         bool          `config:"test-mode" description:"Connect to the Telegram test datacenters"`
	Ntp              bool          `config:"ntp" description:"Use NTP server time"`
	RateLimit        bool          `config:"rate-limit" default:"true" description:"Enable rate limiting for telegram client"`
	RateBurst        int           `config:"rate-burst" default:"5" description:"Limiting burst for telegram client"`
	Rate             int           `config:"rate" default:"100" description:"Limiting rate for telegram client"`
	ReconnectTimeout time.Duration `config:"reconnect-timeout" default:"5m" description:"Reconnection timeout"`
	PoolSize         int64         `config:"pool-size" default:"8" description:"Connections per datacenter session"`
	EnableLogging    bool          `config:"enable-logging" description:"Enable telegram client logging"`
	DeviceModel      string        `config:"device-model" default:"fastfinder" description:"Device model"`
	SystemVersion    string        `config:"system-version" default:"linux" description:"System version"`
	AppVersion       string        `config:"app-version" default:"1.0.0" description:"App version"`
	LangCode         string        `config:"lang-code" default:"en" description:"Language code"`
	SystemLangCode   string        `config:"system-lang-code" default:"en-US" description:"System language code"`
	LangPack         string        `config:"lang-pack" description:"Language pack"`
	Stream           StreamConfig  `config:"stream"`
}

type ServerCmdConfig struct {
	Server ServerConfig  `config:"server"`
	Log    LoggingConfig `config:"log"`
	Cache  CacheConfig   `config:"cache"`
	TG     TGConfig      `config:"tg"`
}
