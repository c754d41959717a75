package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// AgentConfig holds configuration for the device-side agent.
type AgentConfig struct {
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	ListenAddr        string        `env:"AGENT_LISTEN_ADDR" envDefault:"127.0.0.1:8600"`
	MetricsAddr       string        `env:"AGENT_METRICS_ADDR" envDefault:":9600"`
	RemoteBaseURL     string        `env:"REMOTE_BASE_URL,required"`
	DeviceKey         string        `env:"DEVICE_KEY,required"`
	CaregiverID       string        `env:"CAREGIVER_ID,required"`
	OutboxDir         string        `env:"OUTBOX_DIR" envDefault:"/var/lib/pildhora/outbox"`
	OutboxSegmentSize int64         `env:"OUTBOX_SEGMENT_SIZE_BYTES" envDefault:"1048576"`   // 1MB
	OutboxMaxDiskSize int64         `env:"OUTBOX_MAX_DISK_SIZE_BYTES" envDefault:"67108864"` // 64MB
	SyncInterval      time.Duration `env:"SYNC_INTERVAL" envDefault:"5m"`
	DeliveryRate      float64       `env:"DELIVERY_RATE_PER_SEC" envDefault:"5"`
	RemoteTimeout     time.Duration `env:"REMOTE_TIMEOUT" envDefault:"10s"`
}

// ServerConfig holds configuration for the remote store service.
type ServerConfig struct {
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	ListenAddr        string        `env:"SERVER_LISTEN_ADDR" envDefault:":8080"`
	MetricsAddr       string        `env:"SERVER_METRICS_ADDR" envDefault:":9090"`
	PostgresURL       string        `env:"POSTGRES_URL,required"`
	RedisAddr         string        `env:"REDIS_ADDR,required"`
	MaxEventSize      int64         `env:"MAX_EVENT_SIZE_BYTES" envDefault:"262144"` // 256KB
	DeviceKeyCacheTTL time.Duration `env:"DEVICE_KEY_CACHE_TTL" envDefault:"5m"`
	EventRateLimit    int           `env:"EVENT_RATE_LIMIT" envDefault:"100"`
	EventRateWindow   time.Duration `env:"EVENT_RATE_WINDOW" envDefault:"1h"`
}

// LoadAgent reads agent configuration from environment variables.
func LoadAgent() (*AgentConfig, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &AgentConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer reads server configuration from environment variables.
func LoadServer() (*ServerConfig, error) {
	_ = godotenv.Load()

	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
