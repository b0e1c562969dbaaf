package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix for all settings.
const Prefix = "SSHMON"

type Settings struct {
	ListenAddr     string   `envconfig:"LISTEN_ADDR" default:":8080"`
	DataPath       string   `envconfig:"DATA_PATH" default:"/app/data"`
	DatabasePath   string   `envconfig:"DATABASE_PATH" default:"/app/data/ssh-monitor.db"`
	LogPath        string   `envconfig:"LOG_PATH" default:"/app/data/ssh-monitor.log"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:""`

	// Terminal session settings
	MaxSessions    int           `envconfig:"TERMINAL_MAX_SESSIONS" default:"10"`
	BufferSize     int           `envconfig:"TERMINAL_BUFFER_SIZE" default:"8192"`
	ExpiryInterval time.Duration `envconfig:"TERMINAL_EXPIRY_INTERVAL" default:"60s"`
	HealthInterval time.Duration `envconfig:"TERMINAL_HEALTH_INTERVAL" default:"15s"`

	// SSH settings
	ConnectionTimeout time.Duration `envconfig:"SSH_CONNECTION_TIMEOUT" default:"10s"`
	SessionTimeout    time.Duration `envconfig:"SSH_SESSION_TIMEOUT" default:"30m"`
	CommandTimeout    time.Duration `envconfig:"SSH_COMMAND_TIMEOUT" default:"10s"`
	KeepaliveInterval time.Duration `envconfig:"SSH_KEEPALIVE_INTERVAL" default:"30s"`
	KnownHostsPath    string        `envconfig:"SSH_KNOWN_HOSTS" default:""`

	// WebSocket inbound throttling
	MessageRate  float64 `envconfig:"WS_MESSAGE_RATE" default:"200"`
	MessageBurst int     `envconfig:"WS_MESSAGE_BURST" default:"400"`

	AuditRetentionDays int `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`
}

var Cfg Settings

// Load reads an optional .env file from the working directory, then fills
// Cfg from the environment. Variables already set take precedence over the
// file.
func Load() {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}
	if err := envconfig.Process(Prefix, &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
