package config

import (
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/viper"
)

const (
	MirrorNone  = "none"
	MirrorMySQL = "mysql"
	MirrorRedis = "redis"
)

// Config holds the server settings.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Mirror MirrorConfig
}

type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// MirrorConfig selects where ledger changes are replicated.
type MirrorConfig struct {
	Backend     string
	MySQLDSN    string
	RedisAddr   string
	WorkerCount int
	QueueSize   int
	Timeout     time.Duration
}

// New returns a viper instance with defaults applied, reading the optional
// .env.<env> file from dir. Environment variables take precedence.
func New(env, dir string) *viper.Viper {
	if env == "" {
		env = "dev"
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf(".env.%s", env))
	v.SetConfigType("env")
	v.AddConfigPath(dir)

	// the file is optional
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":50051")
	v.SetDefault("SHUTDOWN_TIMEOUT", 5*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("MIRROR_BACKEND", MirrorNone)
	v.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/velocity?parseTime=true")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("WORKER_COUNT", 4)
	v.SetDefault("QUEUE_SIZE", 1024)
	v.SetDefault("MIRROR_TIMEOUT", 5*time.Second)

	return v
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			HTTPAddr:        v.GetString("HTTP_ADDR"),
			GRPCAddr:        v.GetString("GRPC_ADDR"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Mirror: MirrorConfig{
			Backend:     v.GetString("MIRROR_BACKEND"),
			MySQLDSN:    v.GetString("MYSQL_DSN"),
			RedisAddr:   v.GetString("REDIS_ADDR"),
			WorkerCount: v.GetInt("WORKER_COUNT"),
			QueueSize:   v.GetInt("QUEUE_SIZE"),
			Timeout:     v.GetDuration("MIRROR_TIMEOUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	errs := oops.In("config")

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errs.With("LOG_LEVEL", c.Log.Level).Errorf("unknown log level %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return errs.With("LOG_FORMAT", c.Log.Format).Errorf("unknown log format %q", c.Log.Format)
	}

	if c.Server.HTTPAddr == "" || c.Server.GRPCAddr == "" {
		return errs.Errorf("HTTP_ADDR and GRPC_ADDR are required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errs.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}

	switch c.Mirror.Backend {
	case MirrorNone:
		return nil
	case MirrorMySQL:
		if c.Mirror.MySQLDSN == "" {
			return errs.Errorf("MYSQL_DSN is required for the mysql mirror")
		}
	case MirrorRedis:
		if c.Mirror.RedisAddr == "" {
			return errs.Errorf("REDIS_ADDR is required for the redis mirror")
		}
	default:
		return errs.With("MIRROR_BACKEND", c.Mirror.Backend).Errorf("unknown mirror backend %q", c.Mirror.Backend)
	}

	if c.Mirror.WorkerCount <= 0 {
		return errs.Errorf("WORKER_COUNT must be positive")
	}
	if c.Mirror.QueueSize <= 0 {
		return errs.Errorf("QUEUE_SIZE must be positive")
	}
	if c.Mirror.Timeout <= 0 {
		return errs.Errorf("MIRROR_TIMEOUT must be positive")
	}

	return nil
}

// Enabled reports whether a mirror backend is configured.
func (m MirrorConfig) Enabled() bool {
	return m.Backend != MirrorNone
}
