package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Session  SessionConfig
	Presence PresenceConfig
	LogLevel string
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	presence, err := loadPresenceConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Redis:    loadRedisConfig(),
		Session:  session,
		Presence: presence,
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// RedisConfig 描述会话存储后端。Addr 为空时使用内存存储。
type RedisConfig struct {
	Addr     string
	Password string
}

// Enabled 表示是否配置了 Redis 后端。
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
}

// SessionConfig 描述会话生命周期相关配置。
type SessionConfig struct {
	// HeartbeatInterval is the expected client heartbeat cadence; sessions
	// silent for more than twice this are closed by the reaper.
	HeartbeatInterval time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	interval, err := parseDurationSecondsEnv("HEARTBEAT_INTERVAL_SECONDS", 60*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}
	return SessionConfig{HeartbeatInterval: interval}, nil
}

// PresenceConfig 描述在线状态注册表相关配置。
type PresenceConfig struct {
	// PruneAfter is how long an offline entry lingers before garbage
	// collection.
	PruneAfter time.Duration
	// PruneInterval is the GC sweep cadence.
	PruneInterval time.Duration
}

func loadPresenceConfig() (PresenceConfig, error) {
	pruneAfter, err := parseDurationSecondsEnv("PRESENCE_PRUNE_AFTER_SECONDS", time.Hour)
	if err != nil {
		return PresenceConfig{}, err
	}
	pruneInterval, err := parseDurationSecondsEnv("PRESENCE_PRUNE_INTERVAL_SECONDS", 5*time.Minute)
	if err != nil {
		return PresenceConfig{}, err
	}
	return PresenceConfig{PruneAfter: pruneAfter, PruneInterval: pruneInterval}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationSecondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil || val < 1 {
		return 0, fmt.Errorf("invalid %s value %q", key, raw)
	}
	return time.Duration(val) * time.Second, nil
}
