package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`

	Workers         uint32        `yaml:"workers"`
	MaxStreams      uint32        `yaml:"maxStreams"`
	RateLimit       float64       `yaml:"rateLimit"`
	RateBurst       int           `yaml:"rateBurst"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	DialTimeout     time.Duration `yaml:"dialTimeout"`
	CallTimeout     time.Duration `yaml:"callTimeout"`

	DSN          string        `yaml:"dsn"`
	KafkaBrokers []string      `yaml:"kafkaBrokers"`
	KafkaGroupID string        `yaml:"kafkaGroupId"`
	KafkaTopic   string        `yaml:"kafkaTopic"`
	PollInterval time.Duration `yaml:"pollInterval"`

	EtcdEndpoints []string `yaml:"etcdEndpoints"`
	MetricsAddr   string   `yaml:"metricsAddr"`

	AuditBatchSize   int           `yaml:"auditBatchSize"`
	AuditTimeout     time.Duration `yaml:"auditTimeout"`
	AuditChannelSize int           `yaml:"auditChannelSize"`
	AuditWorkers     int           `yaml:"auditWorkers"`
	LogLevel         string        `yaml:"logLevel"`
}

func Default() *Config {
	return &Config{
		Host:             "localhost",
		Port:             "50051",
		Workers:          10,
		MaxStreams:       100,
		RateBurst:        50,
		ShutdownTimeout:  10 * time.Second,
		DialTimeout:      5 * time.Second,
		CallTimeout:      6 * time.Second,
		KafkaGroupID:     "audit-group",
		KafkaTopic:       "orders-audit",
		PollInterval:     2 * time.Second,
		AuditBatchSize:   20,
		AuditTimeout:     time.Second,
		AuditChannelSize: 1000,
		AuditWorkers:     2,
		LogLevel:         "info",
	}
}

// LoadConfig returns the defaults overridden by the environment.
func LoadConfig() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// LoadFromPath layers a YAML file between the defaults and the
// environment. An empty path behaves like LoadConfig.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Host = getEnv("ORDERS_HOST", c.Host)
	c.Port = getEnv("ORDERS_PORT", c.Port)
	c.Workers = uint32(getInt("ORDERS_WORKERS", int(c.Workers)))
	c.MaxStreams = uint32(getInt("ORDERS_MAX_STREAMS", int(c.MaxStreams)))
	c.RateLimit = getFloat("ORDERS_RATE_LIMIT", c.RateLimit)
	c.RateBurst = getInt("ORDERS_RATE_BURST", c.RateBurst)
	c.ShutdownTimeout = getDuration("ORDERS_SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.DialTimeout = getDuration("ORDERS_DIAL_TIMEOUT", c.DialTimeout)
	c.CallTimeout = getDuration("ORDERS_CALL_TIMEOUT", c.CallTimeout)
	c.DSN = getEnv("APP_DSN", c.DSN)
	c.KafkaBrokers = getList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaGroupID = getEnv("KAFKA_GROUP_ID", c.KafkaGroupID)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
	c.PollInterval = getDuration("OUTBOX_POLL_INTERVAL", c.PollInterval)
	c.EtcdEndpoints = getList("ETCD_ENDPOINTS", c.EtcdEndpoints)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.AuditBatchSize = getInt("AUDIT_BATCH_SIZE", c.AuditBatchSize)
	c.AuditTimeout = getDuration("AUDIT_TIMEOUT", c.AuditTimeout)
	c.AuditChannelSize = getInt("AUDIT_CHANNEL_SIZE", c.AuditChannelSize)
	c.AuditWorkers = getInt("AUDIT_WORKERS", c.AuditWorkers)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return f
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultVal
}

func getList(key string, defaultVal []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		return splitList(value)
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Addr is the host:port endpoint both the server binds and the client dials.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
