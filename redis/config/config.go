// Package config parses and validates the Redis settings shared by the
// notification queue and the distributed lock.
package config

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection and worker parameters
type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	Workers         int
	RetryDelay      time.Duration
	MaxRetries      int
	UseTLS          bool
	QueuePriorities map[string]int
}

const (
	// NotificationQueue is where notification tasks are enqueued
	NotificationQueue = "notifications"

	defaultHost       = "localhost"
	defaultPort       = 6379
	defaultDB         = 0
	defaultWorkers    = 10
	defaultRetryDelay = time.Second
	defaultMaxRetries = 2
	minPort           = 1
	maxPort           = 65535
	minDB             = 0
	maxDB             = 15
	minWorkers        = 1
	maxWorkers        = 100
	minRetryDelay     = 10 * time.Millisecond
	maxRetryDelay     = time.Hour
	minMaxRetries     = 0
	maxMaxRetries     = 10
)

// DefaultQueuePriorities defines the priority of each task queue
var DefaultQueuePriorities = map[string]int{
	NotificationQueue: 6,
	"default":         1,
}

func defaults() *RedisConfig {
	cfg := &RedisConfig{
		Host:            defaultHost,
		Port:            defaultPort,
		DB:              defaultDB,
		Workers:         defaultWorkers,
		RetryDelay:      defaultRetryDelay,
		MaxRetries:      defaultMaxRetries,
		QueuePriorities: make(map[string]int, len(DefaultQueuePriorities)),
	}

	for queue, priority := range DefaultQueuePriorities {
		cfg.QueuePriorities[queue] = priority
	}

	return cfg
}

// NewRedisConfig creates a configuration from environment variables.
// REDIS_URL takes precedence over the individual REDIS_* settings.
func NewRedisConfig() (*RedisConfig, error) {
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg, err := ParseURL(redisURL)
		if err != nil {
			return nil, err
		}

		return cfg, applyWorkerEnv(cfg)
	}

	cfg := defaults()
	cfg.Host = getEnvOrDefault("REDIS_HOST", defaultHost)
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	cfg.UseTLS = getEnvBool("REDIS_USE_TLS")

	port, err := validatePort(getEnvOrDefault("REDIS_PORT", strconv.Itoa(defaultPort)))
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	cfg.Port = port

	db, err := validateDB(getEnvOrDefault("REDIS_DB", strconv.Itoa(defaultDB)))
	if err != nil {
		return nil, fmt.Errorf("invalid DB: %w", err)
	}

	cfg.DB = db

	return cfg, applyWorkerEnv(cfg)
}

// ParseURL builds a configuration from a redis:// or rediss:// URL
func ParseURL(raw string) (*RedisConfig, error) {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	cfg := defaults()

	switch parsedURL.Scheme {
	case "redis":
	case "rediss":
		cfg.UseTLS = true
	default:
		return nil, fmt.Errorf("invalid Redis URL scheme %q", parsedURL.Scheme)
	}

	if host := parsedURL.Hostname(); host != "" {
		cfg.Host = host
	}

	if port := parsedURL.Port(); port != "" {
		p, err := validatePort(port)
		if err != nil {
			return nil, fmt.Errorf("invalid port in Redis URL: %w", err)
		}

		cfg.Port = p
	}

	if password, ok := parsedURL.User.Password(); ok {
		cfg.Password = password
	}

	if path := strings.TrimPrefix(parsedURL.Path, "/"); path != "" {
		db, err := validateDB(path)
		if err != nil {
			return nil, fmt.Errorf("invalid database number in Redis URL: %w", err)
		}

		cfg.DB = db
	}

	return cfg, nil
}

func applyWorkerEnv(cfg *RedisConfig) error {
	workers, err := validateWorkers(getEnvOrDefault("REDIS_WORKERS", strconv.Itoa(cfg.Workers)))
	if err != nil {
		return fmt.Errorf("invalid workers: %w", err)
	}

	cfg.Workers = workers

	delay, err := validateRetryDelay(getEnvOrDefault("REDIS_RETRY_DELAY", cfg.RetryDelay.String()))
	if err != nil {
		return fmt.Errorf("invalid retry delay: %w", err)
	}

	cfg.RetryDelay = delay

	retries, err := validateMaxRetries(getEnvOrDefault("REDIS_MAX_RETRIES", strconv.Itoa(cfg.MaxRetries)))
	if err != nil {
		return fmt.Errorf("invalid max retries: %w", err)
	}

	cfg.MaxRetries = retries

	return nil
}

// GetRedisAddr returns the formatted Redis address
func (c *RedisConfig) GetRedisAddr() string {
	host := c.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}

	return fmt.Sprintf("%s:%d", host, c.Port)
}

func (c *RedisConfig) tlsConfig() *tls.Config {
	if !c.UseTLS {
		return nil
	}

	return &tls.Config{MinVersion: tls.VersionTLS12, ServerName: c.Host}
}

// AsynqOpt returns the connection options for asynq clients and servers
func (c *RedisConfig) AsynqOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:         c.GetRedisAddr(),
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		TLSConfig:    c.tlsConfig(),
	}
}

// NewUniversalClient opens a go-redis client for the same server
func (c *RedisConfig) NewUniversalClient() redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:     []string{c.GetRedisAddr()},
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.tlsConfig(),
	})
}

func validatePort(port string) (int, error) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return 0, fmt.Errorf("port must be a number: %w", err)
	}

	if p < minPort || p > maxPort {
		return 0, fmt.Errorf("port must be between %d and %d", minPort, maxPort)
	}

	return p, nil
}

func validateDB(db string) (int, error) {
	d, err := strconv.Atoi(db)
	if err != nil {
		return 0, fmt.Errorf("DB must be a number: %w", err)
	}

	if d < minDB || d > maxDB {
		return 0, fmt.Errorf("DB must be between %d and %d", minDB, maxDB)
	}

	return d, nil
}

func validateWorkers(workers string) (int, error) {
	w, err := strconv.Atoi(workers)
	if err != nil {
		return 0, fmt.Errorf("workers must be a number: %w", err)
	}

	if w < minWorkers || w > maxWorkers {
		return 0, fmt.Errorf("workers must be between %d and %d", minWorkers, maxWorkers)
	}

	return w, nil
}

func validateRetryDelay(delay string) (time.Duration, error) {
	d, err := time.ParseDuration(delay)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format: %w", err)
	}

	if d < minRetryDelay || d > maxRetryDelay {
		return 0, fmt.Errorf("retry delay must be between %v and %v", minRetryDelay, maxRetryDelay)
	}

	return d, nil
}

func validateMaxRetries(retries string) (int, error) {
	r, err := strconv.Atoi(retries)
	if err != nil {
		return 0, fmt.Errorf("max retries must be a number: %w", err)
	}

	if r < minMaxRetries || r > maxMaxRetries {
		return 0, fmt.Errorf("max retries must be between %d and %d", minMaxRetries, maxMaxRetries)
	}

	return r, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func getEnvBool(key string) bool {
	value := strings.ToLower(os.Getenv(key))
	return value == "true" || value == "1" || value == "yes"
}
