// Package config loads validator configuration from environment variables,
// with an optional YAML overlay for values better kept out of the process
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the validator service.
type Config struct {
	// Network configuration
	ArweaveGatewayURL string
	BundlerURL        string
	ContractURL       string

	// Server configuration
	ListenAddr  string
	MetricsAddr string

	// Database configuration
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Key management
	KeyPath string // path to the PEM-encoded RSA private key

	// Service identity
	ValidatorID string
	LogLevel    string

	// Cron intervals
	ContractSyncInterval    time.Duration
	NetworkSyncInterval     time.Duration
	TransactionCheckInterval time.Duration
	PruneInterval           time.Duration

	// Peer crawl tuning
	PeerCrawlMaxDepth int
	PeerCrawlMaxCount int
	PeerCrawlConcurrency int

	// Chunk download tuning
	ChunkDownloadConcurrency int
	ChunkDownloadRetries     int

	// Firestore status mirror (optional, off by default)
	FirestoreEnabled        bool
	FirebaseProjectID       string
	FirebaseCredentialsFile string
}

// Load reads configuration from environment variables.
//
// This service only reads the specific variable names below; unrelated
// *_URL variants some deployments set are ignored.
func Load() (*Config, error) {
	cfg := &Config{
		ArweaveGatewayURL: getEnv("ARWEAVE_GATEWAY_URL", "https://arweave.net"),
		BundlerURL:        getEnv("BUNDLER_URL", ""),
		ContractURL:       getEnv("CONTRACT_URL", ""),

		ListenAddr:  getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		KeyPath: getEnv("VALIDATOR_KEY_PATH", "./data/validator.pem"),

		ValidatorID: getEnv("VALIDATOR_ID", "validator-default"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		ContractSyncInterval:     getEnvDuration("CONTRACT_SYNC_INTERVAL", 30*time.Second),
		NetworkSyncInterval:      getEnvDuration("NETWORK_SYNC_INTERVAL", 30*time.Second),
		TransactionCheckInterval: getEnvDuration("TRANSACTION_CHECK_INTERVAL", 30*time.Second),
		PruneInterval:            getEnvDuration("PRUNE_INTERVAL", 180*time.Second),

		PeerCrawlMaxDepth:    getEnvInt("PEER_CRAWL_MAX_DEPTH", 2),
		PeerCrawlMaxCount:    getEnvInt("PEER_CRAWL_MAX_COUNT", 50),
		PeerCrawlConcurrency: getEnvInt("PEER_CRAWL_CONCURRENCY", 10),

		ChunkDownloadConcurrency: getEnvInt("CHUNK_DOWNLOAD_CONCURRENCY", 10),
		ChunkDownloadRetries:     getEnvInt("CHUNK_DOWNLOAD_RETRIES", 3),

		FirestoreEnabled:        getEnvBool("FIRESTORE_ENABLED", false),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	var problems []string

	if c.BundlerURL == "" {
		problems = append(problems, "BUNDLER_URL is required but not set")
	}
	if c.ContractURL == "" {
		problems = append(problems, "CONTRACT_URL is required but not set")
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required but not set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
