package coordinator

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/mnohosten/transferd/pkg/twopc"
)

// Config holds the coordinator's runtime settings per §6.4. Options and
// defaults mirror pkg/participant.Config's layering: built-in defaults,
// then environment variables, then explicit flags.
type Config struct {
	Host              string
	Port              int
	ParticipantURL    string
	TokenSecret       string
	TransactionLogDir string
	PrepareTimeout    time.Duration
	CommitTimeout     time.Duration
	TransactionTimeout time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxRequestSize    int64
	EnableCORS        bool
	AllowedOrigins    []string
	EnableLogging     bool
}

// DefaultConfig returns the coordinator's out-of-the-box settings.
func DefaultConfig() *Config {
	return &Config{
		Host:               "localhost",
		Port:               8080,
		ParticipantURL:     "http://localhost:8081",
		TokenSecret:        "",
		TransactionLogDir:  ".",
		PrepareTimeout:     5 * time.Second,
		CommitTimeout:      5 * time.Second,
		TransactionTimeout: 30 * time.Second,
		MaxRetries:         3,
		RetryDelay:         1 * time.Second,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		MaxRequestSize:     1 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		EnableLogging:      true,
	}
}

// LoadConfig builds a Config from defaults, then environment variables,
// then command-line flags parsed from args.
func LoadConfig(args []string) (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("participant_urls"); v != "" {
		cfg.ParticipantURL = v
	}
	if v := os.Getenv("token_secret"); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv("max_retries"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}

	fs := flag.NewFlagSet("coordinator", flag.ContinueOnError)
	host := fs.String("host", cfg.Host, "listen host")
	port := fs.Int("port", cfg.Port, "listen port")
	participantURL := fs.String("participant-urls", cfg.ParticipantURL, "base URL of the accounts participant")
	tokenSecret := fs.String("token-secret", cfg.TokenSecret, "shared secret for bearer tokens")
	logDir := fs.String("log-dir", cfg.TransactionLogDir, "directory for the transaction log file")
	prepareTimeout := fs.Duration("prepare-timeout", cfg.PrepareTimeout, "per-attempt prepare phase timeout")
	commitTimeout := fs.Duration("commit-timeout", cfg.CommitTimeout, "per-attempt commit phase timeout")
	txnTimeout := fs.Duration("transaction-timeout", cfg.TransactionTimeout, "age at which a pending transaction is swept for reconciliation")
	maxRetries := fs.Int("max-retries", cfg.MaxRetries, "maximum TransferWithRetry attempts")
	retryDelay := fs.Duration("retry-delay", cfg.RetryDelay, "delay between retry attempts")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Host = *host
	cfg.Port = *port
	cfg.ParticipantURL = *participantURL
	cfg.TokenSecret = *tokenSecret
	cfg.TransactionLogDir = *logDir
	cfg.PrepareTimeout = *prepareTimeout
	cfg.CommitTimeout = *commitTimeout
	cfg.TransactionTimeout = *txnTimeout
	cfg.MaxRetries = *maxRetries
	cfg.RetryDelay = *retryDelay
	return cfg, nil
}

// Timeouts extracts the twopc.Timeouts this config implies.
func (c *Config) Timeouts() twopc.Timeouts {
	return twopc.Timeouts{
		Prepare:    c.PrepareTimeout,
		Commit:     c.CommitTimeout,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
	}
}
