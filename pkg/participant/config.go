package participant

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the participant service's runtime settings. Options and
// defaults follow §6.4; environment variables override the built-in
// defaults and are in turn overridden by explicit flags.
type Config struct {
	Host           string
	Port           int
	TokenSecret    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	EnableCORS     bool
	AllowedOrigins []string
	EnableLogging  bool
}

// DefaultConfig returns the participant's out-of-the-box settings.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           8081,
		TokenSecret:    "",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 1 << 20,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  true,
	}
}

// LoadConfig builds a Config from defaults, then environment variables,
// then command-line flags parsed from args (each layer overrides the one
// before it).
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
	if v := os.Getenv("token_secret"); v != "" {
		cfg.TokenSecret = v
	}

	fs := flag.NewFlagSet("participant", flag.ContinueOnError)
	host := fs.String("host", cfg.Host, "listen host")
	port := fs.Int("port", cfg.Port, "listen port")
	tokenSecret := fs.String("token-secret", cfg.TokenSecret, "shared secret for bearer token verification")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Host = *host
	cfg.Port = *port
	cfg.TokenSecret = *tokenSecret
	return cfg, nil
}
