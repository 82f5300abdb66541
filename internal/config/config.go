package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLen = 32

type Config struct {
	Env              string
	Port             string
	DBPath           string
	SecretKey        []byte
	EphemeralSecret  bool
	TokenMaxAge      time.Duration
	BcryptCost       int
	SecureCookie     bool
	CORSOrigins      []string
	TrustedProxies   []netip.Prefix
	LogLevel         string
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// Load reads FINTRACK_* variables, after loading .env if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	env := getEnv("FINTRACK_ENV", "dev")
	p := &envParser{}
	cfg := &Config{
		Env:              env,
		Port:             getEnv("FINTRACK_PORT", "8000"),
		DBPath:           getEnv("FINTRACK_DB_PATH", "fintrack.db"),
		TokenMaxAge:      p.getDuration("FINTRACK_TOKEN_MAX_AGE", 24*time.Hour),
		BcryptCost:       p.getInt("FINTRACK_BCRYPT_COST", 0),
		SecureCookie:     p.getBool("FINTRACK_SECURE_COOKIE", env != "dev"),
		CORSOrigins:      splitCSV(getEnv("FINTRACK_CORS_ORIGINS", "http://localhost:4200")),
		TrustedProxies:   p.getPrefixes("FINTRACK_TRUSTED_PROXIES"),
		LogLevel:         getEnv("FINTRACK_LOG_LEVEL", "info"),
		ReminderInterval: p.getDuration("FINTRACK_REMINDER_INTERVAL", time.Hour),
		ReminderWindow:   p.getDuration("FINTRACK_REMINDER_WINDOW", 72*time.Hour),
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}

	secret := os.Getenv("FINTRACK_SECRET_KEY")
	switch {
	case secret == "" && cfg.IsDev():
		// Tokens will not survive a restart.
		b := make([]byte, minSecretLen)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate dev secret: %w", err)
		}
		cfg.SecretKey = b
		cfg.EphemeralSecret = true
	case secret == "":
		return nil, errors.New("FINTRACK_SECRET_KEY is required")
	case len(secret) < minSecretLen && !cfg.IsDev():
		return nil, fmt.Errorf("FINTRACK_SECRET_KEY must be at least %d bytes", minSecretLen)
	default:
		cfg.SecretKey = []byte(secret)
	}

	switch {
	case cfg.TokenMaxAge < 0:
		return nil, errors.New("FINTRACK_TOKEN_MAX_AGE must not be negative")
	case cfg.TokenMaxAge == 0 && !cfg.IsDev():
		return nil, errors.New("FINTRACK_TOKEN_MAX_AGE must be positive outside dev")
	}
	if cfg.ReminderInterval <= 0 {
		return nil, errors.New("FINTRACK_REMINDER_INTERVAL must be positive")
	}
	if cfg.ReminderWindow < 0 {
		return nil, errors.New("FINTRACK_REMINDER_WINDOW must not be negative")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// envParser reads typed variables, collecting one error per bad value.
type envParser struct {
	errs []error
}

func (p *envParser) fail(key, val string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, val, err))
}

func (p *envParser) getInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return parsed
}

func (p *envParser) getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return parsed
}

func (p *envParser) getDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		p.fail(key, val, err)
		return fallback
	}
	return parsed
}

// getPrefixes reads a comma separated list of IPs or CIDR ranges.
func (p *envParser) getPrefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, item := range splitCSV(os.Getenv(key)) {
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				p.fail(key, item, err)
				continue
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			p.fail(key, item, err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

func splitCSV(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
