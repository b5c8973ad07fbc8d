package config

import (
	"context"
	"net"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// TrustedProxies lists the CIDR ranges allowed to set X-Forwarded-For.
	// Empty means the client address is the socket peer.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	Auth      AuthConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
}

type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET, required"`
	JWTExpiresIn       time.Duration `env:"JWT_EXPIRES_IN,        default=2160h"`
	JWTCookieExpiresIn int           `env:"JWT_COOKIE_EXPIRES_IN, default=90"`
	BcryptCost         int           `env:"BCRYPT_COST,           default=12"`
	HashWorkers        int           `env:"HASH_WORKERS"`
	HashBudget         time.Duration `env:"HASH_BUDGET,           default=5s"`
	ResetTokenTTL      time.Duration `env:"RESET_TOKEN_TTL,       default=10m"`
}

// CookieLifetime is the session cookie lifetime.
func (a AuthConfig) CookieLifetime() time.Duration {
	return time.Duration(a.JWTCookieExpiresIn) * 24 * time.Hour
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=natours"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type RateLimitConfig struct {
	Max    int64         `env:"RATE_LIMIT_MAX,    default=100"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW, default=1h"`
}

// SMTPConfig is optional: with no host, reset emails are written to the log.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT, default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM, default=Natours <hello@natours.io>"`
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// ProxyRanges parses TrustedProxies. Bare addresses are taken as single hosts.
func (c *Config) ProxyRanges() ([]*net.IPNet, error) {
	ranges := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if ip := net.ParseIP(raw); ip != nil {
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			ranges = append(ranges, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("value", raw).Wrapf(err, "TRUSTED_PROXIES")
		}
		ranges = append(ranges, n)
	}
	return ranges, nil
}

// Load reads configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrapf(err, "load configuration")
	}
	if cfg.Auth.JWTCookieExpiresIn <= 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("JWT_COOKIE_EXPIRES_IN must be positive")
	}
	if cfg.RateLimit.Max <= 0 || cfg.RateLimit.Window <= 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if _, err := cfg.ProxyRanges(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
