// Package config отвечает за настройки приложения.
// Значения берутся из переменных окружения, затем из флагов командной строки.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит настройки приложения
type Config struct {
	RunAddr          string
	GRPCAddr         string
	BaseURL          string
	DatabaseDSN      string
	RedisAddr        string
	SessionSecret    string
	AuthSecret       string
	CookieTTL        time.Duration
	RateLimit        int
	RateLimitWindow  time.Duration
	GeoIPDBPath      string
	GeoIPFallbackURL string
	TrustedSubnet    string
	LogLevel         string
}

// NewConfig создаёт новый Config со значениями по умолчанию, флагами и переменными окружения
func NewConfig() (*Config, error) {
	cfg := &Config{
		RunAddr:          ":8080",
		GRPCAddr:         "",
		BaseURL:          "http://localhost:8080",
		DatabaseDSN:      "",
		RedisAddr:        "",
		SessionSecret:    "default_session_secret",
		AuthSecret:       "default_auth_secret",
		CookieTTL:        7 * 24 * time.Hour,
		RateLimit:        10,
		RateLimitWindow:  time.Minute,
		GeoIPDBPath:      "",
		GeoIPFallbackURL: "http://ip-api.com/json",
		TrustedSubnet:    "",
		LogLevel:         "info",
	}

	// Регистрируем флаги
	flagRunAddr := flag.String("a", cfg.RunAddr, "address and port to run HTTP server")
	flagGRPCAddr := flag.String("g", cfg.GRPCAddr, "address and port to run gRPC server (disabled if empty)")
	flagBaseURL := flag.String("b", cfg.BaseURL, "base public URL for shortened links")
	flagDatabaseDSN := flag.String("d", cfg.DatabaseDSN, "database DSN for PostgreSQL")
	flagRedisAddr := flag.String("r", cfg.RedisAddr, "redis address for rate limiting and session cache")
	flagSessionSecret := flag.String("s", cfg.SessionSecret, "session cookie signing secret")
	flagRateLimit := flag.Int("l", cfg.RateLimit, "max write requests per window per IP")
	flagGeoDBPath := flag.String("geo", cfg.GeoIPDBPath, "path to GeoIP2 database file")
	flagTrustedSubnet := flag.String("t", cfg.TrustedSubnet, "trusted subnet in CIDR notation for internal stats")
	flag.Parse()

	// Проверяем переменные окружения
	if addr := os.Getenv("RUN_ADDRESS"); addr != "" {
		cfg.RunAddr = addr
	} else {
		cfg.RunAddr = *flagRunAddr
	}

	if addr := os.Getenv("GRPC_ADDRESS"); addr != "" {
		cfg.GRPCAddr = addr
	} else {
		cfg.GRPCAddr = *flagGRPCAddr
	}

	if url := os.Getenv("BASE_URL"); url != "" {
		cfg.BaseURL = url
	} else {
		cfg.BaseURL = *flagBaseURL
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.DatabaseDSN = dsn
	} else {
		cfg.DatabaseDSN = *flagDatabaseDSN
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	} else {
		cfg.RedisAddr = *flagRedisAddr
	}

	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.SessionSecret = secret
	} else {
		cfg.SessionSecret = *flagSessionSecret
	}

	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		cfg.AuthSecret = secret
	}

	if limit := os.Getenv("RATE_LIMIT"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, err
		}
		cfg.RateLimit = n
	} else {
		cfg.RateLimit = *flagRateLimit
	}

	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return nil, err
		}
		cfg.RateLimitWindow = d
	}

	if ttl := os.Getenv("COOKIE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, err
		}
		cfg.CookieTTL = d
	}

	if path := os.Getenv("GEOIP_DB_PATH"); path != "" {
		cfg.GeoIPDBPath = path
	} else {
		cfg.GeoIPDBPath = *flagGeoDBPath
	}

	if url := os.Getenv("GEOIP_FALLBACK_URL"); url != "" {
		cfg.GeoIPFallbackURL = url
	}

	if subnet := os.Getenv("TRUSTED_SUBNET"); subnet != "" {
		cfg.TrustedSubnet = subnet
	} else {
		cfg.TrustedSubnet = *flagTrustedSubnet
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	// Валидация значений
	cfg.RunAddr = normalizeAddr(cfg.RunAddr)
	cfg.BaseURL = normalizeBaseURL(cfg.BaseURL)

	return cfg, nil
}

// normalizeAddr дополняет адрес двоеточием, если указан только порт
func normalizeAddr(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

// normalizeBaseURL дополняет адрес схемой и убирает завершающий слэш
func normalizeBaseURL(url string) string {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return strings.TrimRight(url, "/")
}
