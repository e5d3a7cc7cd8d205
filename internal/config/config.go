package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AppConfig struct {
	ServiceName  string     `mapstructure:"service_name"`
	Env          string     `mapstructure:"env"`
	LogLevel     string     `mapstructure:"log_level"`
	MetricsPath  string     `mapstructure:"metrics_path"`
	OTLPEndpoint string     `mapstructure:"otlp_endpoint"`
	HTTP         HTTPConfig `mapstructure:"http"`
}

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RateLimitRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	LoginLimit int
	Window     time.Duration
	Redis      RateLimitRedisConfig
}

type PaymentConfig struct {
	AdminUPIID   string
	MerchantName string
	GatewayURL   string
	KeyID        string
	KeySecret    string
}

type Config struct {
	App              AppConfig
	AccessSecret     string
	RefreshSecret    string
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	Argon2           Argon2Params
	DB               DBConfig
	RateLimit        RateLimitConfig
	Payment          PaymentConfig
}

func Load() (*Config, error) {
	appCfg, err := loadApp(os.Getenv("FEST_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:             *appCfg,
		AccessSecret:    envString("FEST_ACCESS_SECRET", ""),
		RefreshSecret:   envString("FEST_REFRESH_SECRET", ""),
		JWTIssuer:       envString("FEST_JWT_ISSUER", "techfest-server"),
		AccessTokenTTL:  envDuration("FEST_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: envDuration("FEST_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		Argon2: Argon2Params{
			Memory:      uint32(envInt("FEST_ARGON2_MEMORY", 64*1024)),
			Iterations:  uint32(envInt("FEST_ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(envInt("FEST_ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(envInt("FEST_ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(envInt("FEST_ARGON2_KEY_LENGTH", 32)),
		},
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "techfest"),
			User:     envString("POSTGRES_USER", "techfest"),
			Password: envString("POSTGRES_PASSWORD", "techfest"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		RateLimit: RateLimitConfig{
			LoginLimit: envInt("FEST_LOGIN_RATE_LIMIT", 10),
			Window:     envDuration("FEST_LOGIN_RATE_WINDOW", 1*time.Minute),
			Redis: RateLimitRedisConfig{
				Addr:     envString("FEST_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("FEST_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("FEST_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("FEST_RATE_LIMIT_REDIS_PREFIX", "techfest:rl:"),
			},
		},
		Payment: PaymentConfig{
			AdminUPIID:   envString("FEST_ADMIN_UPI_ID", ""),
			MerchantName: envString("FEST_MERCHANT_NAME", "Techfest"),
			GatewayURL:   envString("FEST_GATEWAY_URL", "https://api.razorpay.com"),
			KeyID:        envString("FEST_GATEWAY_KEY_ID", ""),
			KeySecret:    envString("FEST_GATEWAY_KEY_SECRET", ""),
		},
	}

	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("FEST_ACCESS_SECRET must be set")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("FEST_REFRESH_SECRET must be set")
	}
	if cfg.RefreshSecret == cfg.AccessSecret {
		return nil, fmt.Errorf("FEST_REFRESH_SECRET must differ from FEST_ACCESS_SECRET")
	}

	return cfg, nil
}

func loadApp(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("FEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "techfest-server")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5001)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
