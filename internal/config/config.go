package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env        string           `yaml:"env"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	S3         S3Config         `yaml:"s3"`
	Bot        BotConfig        `yaml:"bot"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Moderation ModerationConfig `yaml:"moderation"`
	Limits     LimitsConfig     `yaml:"limits"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type BotConfig struct {
	Token              string `yaml:"token"`
	Mode               string `yaml:"mode"`
	WebhookSecret      string `yaml:"webhook_secret"`
	PollTimeoutSeconds int    `yaml:"poll_timeout_seconds"`
	PendingStore       string `yaml:"pending_store"`
}

type ChannelsConfig struct {
	Feed       string `yaml:"feed"`
	Moderation string `yaml:"moderation"`
	Admin      string `yaml:"admin"`
}

type ModerationConfig struct {
	TrustQuota int           `yaml:"trust_quota"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type LimitsConfig struct {
	ReportsPerHour int `yaml:"reports_per_hour"`
}

const (
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"

	BotModePolling = "polling"
	BotModeWebhook = "webhook"

	PendingStoreMemory = "memory"
	PendingStoreRedis  = "redis"
)

func Default() Config {
	return Config{
		Env: "dev",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			Driver:     StorageDriverSQLite,
			SQLitePath: "bot.db",
		},
		Bot: BotConfig{
			Mode:               BotModePolling,
			PollTimeoutSeconds: 30,
			PendingStore:       PendingStoreMemory,
		},
		Channels: ChannelsConfig{
			Feed: "@zp_bez_pdr",
		},
		Moderation: ModerationConfig{
			TrustQuota: 2,
			LockTTL:    30 * time.Second,
		},
		Limits: LimitsConfig{
			ReportsPerHour: 4,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	normalize(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ModerationEnabled reports whether the moderation lane is configured at all.
func (c Config) ModerationEnabled() bool {
	return c.Moderation.TrustQuota > 0 && strings.TrimSpace(c.Channels.Moderation) != ""
}

// AdminDestination is where private user-to-administrator messages go.
func (c Config) AdminDestination() string {
	if v := strings.TrimSpace(c.Channels.Admin); v != "" {
		return v
	}
	return strings.TrimSpace(c.Channels.Moderation)
}

func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

func (c Config) ArchiveEnabled() bool {
	return strings.TrimSpace(c.S3.Endpoint) != "" && strings.TrimSpace(c.S3.Bucket) != ""
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if err := overrideDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return err
	}
	if err := overrideDuration("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if err := overrideInt("REDIS_DB", &cfg.Redis.DB); err != nil {
		return err
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.S3.SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if err := overrideBool("S3_USE_SSL", &cfg.S3.UseSSL); err != nil {
		return err
	}

	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("BOT_MODE"); v != "" {
		cfg.Bot.Mode = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		cfg.Bot.WebhookSecret = v
	}
	if err := overrideInt("POLL_TIMEOUT_SECONDS", &cfg.Bot.PollTimeoutSeconds); err != nil {
		return err
	}
	if v := os.Getenv("PENDING_STORE"); v != "" {
		cfg.Bot.PendingStore = v
	}

	if v := os.Getenv("CHANNEL_ID"); v != "" {
		cfg.Channels.Feed = v
	}
	if v := os.Getenv("MODERATION_CHAT_ID"); v != "" {
		cfg.Channels.Moderation = v
	}
	if v := os.Getenv("ADMIN_CHAT_ID"); v != "" {
		cfg.Channels.Admin = v
	}

	if err := overrideInt("TRUST_QUOTA", &cfg.Moderation.TrustQuota); err != nil {
		return err
	}
	if err := overrideDuration("MODERATION_LOCK_TTL", &cfg.Moderation.LockTTL); err != nil {
		return err
	}

	if err := overrideInt("REPORTS_PER_HOUR", &cfg.Limits.ReportsPerHour); err != nil {
		return err
	}

	return nil
}

func normalize(cfg *Config) {
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageDriverSQLite
	}

	cfg.Bot.Mode = strings.ToLower(strings.TrimSpace(cfg.Bot.Mode))
	if cfg.Bot.Mode != BotModeWebhook {
		cfg.Bot.Mode = BotModePolling
	}
	if cfg.Bot.PollTimeoutSeconds <= 0 {
		cfg.Bot.PollTimeoutSeconds = 30
	}

	cfg.Bot.PendingStore = strings.ToLower(strings.TrimSpace(cfg.Bot.PendingStore))
	if cfg.Bot.PendingStore != PendingStoreRedis {
		cfg.Bot.PendingStore = PendingStoreMemory
	}

	if cfg.Moderation.LockTTL <= 0 {
		cfg.Moderation.LockTTL = 30 * time.Second
	}
	if cfg.Limits.ReportsPerHour < 0 {
		cfg.Limits.ReportsPerHour = 0
	}
}

func validate(cfg Config) error {
	switch cfg.Storage.Driver {
	case StorageDriverSQLite:
		if strings.TrimSpace(cfg.Storage.SQLitePath) == "" {
			return fmt.Errorf("storage.sqlite_path is required for sqlite driver")
		}
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.Storage.PostgresDSN) == "" {
			return fmt.Errorf("storage.postgres_dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Moderation.TrustQuota < 0 {
		return fmt.Errorf("moderation.trust_quota must be >= 0, got %d", cfg.Moderation.TrustQuota)
	}

	if cfg.Bot.Mode == BotModeWebhook && strings.TrimSpace(cfg.Bot.WebhookSecret) == "" {
		return fmt.Errorf("bot.webhook_secret is required in webhook mode")
	}

	if cfg.Bot.PendingStore == PendingStoreRedis && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("redis.addr is required for redis pending store")
	}

	if strings.EqualFold(cfg.Env, "prod") {
		if strings.TrimSpace(cfg.Bot.Token) == "" {
			return fmt.Errorf("bot.token is required in production")
		}
		if strings.TrimSpace(cfg.Channels.Feed) == "" {
			return fmt.Errorf("channels.feed is required in production")
		}
	}

	return nil
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}
