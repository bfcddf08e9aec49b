package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Webhooks      WebhookConfig      `mapstructure:"webhooks"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	StockMonitor  StockMonitorConfig `mapstructure:"stock_monitor"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port           int `mapstructure:"port"`
	MetricsPort    int `mapstructure:"metrics_port"`
	ReadTimeout    int `mapstructure:"read_timeout"`    // seconds
	WriteTimeout   int `mapstructure:"write_timeout"`   // seconds
	RequestTimeout int `mapstructure:"request_timeout"` // seconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	AuditIndex string   `mapstructure:"audit_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Auth Configuration ---
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer"`
	TokenExpiry int    `mapstructure:"token_expiry"` // minutes
}

// --- Webhook Dispatcher Configuration ---
type WebhookConfig struct {
	Workers         int `mapstructure:"workers"`
	QueueSize       int `mapstructure:"queue_size"`
	DeliveryTimeout int `mapstructure:"delivery_timeout"` // seconds, per endpoint
	BreakerMaxFails int `mapstructure:"breaker_max_fails"`
	BreakerCooldown int `mapstructure:"breaker_cooldown"` // seconds
}

// --- Notification Configuration ---
type NotificationConfig struct {
	EmailEnabled   bool   `mapstructure:"email_enabled"`
	SMSEnabled     bool   `mapstructure:"sms_enabled"`
	FromEmail      string `mapstructure:"from_email"`
	AWSRegion      string `mapstructure:"aws_region"`
	UnreadCacheTTL int    `mapstructure:"unread_cache_ttl"` // seconds
}

// --- Stock Monitor Configuration ---
type StockMonitorConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	DefaultThreshold int  `mapstructure:"default_threshold"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
