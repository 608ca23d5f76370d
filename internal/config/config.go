package config

import (
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Init points viper at the .env file and binds the environment variables
// both services read. Environment variables override values from the file.
func Init(envFile string) {
	if envFile == "" {
		envFile = ".env"
	}
	viper.SetConfigFile(envFile)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("auth.jwt_secret", "JWT_SECRET_KEY")
	viper.BindEnv("auth.token_ttl", "JWT_TOKEN_TTL")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("ledger.port", "LEDGER_PORT")
	viper.BindEnv("ledger.organization_account", "LEDGER_ORGANIZATION_ACCOUNT")
	viper.BindEnv("ledger.organization_name", "LEDGER_ORGANIZATION_NAME")
	viper.BindEnv("ledger.organization_seed", "LEDGER_ORGANIZATION_SEED")
	viper.BindEnv("ledger.bootstrap_on_start", "LEDGER_BOOTSTRAP_ON_START")
	viper.BindEnv("ledger.welcome_grant", "LEDGER_WELCOME_GRANT")
	viper.BindEnv("ledger.course_reward", "LEDGER_COURSE_REWARD")
	viper.BindEnv("ledger.instructor_share_rate", "LEDGER_INSTRUCTOR_SHARE_RATE")
	viper.BindEnv("ledger.commerce_url", "COMMERCE_SERVICE_URL")

	viper.BindEnv("notifier.poll_interval", "NOTIFIER_POLL_INTERVAL")
	viper.BindEnv("notifier.base_backoff", "NOTIFIER_BASE_BACKOFF")
	viper.BindEnv("notifier.max_backoff", "NOTIFIER_MAX_BACKOFF")
	viper.BindEnv("notifier.max_attempts", "NOTIFIER_MAX_ATTEMPTS")
	viper.BindEnv("notifier.batch_size", "NOTIFIER_BATCH_SIZE")
	viper.BindEnv("notifier.request_timeout", "NOTIFIER_REQUEST_TIMEOUT")
	viper.BindEnv("notifier.lease_ttl", "NOTIFIER_LEASE_TTL")

	viper.BindEnv("commerce.port", "COMMERCE_PORT")
	viper.BindEnv("commerce.ledger_url", "LEDGER_SERVICE_URL")
	viper.BindEnv("commerce.request_timeout", "COMMERCE_REQUEST_TIMEOUT")

	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.development", "LOG_DEVELOPMENT")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
}

// DBConfig holds database configuration
type DBConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoadDB returns database configuration with defaults. defaultName differs
// per service since the ledger and commerce stores never share a database.
func LoadDB(defaultName string) *DBConfig {
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", defaultName)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	return &DBConfig{
		Driver:          viper.GetString("database.driver"),
		Host:            viper.GetString("database.host"),
		Port:            viper.GetString("database.port"),
		User:            viper.GetString("database.user"),
		Password:        viper.GetString("database.password"),
		Name:            viper.GetString("database.name"),
		SSLMode:         viper.GetString("database.ssl_mode"),
		MaxOpenConns:    viper.GetInt("database.max_open_conns"),
		MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
	}
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func LoadRedis() *RedisConfig {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	return &RedisConfig{
		Addr:     viper.GetString("redis.host") + ":" + viper.GetString("redis.port"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

func LoadAuth() *AuthConfig {
	viper.SetDefault("auth.token_ttl", 5*time.Minute)

	return &AuthConfig{
		JWTSecret: viper.GetString("auth.jwt_secret"),
		TokenTTL:  viper.GetDuration("auth.token_ttl"),
	}
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength int
}

func LoadArgon2() *Argon2Config {
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	return &Argon2Config{
		Time:       uint32(viper.GetInt("argon2.time")),
		Memory:     uint32(viper.GetInt("argon2.memory")),
		Threads:    uint8(viper.GetInt("argon2.threads")),
		KeyLength:  uint32(viper.GetInt("argon2.key_length")),
		SaltLength: viper.GetInt("argon2.salt_length"),
	}
}

type NotifierConfig struct {
	PollInterval   time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	BatchSize      int
	RequestTimeout time.Duration
	LeaseTTL       time.Duration
}

type LedgerConfig struct {
	Port                string
	OrganizationAccount string
	OrganizationName    string
	OrganizationSeed    decimal.Decimal
	BootstrapOnStart    bool
	WelcomeGrant        decimal.Decimal
	CourseReward        decimal.Decimal
	InstructorShareRate decimal.Decimal
	CommerceURL         string
	Notifier            NotifierConfig
}

func LoadLedger() *LedgerConfig {
	viper.SetDefault("ledger.port", "5002")
	viper.SetDefault("ledger.organization_account", "0000000001")
	viper.SetDefault("ledger.organization_name", "EduLearn Organization")
	viper.SetDefault("ledger.bootstrap_on_start", false)
	for key, val := range decimalDefaults {
		viper.SetDefault(key, val)
	}
	viper.SetDefault("ledger.commerce_url", "http://localhost:5000")

	viper.SetDefault("notifier.poll_interval", 2*time.Second)
	viper.SetDefault("notifier.base_backoff", 2*time.Second)
	viper.SetDefault("notifier.max_backoff", 5*time.Minute)
	viper.SetDefault("notifier.max_attempts", 12)
	viper.SetDefault("notifier.batch_size", 50)
	viper.SetDefault("notifier.request_timeout", 10*time.Second)
	viper.SetDefault("notifier.lease_ttl", 30*time.Second)

	return &LedgerConfig{
		Port:                viper.GetString("ledger.port"),
		OrganizationAccount: viper.GetString("ledger.organization_account"),
		OrganizationName:    viper.GetString("ledger.organization_name"),
		OrganizationSeed:    getAmount("ledger.organization_seed"),
		BootstrapOnStart:    viper.GetBool("ledger.bootstrap_on_start"),
		WelcomeGrant:        getAmount("ledger.welcome_grant"),
		CourseReward:        getAmount("ledger.course_reward"),
		InstructorShareRate: getRate("ledger.instructor_share_rate"),
		CommerceURL:         strings.TrimRight(viper.GetString("ledger.commerce_url"), "/"),
		Notifier: loadNotifier(),
	}
}

func loadNotifier() NotifierConfig {
	cfg := NotifierConfig{
		PollInterval:   viper.GetDuration("notifier.poll_interval"),
		BaseBackoff:    viper.GetDuration("notifier.base_backoff"),
		MaxBackoff:     viper.GetDuration("notifier.max_backoff"),
		MaxAttempts:    viper.GetInt("notifier.max_attempts"),
		BatchSize:      viper.GetInt("notifier.batch_size"),
		RequestTimeout: viper.GetDuration("notifier.request_timeout"),
		LeaseTTL:       viper.GetDuration("notifier.lease_ttl"),
	}
	// The lease is renewed before each delivery, so it only has to outlive
	// a single commerce call.
	if minTTL := 2 * cfg.RequestTimeout; cfg.LeaseTTL < minTTL {
		log.Printf("notifier.lease_ttl %s is shorter than two request timeouts, using %s", cfg.LeaseTTL, minTTL)
		cfg.LeaseTTL = minTTL
	}
	return cfg
}

type CommerceConfig struct {
	Port           string
	LedgerURL      string
	RequestTimeout time.Duration
}

func LoadCommerce() *CommerceConfig {
	viper.SetDefault("commerce.port", "5000")
	viper.SetDefault("commerce.ledger_url", "http://localhost:5002")
	viper.SetDefault("commerce.request_timeout", 10*time.Second)

	return &CommerceConfig{
		Port:           viper.GetString("commerce.port"),
		LedgerURL:      strings.TrimRight(viper.GetString("commerce.ledger_url"), "/"),
		RequestTimeout: viper.GetDuration("commerce.request_timeout"),
	}
}

var decimalDefaults = map[string]string{
	"ledger.organization_seed":     "10000000.00",
	"ledger.welcome_grant":         "10000.00",
	"ledger.course_reward":         "1500.00",
	"ledger.instructor_share_rate": "0.80",
}

// getDecimal reads a monetary or rate value. Invalid values fall back to the
// registered default rather than silently becoming zero.
func getDecimal(key string) decimal.Decimal {
	raw := viper.GetString(key)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("Invalid decimal for %s (%q), using default: %v", key, raw, err)
		return decimal.RequireFromString(decimalDefaults[key])
	}
	return d
}

// getAmount reads a monetary value rounded to cents, the precision of the
// ledger's NUMERIC(14,2) columns.
func getAmount(key string) decimal.Decimal {
	d := getDecimal(key)
	if rounded := d.Round(2); !rounded.Equal(d) {
		log.Printf("Amount for %s has more than two decimals, rounding %s to %s", key, d, rounded)
		return rounded
	}
	return d
}

// getRate reads a fraction in [0, 1]. Out-of-range values fall back to the
// default since they would make one side of a split negative.
func getRate(key string) decimal.Decimal {
	d := getDecimal(key)
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		log.Printf("Rate for %s must be between 0 and 1 (got %s), using default", key, d)
		return decimal.RequireFromString(decimalDefaults[key])
	}
	return d
}
