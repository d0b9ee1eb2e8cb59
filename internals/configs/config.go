package configs

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

var (
	JWTSecret string
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ .env file not found, using system ENV")
		} else {
			log.Println("✅ .env file loaded")
		}
	} else {
		log.Println("🚀 Running in Railway, using system ENV")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET is not set!")
	} else {
		log.Println("✅ JWT_SECRET loaded.")
	}

	if GetEnv("ZOYKTECH_SECRET_KEY") == "" {
		log.Println("❌ ZOYKTECH_SECRET_KEY is not set, callback signatures cannot be verified!")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func GetEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func GetEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a duration, using %s", key, v, def)
		return def
	}
	return d
}

// =======================
// ZOYKTECH
// =======================

const (
	ZoyktechSandboxURL = "https://sandbox.zoyktech.com"
	ZoyktechLiveURL    = "https://api.zoyktech.com"
)

type ZoyktechConfig struct {
	MerchantID  string
	PublicID    string
	SecretKey   string
	Environment string // sandbox | live
	CallbackURL string
	Debug       bool

	// status=1 is documented as "pending" by some provider builds and
	// "success" by others; true keeps the permissive mapping.
	StatusOneCompletes bool
	RequireSignature   bool
	Timeout            time.Duration
}

func (c ZoyktechConfig) IsLive() bool {
	return strings.EqualFold(c.Environment, "live")
}

func (c ZoyktechConfig) BaseURL() string {
	if c.IsLive() {
		return ZoyktechLiveURL
	}
	return ZoyktechSandboxURL
}

func (c ZoyktechConfig) IsConfigured() bool {
	return c.MerchantID != "" && c.PublicID != "" && c.SecretKey != ""
}

// LoadZoyktechConfig reads ZOYKTECH_*. Unsigned callbacks are refused in
// live mode unless ZOYKTECH_REQUIRE_SIGNATURE=false says otherwise.
func LoadZoyktechConfig() ZoyktechConfig {
	c := ZoyktechConfig{
		MerchantID:         GetEnv("ZOYKTECH_MERCHANT_ID"),
		PublicID:           GetEnv("ZOYKTECH_PUBLIC_ID"),
		SecretKey:          GetEnv("ZOYKTECH_SECRET_KEY"),
		Environment:        GetEnv("ZOYKTECH_ENVIRONMENT", "sandbox"),
		CallbackURL:        GetEnv("ZOYKTECH_CALLBACK_URL"),
		Debug:              GetEnvBool("ZOYKTECH_DEBUG", false),
		StatusOneCompletes: GetEnvBool("ZOYKTECH_STATUS_ONE_COMPLETES", true),
		Timeout:            GetEnvDuration("ZOYKTECH_TIMEOUT", 30*time.Second),
	}
	c.RequireSignature = GetEnvBool("ZOYKTECH_REQUIRE_SIGNATURE", c.IsLive())
	return c
}

// =======================
// SWEEP
// =======================

type SweepConfig struct {
	Enabled     bool
	Schedule    string
	StaleAfter  time.Duration
	ExpireAfter time.Duration
	BatchSize   int
}

func LoadSweepConfig() SweepConfig {
	return SweepConfig{
		Enabled:     GetEnvBool("SWEEP_ENABLED", true),
		Schedule:    GetEnv("SWEEP_CRON", "@every 5m"),
		StaleAfter:  GetEnvDuration("SWEEP_STALE_AFTER", 10*time.Minute),
		ExpireAfter: GetEnvDuration("SWEEP_EXPIRE_AFTER", 24*time.Hour),
		BatchSize:   GetEnvInt("SWEEP_BATCH_SIZE", 50),
	}
}

// =======================
// SMTP
// =======================

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) IsConfigured() bool { return c.Host != "" && c.From != "" }

func LoadSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Host:     GetEnv("SMTP_HOST"),
		Port:     GetEnvInt("SMTP_PORT", 587),
		Username: GetEnv("SMTP_USERNAME"),
		Password: GetEnv("SMTP_PASSWORD"),
		From:     GetEnv("SMTP_FROM"),
	}
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	level := gormLogger.Warn
	if GetEnvBool("DB_LOG_QUERIES", false) {
		level = gormLogger.Info
	}
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      level,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	n := *l
	n.LogLevel = level
	return &n
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		log.Printf("[INFO] "+msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		log.Printf("[WARN] "+msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		log.Printf("[ERROR] "+msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error:
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	case l.LogLevel >= gormLogger.Info:
		log.Printf("[QUERY] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}
