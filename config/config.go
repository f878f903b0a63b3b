// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAPIAddr    = ":8080"
	DefaultStateDir   = "data"
	DefaultHandoffDB  = "handoff.db"
	DefaultLogLevel   = "info"
	DefaultSMTPPort   = "587"
	DefaultCounsellor = "counsellor@careerbot.in"
)

type Config struct {
	TelegramToken string

	FirebaseKeyPath string
	FirebaseProject string
	StorageBucket   string

	GenAIProvider string
	GeminiKey     string
	OpenAIKey     string
	GenAIModel    string

	CashfreeAppID      string
	CashfreeSecret     string
	CashfreeProduction bool

	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	CounsellorMail string

	HandoffDSN    string
	APIAddr       string
	PublicBaseURL string

	// TaskTimeout bounds every generation call; zero means unbounded.
	TaskTimeout time.Duration

	LogLevel  string
	LogPretty bool
}

// Load reads the environment. A missing .env file is not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := Config{
		TelegramToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		FirebaseKeyPath:    os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH"),
		FirebaseProject:    os.Getenv("FIREBASE_PROJECT_ID"),
		StorageBucket:      os.Getenv("FIREBASE_STORAGE_BUCKET"),
		GenAIProvider:      os.Getenv("GENAI_PROVIDER"),
		GeminiKey:          os.Getenv("GEMINI_API_KEY"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		GenAIModel:         os.Getenv("GENAI_MODEL"),
		CashfreeAppID:      os.Getenv("CASHFREE_APP_ID"),
		CashfreeSecret:     os.Getenv("CASHFREE_SECRET_KEY"),
		CashfreeProduction: ParseBoolEnv("CASHFREE_PRODUCTION", false),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           getenvDefault("SMTP_PORT", DefaultSMTPPort),
		SMTPUser:           os.Getenv("SMTP_USER"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:           os.Getenv("SMTP_FROM"),
		CounsellorMail:     getenvDefault("COUNSELLOR_EMAIL", DefaultCounsellor),
		HandoffDSN:         os.Getenv("HANDOFF_DSN"),
		APIAddr:            getenvDefault("API_ADDR", DefaultAPIAddr),
		PublicBaseURL:      strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		TaskTimeout:        ParseDurationEnv("TASK_TIMEOUT", 0),
		LogLevel:           getenvDefault("LOG_LEVEL", DefaultLogLevel),
		LogPretty:          ParseBoolEnv("LOG_PRETTY", false),
	}

	if cfg.HandoffDSN == "" {
		cfg.HandoffDSN = filepath.Join(DefaultStateDir, DefaultHandoffDB)
		log.Debug().Str("sqlite_path", cfg.HandoffDSN).Msg("no HANDOFF_DSN set, defaulting to SQLite")
	}

	log.Debug().
		Bool("TELEGRAM_BOT_TOKEN_SET", cfg.TelegramToken != "").
		Bool("FIREBASE_KEY_SET", cfg.FirebaseKeyPath != "").
		Str("GENAI_PROVIDER", cfg.GenAIProvider).
		Bool("CASHFREE_SET", cfg.CashfreeAppID != "").
		Bool("SMTP_SET", cfg.SMTPHost != "").
		Str("API_ADDR", cfg.APIAddr).
		Dur("TASK_TIMEOUT", cfg.TaskTimeout).
		Msg("environment variables loaded")

	return cfg
}

// Validate reports settings the process cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN not set"))
	}
	if c.GeminiKey == "" && c.OpenAIKey == "" {
		errs = append(errs, errors.New("one of GEMINI_API_KEY or OPENAI_API_KEY must be set"))
	}
	return errors.Join(errs...)
}

// UseFirebase reports whether Firestore credentials were supplied.
func (c Config) UseFirebase() bool {
	return c.FirebaseKeyPath != "" || c.FirebaseProject != ""
}

// Logger configures the global zerolog logger.
func (c Config) Logger() {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ParseBoolEnv parses a boolean environment variable with a default value.
// Accepts: true/1/yes/on and false/0/no/off (case-insensitive). Invalid values return default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		log.Warn().Str("key", key).Str("value", val).Bool("default", defaultValue).Msg("invalid boolean value, using default")
		return defaultValue
	}
}

// ParseDurationEnv accepts Go durations ("30s") or plain seconds ("30").
func ParseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(val); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Str("key", key).Str("value", val).Msg("invalid duration, using default")
	return defaultValue
}
