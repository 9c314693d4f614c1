package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/quizloop/internal/llm"
	"github.com/abhisek/quizloop/internal/proficiency"
	"github.com/abhisek/quizloop/internal/store"
)

const envPrefix = "QUIZLOOP"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Viper keys. With the QUIZLOOP prefix and the dot replacer, "mongo.uri"
// reads QUIZLOOP_MONGO_URI.
const (
	KeyDB             = "db"
	KeyStore          = "store"
	KeyMongoURI       = "mongo.uri"
	KeyMongoDatabase  = "mongo.database"
	KeyServerAddress  = "server.address"
	KeyCORSOrigins    = "cors.origins"
	KeyLogMode        = "log.mode"
	KeyAlpha          = "proficiency.alpha"
	KeyGradingTimeout = "grading.timeout"
	KeyAMQPURL        = "amqp.url"
	KeyAMQPExchange   = "amqp.exchange"
)

// Config is the application configuration.
type Config struct {
	DBPath         string
	StoreBackend   string
	MongoURI       string
	MongoDatabase  string
	ServerAddress  string
	CORSOrigins    []string
	LogMode        string
	Alpha          float64
	GradingTimeout time.Duration
	AMQPURL        string // empty disables event publishing
	AMQPExchange   string
	LLM            llm.Config

	// LLMConfigured reports whether an LLM provider was selected explicitly
	// or discovered from a well-known API key variable.
	LLMConfigured bool
}

// New returns a viper instance with defaults and environment binding set up.
// An optional .env file in the working directory is loaded first.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyStore, BackendSQLite)
	v.SetDefault(KeyMongoURI, "mongodb://localhost:27017")
	v.SetDefault(KeyMongoDatabase, "quizloop")
	v.SetDefault(KeyServerAddress, ":8080")
	v.SetDefault(KeyCORSOrigins, []string{"*"})
	v.SetDefault(KeyLogMode, "dev")
	v.SetDefault(KeyAlpha, proficiency.DefaultAlpha)
	v.SetDefault(KeyGradingTimeout, 45*time.Second)
	v.SetDefault(KeyAMQPExchange, "quizloop.events")
	return v
}

// BindFlags lets command-line flags override environment values. Flags
// that are not defined on the set are skipped.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		KeyDB:            "db",
		KeyStore:         "store",
		KeyServerAddress: "addr",
		KeyLogMode:       "log",
	}
	for key, name := range bindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load resolves the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DBPath:         v.GetString(KeyDB),
		StoreBackend:   strings.ToLower(v.GetString(KeyStore)),
		MongoURI:       v.GetString(KeyMongoURI),
		MongoDatabase:  v.GetString(KeyMongoDatabase),
		ServerAddress:  v.GetString(KeyServerAddress),
		CORSOrigins:    splitList(v.GetStringSlice(KeyCORSOrigins)),
		LogMode:        v.GetString(KeyLogMode),
		Alpha:          v.GetFloat64(KeyAlpha),
		GradingTimeout: v.GetDuration(KeyGradingTimeout),
		AMQPURL:        v.GetString(KeyAMQPURL),
		AMQPExchange:   v.GetString(KeyAMQPExchange),
	}

	if cfg.StoreBackend == BackendSQLite {
		if cfg.DBPath == "" {
			p, err := store.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve DB path: %w", err)
			}
			cfg.DBPath = p
		} else if err := store.EnsureDir(cfg.DBPath); err != nil {
			return nil, fmt.Errorf("create DB directory: %w", err)
		}
	}

	cfg.LLM, cfg.LLMConfigured = resolveLLM()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveLLM prefers explicit QUIZLOOP_* provider settings and falls back
// to discovering a provider from standard API key variables.
func resolveLLM() (llm.Config, bool) {
	cfg := llm.ConfigFromEnv()
	if os.Getenv("QUIZLOOP_LLM_PROVIDER") != "" {
		return cfg, true
	}
	if cfg.Validate() == nil {
		return cfg, true
	}
	if discovered, ok := llm.DiscoverConfig(); ok {
		discovered.Embedding = cfg.Embedding
		return discovered, true
	}
	return cfg, false
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("QUIZLOOP_MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.StoreBackend)
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("proficiency alpha must be in (0, 1], got %v", c.Alpha)
	}
	if c.GradingTimeout <= 0 {
		return fmt.Errorf("grading timeout must be positive, got %s", c.GradingTimeout)
	}
	if c.LLMConfigured {
		if err := c.LLM.Validate(); err != nil {
			return fmt.Errorf("llm: %w", err)
		}
	}
	return nil
}

// splitList accepts both repeated values and a single comma-separated
// environment value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
