package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig carries the default optimizer parameters and the
// policy bounds enforced at the API boundary. The engine itself takes
// whatever the caller hands it.
type SchedulerConfig struct {
	DefaultGenerations    int
	DefaultPopulationSize int
	MutationRate          float64
	CrossoverRate         float64
	ElitismRate           float64
	MaxStagnation         int
	Workers               int
	MaxGenerations        int
	MinGenerations        int
	MaxPopulationSize     int
	MinPopulationSize     int
	ProposalTTL           time.Duration
	ConfigCacheTTL        time.Duration
	ResultCacheTTL        time.Duration
	AsyncWorkers          int
	AsyncQueueSize        int
	AsyncRetries          int
}

// ExportsConfig tunes generated file exports.
type ExportsConfig struct {
	PDFTitle string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		DefaultGenerations:    v.GetInt("SCHEDULER_DEFAULT_GENERATIONS"),
		DefaultPopulationSize: v.GetInt("SCHEDULER_DEFAULT_POPULATION"),
		MutationRate:          v.GetFloat64("SCHEDULER_MUTATION_RATE"),
		CrossoverRate:         v.GetFloat64("SCHEDULER_CROSSOVER_RATE"),
		ElitismRate:           v.GetFloat64("SCHEDULER_ELITISM_RATE"),
		MaxStagnation:         v.GetInt("SCHEDULER_MAX_STAGNATION"),
		Workers:               v.GetInt("SCHEDULER_WORKERS"),
		MaxGenerations:        v.GetInt("SCHEDULER_MAX_GENERATIONS"),
		MinGenerations:        v.GetInt("SCHEDULER_MIN_GENERATIONS"),
		MaxPopulationSize:     v.GetInt("SCHEDULER_MAX_POPULATION"),
		MinPopulationSize:     v.GetInt("SCHEDULER_MIN_POPULATION"),
		ProposalTTL:           parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		ConfigCacheTTL:        parseDuration(v.GetString("SCHEDULER_CONFIG_CACHE_TTL"), 10*time.Minute),
		ResultCacheTTL:        parseDuration(v.GetString("SCHEDULER_RESULT_CACHE_TTL"), 15*time.Minute),
		AsyncWorkers:          v.GetInt("SCHEDULER_ASYNC_WORKERS"),
		AsyncQueueSize:        v.GetInt("SCHEDULER_ASYNC_QUEUE_SIZE"),
		AsyncRetries:          v.GetInt("SCHEDULER_ASYNC_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		PDFTitle: v.GetString("EXPORT_PDF_TITLE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_DEFAULT_GENERATIONS", 200)
	v.SetDefault("SCHEDULER_DEFAULT_POPULATION", 150)
	v.SetDefault("SCHEDULER_MUTATION_RATE", 0.05)
	v.SetDefault("SCHEDULER_CROSSOVER_RATE", 0.8)
	v.SetDefault("SCHEDULER_ELITISM_RATE", 0.1)
	v.SetDefault("SCHEDULER_MAX_STAGNATION", 50)
	v.SetDefault("SCHEDULER_WORKERS", 4)
	v.SetDefault("SCHEDULER_MAX_GENERATIONS", 1000)
	v.SetDefault("SCHEDULER_MIN_GENERATIONS", 1)
	v.SetDefault("SCHEDULER_MAX_POPULATION", 500)
	v.SetDefault("SCHEDULER_MIN_POPULATION", 10)
	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_CONFIG_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULER_RESULT_CACHE_TTL", "15m")
	v.SetDefault("SCHEDULER_ASYNC_WORKERS", 1)
	v.SetDefault("SCHEDULER_ASYNC_QUEUE_SIZE", 16)
	v.SetDefault("SCHEDULER_ASYNC_RETRIES", 1)

	v.SetDefault("EXPORT_PDF_TITLE", "University Timetable")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
