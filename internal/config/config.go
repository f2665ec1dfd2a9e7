package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Suno       SunoConfig
	Captcha    CaptchaConfig
	Analyzer   AnalyzerConfig
	Generation GenerationConfig
	Download   DownloadConfig
	Silence    SilenceConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// SunoConfig holds the long-lived browser cookie used for Clerk auth.
// The cookie string must contain a __client token.
type SunoConfig struct {
	Cookie       string
	BaseURL      string
	ClerkURL     string
	DefaultModel string
}

// CaptchaConfig points at the external challenge-solver service.
type CaptchaConfig struct {
	SolverURL    string
	SolveTimeout int // seconds
}

// AnalyzerConfig points at the external silence-analysis service.
type AnalyzerConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

// GenerationConfig seeds the runtime-tunable scheduler settings.
type GenerationConfig struct {
	BatchSize         int
	BatchDelay        int // seconds between batches
	PollingInterval   int // seconds between reconcile passes
	MinDurationFilter float64
	AutoDownload      bool
	AutoAnalyze       bool
}

type DownloadConfig struct {
	Directory string
	Format    string // mp3, wav or both
}

type SilenceConfig struct {
	ThresholdDB int
	MinLengthMS int
}

type RateLimitConfig struct {
	GeneratePerHour int
	DownloadPerHour int
	ProxyPerMin     int
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")
	readSecret("SUNO_COOKIE")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("suno.cookie", "SUNO_COOKIE")
	_ = viper.BindEnv("suno.base_url", "SUNO_BASE_URL")
	_ = viper.BindEnv("suno.clerk_url", "SUNO_CLERK_URL")
	_ = viper.BindEnv("suno.default_model", "DEFAULT_MODEL")
	_ = viper.BindEnv("captcha.solver_url", "CAPTCHA_SOLVER_URL")
	_ = viper.BindEnv("captcha.solve_timeout", "CAPTCHA_SOLVE_TIMEOUT")
	_ = viper.BindEnv("analyzer.service_url", "ANALYZER_SERVICE_URL")
	_ = viper.BindEnv("analyzer.timeout", "ANALYZER_TIMEOUT")
	_ = viper.BindEnv("generation.batch_size", "BATCH_SIZE")
	_ = viper.BindEnv("generation.batch_delay", "BATCH_DELAY")
	_ = viper.BindEnv("generation.polling_interval", "POLLING_INTERVAL")
	_ = viper.BindEnv("generation.min_duration_filter", "MIN_DURATION_FILTER")
	_ = viper.BindEnv("generation.auto_download", "AUTO_DOWNLOAD")
	_ = viper.BindEnv("generation.auto_analyze_silence", "AUTO_ANALYZE_SILENCE")
	_ = viper.BindEnv("download.directory", "DOWNLOAD_DIR")
	_ = viper.BindEnv("download.format", "DOWNLOAD_FORMAT")
	_ = viper.BindEnv("silence_analysis.threshold", "SILENCE_THRESHOLD")
	_ = viper.BindEnv("silence_analysis.min_length", "MIN_SILENCE_LENGTH")
	_ = viper.BindEnv("rate_limit.generate_per_hour", "RATE_LIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("rate_limit.download_per_hour", "RATE_LIMIT_DOWNLOAD_PER_HOUR")
	_ = viper.BindEnv("rate_limit.proxy_per_min", "RATE_LIMIT_PROXY_PER_MIN")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")

	// Suno defaults
	viper.SetDefault("suno.base_url", "https://studio-api.prod.suno.com")
	viper.SetDefault("suno.clerk_url", "https://clerk.suno.com")
	viper.SetDefault("suno.default_model", "chirp-crow")

	// Captcha solver defaults (5 min for the human-facing flow)
	viper.SetDefault("captcha.solver_url", "http://localhost:8090")
	viper.SetDefault("captcha.solve_timeout", 300)

	// Analyzer defaults
	viper.SetDefault("analyzer.service_url", "http://localhost:8084")
	viper.SetDefault("analyzer.timeout", 120)

	// Generation defaults
	viper.SetDefault("generation.batch_size", 5)
	viper.SetDefault("generation.batch_delay", 30)
	viper.SetDefault("generation.polling_interval", 10)
	viper.SetDefault("generation.min_duration_filter", 180)
	viper.SetDefault("generation.auto_download", true)
	viper.SetDefault("generation.auto_analyze_silence", true)

	// Download defaults
	viper.SetDefault("download.directory", "./downloads")
	viper.SetDefault("download.format", "mp3")

	// Silence analysis defaults
	viper.SetDefault("silence_analysis.threshold", -40)
	viper.SetDefault("silence_analysis.min_length", 1000)

	// Rate limit defaults
	viper.SetDefault("rate_limit.generate_per_hour", 30)
	viper.SetDefault("rate_limit.download_per_hour", 200)
	viper.SetDefault("rate_limit.proxy_per_min", 60)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Suno: SunoConfig{
			Cookie:       viper.GetString("suno.cookie"),
			BaseURL:      viper.GetString("suno.base_url"),
			ClerkURL:     viper.GetString("suno.clerk_url"),
			DefaultModel: viper.GetString("suno.default_model"),
		},
		Captcha: CaptchaConfig{
			SolverURL:    viper.GetString("captcha.solver_url"),
			SolveTimeout: viper.GetInt("captcha.solve_timeout"),
		},
		Analyzer: AnalyzerConfig{
			ServiceURL: viper.GetString("analyzer.service_url"),
			Timeout:    viper.GetInt("analyzer.timeout"),
		},
		Generation: GenerationConfig{
			BatchSize:         viper.GetInt("generation.batch_size"),
			BatchDelay:        viper.GetInt("generation.batch_delay"),
			PollingInterval:   viper.GetInt("generation.polling_interval"),
			MinDurationFilter: viper.GetFloat64("generation.min_duration_filter"),
			AutoDownload:      viper.GetBool("generation.auto_download"),
			AutoAnalyze:       viper.GetBool("generation.auto_analyze_silence"),
		},
		Download: DownloadConfig{
			Directory: viper.GetString("download.directory"),
			Format:    viper.GetString("download.format"),
		},
		Silence: SilenceConfig{
			ThresholdDB: viper.GetInt("silence_analysis.threshold"),
			MinLengthMS: viper.GetInt("silence_analysis.min_length"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("rate_limit.generate_per_hour"),
			DownloadPerHour: viper.GetInt("rate_limit.download_per_hour"),
			ProxyPerMin:     viper.GetInt("rate_limit.proxy_per_min"),
		},
	}

	return cfg, nil
}
