package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const DevJWTSecret = "dev-secret-change-me"

type Config struct {
	Port        string
	DatabaseDSN string
	JWTSecret   string
	Env         string
	LogLevel    string

	// moderation
	ModerationProvider       string // openai | wordlist
	OpenAIAPIKey             string
	OpenAIModel              string
	OpenAIBaseURL            string
	ModerationTimeoutSeconds int
	ModerationMaxFailures    int
	ModerationOpenSeconds    int
	WordlistPath             string

	SearchLimit int
	FeedWindow  int

	// RedisAddr enables cross-instance feed fan-out when set.
	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	RateLimitRPS   int
	RateLimitBurst int
	// SendPerMinute bounds message sends per user.
	SendPerMinute int

	// CORSOrigins lists extra allowed origins outside dev.
	CORSOrigins []string
}

var defaults = map[string]any{
	"APP_PORT":                   "8080",
	"DATABASE_DSN":               "host=localhost user=postgres password=postgres dbname=ripplechat port=5432 sslmode=disable TimeZone=UTC",
	"JWT_SECRET":                 DevJWTSecret,
	"APP_ENV":                    "dev",
	"LOG_LEVEL":                  "info",
	"MODERATION_PROVIDER":        "wordlist",
	"OPENAI_API_KEY":             "",
	"OPENAI_MODEL":               "gpt-4o-mini",
	"OPENAI_BASE_URL":            "",
	"MODERATION_TIMEOUT_SECONDS": 10,
	"MODERATION_MAX_FAILURES":    5,
	"MODERATION_OPEN_SECONDS":    30,
	"MODERATION_WORDLIST":        "",
	"SEARCH_LIMIT":               10,
	"FEED_WINDOW":                50,
	"REDIS_ADDR":                 "",
	"REDIS_PASSWORD":             "",
	"REDIS_CHANNEL":              "ripplechat:appends",
	"RATE_LIMIT_RPS":             10,
	"RATE_LIMIT_BURST":           20,
	"SEND_PER_MINUTE":            30,
	"CORS_ORIGINS":               "",
}

// Load reads configuration from the environment, optionally layered over a
// YAML file named by CONFIG_FILE. A CONFIG_FILE that cannot be read or parsed
// is an error rather than a silent fall back to defaults.
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	if path := strings.TrimSpace(v.GetString("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return Config{
		Port:                     v.GetString("APP_PORT"),
		DatabaseDSN:              v.GetString("DATABASE_DSN"),
		JWTSecret:                v.GetString("JWT_SECRET"),
		Env:                      v.GetString("APP_ENV"),
		LogLevel:                 v.GetString("LOG_LEVEL"),
		ModerationProvider:       strings.ToLower(v.GetString("MODERATION_PROVIDER")),
		OpenAIAPIKey:             v.GetString("OPENAI_API_KEY"),
		OpenAIModel:              v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:            v.GetString("OPENAI_BASE_URL"),
		ModerationTimeoutSeconds: positive(v, "MODERATION_TIMEOUT_SECONDS"),
		ModerationMaxFailures:    positive(v, "MODERATION_MAX_FAILURES"),
		ModerationOpenSeconds:    positive(v, "MODERATION_OPEN_SECONDS"),
		WordlistPath:             v.GetString("MODERATION_WORDLIST"),
		SearchLimit:              positive(v, "SEARCH_LIMIT"),
		FeedWindow:               positive(v, "FEED_WINDOW"),
		RedisAddr:                v.GetString("REDIS_ADDR"),
		RedisPassword:            v.GetString("REDIS_PASSWORD"),
		RedisChannel:             v.GetString("REDIS_CHANNEL"),
		RateLimitRPS:             positive(v, "RATE_LIMIT_RPS"),
		RateLimitBurst:           positive(v, "RATE_LIMIT_BURST"),
		SendPerMinute:            positive(v, "SEND_PER_MINUTE"),
		CORSOrigins:              splitList(v.GetString("CORS_ORIGINS")),
	}, nil
}

// positive falls back to the default for unparsable or non-positive values.
func positive(v *viper.Viper, key string) int {
	n := v.GetInt(key)
	if n <= 0 {
		return defaults[key].(int)
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("APP_PORT must not be empty")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN must not be empty")
	}
	if cfg.Env != "dev" && (cfg.JWTSecret == "" || cfg.JWTSecret == DevJWTSecret) {
		return errors.New("JWT_SECRET must be set outside dev")
	}
	switch cfg.ModerationProvider {
	case "", "wordlist":
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai moderation provider")
		}
	default:
		return errors.New("MODERATION_PROVIDER must be openai or wordlist")
	}
	return nil
}
