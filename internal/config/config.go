package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventsChannel          string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxMB            int
	Eligibility            models.EligibilityRequirements
	EligibilityCacheTTL    time.Duration
	AWSRegion              string
	SESSender              string
	SubmitRatePerMinute    int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether document uploads can be stored.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// EmailEnabled reports whether workflow emails should be sent through SES.
func (c Config) EmailEnabled() bool {
	return c.AWSRegion != "" && c.SESSender != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TUTORHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	defaults := models.DefaultEligibilityRequirements()

	v.SetDefault("app.name", "TutorHub API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "tutorhub")
	v.SetDefault("cloudinary.folder", "tutorhub/upgrade-applications")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("eligibility.required_sessions", defaults.RequiredSessions)
	v.SetDefault("eligibility.required_rating", defaults.RequiredRating)
	v.SetDefault("eligibility.required_profile_completion", defaults.RequiredProfileCompletion)
	v.SetDefault("eligibility.cooldown_days", int(defaults.ReapplicationCooldown/(24*time.Hour)))
	v.SetDefault("eligibility.cache_ttl", "5m")
	v.SetDefault("rate_limit.submit_per_minute", 5)

	ttl, err := time.ParseDuration(v.GetString("eligibility.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid eligibility cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsChannel:          v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		Eligibility: models.EligibilityRequirements{
			RequiredSessions:          v.GetInt("eligibility.required_sessions"),
			RequiredRating:            v.GetFloat64("eligibility.required_rating"),
			RequiredProfileCompletion: v.GetInt("eligibility.required_profile_completion"),
			ReapplicationCooldown:     time.Duration(v.GetInt("eligibility.cooldown_days")) * 24 * time.Hour,
		},
		EligibilityCacheTTL: ttl,
		AWSRegion:           v.GetString("aws.region"),
		SESSender:           v.GetString("ses.sender"),
		SubmitRatePerMinute: v.GetInt("rate_limit.submit_per_minute"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.Eligibility.RequiredSessions < 0 || cfg.Eligibility.RequiredProfileCompletion < 0 || cfg.Eligibility.RequiredProfileCompletion > 100 {
		return Config{}, fmt.Errorf("eligibility thresholds out of range")
	}
	if cfg.Eligibility.RequiredRating < 0 || cfg.Eligibility.RequiredRating > 5 {
		return Config{}, fmt.Errorf("eligibility rating threshold must be within [0,5]")
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}
	if cfg.SubmitRatePerMinute <= 0 {
		cfg.SubmitRatePerMinute = 5
	}

	return cfg, nil
}
