package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	EventChannelBase     string
	JWTSecret            string
	PushGatewayURL       string
	PushGatewayKey       string
	PushTimeout          time.Duration
	PublishInterval      time.Duration
	PublishCycleTimeout  time.Duration
	PublishLockKey       string
	PublishCountApproved bool
	PublishRunOnStart    bool
	SubmitRateLimit      int
	CORSAllowOrigins     string
	AccessLog            bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RESULTS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Results API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "results")
	v.SetDefault("push.timeout", "10s")
	v.SetDefault("publish.interval", "2m")
	v.SetDefault("publish.cycle_timeout", "1m")
	v.SetDefault("publish.lock_key", "results:publish:lock")
	v.SetDefault("publish.count_approved", false)
	v.SetDefault("publish.run_on_start", true)
	v.SetDefault("submit.rate_limit", 30)
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("app.access_log", false)

	pushTimeout, err := parseDuration(v, "push.timeout")
	if err != nil {
		return Config{}, err
	}

	interval, err := parseDuration(v, "publish.interval")
	if err != nil {
		return Config{}, err
	}

	cycleTimeout, err := parseDuration(v, "publish.cycle_timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		EventChannelBase:     v.GetString("events.channel"),
		JWTSecret:            v.GetString("jwt.secret"),
		PushGatewayURL:       v.GetString("push.gateway_url"),
		PushGatewayKey:       v.GetString("push.gateway_key"),
		PushTimeout:          pushTimeout,
		PublishInterval:      interval,
		PublishCycleTimeout:  cycleTimeout,
		PublishLockKey:       v.GetString("publish.lock_key"),
		PublishCountApproved: v.GetBool("publish.count_approved"),
		PublishRunOnStart:    v.GetBool("publish.run_on_start"),
		SubmitRateLimit:      v.GetInt("submit.rate_limit"),
		CORSAllowOrigins:     v.GetString("cors.allow_origins"),
		AccessLog:            v.GetBool("app.access_log"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.PublishInterval <= 0 {
		return Config{}, fmt.Errorf("publish interval must be positive")
	}

	if cfg.PublishCycleTimeout <= 0 {
		cfg.PublishCycleTimeout = time.Minute
	}

	if cfg.SubmitRateLimit <= 0 {
		cfg.SubmitRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}
