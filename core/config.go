package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf is the process-wide configuration, loaded once at start up.
var Conf = NewConfig()

type (
	ServerConfig struct {
		Address                   string
		DebugAddress              string
		Host                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		AuthRateLimit             float64 // requests per second, per client IP
		AuthRateBurst             int
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	StripeConfig struct {
		SecretKey     string
		WebhookSecret string
		PriceID       string
		SuccessURL    string
		CancelURL     string
	}

	PushConfig struct {
		ExpoURL         string
		ExpoAccessToken string
		BatchSize       int
		Concurrency     int
	}

	// RulesConfig holds the business rules that operators may tune.
	RulesConfig struct {
		PasswordResetTimeoutDelta time.Duration
		OTPTTL                    time.Duration
		OTPMaxAttempts            int
		SpinCooldown              time.Duration
		VoucherValidity           time.Duration
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Stripe   StripeConfig
		Push     PushConfig
		Rules    RulesConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig reads the configuration from the environment (prefixed by $ENV) and the optional
// `config/.env.<env>` file, falling back to development defaults.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "CampusDeals")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "x7-o1k%ur0qz(4n&mb2#w$e9hs!p6tdf3+jy5=c8lgv_ai")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "CampusDeals")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugAddress", ":4000")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("shutdownTimeout", 5*time.Second)
	v.SetDefault("authRateLimit", 0.2)
	v.SetDefault("authRateBurst", 5)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "campusdeals")
	v.SetDefault("dbUser", "campusdeals")
	v.SetDefault("dbPassword", "campusdeals")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("redisAddress", "")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)

	v.SetDefault("stripeSecretKey", "")
	v.SetDefault("stripeWebhookSecret", "")
	v.SetDefault("stripePriceID", "")
	v.SetDefault("stripeSuccessURL", "http://localhost:3000/business/billing/success")
	v.SetDefault("stripeCancelURL", "http://localhost:3000/business/billing/cancel")

	v.SetDefault("expoURL", "https://exp.host/--/api/v2/push/send")
	v.SetDefault("expoAccessToken", "")
	v.SetDefault("pushBatchSize", 100)
	v.SetDefault("pushConcurrency", 4)

	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("otpTTL", 10*time.Minute)
	v.SetDefault("otpMaxAttempts", 5)
	v.SetDefault("spinCooldown", 12*time.Hour)
	v.SetDefault("voucherValidity", 30*24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:                   v.GetString("serverAddress"),
			DebugAddress:              v.GetString("serverDebugAddress"),
			Host:                      v.GetString("serverHost"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("shutdownTimeout"),
			AuthRateLimit:             v.GetFloat64("authRateLimit"),
			AuthRateBurst:             v.GetInt("authRateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redisAddress"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripeSecretKey"),
			WebhookSecret: v.GetString("stripeWebhookSecret"),
			PriceID:       v.GetString("stripePriceID"),
			SuccessURL:    v.GetString("stripeSuccessURL"),
			CancelURL:     v.GetString("stripeCancelURL"),
		},
		Push: PushConfig{
			ExpoURL:         v.GetString("expoURL"),
			ExpoAccessToken: v.GetString("expoAccessToken"),
			BatchSize:       v.GetInt("pushBatchSize"),
			Concurrency:     v.GetInt("pushConcurrency"),
		},
		Rules: RulesConfig{
			PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
			OTPTTL:                    v.GetDuration("otpTTL"),
			OTPMaxAttempts:            v.GetInt("otpMaxAttempts"),
			SpinCooldown:              v.GetDuration("spinCooldown"),
			VoucherValidity:           v.GetDuration("voucherValidity"),
		},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (env=%s, build=%s, debug=%t)", c.AppName, c.Env, c.Build, c.Debug)
}
