package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	// BootstrapConfig gates the one-time creation of the first administrator.
	BootstrapConfig struct {
		Key          string
		MaxAttempts  int
		LockoutDelta time.Duration
	}

	// AdminConfig holds the back-office secure-login settings.
	AdminConfig struct {
		Key           string
		AllowedEmails []string
		SourceTag     string
		SessionDelta  time.Duration
		MaxAttempts   int
		BlockDelta    time.Duration
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server    ServerConfig
		Bootstrap BootstrapConfig
		Admin     AdminConfig
	}
)

// NewConfig loads the app configuration from the environment,
// optionally extended by a config/.env.<env> file.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Campus")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "dir=g8#+r2p$sw&1kq)7mh^5t!co0ybn.ecole-moderne")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@ecole-moderne.fr")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8080")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("bootstrapKey", "")
	v.SetDefault("bootstrapMaxAttempts", 3)
	v.SetDefault("bootstrapLockoutDelta", 15*time.Minute)
	v.SetDefault("adminKey", "")
	v.SetDefault("adminAllowedEmails", []string{})
	v.SetDefault("adminSourceTag", "admin_backoffice")
	v.SetDefault("adminSessionDelta", 2*time.Hour)
	v.SetDefault("adminMaxAttempts", 3)
	v.SetDefault("adminBlockDelta", 15*time.Minute)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
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
		Debug:            v.GetBool("debug"),
		TestMode:         env == "TEST",
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Addr:                      v.GetString("serverAddr"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Bootstrap: BootstrapConfig{
			Key:          v.GetString("bootstrapKey"),
			MaxAttempts:  v.GetInt("bootstrapMaxAttempts"),
			LockoutDelta: v.GetDuration("bootstrapLockoutDelta"),
		},
		Admin: AdminConfig{
			Key:           v.GetString("adminKey"),
			AllowedEmails: v.GetStringSlice("adminAllowedEmails"),
			SourceTag:     v.GetString("adminSourceTag"),
			SessionDelta:  v.GetDuration("adminSessionDelta"),
			MaxAttempts:   v.GetInt("adminMaxAttempts"),
			BlockDelta:    v.GetDuration("adminBlockDelta"),
		},
	}
}
