package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	App          AppConfig
	Session      SessionConfig
	Verification VerificationConfig
	Email        EmailConfig
	OAuth        OAuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// AppConfig holds application-level settings.
type AppConfig struct {
	// URL is the public base URL used to build verification links and
	// post-verification redirects, e.g. "https://studio.manumu.com".
	URL string

	// CORSOrigins is the list of allowed browser origins.
	CORSOrigins []string
}

// SessionConfig holds JWT session settings.
type SessionConfig struct {
	// Secret signs session JWTs (HS256). Required, min 32 bytes.
	Secret string

	// ExpirationHrs is the session token lifetime in hours.
	ExpirationHrs int
}

// VerificationConfig holds email verification token settings.
type VerificationConfig struct {
	// TokenTTLMin is the verification token time-to-live in minutes.
	TokenTTLMin int

	// ResendCooldownMin is the minimum interval between token issuances
	// for the same email, in minutes.
	ResendCooldownMin int
}

// EmailConfig holds outbound email settings. An empty ResendAPIKey selects the
// log-only email channel for local development.
type EmailConfig struct {
	ResendAPIKey string
	From         string
}

// OAuthConfig holds OAuth provider credentials. A provider is enabled only
// when both its client ID and secret are present.
type OAuthConfig struct {
	Google OAuthProviderConfig
	GitHub OAuthProviderConfig
}

// OAuthProviderConfig holds one provider's client credentials.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the provider has credentials configured.
func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// TokenTTL returns the verification token TTL as a duration.
func (v *VerificationConfig) TokenTTL() time.Duration {
	return time.Duration(v.TokenTTLMin) * time.Minute
}

// ResendCooldown returns the resend cooldown as a duration.
func (v *VerificationConfig) ResendCooldown() time.Duration {
	return time.Duration(v.ResendCooldownMin) * time.Minute
}

// bindDatabase registers the database defaults and env bindings on vip.
func bindDatabase(vip *viper.Viper) {
	vip.SetDefault("database.sslmode", "disable")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
}

// readOptionalConfigFile loads the YAML file at configPath into vip if one was
// given; a missing file falls back to environment variables and defaults.
func readOptionalConfigFile(vip *viper.Viper, configPath string) error {
	if configPath == "" {
		return nil
	}
	vip.SetConfigFile(configPath)
	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Config file '%s' not found, using environment variables and defaults.", configPath)
			return nil
		}
		return fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}
	return nil
}

// Load reads configuration from an optional YAML file and the environment.
func Load(configPath string) (*Config, error) {
	vip := viper.New() // fresh instance, no global viper state

	// Defaults
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 10)
	vip.SetDefault("server.writetimeout", 10)
	vip.SetDefault("app.url", "http://localhost:3000")
	vip.SetDefault("session.expirationhrs", 24)
	vip.SetDefault("verification.tokenttlmin", 30)
	vip.SetDefault("verification.resendcooldownmin", 2)
	vip.SetDefault("email.from", "ManuMu Studio <onboarding@resend.dev>")

	bindDatabase(vip)

	// Explicit environment bindings
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.readtimeout", "SERVER_READ_TIMEOUT")
	vip.BindEnv("server.writetimeout", "SERVER_WRITE_TIMEOUT")

	vip.BindEnv("app.url", "APP_URL")
	vip.BindEnv("app.corsorigins", "APP_CORS_ORIGINS")

	vip.BindEnv("session.secret", "SESSION_SECRET")
	vip.BindEnv("session.expirationhrs", "SESSION_EXPIRATION_HRS")

	vip.BindEnv("verification.tokenttlmin", "VERIFY_TOKEN_TTL_MINUTES")
	vip.BindEnv("verification.resendcooldownmin", "VERIFY_RESEND_COOLDOWN_MINUTES")

	vip.BindEnv("email.resendapikey", "RESEND_API_KEY")
	vip.BindEnv("email.from", "RESEND_FROM")

	vip.BindEnv("oauth.google.clientid", "GOOGLE_CLIENT_ID")
	vip.BindEnv("oauth.google.clientsecret", "GOOGLE_CLIENT_SECRET")
	vip.BindEnv("oauth.github.clientid", "GITHUB_CLIENT_ID")
	vip.BindEnv("oauth.github.clientsecret", "GITHUB_CLIENT_SECRET")

	if err := readOptionalConfigFile(vip, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Session.Secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if len(cfg.Session.Secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 characters")
	}

	return &cfg, nil
}

// LoadDatabase reads only the database settings. Maintenance tools that just
// need a connection use this so they do not have to carry the full
// application environment (SESSION_SECRET in particular).
func LoadDatabase(configPath string) (*DatabaseConfig, error) {
	vip := viper.New()

	bindDatabase(vip)

	if err := readOptionalConfigFile(vip, configPath); err != nil {
		return nil, err
	}

	var cfg struct {
		Database DatabaseConfig
	}
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg.Database, nil
}
