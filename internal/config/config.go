package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	BcryptCost      int           `mapstructure:"BCRYPT_COST"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`
	UploadDir       string        `mapstructure:"UPLOAD_DIR"`
	SMTPHost        string        `mapstructure:"SMTP_HOST"`
	SMTPPort        string        `mapstructure:"SMTP_PORT"`
	SMTPUser        string        `mapstructure:"SMTP_USER"`
	SMTPPass        string        `mapstructure:"SMTP_PASS"`
	AdminEmail      string        `mapstructure:"ADMIN_EMAIL"`
	ResetBaseURL    string        `mapstructure:"RESET_BASE_URL"`
	CookieDomain    string        `mapstructure:"COOKIE_DOMAIN"`
	CookieSecure    bool          `mapstructure:"COOKIE_SECURE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("RESET_BASE_URL", "http://localhost:5173/reset-password")
	v.SetDefault("COOKIE_SECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
