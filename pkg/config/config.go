package config

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Gateway struct {
		BaseURL       string        `mapstructure:"BASE_URL"`
		APIKey        string        `mapstructure:"API_KEY"`
		WebhookSecret string        `mapstructure:"WEBHOOK_SECRET"`
		Currency      string        `mapstructure:"CURRENCY"`
		Timeout       time.Duration `mapstructure:"TIMEOUT"`
	} `mapstructure:"GATEWAY"`
	Fraud struct {
		VelocityWindow      time.Duration `mapstructure:"VELOCITY_WINDOW"`
		VelocityThreshold   int64         `mapstructure:"VELOCITY_THRESHOLD"`
		AmountMultiplier    int64         `mapstructure:"AMOUNT_MULTIPLIER"`
		MinHistory          int64         `mapstructure:"MIN_HISTORY"`
		FailedAuthWindow    time.Duration `mapstructure:"FAILED_AUTH_WINDOW"`
		FailedAuthThreshold int64         `mapstructure:"FAILED_AUTH_THRESHOLD"`
	} `mapstructure:"FRAUD"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func LoadConfig(p Params) *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		os.Exit(1)
	}

	applyDefaults(&cfg)

	if p.Vault != nil {
		client := p.Vault
		ctx := context.Background()

		zap.L().Info("Starting Get Secrets", zap.String("path", cfg.AppEnv))
		secret, err := client.Secrets.KvV2Read(ctx, cfg.AppEnv, vault.WithMountPath("secret"))
		if err != nil {
			zap.L().Error("failed get secret from vault", zap.Error(err))
			os.Exit(1)
		}
		zap.L().Info("Success Get Secret")

		get := func(key string) string {
			if val, ok := secret.Data.Data[key].(string); ok {
				return val
			}
			return ""
		}

		cfg.Database.User = get("postgres_user")
		cfg.Database.Password = get("postgres_password")
		cfg.Redis.Password = get("redis_password")
		cfg.Gateway.APIKey = get("gateway_api_key")
		cfg.Gateway.WebhookSecret = get("gateway_webhook_secret")
	}

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Gateway.Currency == "" {
		cfg.Gateway.Currency = "usd"
	}
	if cfg.Fraud.VelocityWindow == 0 {
		cfg.Fraud.VelocityWindow = 10 * time.Minute
	}
	if cfg.Fraud.VelocityThreshold == 0 {
		cfg.Fraud.VelocityThreshold = 5
	}
	if cfg.Fraud.AmountMultiplier == 0 {
		cfg.Fraud.AmountMultiplier = 5
	}
	if cfg.Fraud.MinHistory == 0 {
		cfg.Fraud.MinHistory = 3
	}
	if cfg.Fraud.FailedAuthWindow == 0 {
		cfg.Fraud.FailedAuthWindow = 30 * time.Minute
	}
	if cfg.Fraud.FailedAuthThreshold == 0 {
		cfg.Fraud.FailedAuthThreshold = 5
	}
}
