// Package config はアプリケーションの設定を管理します
// 環境変数から設定を読み込み、デフォルト値を提供します
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ストアの種類
const (
	StoreRedis  = "redis"  // Redis（デフォルト）
	StoreSQLite = "sqlite" // SQLiteファイル
	StoreMemory = "memory" // プロセス内メモリ（開発・テスト用）
)

// ログ出力形式
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

var (
	ErrUnknownStoreDriver = errors.New("unknown store driver")
	ErrMissingSecret      = errors.New("SESSION_SECRET is required")
	ErrUnknownLogFormat   = errors.New("unknown log format")
)

// defaultAllowedOrigins はCORSで許可するデフォルトのオリジン一覧
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:3002",
}

// Config はアプリケーションの設定を保持します
type Config struct {
	APIAddr       string   `env:"API_ADDR"             envDefault:":8080"`
	RedisAddr     string   `env:"REDIS_ADDR"           envDefault:"localhost:6379"`
	RedisPassword string   `env:"REDIS_PASSWORD"`
	RedisDB       int      `env:"REDIS_DB"             envDefault:"0"`
	StoreDriver   string   `env:"STORE_DRIVER"         envDefault:"redis"`
	SQLitePath    string   `env:"SQLITE_PATH"          envDefault:"qa.db"`
	AllowedOrigin []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `env:"GOOGLE_REDIRECT_URI" envDefault:"http://localhost:8080/auth/google/callback"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL"    envDefault:"24h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load は環境変数から設定を読み込みます
// 環境変数が設定されていない場合はデフォルト値を使用します
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.AllowedOrigin = trimCSV(cfg.AllowedOrigin)
	if len(cfg.AllowedOrigin) == 0 {
		cfg.AllowedOrigin = append([]string(nil), defaultAllowedOrigins...)
	}
	return cfg, nil
}

// Validate は起動に必要な設定が揃っているかを確認します
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreRedis, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.StoreDriver)
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLogFormat, c.LogFormat)
	}
	if c.SessionSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

// GoogleEnabled はGoogleサインインが設定されているかを返します
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// trimCSV はカンマ区切りで得た値の空要素を取り除きます
func trimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
