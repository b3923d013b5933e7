// Package logging は構造化ロガーを作成します
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New は標準エラー出力に書き出すロガーを作成します
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter は出力先を指定してロガーを作成します
// format が "json" のときはJSON、それ以外はテキスト形式になります
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel はログレベル名を slog.Level に変換します
// 不明な値は info として扱います
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
