package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/auth"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/config"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/handlers"
	httpx "github.com/SteamVC/SteamVC_QA/backend/api-server/internal/http"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/logging"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/repo"
	"github.com/SteamVC/SteamVC_QA/backend/api-server/internal/service"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env があれば読み込む（なくてもよい）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, closer, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if !cfg.GoogleEnabled() {
		log.Warn("GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET not set; sign-in will fail")
	}
	connector := auth.NewGoogleConnector(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
	})
	codec := auth.NewTokenCodec([]byte(cfg.SessionSecret), cfg.SessionTTL)

	svc := service.NewRoomService(store, service.NewRoomIDGenerator())
	router := httpx.NewRouter(httpx.Handlers{
		Room:      handlers.NewRoomHandler(svc, log),
		WebSocket: handlers.NewWebSocketHandler(svc, cfg.AllowedOrigin, log),
		Auth:      handlers.NewAuthHandler(connector, codec, cfg.SessionTTL, cfg.SecureCookies, log),
		Pages:     handlers.NewPageHandler(svc, log),
		Session:   handlers.NewSessionMiddleware(connector, codec, log),
	}, cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown用のシグナルチャネル
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// サーバーを別goroutineで起動
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.APIAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// シャットダウンシグナルかサーバーのエラーを待つ
	select {
	case <-sigChan:
		log.Info("shutdown signal received, shutting down gracefully...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// 30秒のタイムアウトでGraceful Shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("server stopped")
	return nil
}

// openStore は設定に応じたストアを開きます
func openStore(cfg config.Config, log *slog.Logger) (repo.RoomRepo, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			PoolSize:     10,              // 接続プールサイズ
			MinIdleConns: 5,               // 最小アイドル接続数
			MaxRetries:   3,               // リトライ回数
			DialTimeout:  5 * time.Second, // 接続タイムアウト
			ReadTimeout:  3 * time.Second, // 読み込みタイムアウト
			WriteTimeout: 3 * time.Second, // 書き込みタイムアウト
			PoolTimeout:  4 * time.Second, // プールからの取得タイムアウト
		})
		// Redis接続確認
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("connected to redis", "addr", cfg.RedisAddr)
		return repo.NewRedisRoomRepo(rdb), rdb, nil
	case config.StoreSQLite:
		r, err := repo.OpenSQLiteRoomRepo(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("opened sqlite store", "path", cfg.SQLitePath)
		return r, r, nil
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return repo.NewMemoryRoomRepo(), io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownStoreDriver, cfg.StoreDriver)
	}
}
