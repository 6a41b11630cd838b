package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/harryweb/internal/aboutme"
	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/auth"
	"github.com/hitoshi/harryweb/internal/blog"
	"github.com/hitoshi/harryweb/internal/board"
	"github.com/hitoshi/harryweb/internal/config"
	"github.com/hitoshi/harryweb/internal/database"
	"github.com/hitoshi/harryweb/internal/handler"
	"github.com/hitoshi/harryweb/internal/logger"
	"github.com/hitoshi/harryweb/internal/metrics"
	"github.com/hitoshi/harryweb/internal/middleware"
	"github.com/hitoshi/harryweb/internal/notify"
	"github.com/hitoshi/harryweb/internal/security"
	"github.com/hitoshi/harryweb/internal/session"
	"github.com/hitoshi/harryweb/internal/storage"
	"github.com/hitoshi/harryweb/internal/user"
	"github.com/hitoshi/harryweb/internal/welcome"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで作り直す
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("storage_driver", string(cfg.StorageDriver)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// Application は組み立て済みのローカルサーバーと、その後始末に必要なリソース。
type Application struct {
	Handler http.Handler
	Session *session.Store

	rateLimiter *middleware.RateLimiter
	db          *sql.DB
}

// Close はレート制限の掃除goroutineとデータベース接続を解放する。
func (a *Application) Close() error {
	a.rateLimiter.Stop()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Build は設定から全依存関係をワイヤリングしてApplicationを組み立てる。
//
// ストレージ → セッションストア → APIクライアント → フック → ルーターの順に生成する。
// セッションストアはここで1つだけ生成し、すべての利用者に明示的に渡す。
func Build(cfg *config.Config, log *slog.Logger) (*Application, error) {
	if log == nil {
		log = slog.Default()
	}

	// 1. 永続ストレージ
	st, db, err := openStorage(cfg, log)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if db != nil {
			db.Close()
		}
	}

	// 2. セッションストア（起動時に永続ストレージから復元）
	store := session.New(st, session.Options{AggregateKey: cfg.StorageKey, Logger: log})

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(reg)

	// 4. 認証付きAPIクライアント
	client, err := apiclient.New(
		apiclient.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout},
		apiclient.WithLogger(log),
		apiclient.WithInterceptor(apiclient.RequestIDInterceptor()),
		apiclient.WithInterceptor(apiclient.TokenInterceptor(store)),
		apiclient.WithRecorder(collector),
	)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	// 5. 通知とフック
	center := notify.NewCenter(log)
	authService := auth.NewService(client, store, center, collector, log)
	userService := user.NewService(client, store, center, log)
	blogHook := blog.NewHook(client, center, log)
	boardHook := board.NewHook(client, center, log)
	welcomeHook := welcome.NewHook(client, center, log)
	aboutmeHook := aboutme.NewHook(client, center, log)

	// 6. ルーター
	flashes := middleware.NewFlashStore(middleware.FlashConfig{
		Secret:       cfg.SessionSecret,
		CookieSecure: cfg.CookieSecure,
	}, log)
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitGeneral), log)

	deps := &handler.RouterDeps{
		Logger:            log,
		Session:           store,
		Flashes:           flashes,
		Notifications:     center,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           metrics.Handler(reg),
		Sanitizer:         security.NewContentSanitizer(security.MediaOrigin(cfg.APIBaseURL)),

		Auth:    authService,
		Users:   userService,
		Blogs:   blogHook,
		Board:   boardHook,
		Welcome: welcomeHook,
		Aboutme: aboutmeHook,
	}
	if db != nil {
		deps.HealthChecker = db
	}

	return &Application{
		Handler:     handler.NewRouter(deps),
		Session:     store,
		rateLimiter: rateLimiter,
		db:          db,
	}, nil
}

// openStorage は STORAGE_DRIVER に応じた永続ストレージを開く。
// SQL系のドライバでは *sql.DB も返す。STORAGE_SECRET が設定されていれば値を暗号化する。
func openStorage(cfg *config.Config, log *slog.Logger) (storage.Storage, *sql.DB, error) {
	var (
		st  storage.Storage
		db  *sql.DB
		err error
	)

	switch cfg.StorageDriver {
	case storage.DriverMemory:
		st = storage.NewMemoryStorage()
	case storage.DriverFile:
		st, err = storage.NewFileStorage(cfg.StoragePath, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open storage file: %w", err)
		}
	case storage.DriverSQLite:
		db, err = database.OpenSQLite(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		st, err = storage.NewSQLStorage(db, storage.DialectSQLite)
	case storage.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout)
		db, err = database.Connect(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return nil, nil, err
		}
		log.Info("database connection established")
		st, err = storage.NewSQLStorage(db, storage.DialectPostgres)
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}

	if cfg.StorageSecret != "" {
		sealed, err := storage.NewSealed(st, cfg.StorageSecret, log)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, nil, fmt.Errorf("failed to seal storage: %w", err)
		}
		st = sealed
	}
	return st, db, nil
}

// runServe はローカルサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	application, err := Build(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer application.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      application.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("local server starting",
			slog.String("addr", server.Addr),
			slog.Bool("logged_in", application.Session.IsLoggedIn()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down local server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("local server stopped gracefully")
	return nil
}

// runMigrate はPostgreSQLストレージのマイグレーションを実行する。
// 他のドライバではスキーマが不要または起動時に適用されるため何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageDriver != storage.DriverPostgres {
		slog.Info("no migrations for storage driver",
			slog.String("storage_driver", string(cfg.StorageDriver)),
		)
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
