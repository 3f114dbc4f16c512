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
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/adherence/internal/config"
	"github.com/rpggio/adherence/internal/domain/activity"
	"github.com/rpggio/adherence/internal/domain/aggregate"
	"github.com/rpggio/adherence/internal/domain/coordinator"
	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/firestore"
	"github.com/rpggio/adherence/internal/mcp"
	"github.com/rpggio/adherence/internal/metrics"
	"github.com/rpggio/adherence/internal/remote"
	"github.com/rpggio/adherence/internal/sqlite"
	"github.com/rpggio/adherence/internal/transport"
)

const usage = `usage: adherence [command]

commands:
  serve                      run the tool server (default)
  status -user ID            print the sync status of a user
  apikey -user ID -token T   register a bearer token for a user
`

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(cfg)
	case "status":
		err = runStatus(cfg, args, os.Stdout)
	case "apikey":
		err = runAPIKey(cfg, args, os.Stdout)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func serve(cfg config.Config) error {
	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := openRemote(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	queueRepo := sqlite.NewQueueRepository(db)
	symptomRepo := sqlite.NewSymptomRepository(db)
	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), logger)
	queue := syncqueue.NewService(queueRepo, cfg.Queue, logger, syncqueue.WithObserver(m))

	if err := preloadQueues(ctx, queueRepo, queue); err != nil {
		return err
	}

	coord := coordinator.New(coordinator.Deps{
		Cache:    sqlite.NewCacheRepository(db),
		Queue:    queue,
		Remote:   store,
		Symptoms: symptom.NewService(symptomRepo, logger),
		Activity: activitySvc,
		Recorder: m,
		Logger:   logger,
	}, coordinator.Config{
		DuplicateWindow: cfg.Cache.DuplicateWindow,
		IndicatorDelay:  cfg.Sync.IndicatorDelay,
		PersistTimeout:  cfg.Sync.PersistTimeout,
	})
	coord.Start(ctx, cfg.Sync.DrainInterval)
	defer func() {
		stop()
		coord.Wait()
	}()

	apiKeys := sqlite.NewAPIKeyRepository(db)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Sync:      coord,
			Queue:     queue,
			Summaries: aggregate.NewService(symptomRepo, logger),
			Activity:  activitySvc,
		},
		Resolver:      apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		return runStdioMode(ctx, logger, mcpServer)
	}

	var resolver transport.TenantResolver
	if cfg.Auth.Enabled {
		resolver = apiKeys
	}
	return runHTTPMode(ctx, logger, mcpServer, transport.Options{
		Metrics:  m.Handler(),
		Resolver: resolver,
		Logger:   logger,
	}, cfg.Server.Host, cfg.Server.Port)
}

func openDB(cfg config.Config) (*sqlite.DB, error) {
	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("prepare database path: %w", err)
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openRemote(ctx context.Context, cfg config.Config) (remote.Store, func() error, error) {
	if cfg.Remote.Backend != "firestore" {
		return remote.NewMemoryStore(), func() error { return nil }, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Remote.Timeout)
	defer cancel()
	store, err := firestore.New(dialCtx, cfg.Remote.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// preloadQueues loads every persisted queue so the background drain picks up
// writes left over from a previous run.
func preloadQueues(ctx context.Context, repo *sqlite.QueueRepository, queue *syncqueue.Service) error {
	users, err := repo.Users(ctx)
	if err != nil {
		return err
	}
	for _, userID := range users {
		if _, err := queue.Status(ctx, userID); err != nil {
			return fmt.Errorf("load queue for %s: %w", userID, err)
		}
	}
	return nil
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or the context is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server, opts transport.Options, host string, port int) error {
	opts.MCP = sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           transport.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
