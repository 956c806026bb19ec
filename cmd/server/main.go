package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/busybee/internal/config"
	"github.com/yukikurage/busybee/internal/database"
	"github.com/yukikurage/busybee/internal/handlers"
	"github.com/yukikurage/busybee/internal/logging"
	"github.com/yukikurage/busybee/internal/repository"
	"github.com/yukikurage/busybee/internal/sandbox"
	"github.com/yukikurage/busybee/internal/services"
	"github.com/yukikurage/busybee/internal/storage"
	"github.com/yukikurage/busybee/internal/urlfetch"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "busybee",
	Short: "Runs the busybee task tracker",
	Long: `Runs the busybee task tracker. Usage:

	busybee --addr :8080 --uploads ./uploads
	busybee migrate --db-driver sqlite --db-dsn busybee.db
`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), loadConfig(cmd))
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates or updates the snapshot tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if cfg.DBDriver == "" {
			return errors.New("migrate needs --db-driver or DB_DRIVER")
		}
		db, err := database.Open(cfg, log)
		if err != nil {
			return err
		}
		defer database.Close(db)
		return database.Migrate(db, log)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("addr", "", "listen address (overrides ADDR)")
	flags.String("uploads", "", "uploads directory (overrides UPLOADS_DIR)")
	flags.String("db-driver", "", "snapshot database: sqlite, mysql or postgres (overrides DB_DRIVER)")
	flags.String("db-dsn", "", "snapshot database DSN (overrides DB_DSN)")
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	override := func(name string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	override("addr", &cfg.Addr)
	override("uploads", &cfg.UploadsDir)
	override("db-driver", &cfg.DBDriver)
	override("db-dsn", &cfg.DBDSN)
	return cfg
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)
	if cfg.SessionSecret == config.DefaultSessionSecret {
		log.Warn("SESSION_SECRET is not set, using the default secret")
	}

	box, err := sandbox.New(cfg.UploadsDir)
	if err != nil {
		return fmt.Errorf("open uploads directory: %w", err)
	}
	defer box.Close()
	files := storage.New(box, storage.WithLogger(log))
	fetcher := urlfetch.New(files, urlfetch.WithLogger(log))

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	tasks, users, err := openStores(ctx, db, log)
	if err != nil {
		return err
	}

	authz := services.NewTasksAuthorization(tasks)
	auth := services.NewAuthService(users, cfg.BcryptCost)
	if cfg.SeedUsers {
		if err := services.NewSeeder(users, auth, os.Stdout, log).Seed(ctx); err != nil {
			return fmt.Errorf("seed accounts: %w", err)
		}
	}

	store, err := sessionStore(cfg)
	if err != nil {
		return err
	}

	router := handlers.SetupRouter(handlers.Deps{
		Auth:         auth,
		Tasks:        services.NewTaskService(tasks, users, authz, log),
		Comments:     services.NewCommentService(tasks, authz, files, fetcher, log),
		Authz:        authz,
		Files:        files,
		SessionStore: store,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if err := tasks.Flush(shutdownCtx); err != nil {
		log.Error("failed to flush tasks", "error", err)
	}
	if err := users.Flush(shutdownCtx); err != nil {
		log.Error("failed to flush accounts", "error", err)
	}
	return nil
}

// openStores builds the in-memory stores. With a database configured they
// are loaded from, and written back to, the snapshot tables.
func openStores(ctx context.Context, db *gorm.DB, log *slog.Logger) (*repository.TaskStore, *repository.UserStore, error) {
	if db == nil {
		log.Info("no database configured, state is kept in memory")
		return repository.NewTaskStore(), repository.NewUserStore(), nil
	}
	if err := database.Migrate(db, log); err != nil {
		return nil, nil, err
	}

	snap := database.NewSnapshot(db)
	tasks := repository.NewTaskStore(repository.WithTaskPersister(snap))
	users := repository.NewUserStore(repository.WithUserPersister(snap))

	loadedTasks, err := snap.LoadTasks(ctx)
	if err != nil {
		return nil, nil, err
	}
	loadedUsers, err := snap.LoadUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks.Load(loadedTasks)
	users.Load(loadedUsers)
	log.Info("state loaded", "tasks", len(loadedTasks), "accounts", len(loadedUsers))
	return tasks, users, nil
}

// sessionStore keeps sessions in Redis when REDIS_HOST is set and in signed
// cookies otherwise.
func sessionStore(cfg *config.Config) (sessions.Store, error) {
	var store sessions.Store
	if cfg.RedisHost != "" {
		rs, err := redisStore.NewStore(
			10,    // Redis pool size
			"tcp", // network type
			net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			"", // username (empty for default user)
			"", // password (empty = no password)
			[]byte(cfg.SessionSecret),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		store = rs
	} else {
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   cfg.IsRelease(),
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
