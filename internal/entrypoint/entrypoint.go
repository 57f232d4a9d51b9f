package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookstacks/catalog/internal/catalog"
	"github.com/bookstacks/catalog/internal/config"
	http_controllers "github.com/bookstacks/catalog/internal/http"
	"github.com/bookstacks/catalog/internal/scheduler"
	"github.com/bookstacks/catalog/internal/store"
	"github.com/bookstacks/catalog/internal/store/mongostore"
	"github.com/bookstacks/catalog/internal/store/neostore"
	"github.com/bookstacks/catalog/internal/store/pgstore"
	"github.com/bookstacks/catalog/internal/store/sqlstore"
	"github.com/bookstacks/catalog/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// OpenStore opens the catalog store selected by the configuration.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite, "":
		return sqlstore.Open(cfg.Store.SQLitePath)
	case config.StoreDriverPostgres:
		if cfg.Store.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required for the postgres store driver")
		}
		return pgstore.Open(ctx, cfg.Store.PostgresDSN)
	case config.StoreDriverMongo:
		return mongostore.Open(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
	case config.StoreDriverNeo4j:
		return neostore.Open(ctx, cfg.Store.Neo4jURI, cfg.Store.Neo4jUser, cfg.Store.Neo4jPassword)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting library catalog v%s", version)

	ctx := context.Background()

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()

	// Load seed data on first run
	books, err := st.ListBooks(ctx)
	if err != nil {
		log.Fatalf("Failed to read catalog: %v", err)
	}
	if len(books) == 0 {
		log.Printf("Catalog is empty, loading seed data")
		if err := st.Reset(ctx); err != nil {
			log.Fatalf("Failed to load seed data: %v", err)
		}
	}

	service := catalog.NewService(st, cfg.Loans.FineDailyRate)

	var adminPasswordHash []byte
	if cfg.Admin.Password != "" {
		adminPasswordHash, err = bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), cfg.Admin.BcryptCost)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
	} else {
		log.Printf("WARNING: admin password is not set, catalog resets are unprotected. Set 'ADMIN_PASSWORD' to require one.")
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Tasks.DBPath, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewOverdueScanQueue(service, taskClient),
			tasks.NewOverdueNoticeQueue(),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Schedule the overdue sweep
	var sweep *scheduler.OverdueSweepScheduler
	if cfg.OverdueSweep.Enabled && taskClient != nil {
		sweep = scheduler.NewOverdueSweepScheduler(taskClient, cfg.OverdueSweep.Schedule)
		if err := sweep.Start(ctx); err != nil {
			log.Fatalf("Failed to start overdue sweep scheduler: %v", err)
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Service:           service,
		Store:             st,
		AdminPasswordHash: adminPasswordHash,
		CSRFSecret:        []byte(cfg.HTTP.CSRFSecret),
		SecureCookies:     cfg.HTTP.SecureCookies,
		TaskClient:        taskClient,
		TaskWorkers:       cfg.Tasks.Workers,
		Version:           version,
	}
	router := http_controllers.NewRouter(routerCfg)

	Serve(router, cfg, func(shutdownCtx context.Context) {
		if sweep != nil {
			sweep.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(shutdownCtx)
		}
		if taskCtxCancel != nil {
			taskCtxCancel()
		}
	})
}
