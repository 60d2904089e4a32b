package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/knowledge/internal/auth"
	"github.com/emrgen/knowledge/internal/cache"
	"github.com/emrgen/knowledge/internal/compress"
	"github.com/emrgen/knowledge/internal/config"
	"github.com/emrgen/knowledge/internal/jobs"
	"github.com/emrgen/knowledge/internal/notify"
	"github.com/emrgen/knowledge/internal/service"
	"github.com/emrgen/knowledge/internal/storage"
	"github.com/emrgen/knowledge/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gobuffalo/packr"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Server represents the server
type Server struct {
	cfg *config.Config
}

// NewServer creates a new server
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Start starts the server and blocks until it is interrupted
func (s *Server) Start() {
	if err := Start(s.cfg); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

// Start starts the http server with its background jobs and notification relays
func Start(cfg *config.Config) error {
	var err error

	if !cfg.IsTest() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpPort := ":" + cfg.HTTPPort
	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	db := config.GetDb(cfg)
	entryStore := store.NewGormStore(db)
	err = entryStore.Migrate()
	if err != nil {
		return err
	}

	compressor, err := compress.New(cfg.Compression)
	if err != nil {
		return err
	}

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		return err
	}

	hub := notify.NewHub()
	defer hub.Close()

	var graphCache cache.GraphCache = cache.NewNop()
	var broadcasters notify.Fanout

	// make sure to wait for the background goroutines to stop before exiting
	var wg sync.WaitGroup

	if rdb := config.GetRedis(cfg); rdb != nil {
		defer rdb.Close()
		graphCache = cache.NewRedis(rdb, cfg.CacheTTL)

		// every instance relays the published notifications to its own websocket clients
		broadcasters = append(broadcasters, notify.NewRedisBroadcaster(rdb))
		relay := notify.NewRedisRelay(rdb, hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil {
				logrus.Errorf("redis relay stopped: %v", err)
			}
		}()
	} else {
		broadcasters = append(broadcasters, hub)
	}

	if cfg.KafkaBrokers != "" {
		kafka, err := notify.NewKafkaBroadcaster(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer kafka.Close()
		broadcasters = append(broadcasters, kafka)
	}

	orgService := service.NewOrganizationService(entryStore)
	entryService := service.NewEntryService(compressor, entryStore, graphCache, broadcasters, files)
	backupService := service.NewEntryBackupService(entryStore, entryService)

	executor := jobs.NewTaskExecutor(
		jobs.NewLinkReconciler(cfg.ReconcileSchedule, orgService, entryService),
		jobs.NewBackupCleaner(cfg.BackupCleanSchedule, cfg.BackupRetention, entryStore),
	)
	if err := executor.Run(); err != nil {
		return err
	}
	defer executor.Stop()

	router := NewRouter(&App{
		Organizations: orgService,
		Entries:       entryService,
		Backups:       backupService,
		Verifier:      auth.NewHeaderVerifier(),
		AllowedRoles:  cfg.AllowedRoles,
		Subscriptions: hub,
		Docs:          packr.NewBox("../../docs/v1"),
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", auth.HeaderUserID, auth.HeaderUserRoles},
		AllowCredentials: true,
	})

	restServer := &http.Server{
		Addr:              httpPort,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting http server on: ", httpPort)
		logrus.Info("click on the following link to view the API documentation: http://localhost", httpPort, "/v1/docs/")
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting http server: %v", err)
			}
		}
		logrus.Infof("http server stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	err = restServer.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("error stopping http server: %v", err)
	}

	cancel()
	wg.Wait()

	return nil
}

func newFileStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	switch cfg.FileStorage {
	case config.FileStorageS3:
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logrus.Infof("storing files in s3 bucket %s", cfg.S3Bucket)
		return storage.NewS3Store(client, cfg.S3Bucket), nil
	default:
		logrus.Infof("storing files in %s", cfg.FileDir)
		return storage.NewLocalStore(cfg.FileDir)
	}
}
