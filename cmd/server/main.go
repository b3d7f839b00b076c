package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/api"
	"github.com/alptraumtech/lms/internal/app"
	iauth "github.com/alptraumtech/lms/internal/auth"
	"github.com/alptraumtech/lms/internal/database"
	"github.com/alptraumtech/lms/internal/licensing"
	"github.com/alptraumtech/lms/internal/scanner"
	"github.com/alptraumtech/lms/internal/services"
	"github.com/alptraumtech/lms/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lms-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	var mirrorDB *gorm.DB
	defer func() { closeDatabases(log, db, mirrorDB) }()

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	licenseService, licenseChecker, mirrorDB, err := initialiseLicensing(cfg, db)
	if err != nil {
		return err
	}
	if licenseChecker != nil {
		if err := licenseChecker.Start(ctx); err != nil {
			return fmt.Errorf("start license checker: %w", err)
		}
		defer licenseChecker.Stop()
	}

	maintenance, err := startMaintenance(ctx, db, cfg.Audit.RetentionDays)
	if err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() { <-maintenance.Stop().Done() }()

	if cfg.Scanner.Enabled {
		listener, err := startScanner(ctx, cfg, db)
		if err != nil {
			log.Warn("rfid scanner unavailable", zap.Error(err))
		} else {
			defer listener.Stop()
		}
	}

	router, err := api.NewRouter(db, jwtService, cfg, licenseService)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseLicensing(cfg *app.Config, db *gorm.DB) (*licensing.Service, *licensing.Checker, *gorm.DB, error) {
	if !cfg.Licensing.Enabled {
		return nil, nil, nil, nil
	}

	client, err := licensing.NewClient(cfg.Licensing.ServerURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialise licensing client: %w", err)
	}

	// The licensing schema may live in a shared MySQL mirror instead of the
	// local store.
	licenseDB := db
	var mirrorDB *gorm.DB
	if cfg.Mirror.Enabled {
		mirrorDB, err = database.Open(database.Config{
			Driver:   "mysql",
			Host:     cfg.Mirror.Host,
			Port:     cfg.Mirror.Port,
			Name:     cfg.Mirror.Database,
			User:     cfg.Mirror.Username,
			Password: cfg.Mirror.Password,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open licensing mirror: %w", err)
		}
		licenseDB = mirrorDB
	}

	service, err := licensing.NewService(licenseDB, client)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialise licensing service: %w", err)
	}

	checker, err := licensing.NewChecker(service, cfg.Licensing.Schedule)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialise license checker: %w", err)
	}

	return service, checker, mirrorDB, nil
}

// startMaintenance schedules the daily audit log retention sweep.
func startMaintenance(ctx context.Context, db *gorm.DB, retentionDays int) (*cron.Cron, error) {
	auditService, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}

	jobs := cron.New()
	log := logger.WithModule("maintenance")

	_, err = jobs.AddFunc("@daily", func() {
		removed, err := auditService.CleanupOlderThan(ctx, retentionDays)
		if err != nil {
			log.Warn("audit log cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			log.Info("audit logs pruned", zap.Int64("removed", removed))
		}
	})
	if err != nil {
		return nil, err
	}

	jobs.Start()
	return jobs, nil
}

// startScanner attaches the RFID reader and logs tag reads as they resolve
// to directory records. Kiosk frontends consume the same reads over the
// /api/auth/login/rfid endpoint.
func startScanner(ctx context.Context, cfg *app.Config, db *gorm.DB) (*scanner.Listener, error) {
	open := func(ctx context.Context) (io.ReadWriteCloser, error) {
		device := strings.TrimSpace(cfg.Scanner.Device)
		if strings.Contains(device, ":") {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "tcp", device)
		}
		return os.OpenFile(device, os.O_RDWR, 0)
	}

	listener, err := scanner.NewListener(open, cfg.Scanner.MaxReconnect, cfg.Scanner.Backoff)
	if err != nil {
		return nil, err
	}

	if err := listener.Start(ctx); err != nil {
		return nil, err
	}

	directoryService, err := services.NewDirectoryService(db, nil)
	if err != nil {
		listener.Stop()
		return nil, err
	}

	go func() {
		log := logger.WithModule("scanner")
		for event := range listener.Events() {
			employee, err := directoryService.FindByRFID(ctx, event.UID)
			if err != nil {
				log.Warn("unmatched rfid tag", zap.String("uid", event.UID))
				continue
			}
			log.Info("rfid tag resolved",
				zap.String("uid", event.UID),
				zap.Uint("employee_id", employee.ID))
		}
	}()

	return listener, nil
}

// closeDatabases closes every open connection pool, collecting the failures
// so one bad handle does not hide the rest.
func closeDatabases(log *zap.Logger, dbs ...*gorm.DB) {
	var errs error
	for _, db := range dbs {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fetch handle: %w", err))
			continue
		}
		if err := sqlDB.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close: %w", err))
		}
	}
	if errs != nil {
		log.Warn("close databases", zap.Error(errs))
	}
}
