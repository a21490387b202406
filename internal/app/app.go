package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"

	"github.com/semmidev/dbvault/internal/adapter/compressor"
	"github.com/semmidev/dbvault/internal/adapter/database"
	"github.com/semmidev/dbvault/internal/adapter/report"
	"github.com/semmidev/dbvault/internal/adapter/storage"
	"github.com/semmidev/dbvault/internal/config"
	"github.com/semmidev/dbvault/internal/domain"
	"github.com/semmidev/dbvault/internal/infrastructure/logger"
	"github.com/semmidev/dbvault/internal/infrastructure/scheduler"
	"github.com/semmidev/dbvault/internal/usecase"
)

type App struct {
	loader    config.Loader
	logger    *logger.Logger
	scheduler *scheduler.Daily
	output    io.Writer

	newLister func(config.ServerConfig) domain.DatabaseLister
}

// New loads the startup configuration, which fixes the logger and the daily
// trigger for the lifetime of the process. Everything else is reloaded at the
// start of each cycle.
func New(loader config.Loader) (*App, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.App)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	at, err := config.ParseTriggerTime(cfg.Schedule.TriggerTime)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.New(at, cfg.Location(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	log.Infof("Starting %s, daily trigger at %s (%s)", cfg.App.Name, cfg.Schedule.TriggerTime, cfg.Location())

	return &App{
		loader:    loader,
		logger:    log,
		scheduler: sched,
		output:    os.Stdout,
		newLister: func(server config.ServerConfig) domain.DatabaseLister {
			return database.NewMySQLLister(server)
		},
	}, nil
}

// Run blocks until ctx is cancelled, running one backup cycle per trigger.
func (a *App) Run(ctx context.Context) error {
	return a.scheduler.Run(ctx, func(ctx context.Context) {
		a.logger.Infof("=== Triggered scheduled backup cycle ===")
		if err := a.RunCycle(ctx); err != nil {
			a.logger.Errorf("Backup cycle aborted: %v", err)
		}
	})
}

// RunCycle reloads the configuration and runs a single backup cycle.
func (a *App) RunCycle(ctx context.Context) error {
	cfg, err := a.loader.Load()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if err := cfg.ValidateTarget(); err != nil {
		return err
	}

	lister := a.newLister(cfg.Server)
	if err := lister.Ping(ctx); err != nil {
		return fmt.Errorf("connect to %s:%d: %w", cfg.Server.Host, cfg.Server.Port, err)
	}
	a.logger.Infof("✓ Connected to %s:%d", cfg.Server.Host, cfg.Server.Port)

	targets, notifiers := initializeUploadTargets(ctx, cfg, a.logger)

	archiver := compressor.NewZip(cfg.Backup.Passphrase, a.logger)
	backupUC := usecase.NewBackup(
		database.NewMySQLDump(cfg.Server, cfg.Backup),
		archiver,
		storage.NewLocal(cfg.Backup.Folder),
		targets,
		a.logger,
		usecase.BackupOptions{
			TimeFormat: cfg.Backup.TimeFormat,
			KeepCount:  cfg.Backup.KeepCount,
		},
	)

	cycle := usecase.NewCycle(lister, backupUC, a.logger, usecase.CycleOptions{
		Exports:   cfg.Backup.Exports,
		Forgets:   cfg.Backup.Forgets,
		Reporter:  report.NewTable(a.output),
		Notifiers: notifiers,
		Cleanup: usecase.NewCleanup(
			targets,
			a.logger,
			cfg.Backup.RemoteRetentionDays,
			cfg.Backup.TimeFormat,
		),
	})

	if _, err := cycle.Execute(ctx); err != nil {
		return err
	}
	return nil
}

func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]usecase.UploadTarget, []domain.Notifier) {
	var targets []usecase.UploadTarget
	var notifiers []domain.Notifier

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage

		switch targetCfg.Type {
		case "gdrive":
			var oauthConfig *oauth2.Config
			if targetCfg.ClientSecretFile != "" {
				c, err := LoadOAuthConfig(targetCfg.ClientSecretFile)
				if err != nil {
					log.Errorf("Failed to initialize Google Drive: %v", err)
					continue
				}
				oauthConfig = c
			}
			gdrive, err := storage.NewGDrive(ctx, &targetCfg, oauthConfig)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			stor = gdrive
			log.Infof("✓ Google Drive upload enabled")

		case "s3":
			s3, err := storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			stor = s3
			log.Infof("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		case "telegram":
			telegram, err := storage.NewTelegram(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram: %v", err)
				continue
			}
			stor = telegram
			notifiers = append(notifiers, telegram)
			log.Infof("✓ Telegram upload enabled")

		case "local":
			// The destination folder is always written.
			continue

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets, notifiers
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.logger.Close()
}
