// cmd/backup/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semmidev/dbvault/internal/app"
	"github.com/semmidev/dbvault/internal/config"
	"github.com/semmidev/dbvault/internal/infrastructure/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	loader := config.Loader{}

	root := &cobra.Command{
		Use:           "backup",
		Short:         "Scheduled MySQL backups into encrypted zip archives",
		Long:          "Dumps the selected databases of a MySQL server once a day, stores each dump as an AES-256 encrypted zip and keeps only the newest archives.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(loader)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer application.Shutdown()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&loader.ConfigPath, "config", "configs/config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&loader.EnvFile, "env-file", ".env", "path to .env file")

	root.AddCommand(newOnceCmd(&loader), newGDriveAuthCmd(&loader))
	return root
}

func newOnceCmd(loader *config.Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single backup cycle now and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(*loader)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer application.Shutdown()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return application.RunCycle(ctx)
		},
	}
}

func newGDriveAuthCmd(loader *config.Loader) *cobra.Command {
	var addr string
	var clientSecret string

	cmd := &cobra.Command{
		Use:   "gdrive-auth",
		Short: "Serve the Google Drive consent flow to obtain a refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log, err := logger.New(cfg.App)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer log.Close()

			if clientSecret == "" {
				for _, target := range cfg.UploadTargets {
					if target.Type == "gdrive" && target.ClientSecretFile != "" {
						clientSecret = target.ClientSecretFile
						break
					}
				}
			}

			service, err := app.NewGoogleOAuthService(log, clientSecret)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := service.StartAuthServer(ctx, addr); err != nil {
				return err
			}
			<-ctx.Done()

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return service.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address of the OAuth helper")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "client_secret.json, defaults to the gdrive upload target's client_secret_file")
	return cmd
}
