package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/launcher/pkg/api"
	"github.com/openclaw/launcher/pkg/config"
	"github.com/openclaw/launcher/pkg/log"
	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/reconciler"
	"github.com/openclaw/launcher/pkg/relay"
	"github.com/openclaw/launcher/pkg/runtime"
	"github.com/openclaw/launcher/pkg/store"
	"github.com/openclaw/launcher/pkg/workspace"
)

var version = "0.3.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "launcher",
		Short: "Wallet-linked OpenClaw instance orchestrator",
		Long:  "Binds wallet public keys to isolated OpenClaw container instances on a single host.",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the launcher API and reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Expose a host-only service to containers over the Docker bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the launcher version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("launcher " + version)
		},
	}

	rootCmd.AddCommand(serveCmd, relayCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	logger := log.WithComponent("main")

	st, err := store.New(filepath.Join(cfg.DataDir, "instances.json"))
	if err != nil {
		return err
	}

	rt, err := runtime.NewDockerRuntime(cfg.DockerHost)
	if err != nil {
		return err
	}
	defer rt.Close()

	ws := workspace.New(filepath.Join(cfg.DataDir, "instances"), cfg.TemplateDir)
	mgr := manager.New(cfg, st, rt, ws)

	recon := reconciler.New(mgr, cfg.ReconcilePeriod)
	recon.Start()
	defer recon.Stop()

	// No WriteTimeout: log follow streams are long-lived.
	srv := &http.Server{
		Addr:        cfg.Listen,
		Handler:     api.NewServer(cfg, mgr).Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Listen).Msg("launcher started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func runRelay(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return relay.New(cfg.RelayListen, cfg.RelayTarget).Run(ctx)
}
