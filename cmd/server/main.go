package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/vixsrc-go/api"
	"github.com/yourusername/vixsrc-go/api/handlers"
	"github.com/yourusername/vixsrc-go/internal/app"
	"github.com/yourusername/vixsrc-go/pkg/logger"
)

var (
	configPath string
	foreground bool
	serverMode bool

	rootCmd = &cobra.Command{
		Use:   "vixsrc-server",
		Short: "VixSrc batch download server",
		Long:  `Runs batches submitted over HTTP in the background and serves the task history and logs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !foreground && !serverMode {
				return startAsDaemon()
			}
			return runServer()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file")
	rootCmd.Flags().BoolVar(&foreground, "foreground", false, "Run in the foreground instead of daemonizing")
	rootCmd.Flags().BoolVar(&serverMode, "server-mode", false, "Internal flag: run in server mode (called by daemon)")
	rootCmd.Flags().MarkHidden("server-mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary detached with --server-mode
func startAsDaemon() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"--server-mode"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	return nil
}

func runServer() error {
	if err := app.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting vixsrc server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("provider", config.Provider.BaseURL))

	// batches are only reachable through the history database
	components, err := app.NewComponents(config, log, app.ComponentOptions{ForceHistory: true})
	if err != nil {
		return err
	}
	defer components.Close()

	if _, _, err := components.Executor.Engine(); err != nil {
		log.Warn("No download engine available, batches will fail", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := app.NewBatchService(components.Planner, components.Orchestrator, components.Repo, config, components.Events, log)
	if err := service.Start(ctx); err != nil {
		return err
	}

	router := api.SetupRouter(service, log, components.Events, config.Download.LogsDir)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-serveErr:
		log.Error("HTTP server failed", zap.Error(err))
		service.Stop()
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// cancels running batches; their tasks are recorded as failed
	if err := service.Stop(); err != nil {
		log.Error("Error stopping batch service", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
