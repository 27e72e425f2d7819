package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"elasticpool/pkg/logger"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "elasticpool",
		Short:         "Queue-driven elastic worker pool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default $CONFIG_PATH or config/config.yaml)")

	for _, role := range []Role{RoleIngress, RoleController, RoleWorker} {
		rootCmd.AddCommand(newRoleCommand(role, &configPath))
	}
	return rootCmd
}

var roleDescriptions = map[Role]string{
	RoleIngress:    "Accept uploads, stage them and enqueue jobs",
	RoleController: "Size the worker fleet from the request queue backlog",
	RoleWorker:     "Lease jobs, classify them and publish results until the minimum runtime elapses",
}

func newRoleCommand(role Role, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   string(role),
		Short: roleDescriptions[role],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(role, *configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", role, err)
			}
			return err
		},
	}
}

// run initializes and starts the role, then blocks until a signal arrives
// or the role finishes on its own (a worker that terminated itself).
func run(role Role, configPath string) error {
	// Create application instance
	app := NewApplication(role, configPath)

	// Initialize all components
	if err := app.Initialize(); err != nil {
		return fmt.Errorf("application initialization failed: %w", err)
	}

	// Start all components
	if err := app.Start(); err != nil {
		return fmt.Errorf("application startup failed: %w", err)
	}

	// Wait for exit signal or role completion
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		logger.InfoCtx(app.ctx, "Received exit signal: %v", sig)
	case runErr = <-app.Done():
		if runErr != nil {
			logger.ErrorCtx(app.ctx, "%s stopped: %v", role, runErr)
		} else {
			logger.InfoCtx(app.ctx, "%s finished", role)
		}
	}

	// Graceful shutdown
	if err := app.Shutdown(shutdownTimeout); err != nil {
		return fmt.Errorf("application shutdown failed: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	logger.InfoCtx(app.ctx, "Application safely exited")
	return nil
}
