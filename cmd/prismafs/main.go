package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prismafs/prismafs/internal/config"
	"github.com/prismafs/prismafs/internal/fusebridge"
	"github.com/prismafs/prismafs/internal/overlay"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:                "prismafs mountpoint [bridge-flags...]",
	Short:              "mounts a layered, whiteout-aware filesystem",
	RunE:               rootCmdRunE,
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
}

func main() {
	initLogging()

	// -v/-V is a bare version shortcut, checked ahead of cobra so it works
	// even with flag parsing disabled for everything after it.
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "-V") {
		fmt.Printf("PrismaFS Version: %s\n", version)
		return
	}

	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to execute", "error", err)
		os.Exit(1)
	}
}

func rootCmdRunE(cmd *cobra.Command, args []string) error {
	mountPoint := args[0]
	bridgeFlags := args[1:]

	paneID := uuid.NewString()
	logger := slog.With("pane", paneID)
	slog.SetDefault(logger)

	cfg, err := config.FromEnv(paneID)
	if err != nil {
		return err
	}

	ov := overlay.New(cfg)

	srv, err := fusebridge.Mount(mountPoint, ov, bridgeFlags)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		for {
			<-c
			if err := srv.Unmount(); err == nil {
				break
			} else {
				slog.Error("unmount failed", "error", err)
			}
		}
	}()

	srv.Wait()
	return nil
}

// initLogging configures the global slog logger based on an environment
// variable, defaulting to logging only errors.
func initLogging() {
	logLevel := slog.LevelError

	switch strings.ToLower(os.Getenv("PRISMAFS_LOG_LEVEL")) {
	case "info":
		logLevel = slog.LevelInfo
	case "debug":
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
