package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/passmap/internal/app"
	"github.com/mohammed-shakir/passmap/internal/core/config"
	"github.com/mohammed-shakir/passmap/internal/core/observability"
	"github.com/mohammed-shakir/passmap/internal/logger"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	envFile := flag.String("env", ".env", "optional dotenv file seeding the environment")
	flag.Parse()

	// already-set variables win over the file
	envErr := godotenv.Load(*envFile)

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Service:   "passmap",
		Component: "server",
	}, os.Stdout)

	appLog := logger.NewSlog(&zl)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		appLog.Warn("dotenv not loaded", "file", *envFile, "err", envErr)
	}

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting passmap",
		"addr", cfg.Addr,
		"version", Version,
		"paths", cfg.PathsURL,
		"doc_cache", cfg.DocCacheEnabled,
		"refresh", cfg.Refresh.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLog, &zl)
	if err != nil {
		appLog.Error("app setup failed", "err", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	if err := a.Run(ctx); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
