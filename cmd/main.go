package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sigmachart/internal/config"
	"sigmachart/internal/controller"
	"sigmachart/internal/handler"
	"sigmachart/internal/metrics"
	"sigmachart/internal/render"
	"sigmachart/internal/sigma"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultConfigPath = "app.yaml"

func main() {
	var configPath = flag.String("config", defaultConfigPath, "Path to app configuration file")
	var port = flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(zapcore.InfoLevel)
	cfgZap.OutputPaths = []string{"stdout"}
	logger, err := cfgZap.Build()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg := loadConfig(*configPath, logger)
	if *port != 0 {
		cfg.Server.Port = *port
	}
	logger.Info("Configuration loaded", zap.Any("config", cfg))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	evaluator := sigma.NewEvaluator(sigma.Settings{
		RedYellow:   cfg.Sigma.RedYellow,
		YellowGreen: cfg.Sigma.YellowGreen,
		MaxSigma:    cfg.Sigma.MaxSigma,
		MinSigma:    cfg.Sigma.MinSigma,
		DefaultName: cfg.Sigma.DefaultName,
	})
	renderer := render.New(render.Options{
		Width:  cfg.Chart.Width,
		Height: cfg.Chart.Height,
	})

	chartController := controller.NewChartController(evaluator, renderer, logger)
	router := handler.SetupRouter(chartController, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}

// loadConfig falls back to built-in defaults when the default config file
// is absent; an explicitly named file must exist.
func loadConfig(path string, logger *zap.Logger) *config.Config {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == defaultConfigPath {
		logger.Warn("Config file not found, using defaults", zap.String("path", path))
		return config.Default()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	return cfg
}
