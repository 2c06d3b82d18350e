package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"martsales/db"
	mhttp "martsales/http"
	"martsales/logging"
	"martsales/ml"
	"martsales/monitoring"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Model struct {
		Type  string `yaml:"type"`
		Path  string `yaml:"path"`
		Watch bool   `yaml:"watch"`
	} `yaml:"model"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Transform struct {
		ReferenceYear int `yaml:"reference_year"`
	} `yaml:"transform"`
	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`
	Log logging.Config `yaml:"log"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. Load config
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	logger, err := logging.New(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 3. Load the model once; the service does not start without it
	model, err := ml.LoadModel(config.Model.Type, config.Model.Path)
	if err != nil {
		logger.Fatal("failed to load model", zap.String("path", config.Model.Path), zap.Error(err))
	}
	logger.Info("model loaded",
		zap.String("path", config.Model.Path),
		zap.String("model", model.Name()),
		zap.Int("features", model.NumFeatures()),
	)

	registry := monitoring.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	svc, err := ml.NewService(model,
		ml.WithLogger(logger),
		ml.WithMetrics(metrics),
		ml.WithCacheSize(config.Cache.Size),
		ml.WithReferenceYear(config.Transform.ReferenceYear),
	)
	if err != nil {
		logger.Fatal("failed to create prediction service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Model.Watch {
		watcher, err := monitoring.WatchModel(config.Model.Path, logger, metrics)
		if err != nil {
			logger.Warn("model watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	handler := mhttp.NewHandler(svc, logger, metrics)
	if config.History.Path != "" {
		store, err := db.Open(config.History.Path)
		if err != nil {
			logger.Fatal("failed to open prediction history", zap.String("path", config.History.Path), zap.Error(err))
		}
		defer store.Close()
		handler.SetHistory(store)
		logger.Info("prediction history enabled", zap.String("path", config.History.Path))
	}

	// 4. Start HTTP server
	server := mhttp.NewServer(mhttp.ServerConfig{
		Port:           config.Http.Port,
		Timeout:        config.Http.Timeout,
		MaxBodyBytes:   config.Http.MaxBodyBytes,
		AllowedOrigins: config.Http.AllowedOrigins,
	}, handler, registry, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}

// loadConfig reads path when it exists, then applies environment overrides and
// defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	var config Config

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	config.Http.Port = getEnvInt("MART_HTTP_PORT", config.Http.Port)
	config.Model.Path = getEnv("MART_MODEL_PATH", config.Model.Path)
	config.Log.Level = getEnv("MART_LOG_LEVEL", config.Log.Level)

	applyDefaults(&config)
	if config.Cache.Size < 0 {
		return nil, fmt.Errorf("cache.size must not be negative, got %d", config.Cache.Size)
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	defaults := mhttp.DefaultServerConfig()
	if config.Http.Port == 0 {
		config.Http.Port = defaults.Port
	}
	if config.Http.Timeout == 0 {
		config.Http.Timeout = defaults.Timeout
	}
	if config.Http.MaxBodyBytes == 0 {
		config.Http.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if len(config.Http.AllowedOrigins) == 0 {
		config.Http.AllowedOrigins = defaults.AllowedOrigins
	}
	if config.Model.Type == "" {
		config.Model.Type = ml.ModelTypeXGBoost
	}
	if config.Model.Path == "" {
		config.Model.Path = "models/mart_sales_model.json"
	}
	if config.Transform.ReferenceYear == 0 {
		config.Transform.ReferenceYear = ml.DefaultReferenceYear
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}
