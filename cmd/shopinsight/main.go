package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopinsight/shopinsight/internal/appupdate"
	"github.com/shopinsight/shopinsight/internal/config"
	"github.com/shopinsight/shopinsight/internal/core"
	"github.com/shopinsight/shopinsight/internal/filesystem"
	"github.com/shopinsight/shopinsight/internal/history"
	"github.com/shopinsight/shopinsight/internal/llm"
	"github.com/shopinsight/shopinsight/internal/styles"
	"go.uber.org/zap"
)

var BUILD_VERSION = "dev"

var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")
var modelFlag = flag.String("model", "", "model to chat with (overrides the config)")
var configFlag = flag.String("config", "", "path to the config file (default ~/.shopinsight/config.yaml)")

const helpText = `shopinsight - ask an LLM about your product catalog

USAGE:
  shopinsight [options] [command] [args...]

COMMANDS:
  (none)                          Start the dashboard, or answer one question per stdin line
  fetch [-url u] [-o path]        Download the product snapshot
  summary [file]                  Show category counts, price statistics and the model context
  ask [-file f] "question"        Answer a single question
  serve [-addr :8080]             Serve the dashboard HTTP API
  history [-n 10] [-search q]     List recorded conversations
  export -session id [-format csv|pdf] [-o path]
                                  Export a recorded conversation
  update                          Install the latest release

Supported catalog files: .csv, .json, .xlsx, .xls

OPTIONS:
`

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if *helpFlag {
		fmt.Print(helpText)
		flag.PrintDefaults()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg, BUILD_VERSION, core.LogFile())
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // Flush any buffered log entries

	logger.Info("-------- new shopinsight session --------", zap.Any("args", os.Args))

	fs := filesystem.DefaultFileSystem{}
	if cfg.Update.Enabled {
		appupdate.HandleSelfUpdate(BUILD_VERSION, cfg.Update.Repository, logger, fs, appupdate.DefaultUpdater{})
	}
	if previous, upgraded := appupdate.UpgradedFrom(BUILD_VERSION, fs); upgraded {
		logger.Info("upgraded", zap.String("from", previous), zap.String("to", BUILD_VERSION))
	}
	if err := appupdate.UpdateVersionMarker(fs, BUILD_VERSION); err != nil {
		logger.Warn("failed to write version marker", zap.Error(err))
	}

	historyManager, err := initializeHistoryManager(cfg)
	if err != nil {
		logger.Warn("chat history disabled", zap.Error(err))
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		version:    BUILD_VERSION,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		httpClient: http.DefaultClient,
		history:    historyManager,
		updater:    appupdate.DefaultUpdater{},
		fs:         fs,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = a.run(ctx, flag.Args())
	stop()

	if historyManager != nil {
		historyManager.Close()
	}
	if err != nil {
		logger.Error("unhandled error", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR(err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := *configFlag
	if path == "" {
		path = core.ConfigFile()
	}
	cfg, err := config.Load(path, ".env", core.EnvFile())
	if err != nil {
		return nil, err
	}
	if *modelFlag != "" {
		model, err := llm.ResolveModel(*modelFlag, cfg.LLM.Models)
		if err != nil {
			return nil, err
		}
		cfg.LLM.Model = model
	}
	return cfg, nil
}

func initializeLogger(cfg *config.Config, version, logFile string) (*zap.Logger, error) {
	logLevel, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if version == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	// logs only go to file to avoid interfering with the dashboard
	loggerConfig.OutputPaths = []string{
		logFile,
	}

	return loggerConfig.Build()
}

func initializeHistoryManager(cfg *config.Config) (*history.HistoryManager, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	path := cfg.History.Path
	if path == "" {
		path = core.HistoryFile()
	}
	return history.NewHistoryManager(path)
}
