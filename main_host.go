//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"libtock/app"
	"libtock/hal"
	"libtock/internal/buildinfo"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var cfg hal.HeadlessConfig
	var demo, logLevel string
	var version bool
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window; board input comes from the prompt.")
	flag.IntVar(&cfg.Hz, "hz", 1000, "Clock sampling rate in headless mode.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ms of board time in headless mode (0 = run forever).")
	flag.StringVar(&demo, "demo", app.DemoButtonLEDs, "Application to run: "+strings.Join(app.Demos(), ", ")+".")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error.")
	flag.BoolVar(&version, "version", false, "Print the build version and exit.")
	flag.Parse()

	if version {
		fmt.Println(buildinfo.String())
		return
	}

	log, err := newLogger(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()
	setLoggers(log)

	appCfg := app.Config{Demo: demo, Log: log}

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runHeadless(ctx, appCfg, cfg); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("simulator stopped", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(func(h hal.HAL) func() error {
		return app.NewWithConfig(h, appCfg)
	}); err != nil {
		log.Error("window closed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid -log-level %q: %w", level, err)
	}
	zc := zap.NewDevelopmentConfig()
	if lvl > zapcore.DebugLevel {
		zc = zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
