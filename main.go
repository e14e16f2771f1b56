package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/open-switchboard/switchboard/config"
	"github.com/open-switchboard/switchboard/routing"
	"github.com/open-switchboard/switchboard/server"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.String("config", "./configs/config.json", "path to the JSON config file")
	listenAddr := pflag.String("listen", "", "command server listen address (overrides config)")
	sipEnabled := pflag.Bool("sip", false, "enable the SIP ingress (overrides config)")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("listen") {
		cfg.ListenAddress = *listenAddr
	}
	if pflag.CommandLine.Changed("sip") {
		cfg.SIPEnabled = *sipEnabled
	}

	engine := routing.NewEngine(routing.Config{
		Operators:   cfg.Operators,
		RingTimeout: cfg.RingTimeout(),
	}, logger)

	logger.Info("switchboard starting", "operators", cfg.Operators, "ring_timeout", cfg.RingTimeout())

	if cfg.SIPEnabled {
		go server.StartSIPServer(ctx, cfg, engine, logger)
	}

	if err := server.StartCommandServer(ctx, cfg, engine, logger); err != nil {
		logger.Error("command server failed", "error", err)
		os.Exit(1)
	}
}
