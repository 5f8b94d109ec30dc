package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	btclogv2 "github.com/btcsuite/btclog/v2"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/build"
	"github.com/dgower/olbridge/internal/config"
	"github.com/dgower/olbridge/internal/mapi"
	"github.com/dgower/olbridge/internal/mcp"
	"github.com/dgower/olbridge/internal/outlook"
	"github.com/dgower/olbridge/internal/session"
	"github.com/dgower/olbridge/internal/simstore"
)

func main() {
	var (
		configPath = flag.String(
			"config", config.DefaultConfigPath(),
			"Path to the YAML configuration file",
		)
		backend = flag.String(
			"backend", "",
			"Store backend: outlook or sim (overrides config)",
		)
		account = flag.String(
			"account", "",
			"Mailbox account to pin folder resolution to",
		)
		simPath = flag.String(
			"sim-path", "",
			"Database file for the sim backend (empty for config default)",
		)
		seedDemo = flag.Bool(
			"seed-demo", false,
			"Populate the sim backend with demo data",
		)
		logDir = flag.String(
			"log-dir", "",
			"Directory for the rotating log file (empty to disable)",
		)
		logLevel = flag.String(
			"log-level", "",
			"Log level (trace, debug, info, warn, error)",
		)
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("olbridged version %s\n", build.Version())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}

	// Flags win over the config file.
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *account != "" {
		cfg.Account = *account
	}
	if *simPath != "" {
		cfg.Sim.Path = *simPath
	}
	if *seedDemo {
		cfg.Sim.SeedDemo = true
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Stdout carries the MCP wire protocol, so all log output goes to
	// stderr and optionally the rotating log file.
	root, logCleanup, err := build.SetupLoggers(&build.LogConfig{
		LogDir: cfg.LogDir,
		Level:  cfg.LogLevel,
	})
	if err != nil {
		fatalf("Failed to set up logging: %v", err)
	}
	defer logCleanup()

	build.ApplyLoggers(root, map[string]func(btclogv2.Logger){
		bridge.Subsystem:   bridge.UseLogger,
		session.Subsystem:  session.UseLogger,
		simstore.Subsystem: simstore.UseLogger,
		outlook.Subsystem:  outlook.UseLogger,
		mcp.Subsystem:      mcp.UseLogger,
	})

	log := build.NewSubLogger(root, "MAIN")

	connect, err := backendConnector(cfg)
	if err != nil {
		fatalf("%v", err)
	}

	sess := session.NewManager(session.Config{
		Connect:        connect,
		DefaultAccount: cfg.Account,
		CallTimeout:    time.Duration(cfg.CallTimeoutSec) * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("Shutting down...")
		cancel()
	}()

	log.Infof("Starting %s session...", cfg.Backend)
	if err := sess.Start(ctx); err != nil {
		fatalf("Failed to start session: %v", err)
	}
	defer sess.Close()

	log.Infof("olbridged %s serving MCP on stdio", build.Version())

	mcpServer := mcp.NewServer(sess)
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		fatalf("Server error: %v", err)
	}
}

// backendConnector builds the store connector for the configured backend.
// The connector runs on the session's locked worker thread, not here.
func backendConnector(cfg *config.Config) (session.Connector, error) {
	switch cfg.Backend {
	case config.BackendOutlook:
		return outlook.Connect, nil

	case config.BackendSim:
		simCfg := simstore.Config{
			Path:      cfg.Sim.Path,
			Account:   cfg.Account,
			UserEmail: cfg.Sim.UserEmail,
			UserName:  cfg.Sim.UserName,
		}
		seed := cfg.Sim.SeedDemo
		return func() (mapi.Store, error) {
			store, err := simstore.New(simCfg)
			if err != nil {
				return nil, err
			}
			if seed {
				if err := store.SeedDemo(); err != nil {
					store.Release()
					return nil, err
				}
			}
			return store, nil
		}, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
