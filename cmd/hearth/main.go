// Package main provides the Hearth host: the native side of a desktop
// chat and knowledge-base shell. It runs an interactive terminal front-end
// or serves the host commands to a web UI over a loopback bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/hearth/pkg/bridge"
	appconfig "github.com/entrhq/hearth/pkg/config"
	"github.com/entrhq/hearth/pkg/executor/cli"
	"github.com/entrhq/hearth/pkg/executor/tui"
	"github.com/entrhq/hearth/pkg/host"
	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/types"
)

const version = "0.1.0" // Version of the Hearth host

const (
	modeTUI   = "tui"
	modeCLI   = "cli"
	modeServe = "serve"
)

// Config holds the command-line configuration
type Config struct {
	ConfigFile       string
	BridgeConfigFile string
	Mode             string
	Addr             string
	Bridge           bool
	NoCompanion      bool
	LogLevel         string
	ShowVersion      bool
}

func main() {
	config := parseFlags(os.Args[1:])

	if config.ShowVersion {
		fmt.Printf("Hearth v%s\n", version)
		return
	}

	if err := config.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		cancel()
		log.Printf("Hearth failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags(args []string) *Config {
	config := &Config{}
	fs := flag.NewFlagSet("hearth", flag.ExitOnError)

	fs.StringVar(&config.ConfigFile, "config", os.Getenv(appconfig.EnvConfigPath), "Path to the host configuration file (JSON)")
	fs.StringVar(&config.BridgeConfigFile, "bridge-config", "", "Path to the bridge configuration file (YAML)")
	fs.StringVar(&config.Mode, "mode", modeTUI, "Front-end: tui, cli or serve")
	fs.StringVar(&config.Addr, "addr", "", "Bridge listen address, overrides the bridge config")
	fs.BoolVar(&config.Bridge, "bridge", false, "Also serve the bridge in tui and cli modes")
	fs.BoolVar(&config.NoCompanion, "no-companion", false, "Do not start the companion server at launch")
	fs.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	fs.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Hearth - native host for the desktop chat shell\n\n")
		fmt.Fprintf(os.Stderr, "Usage: hearth [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Interactive terminal UI\n")
		fmt.Fprintf(os.Stderr, "  hearth\n\n")
		fmt.Fprintf(os.Stderr, "  # Serve host commands to the web UI\n")
		fmt.Fprintf(os.Stderr, "  hearth -mode serve -addr 127.0.0.1:7345\n\n")
	}

	_ = fs.Parse(args)
	return config
}

// validate checks the flag combination
func (c *Config) validate() error {
	switch c.Mode {
	case modeTUI, modeCLI, modeServe:
	default:
		return fmt.Errorf("unknown mode %q (use tui, cli or serve)", c.Mode)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// loadBridgeConfig reads the bridge YAML file, if any, and applies -addr.
func (c *Config) loadBridgeConfig() (*bridge.Config, error) {
	cfg := bridge.DefaultConfig()
	if c.BridgeConfigFile != "" {
		loaded, err := bridge.LoadConfig(c.BridgeConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bridge config: %w", err)
	}
	return cfg, nil
}

// run wires the host and starts the selected front-end.
func run(ctx context.Context, config *Config) error {
	logger, err := logging.NewLogger("hearth")
	if err != nil {
		// The fallback logger writes to stderr; keep going.
		log.Printf("Warning: %v", err)
	}
	defer logger.Close()

	level, _ := logging.ParseLevel(config.LogLevel)
	logger.SetLevel(level)

	if err := appconfig.Initialize(config.ConfigFile); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	serveBridge := config.Mode == modeServe || config.Bridge
	var (
		bridgeCfg *bridge.Config
		hub       *bridge.Hub
	)
	if serveBridge {
		bridgeCfg, err = config.loadBridgeConfig()
		if err != nil {
			return err
		}
		hub = bridge.NewHub(bridgeCfg.EventBuffer, logger.Component("bridge"))
	}

	var emit types.Emitter
	if hub != nil {
		emit = hub.Emitter()
	}

	h, err := host.NewFromConfig(logger, emit)
	if err != nil {
		return fmt.Errorf("failed to create host: %w", err)
	}
	logger.Infof("hearth v%s starting (mode: %s)", version, config.Mode)

	if config.NoCompanion {
		logger.Infof("companion auto-start disabled by flag")
	} else {
		h.Setup(ctx)
	}

	if !serveBridge {
		return runFrontEnd(ctx, config.Mode, h)
	}

	srv, err := bridge.NewServer(bridgeCfg, h.Registry(), hub, logger.Component("bridge"))
	if err != nil {
		return err
	}
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	if config.Mode == modeServe {
		fmt.Fprintf(os.Stderr, "Hearth bridge listening on http://%s\n", ln.Addr())
		return srv.Serve(ctx, ln)
	}

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(serveCtx, ln) }()

	runErr := runFrontEnd(ctx, config.Mode, h)
	stop()
	if err := <-serveErr; err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// runFrontEnd runs the interactive terminal front-end for mode.
func runFrontEnd(ctx context.Context, mode string, h *host.Host) error {
	var err error
	switch mode {
	case modeCLI:
		err = cli.NewExecutor(h, cli.WithStreaming(true)).Run(ctx)
	default:
		err = tui.NewExecutor(h, tui.WithWorkingDir(h.WorkingDir)).Run(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
