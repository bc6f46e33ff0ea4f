package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/api"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/channels"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/dispatch"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/escpos"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/layout"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/preview"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/services"
	"github.com/Riboost-Studio/perfect-menu-print-tickets/internal/utils"
)

const (
	appName    = "Perfect Menu Print Tickets"
	appVersion = "2.0.0"
)

type options struct {
	configFile string
	addr       string
	logJSON    bool
	logLevel   string
	discover   bool
	save       bool
	subnet     string
	version    bool
}

// --- Main ---

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flags := pflag.NewFlagSet("print-tickets", pflag.ContinueOnError)
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default $"+utils.ConfigEnv+" or "+utils.DefaultConfigFile+")")
	flags.StringVar(&opts.addr, "addr", "", "listen address, overrides server.addr")
	flags.BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.BoolVar(&opts.discover, "discover", false, "scan the local network for printers on port 9100 and exit")
	flags.BoolVar(&opts.save, "save", false, "with --discover, add the printers found to the config file")
	flags.StringVar(&opts.subnet, "subnet", "", "with --discover, the /24 to scan as a.b.c (default: local subnet)")
	flags.BoolVar(&opts.version, "version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.version {
		fmt.Printf("%s %s\n", appName, appVersion)
		return nil
	}

	logger, err := newLogger(opts.logJSON, opts.logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	configFile := utils.ConfigPath(opts.configFile)
	config, created, err := utils.LoadOrInitConfig(configFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if created {
		logger.Info("default configuration written", "file", configFile)
	}
	if opts.addr != "" {
		config.Server.Addr = opts.addr
	}

	// 2. Discovery
	if opts.discover {
		return discover(ctx, logger, configFile, config, opts)
	}

	// 3. Ticket pipeline
	svc, encoder, err := buildService(config, logger)
	if err != nil {
		return err
	}

	var imager api.Imager
	if renderer, err := preview.New(config.Preview); err != nil {
		logger.Warn("image previews disabled", "error", err)
	} else {
		imager = renderer
		logger.Info("image previews enabled", "chrome", renderer.ChromePath, "version", utils.ChromeVersion(ctx, renderer.ChromePath))
	}

	server := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           api.NewRouter(api.NewHandler(svc, encoder, imager, appVersion, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	// 4. Cloud agent
	if config.Agent.URL != "" {
		if config.Agent.AgentKey == "" && config.Agent.APIURL != "" {
			key, err := services.RegisterAgent(ctx, nil, config.Agent)
			if err != nil {
				logger.Error("agent registration failed", "error", err)
			} else {
				config.Agent.AgentKey = key
				if err := utils.SaveConfig(configFile, config); err != nil {
					logger.Warn("could not persist agent key", "error", err)
				}
				logger.Info("agent registered")
			}
		}
		agent := services.NewAgent(config.Agent, svc, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			agent.Run(ctx)
		}()
	}

	// 5. HTTP API
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("ticket API listening", "addr", server.Addr, "version", appVersion)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), dispatch.DefaultTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}

func buildService(config model.Config, logger *slog.Logger) (*services.TicketService, escpos.Encoder, error) {
	engine, err := layout.NewEngine(config.Ticket)
	if err != nil {
		return nil, escpos.Encoder{}, err
	}
	codepage, err := escpos.ParseCodepage(config.Encoder.Codepage)
	if err != nil {
		return nil, escpos.Encoder{}, err
	}
	encoder, err := escpos.NewEncoder(escpos.Options{
		Codepage:  codepage,
		Cut:       config.Encoder.Cut,
		FeedLines: config.Encoder.FeedLines,
	})
	if err != nil {
		return nil, escpos.Encoder{}, err
	}

	chain, err := channels.Build(config.Channels, channels.DefaultPlatform(), &http.Client{})
	if err != nil {
		return nil, escpos.Encoder{}, err
	}
	for i, d := range chain {
		logger.Info("channel configured", "priority", i+1, "channel", d.Name(), "kind", d.Kind(), "input", d.Input().String())
	}
	if len(chain) == 0 {
		logger.Warn("no print channels configured; every ticket will fail")
	}

	router := dispatch.NewRouter(engine, encoder, dispatch.Options{
		Timeout: config.Dispatch.Timeout,
		Logger:  logger,
	})
	return services.NewTicketService(router, chain, engine, config.Ticket.RestaurantName, logger), encoder, nil
}

func discover(ctx context.Context, logger *slog.Logger, configFile string, config model.Config, opts options) error {
	found, err := services.DiscoverPrinters(ctx, opts.subnet, logger)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No printers found.")
		return nil
	}
	for _, c := range found {
		fmt.Printf("Found printer %s at %s\n", c.Name, c.Port)
	}
	if !opts.save {
		return nil
	}

	var added int
	config.Channels, added = services.MergeChannels(config.Channels, found)
	if added == 0 {
		fmt.Println("All printers are already configured.")
		return nil
	}
	if err := utils.SaveConfig(configFile, config); err != nil {
		return err
	}
	fmt.Printf("Added %d printer(s) to %s\n", added, configFile)
	return nil
}

func newLogger(asJSON bool, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
