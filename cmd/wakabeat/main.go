// Command wakabeat reports WakaTime heartbeats.
//
// Usage:
//
//	wakabeat [-config file] [-env file] lsp     run as a language server on stdio
//	wakabeat [-config file] [-env file] send    send one heartbeat now
//	wakabeat [-config file] [-env file] relay   run only the local relay
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vinayprograms/wakabeat/heartbeat"
	"github.com/vinayprograms/wakabeat/logging"
	"github.com/vinayprograms/wakabeat/lsp"
	"github.com/vinayprograms/wakabeat/notify"
	"github.com/vinayprograms/wakabeat/plugin"
	"github.com/vinayprograms/wakabeat/relay"
	"github.com/vinayprograms/wakabeat/settings"
	"github.com/vinayprograms/wakabeat/telemetry"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: wakabeat [flags] <lsp|send|relay> [command flags]")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wakabeat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("WAKABEAT_CONFIG"), "path to settings TOML file")
	envFile := fs.String("env", "", "path to .env file (default ./.env)")
	debug := fs.Bool("debug", false, "log dispatch-chain decisions")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}

	logger := logging.New()
	logger.SetOutput(stderr)
	log := logger.WithComponent("main")

	if _, err := settings.LoadEnvFile(*envFile); err != nil {
		log.Error("env_load_failed", map[string]interface{}{"error": err.Error()})
		return 1
	}
	s, err := settings.Load(*configPath)
	if err != nil {
		log.Error("settings_load_failed", map[string]interface{}{"error": err.Error()})
		return 1
	}
	if *debug {
		s.Debug = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.Telemetry.Endpoint != "" {
		provider, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{
			ServiceName:    s.Telemetry.ServiceName,
			ServiceVersion: version,
			Endpoint:       s.Telemetry.Endpoint,
			Protocol:       s.Telemetry.Protocol,
			Insecure:       s.Telemetry.Insecure,
		})
		if err != nil {
			log.Warn("telemetry_disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				provider.Shutdown(sctx)
			}()
		}
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "lsp":
		return runLSP(ctx, rest, s, logger)
	case "send":
		return runSend(ctx, rest, s, logger, stdout)
	case "relay":
		return runRelay(ctx, rest, s, logger)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr, fs)
		return 2
	}
}

func runLSP(ctx context.Context, args []string, s settings.Settings, logger *logging.Logger) int {
	fs := flag.NewFlagSet("lsp", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	host := lsp.New("wakabeat", version, logger)
	rt, err := plugin.New(plugin.Options{
		Settings:  settings.NewStore(s),
		Notifier:  host,
		Presenter: host,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("runtime_init_failed", map[string]interface{}{"error": err.Error()})
		return 1
	}
	if err := rt.Start(ctx, host); err != nil {
		logger.Error("runtime_start_failed", map[string]interface{}{"error": err.Error()})
		return 1
	}

	stopRuntime := func() {
		if !rt.Running() {
			return
		}
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Stop(sctx); err != nil {
			logger.Warn("runtime_stop_failed", map[string]interface{}{"error": err.Error()})
		}
	}
	host.OnShutdown(stopRuntime)
	defer stopRuntime()

	if err := host.RunStdio(); err != nil {
		logger.Error("lsp_failed", map[string]interface{}{"error": err.Error()})
		return 1
	}
	return 0
}

func runSend(ctx context.Context, args []string, s settings.Settings, logger *logging.Logger, stdout io.Writer) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	project := fs.String("project", "", "project name for this heartbeat")
	proxy := fs.String("proxy", "", "proxy URL to try first")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *project != "" {
		s.ProjectName = *project
	}
	if *proxy != "" {
		s.ProxyURL = *proxy
	}
	// A one-shot process exits before a beacon could drain, and a relay it
	// started would die with it.
	s.Beacon = false
	s.RelayAutoStart = false

	rt, err := plugin.New(plugin.Options{
		Settings:  settings.NewStore(s),
		Notifier:  notify.NewLogNotifier(logger, true),
		Presenter: notify.NewWriterPresenter(stdout),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("runtime_init_failed", map[string]interface{}{"error": err.Error()})
		return 1
	}

	out := rt.HandleInteraction(ctx)
	fmt.Fprintln(stdout, out.String())
	if out.Status == heartbeat.StatusNotConfigured {
		return 3
	}
	if !out.OK() {
		return 1
	}
	return 0
}

func runRelay(ctx context.Context, args []string, s settings.Settings, logger *logging.Logger) int {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	port := fs.Int("port", s.Port(), "loopback port to listen on")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	m := relay.NewManager(relay.Config{
		UpstreamURL: s.Endpoint(),
		Timeout:     s.AttemptTimeout(),
		Logger:      logger,
	}, notify.NewLogNotifier(logger, false), nil)

	if _, err := m.Start(ctx, *port); err != nil {
		return 1
	}
	<-ctx.Done()

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Stop(sctx); err != nil {
		logger.Warn("relay_stop_failed", map[string]interface{}{"error": err.Error()})
		return 1
	}
	return 0
}
