package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"

	"idvault/internal/config"
	"idvault/internal/logging"
	"idvault/internal/server"
)

type options struct {
	Listen        string `env:"IVD_LISTEN" envDefault:":5617"`
	MetricsListen string `env:"IVD_METRICS_LISTEN"`
	ConfigPath    string `env:"IVD_CONFIG,required"`
	Debug         bool   `env:"IVD_DEBUG"`
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var opts options
	if err := env.Parse(&opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	log := logging.New(os.Stderr, opts.Debug)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load connection config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.MetricsListen != "" {
		go func() {
			if err := server.ServeMetrics(ctx, opts.MetricsListen, log); err != nil {
				log.Errorf("%v", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.Listen, err)
	}
	log.Infof("listening on %s", ln.Addr())

	return server.New(cfg, log).Serve(ctx, ln)
}
