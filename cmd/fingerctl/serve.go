package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/danmuck/fingerctl/internal/config"
	"github.com/danmuck/fingerctl/internal/device"
	"github.com/danmuck/fingerctl/internal/finger"
	"github.com/danmuck/fingerctl/internal/httpapi"
	"github.com/danmuck/fingerctl/internal/logging"
	"github.com/danmuck/fingerctl/internal/observability"
	"github.com/danmuck/fingerctl/internal/poller"
	"github.com/danmuck/fingerctl/internal/protocol/session"
	"github.com/danmuck/fingerctl/internal/publish"
	"golang.org/x/sync/errgroup"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	path := fs.String("config", "fingerctl.toml", "service config path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadServiceConfig(*path)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "" {
		logging.SetLevel(cfg.LogLevel)
	}
	logger := observability.InitLogger(cfg.ID)

	inv, err := config.LoadInventory(cfg.Inventory)
	if err != nil {
		return err
	}

	var sinks []poller.Sink
	if cfg.MQTT.Broker != "" {
		sink, err := publish.NewMQTTSink(cfg.MQTT)
		if err != nil {
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	p := poller.New(poller.Config{Interval: cfg.PollInterval, Backoff: session.DefaultBackoff()}, sinks...)
	srv := httpapi.New(cfg.ID, cfg.Addr, cfg.CorsOrigins, device.NewRegistry(), p)
	for _, entry := range inv.Devices {
		src, err := srv.Restore(entry)
		if err != nil {
			logger.Error().
				Err(err).
				Str("host", entry.Host).
				Str("kind", finger.KindOf(err).String()).
				Msg("device not registered")
			continue
		}
		logger.Info().Str("device", src.Config().ID).Msg("device scheduled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx) })
	return g.Wait()
}

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	kind := fs.String("kind", "service", "config kind: service|inventory")
	output := fs.String("output", "", "output path for the template")
	validate := fs.Bool("validate", false, "validate an existing config instead of writing one")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target := *output
	if target == "" {
		switch *kind {
		case "service":
			target = "fingerctl.toml"
		case "inventory":
			target = "devices.toml"
		default:
			return fmt.Errorf("unknown kind: %s", *kind)
		}
	}

	if !*validate {
		if err := config.WriteTemplate(target, *kind, *force); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s config template to %s\n", *kind, target)
		return nil
	}

	switch *kind {
	case "service":
		if _, err := loadServiceConfig(target); err != nil {
			return err
		}
	case "inventory":
		inv, err := config.LoadInventory(target)
		if err != nil {
			return err
		}
		devices, err := inv.DeviceConfigs()
		if err != nil {
			return err
		}
		for _, d := range devices {
			fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", d.ID, d.Kind, d.Addr(), d.Mode)
		}
	default:
		return fmt.Errorf("unknown kind: %s", *kind)
	}
	fmt.Fprintf(stdout, "validated %s config at %s\n", *kind, target)
	return nil
}
