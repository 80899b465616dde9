package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mutenix-org/mutenixd/internal/config"
	"github.com/mutenix-org/mutenixd/internal/core"
	"github.com/mutenix-org/mutenixd/internal/logs"
	"github.com/mutenix-org/mutenixd/internal/meeting"
	"github.com/mutenix-org/mutenixd/internal/message"
	"github.com/mutenix-org/mutenixd/internal/metrics"
	"github.com/mutenix-org/mutenixd/internal/server"
	"github.com/mutenix-org/mutenixd/internal/wire"
)

const shutdownTimeout = 5 * time.Second

func newRunCommand(options *initOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect the macropad and the meeting service and serve the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(options.config)
			if err != nil {
				return err
			}
			logger, err := initLoggers(cfg, options)
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, cancel := signalContext(logger.Get("main"))
			defer cancel()
			return runDaemon(ctx, cfg, options, logger)
		},
	}
}

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext(log *logrus.Entry) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigs:
			log.Infof("received %s, shutting down", s)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()
	return ctx, cancel
}

func runDaemon(ctx context.Context, cfg *config.Config, options *initOptions, logger *logs.Logger) error {
	log := logger.Get("main")
	log.Infof("mutenixd %s is starting", version)

	bus, closeBus, err := initBus(options, logger.Get("usb"))
	if err != nil {
		return err
	}
	defer closeBus()

	m := metrics.New()
	hidLog := logger.Get("hid")
	link := core.New(bus, cfg.Identities(), hidLog, core.WithMetrics(m))
	link.Subscribe(func(msg wire.Message) {
		hidLog.Debugf("%v", msg)
	})

	id := meeting.NewIdentifier(
		cfg.Service.Manufacturer,
		cfg.Service.Device,
		cfg.Service.App,
		appVersion(cfg),
	).WithToken(cfg.Service.Token)
	client, err := meeting.New(cfg.Service.URI, id, logger.Get("meeting"), meeting.WithMetrics(m))
	if err != nil {
		return err
	}
	client.RegisterCallback(tokenSaver(cfg, options.config, logger.Get("config")))
	if err := client.Send(message.NewAction(message.ActionQueryState)); err != nil {
		return err
	}

	srv := server.New(cfg.Status.Address, link, client, logger.Memory, version, logger.Get("server"))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := link.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("device link stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("meeting client stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := srv.Run(); err != nil {
			log.WithError(err).Error("status server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("status server shutdown")
	}
	wg.Wait()
	log.Info("main ended successfully")
	return nil
}

func appVersion(cfg *config.Config) string {
	if cfg.Service.AppVersion != "" {
		return cfg.Service.AppVersion
	}
	return version
}

// tokenSaver persists tokens handed out by the meeting service. The
// running client keeps its old token until it is recreated.
func tokenSaver(cfg *config.Config, path string, log *logrus.Entry) func(message.ServerMessage) {
	var mutex sync.Mutex
	return func(m message.ServerMessage) {
		if m.TokenRefresh == nil {
			return
		}
		mutex.Lock()
		defer mutex.Unlock()
		if !cfg.SetToken(*m.TokenRefresh) {
			return
		}
		if err := cfg.Save(path); err != nil {
			log.WithError(err).Error("saving refreshed token")
			return
		}
		log.Info("saved refreshed token")
	}
}
