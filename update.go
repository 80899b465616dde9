package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mutenix-org/mutenixd/internal/config"
	"github.com/mutenix-org/mutenixd/internal/core"
)

func newUpdateCommand(options *initOptions) *cobra.Command {
	var maxRetransmits int
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "update FILE...",
		Short: "Transfer files to the macropad and restart it",
		Args:  cobra.MinimumNArgs(1),
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

			bus, closeBus, err := initBus(options, logger.Get("usb"))
			if err != nil {
				return err
			}
			defer closeBus()

			ctx, cancel := signalContext(logger.Get("main"))
			defer cancel()

			link := core.New(bus, cfg.Identities(), logger.Get("hid"))
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = link.Run(ctx)
			}()
			defer func() {
				cancel()
				<-done
			}()

			if err := waitConnected(ctx, link, wait); err != nil {
				return err
			}

			log := logger.Get("update")
			opts := []core.UpdateOption{core.WithProgress(progressLogger(log))}
			if maxRetransmits > 0 {
				opts = append(opts, core.WithMaxRetransmits(maxRetransmits))
			}
			if err := link.RunFirmwareUpdate(ctx, args, opts...); err != nil {
				return errors.Wrap(err, "update failed")
			}
			log.Info("update finished, device is restarting")
			return nil
		},
	}
	cmd.Flags().IntVar(&maxRetransmits, "max-retransmits", 0, "abort when a file needs more retransmissions than this (0 waits forever)")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for the device to appear")
	return cmd
}

func waitConnected(ctx context.Context, link *core.Link, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for link.State().State != core.Connected {
		select {
		case <-ctx.Done():
			return errors.Wrap(core.ErrNotConnected, "waiting for device")
		case <-ticker.C:
		}
	}
	return nil
}

func progressLogger(log *logrus.Entry) func(core.Progress) {
	last := -1
	return func(p core.Progress) {
		percent := 0
		if p.Total > 0 {
			percent = p.Acknowledged * 100 / p.Total
		}
		if percent/10 == last/10 && percent != 100 {
			return
		}
		last = percent
		log.WithFields(logrus.Fields{
			"file":  p.File,
			"index": p.Index + 1,
			"files": p.Files,
		}).Infof("%d%% acknowledged", percent)
	}
}
