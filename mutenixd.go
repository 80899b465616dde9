package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mutenix-org/mutenixd/internal/config"
	"github.com/mutenix-org/mutenixd/internal/core"
	"github.com/mutenix-org/mutenixd/internal/usb"
	"github.com/mutenix-org/mutenixd/internal/usb/hidapi"
)

const version = "0.4.0"

func main() {
	var options initOptions

	rootCmd := &cobra.Command{
		Use:           "mutenixd",
		Short:         "Mutenix macropad and meeting service bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindFlags(rootCmd, &options)
	rootCmd.AddCommand(
		newRunCommand(&options),
		newUpdateCommand(&options),
		newConfigCommand(&options),
		newVersionCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mutenixd:", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the mutenixd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func newConfigCommand(options *initOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(options.config); err == nil && !force {
				return errors.Errorf("%s exists, use --force to overwrite", options.config)
			}
			cfg := config.Default()
			cfg.Service.AppVersion = version
			if err := cfg.Save(options.config); err != nil {
				return err
			}
			fmt.Println("wrote", options.config)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// initBus opens the enabled transports. The returned function releases
// them.
func initBus(options *initOptions, log *logrus.Entry) (*usb.USB, func(), error) {
	var buses []core.USBBus
	closer := func() {}

	if options.withusb {
		log.Debug("initing hidapi")
		h, err := hidapi.Init(log)
		if err != nil {
			return nil, nil, errors.Wrap(err, "hidapi")
		}
		closer = func() {
			if err := h.Close(); err != nil {
				log.WithError(err).Warn("closing hidapi")
			}
		}
		buses = append(buses, h)
	}

	log.Debugf("UDP port count - %d", len(options.ports))
	if len(options.ports) > 0 {
		e, err := usb.InitUDP(options.ports)
		if err != nil {
			closer()
			return nil, nil, errors.Wrap(err, "emulator")
		}
		buses = append(buses, e)
	}

	if len(buses) == 0 {
		return nil, nil, errors.New("no transports enabled")
	}
	return usb.Init(buses...), closer, nil
}
