package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

type udpPorts []int

func (i *udpPorts) String() string {
	res := ""
	for i, p := range *i {
		if i > 0 {
			res += ","
		}
		res += strconv.Itoa(p)
	}
	return res
}

func (i *udpPorts) Set(value string) error {
	p, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*i = append(*i, p)
	return nil
}

func (i *udpPorts) Type() string {
	return "port"
}

type initOptions struct {
	config  string
	logfile string
	ports   udpPorts
	withusb bool
	verbose bool
}

func bindFlags(cmd *cobra.Command, options *initOptions) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(
		&(options.config),
		"config",
		"c",
		"mutenix.yaml",
		"Configuration file; missing settings fall back to defaults",
	)
	flags.StringVarP(
		&(options.logfile),
		"logfile",
		"l",
		"",
		"Log into a rotating file, overriding the configured path",
	)
	flags.VarP(
		&(options.ports),
		"emulator",
		"e",
		"Use UDP port for emulator. Can be repeated for more ports. Example: mutenixd run -e 12910 -e 12911",
	)
	flags.BoolVarP(
		&(options.withusb),
		"usb",
		"u",
		true,
		"Use HID devices. Can be disabled for testing environments. Example: mutenixd run -e 12910 -u=false",
	)
	flags.BoolVarP(
		&(options.verbose),
		"verbose",
		"v",
		false,
		"Log at debug level at least",
	)
}
