package main

import (
	"github.com/mutenix-org/mutenixd/internal/config"
	"github.com/mutenix-org/mutenixd/internal/logs"
)

func initLoggers(cfg *config.Config, options *initOptions) (*logs.Logger, error) {
	o := cfg.LogOptions(options.verbose)
	if options.logfile != "" {
		o.File = true
		o.FilePath = options.logfile
	}
	return logs.New(o)
}
