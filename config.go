package main

import (
	"io"

	"github.com/spf13/cobra"

	"blendcl/internal/compute"
	"blendcl/internal/config"
	"blendcl/internal/hostcl"
	"blendcl/internal/logging"
)

// app carries the resolved configuration and output streams of one process
// invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flags       flagValues
	cfg         *config.Config
	stopProfile func()
}

// setup resolves configuration and starts logging and profiling before any
// subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configFile, cmd.Flags())
	if err != nil {
		return &usageError{err: err}
	}
	a.cfg = cfg

	var console io.Writer
	if cfg.Logging.Console {
		console = a.stderr
	}
	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File, console); err != nil {
		return err
	}
	if cfg.CPUProfile != "" {
		stop, err := startCPUProfile(cfg.CPUProfile)
		if err != nil {
			return err
		}
		a.stopProfile = stop
	}
	logging.Get().WithField("backend", cfg.Backend).Debug("configuration loaded")
	return nil
}

// newDriver returns the compute driver named by backend.
func newDriver(backend string) (compute.Driver, error) {
	switch backend {
	case config.BackendHost:
		return hostcl.New(), nil
	default:
		return compute.NewOpenCLDriver()
	}
}
