package main

import (
	"github.com/spf13/cobra"

	"blendcl/internal/config"
)

// Command-line flags shared by every subcommand. Except --config, each one
// overrides the config key of the same meaning; the defaults here mirror
// config.DefaultConfig.
type flagValues struct {
	// configFile is an optional YAML file layered under env and flags.
	configFile string
}

func registerFlags(cmd *cobra.Command, fv *flagValues) {
	defaults := config.DefaultConfig()
	pf := cmd.PersistentFlags()

	pf.StringVar(&fv.configFile, "config", "", "YAML config file")

	// backend selects the compute driver: OpenCL, or the host reference driver.
	pf.String("backend", defaults.Backend, "compute backend: opencl or host")

	// kernels overrides the built-in blend kernel source.
	pf.String("kernels", defaults.Kernels, "path to kernel source (default built-in)")

	// local-size is the work-group size; 0 lets the runtime choose.
	pf.Int("local-size", defaults.LocalSize, "work-group size, must divide the pixel component count (0 = runtime choice)")

	pf.String("log-level", defaults.Logging.Level, "log level: trace, debug, info, warn, error")
	pf.String("log-file", defaults.Logging.File, "also append logs to this file")

	pf.String("cpuprofile", defaults.CPUProfile, "write a CPU profile of the run to this file")
}
