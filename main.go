package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"blendcl/internal/blend"
	"blendcl/internal/compute"
	"blendcl/internal/imageio"
	"blendcl/internal/logging"
	"blendcl/kernels"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks a malformed invocation.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err: err}
	}
	return nil
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ue *usageError
	if errors.As(err, &ue) || compute.IsArgument(err) || errors.Is(err, blend.ErrUnsupportedMode) {
		return exitUsage
	}
	return exitFailure
}

func run(args []string, stdout, stderr io.Writer) int {
	app := &app{stdout: stdout, stderr: stderr}
	root := app.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if app.stopProfile != nil {
		app.stopProfile()
	}
	logging.Close()
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
	}
	return exitCode(err)
}

// blendArgs are the positional arguments of one blend invocation.
type blendArgs struct {
	platform int
	mode     blend.Mode
	inputA   string
	inputB   string
	output   string
}

func parseBlendArgs(args []string) (blendArgs, error) {
	if len(args) != 5 {
		return blendArgs{}, usagef("expected 5 arguments <platform_index> <mode> <imageA> <imageB> <imageOut>, got %d", len(args))
	}
	platform, err := strconv.Atoi(args[0])
	if err != nil {
		return blendArgs{}, usagef("platform index %q is not an integer", args[0])
	}
	mode, err := blend.ParseMode(args[1])
	if err != nil {
		return blendArgs{}, err
	}
	if err := imageio.CheckWritable(args[4]); err != nil {
		return blendArgs{}, &usageError{err: err}
	}
	return blendArgs{platform: platform, mode: mode, inputA: args[2], inputB: args[3], output: args[4]}, nil
}

// loadPair decodes both inputs concurrently and checks they share a shape.
func loadPair(pathA, pathB string) (*imageio.Image, *imageio.Image, error) {
	var a, b *imageio.Image
	var g errgroup.Group
	g.Go(func() error {
		var err error
		a, err = imageio.Read(pathA)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = imageio.Read(pathB)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels {
		return nil, nil, compute.Argument(fmt.Sprintf("image dimensions differ: %s is %dx%dx%d, %s is %dx%dx%d",
			pathA, a.Width, a.Height, a.Channels, pathB, b.Width, b.Height, b.Channels), nil)
	}
	return a, b, nil
}

func (a *app) runBlend(args []string) error {
	ba, err := parseBlendArgs(args)
	if err != nil {
		return err
	}
	log := logging.Get().WithField("mode", ba.mode)

	source, err := kernels.Load(a.cfg.Kernels)
	if err != nil {
		return err
	}
	imgA, imgB, err := loadPair(ba.inputA, ba.inputB)
	if err != nil {
		return err
	}
	driver, err := newDriver(a.cfg.Backend)
	if err != nil {
		return err
	}

	job := compute.Job{
		PlatformIndex: ba.platform,
		Mode:          ba.mode,
		Shape:         compute.Shape{Width: imgA.Width, Height: imgA.Height, Channels: imgA.Channels},
		A:             imgA.Pix,
		B:             imgB.Pix,
		Source:        source,
		LocalSize:     a.cfg.LocalSize,
	}
	pipeline := compute.NewPipeline(driver,
		compute.WithOutput(a.stdout),
		compute.WithBuildLog(a.stderr),
		compute.WithPipelineLogger(log),
	)
	res, err := pipeline.Run(job)
	if err != nil {
		return err
	}

	out := &imageio.Image{Pix: res.Output, Width: res.Shape.Width, Height: res.Shape.Height, Channels: res.Shape.Channels}
	if err := imageio.Write(ba.output, out); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"output": ba.output, "device": res.Device}).Info("output written")
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// rootCommand wires the blend invocation and its subcommands.
func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "blendcl <platform_index> <mode> <imageA> <imageB> <imageOut>",
		Short: "Blend two images on an OpenCL device",
		Long: `blendcl composites two equally sized images with a per-pixel blend
formula executed as an OpenCL kernel, one work-item per pixel component,
and writes the result in the format implied by the output extension.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 5 {
				return usagef("expected 5 arguments, got %d", len(args))
			}
			return nil
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup(cmd) },
		RunE:              func(_ *cobra.Command, args []string) error { return a.runBlend(args) },
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	registerFlags(root, &a.flags)
	root.AddCommand(a.devicesCommand(), a.modesCommand())
	return root
}
