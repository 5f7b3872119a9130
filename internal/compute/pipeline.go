package compute

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"blendcl/internal/blend"
)

// DefaultLocalSize is the work-group size used when none is configured: one
// work-item per group, no tiling.
const DefaultLocalSize = 1

// Shape is the layout of a pixel plane: row-major, channel-interleaved.
type Shape struct {
	Width    int
	Height   int
	Channels int
}

// Len is the number of float components in a plane of this shape.
func (s Shape) Len() int { return s.Width * s.Height * s.Channels }

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Channels)
}

// Job describes one blend of two equally shaped planes.
type Job struct {
	PlatformIndex int
	Mode          blend.Mode
	Shape         Shape
	A, B          []float32
	Source        string
	LocalSize     int
}

// Result is the blended plane and the run that produced it.
type Result struct {
	Output []float32
	Shape  Shape
	Device string
	Trace  []Stage
	Build  time.Duration
	Kernel time.Duration
}

// Pipeline runs blend jobs against a Driver.
type Pipeline struct {
	driver Driver
	out    io.Writer
	diag   io.Writer
	log    logrus.FieldLogger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutput sets where device listing lines are written.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// WithBuildLog sets where compiler logs are written.
func WithBuildLog(w io.Writer) Option {
	return func(p *Pipeline) { p.diag = w }
}

// WithPipelineLogger sets the run logger.
func WithPipelineLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

func NewPipeline(driver Driver, opts ...Option) *Pipeline {
	p := &Pipeline{
		driver: driver,
		out:    io.Discard,
		diag:   io.Discard,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks everything about job that can be checked without touching
// a device.
func (j *Job) Validate() error {
	if !j.Mode.Valid() {
		return &ArgumentError{Msg: fmt.Sprintf("mode unsupported: %q", string(j.Mode))}
	}
	if j.Shape.Width <= 0 || j.Shape.Height <= 0 || j.Shape.Channels <= 0 {
		return &ArgumentError{Msg: fmt.Sprintf("invalid image shape %s", j.Shape)}
	}
	n := j.Shape.Len()
	if len(j.A) != n {
		return &ArgumentError{Msg: fmt.Sprintf("image A holds %d floats, shape %s needs %d", len(j.A), j.Shape, n)}
	}
	if len(j.B) != n {
		return &ArgumentError{Msg: fmt.Sprintf("image B holds %d floats, image A holds %d: dimensions differ", len(j.B), n)}
	}
	return ValidateWorkSize(n, j.LocalSize)
}

// Run executes job: discover, bind a context, upload, build, bind, dispatch,
// wait and read back. Every resource is released before Run returns.
func (p *Pipeline) Run(job Job) (*Result, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	var st stageTracker

	catalog := NewCatalog(p.driver)
	platforms, err := catalog.ListPlatforms()
	if err != nil {
		return nil, st.fail(err)
	}
	if err := ValidatePlatformIndex(job.PlatformIndex, len(platforms)); err != nil {
		return nil, st.fail(err)
	}
	for _, pl := range platforms {
		devices, err := catalog.ListDevices(pl)
		if err != nil {
			return nil, st.fail(err)
		}
		if err := PrintDevices(p.out, devices); err != nil {
			return nil, st.fail(err)
		}
	}
	platform := platforms[job.PlatformIndex]
	devices, err := catalog.ListDevices(platform)
	if err != nil {
		return nil, st.fail(err)
	}
	if len(devices) == 0 {
		return nil, st.fail(&DiscoveryError{Err: fmt.Errorf("platform %d has no devices", platform.Index)})
	}
	info := Describe(devices[0])
	log := p.log.WithFields(logrus.Fields{"platform": platform.Index, "device": info.Name})
	log.WithField("image_support", info.ImageSupport).Info("device selected")
	if err := st.advance(PlatformsDiscovered); err != nil {
		return nil, st.fail(err)
	}

	var res *Result
	err = WithContext(p.driver, platform, devices, func(ctx *Context) error {
		var err error
		res, err = p.run(ctx, &st, job, log)
		return err
	}, WithLogger(log), WithDiagnostics(p.diag))
	if err != nil {
		if _, ok := err.(*RunError); ok {
			return nil, err
		}
		return nil, st.fail(err)
	}
	res.Trace = st.trace
	return res, nil
}

func (p *Pipeline) run(ctx *Context, st *stageTracker, job Job, log logrus.FieldLogger) (*Result, error) {
	if err := st.advance(ContextCreated); err != nil {
		return nil, st.fail(err)
	}
	device := ctx.Devices()[0]
	queue, err := ctx.CreateQueue(device)
	if err != nil {
		return nil, st.fail(err)
	}

	inA, err := ctx.UploadReadOnly(job.A)
	if err != nil {
		return nil, st.fail(err)
	}
	inB, err := ctx.UploadReadOnly(job.B)
	if err != nil {
		return nil, st.fail(err)
	}
	out, host, err := ctx.CreateWriteOnlyOutput(inA.ByteLen())
	if err != nil {
		return nil, st.fail(err)
	}
	log.WithField("bytes", humanize.Bytes(uint64(3*inA.ByteLen()))).Debug("buffers uploaded")
	if err := st.advance(BuffersUploaded); err != nil {
		return nil, st.fail(err)
	}

	buildStart := time.Now()
	program, err := ctx.Build(ctx.Devices(), job.Source)
	if err != nil {
		return nil, st.fail(err)
	}
	buildTime := time.Since(buildStart)
	if err := st.advance(ProgramBuilt); err != nil {
		return nil, st.fail(err)
	}

	kernel, err := ctx.ResolveKernel(program, job.Mode.KernelName())
	if err != nil {
		return nil, st.fail(err)
	}
	if err := kernel.BindArguments(inA, inB, out); err != nil {
		return nil, st.fail(err)
	}
	if err := st.advance(KernelBound); err != nil {
		return nil, st.fail(err)
	}

	global := job.Shape.Len()
	kernelStart := time.Now()
	done, err := queue.Dispatch(kernel, global, job.LocalSize)
	if err != nil {
		return nil, st.fail(err)
	}
	if err := st.advance(Dispatched); err != nil {
		return nil, st.fail(err)
	}
	if err := done.Wait(); err != nil {
		return nil, st.fail(err)
	}
	kernelTime := time.Since(kernelStart)
	if err := queue.ReadBack(out, host, done); err != nil {
		return nil, st.fail(err)
	}
	if err := st.advance(Completed); err != nil {
		return nil, st.fail(err)
	}
	log.WithFields(logrus.Fields{
		"kernel": kernel.Name(),
		"items":  global,
		"build":  buildTime,
		"run":    kernelTime,
	}).Info("blend completed")

	return &Result{
		Output: host,
		Shape:  job.Shape,
		Device: device.Name,
		Build:  buildTime,
		Kernel: kernelTime,
	}, nil
}
