//go:build opencl

package compute

import (
	"errors"
	"runtime"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// openCLDriver drives the system ICD loader through go-opencl.
type openCLDriver struct{}

// NewOpenCLDriver returns the OpenCL driver.
func NewOpenCLDriver() (Driver, error) {
	return openCLDriver{}, nil
}

func (openCLDriver) Name() string { return "opencl" }

func (openCLDriver) Platforms() ([]NativePlatform, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		return nil, clStatus(err)
	}
	out := make([]NativePlatform, len(platforms))
	for i, p := range platforms {
		out[i] = clPlatform{p}
	}
	return out, nil
}

// CreateContext binds devices; go-opencl derives the platform from them.
func (openCLDriver) CreateContext(_ NativePlatform, devices []NativeDevice) (NativeContext, error) {
	clDevices := make([]*cl.Device, len(devices))
	for i, d := range devices {
		clDevices[i] = d.(clDevice).d
	}
	ctx, err := cl.CreateContext(clDevices)
	if err != nil {
		return nil, clStatus(err)
	}
	return &clContext{ctx: ctx}, nil
}

type clPlatform struct{ p *cl.Platform }

func (p clPlatform) Name() string    { return p.p.Name() }
func (p clPlatform) Vendor() string  { return p.p.Vendor() }
func (p clPlatform) Version() string { return p.p.Version() }

func (p clPlatform) Devices() ([]NativeDevice, error) {
	devices, err := p.p.GetDevices(cl.DeviceTypeAll)
	if err != nil {
		if err == cl.ErrDeviceNotFound {
			return nil, nil
		}
		return nil, clStatus(err)
	}
	out := make([]NativeDevice, len(devices))
	for i, d := range devices {
		out[i] = clDevice{d}
	}
	return out, nil
}

type clDevice struct{ d *cl.Device }

func (d clDevice) Name() string          { return d.d.Name() }
func (d clDevice) Vendor() string        { return d.d.Vendor() }
func (d clDevice) ImageSupport() bool    { return d.d.ImageSupport() }
func (d clDevice) MaxComputeUnits() int  { return d.d.MaxComputeUnits() }
func (d clDevice) MaxWorkGroupSize() int { return d.d.MaxWorkGroupSize() }
func (d clDevice) GlobalMemSize() int64  { return d.d.GlobalMemSize() }

type clContext struct{ ctx *cl.Context }

func (c *clContext) CreateQueue(device NativeDevice) (NativeQueue, error) {
	q, err := c.ctx.CreateCommandQueue(device.(clDevice).d, 0)
	if err != nil {
		return nil, clStatus(err)
	}
	return &clQueue{q: q}, nil
}

// CreateBuffer uses the host slice as buffer storage. The slice is pinned
// until the buffer is released since the implementation may keep using it.
func (c *clContext) CreateBuffer(access Access, host []float32) (NativeBuffer, error) {
	if len(host) == 0 {
		return nil, &StatusError{Code: StatusInvalidBufferSize, Err: cl.ErrInvalidBufferSize}
	}
	flags := cl.MemUseHostPtr
	switch access {
	case ReadOnly:
		flags |= cl.MemReadOnly
	case WriteOnly:
		flags |= cl.MemWriteOnly
	}
	b := &clBuffer{size: len(host) * float32Size}
	b.pin.Pin(&host[0])
	mem, err := c.ctx.CreateBufferUnsafe(flags, b.size, unsafe.Pointer(&host[0]))
	if err != nil {
		b.pin.Unpin()
		return nil, clStatus(err)
	}
	b.mem = mem
	return b, nil
}

func (c *clContext) CreateProgram(source string) (NativeProgram, error) {
	p, err := c.ctx.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, clStatus(err)
	}
	return &clProgram{p: p}, nil
}

func (c *clContext) Release() { c.ctx.Release() }

type clBuffer struct {
	mem  *cl.MemObject
	size int
	pin  runtime.Pinner
}

func (b *clBuffer) Size() int { return b.size }

func (b *clBuffer) Release() {
	b.mem.Release()
	b.pin.Unpin()
}

// clProgram keeps the compiler log go-opencl hands back with a failed build.
type clProgram struct {
	p      *cl.Program
	log    string
	logErr error
}

func (p *clProgram) Build(devices []NativeDevice, options string) error {
	clDevices := make([]*cl.Device, len(devices))
	for i, d := range devices {
		clDevices[i] = d.(clDevice).d
	}
	err := p.p.BuildProgram(clDevices, options)
	if err == nil {
		return nil
	}
	var buildErr cl.BuildError
	if errors.As(err, &buildErr) {
		p.log = string(buildErr)
		return &StatusError{Code: StatusBuildProgramFailure, Err: err}
	}
	// go-opencl returns the log query's own error when the log could not be
	// read; the build itself still failed.
	p.logErr = clStatus(err)
	return &StatusError{Code: StatusBuildProgramFailure, Err: err}
}

// BuildLog returns the log go-opencl collected, which is always the first
// device's.
func (p *clProgram) BuildLog(NativeDevice) (string, error) {
	if p.logErr != nil {
		return "", p.logErr
	}
	return p.log, nil
}

func (p *clProgram) CreateKernel(name string) (NativeKernel, error) {
	k, err := p.p.CreateKernel(name)
	if err != nil {
		return nil, clStatus(err)
	}
	return clKernel{k}, nil
}

func (p *clProgram) Release() { p.p.Release() }

type clKernel struct{ k *cl.Kernel }

func (k clKernel) NumArgs() (int, error) {
	n, err := k.k.NumArgs()
	if err != nil {
		return 0, clStatus(err)
	}
	return n, nil
}

func (k clKernel) SetArgBuffer(index int, buffer NativeBuffer) error {
	if err := k.k.SetArgBuffer(index, buffer.(*clBuffer).mem); err != nil {
		return clStatus(err)
	}
	return nil
}

func (k clKernel) Release() { k.k.Release() }

type clQueue struct{ q *cl.CommandQueue }

func (q *clQueue) EnqueueKernel(kernel NativeKernel, global, local int) (NativeEvent, error) {
	var localSize []int
	if local > 0 {
		localSize = []int{local}
	}
	ev, err := q.q.EnqueueNDRangeKernel(kernel.(clKernel).k, nil, []int{global}, localSize, nil)
	if err != nil {
		return nil, clStatus(err)
	}
	return clEvent{ev}, nil
}

func (q *clQueue) ReadBuffer(buffer NativeBuffer, dst []float32) error {
	ev, err := q.q.EnqueueReadBufferFloat32(buffer.(*clBuffer).mem, true, 0, dst, nil)
	if err != nil {
		return clStatus(err)
	}
	if ev != nil {
		ev.Release()
	}
	return nil
}

func (q *clQueue) Release() { q.q.Release() }

type clEvent struct{ ev *cl.Event }

func (e clEvent) Wait() error {
	if err := cl.WaitForEvents([]*cl.Event{e.ev}); err != nil {
		return clStatus(err)
	}
	return nil
}

func (e clEvent) Release() { e.ev.Release() }

// clCodes maps go-opencl's sentinel errors back to their native codes.
var clCodes = map[error]int{
	cl.ErrDeviceNotFound:             StatusDeviceNotFound,
	cl.ErrMemObjectAllocationFailure: StatusMemObjectAllocationFailure,
	cl.ErrOutOfResources:             StatusOutOfResources,
	cl.ErrOutOfHostMemory:            StatusOutOfHostMemory,
	cl.ErrBuildProgramFailure:        StatusBuildProgramFailure,
	cl.ErrInvalidValue:               StatusInvalidValue,
	cl.ErrInvalidPlatform:            StatusInvalidPlatform,
	cl.ErrInvalidDevice:              StatusInvalidDevice,
	cl.ErrInvalidContext:             StatusInvalidContext,
	cl.ErrInvalidCommandQueue:        StatusInvalidCommandQueue,
	cl.ErrInvalidHostPtr:             StatusInvalidHostPtr,
	cl.ErrInvalidMemObject:           StatusInvalidMemObject,
	cl.ErrInvalidProgramExecutable:   StatusInvalidProgramExecutable,
	cl.ErrInvalidKernelName:          StatusInvalidKernelName,
	cl.ErrInvalidArgIndex:            StatusInvalidArgIndex,
	cl.ErrInvalidArgValue:            StatusInvalidArgValue,
	cl.ErrInvalidArgSize:             StatusInvalidArgSize,
	cl.ErrInvalidKernelArgs:          StatusInvalidKernelArgs,
	cl.ErrInvalidWorkGroupSize:       StatusInvalidWorkGroupSize,
	cl.ErrInvalidEvent:               StatusInvalidEvent,
	cl.ErrInvalidBufferSize:          StatusInvalidBufferSize,
}

func clStatus(err error) error {
	if code, ok := clCodes[err]; ok {
		return &StatusError{Code: code, Err: err}
	}
	var other cl.ErrOther
	if errors.As(err, &other) {
		return &StatusError{Code: int(other), Err: err}
	}
	return &StatusError{Code: StatusUnknown, Err: err}
}
