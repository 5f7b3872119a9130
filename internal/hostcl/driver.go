// Package hostcl is a host-only implementation of the compute driver. It
// checks kernel source the way a device compiler would reject it, executes
// the blend kernels on the CPU through an asynchronous in-order queue, and
// lets tests inject native failures and count live resources.
package hostcl

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"blendcl/internal/compute"
)

// Op names a driver call that can be made to fail with WithFault.
type Op string

const (
	OpPlatforms  Op = "platforms"
	OpDevices    Op = "devices"
	OpContext    Op = "context"
	OpQueue      Op = "queue"
	OpBuffer     Op = "buffer"
	OpProgram    Op = "program"
	OpBuild      Op = "build"
	OpBuildLog   Op = "build-log"
	OpKernel     Op = "kernel"
	OpSetArg     Op = "set-arg"
	OpEnqueue    Op = "enqueue"
	OpWait       Op = "wait"
	OpReadBuffer Op = "read-buffer"
)

// PlatformSpec describes one emulated platform.
type PlatformSpec struct {
	Name    string
	Devices []string
}

// Driver implements compute.Driver on the host.
type Driver struct {
	platforms []*platform
	faults    map[Op]int
	kernels   map[string]Func
	workers   int

	calls atomic.Int64
	live  atomic.Int64

	mu   sync.Mutex
	seen map[Op]int
}

// Option configures a Driver.
type Option func(*Driver)

// WithPlatform adds a platform with the named devices.
func WithPlatform(name string, devices ...string) Option {
	return func(d *Driver) {
		d.platforms = append(d.platforms, newPlatform(d, PlatformSpec{Name: name, Devices: devices}))
	}
}

// WithoutPlatforms makes discovery report zero platforms.
func WithoutPlatforms() Option {
	return func(d *Driver) { d.platforms = []*platform{} }
}

// WithFault makes op fail with the native status code.
func WithFault(op Op, code int) Option {
	return func(d *Driver) { d.faults[op] = code }
}

// WithKernel registers or replaces a host implementation.
func WithKernel(name string, fn Func) Option {
	return func(d *Driver) { d.kernels[name] = fn }
}

// WithWorkers sets how many goroutines execute one launch. n < 1 means one.
func WithWorkers(n int) Option {
	return func(d *Driver) { d.workers = n }
}

// New builds a driver. Without WithPlatform it exposes one platform with one
// device.
func New(opts ...Option) *Driver {
	d := &Driver{
		faults:  make(map[Op]int),
		kernels: builtinKernels(),
		seen:    make(map[Op]int),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.platforms == nil {
		d.platforms = []*platform{newPlatform(d, PlatformSpec{Name: "Host Reference", Devices: []string{"host-cpu"}})}
	}
	return d
}

func (d *Driver) Name() string { return "host" }

// Calls is the number of native calls made so far.
func (d *Driver) Calls() int64 { return d.calls.Load() }

// Live is the number of created handles not yet released.
func (d *Driver) Live() int64 { return d.live.Load() }

// Count reports how many times op was called.
func (d *Driver) Count(op Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[op]
}

// call records op and returns the injected failure for it, if any.
func (d *Driver) call(op Op) error {
	d.calls.Add(1)
	d.mu.Lock()
	d.seen[op]++
	d.mu.Unlock()
	if code, ok := d.faults[op]; ok {
		return &compute.StatusError{Code: code, Err: fmt.Errorf("hostcl: injected %s failure", op)}
	}
	return nil
}

func (d *Driver) acquire() { d.live.Add(1) }
func (d *Driver) drop()    { d.live.Add(-1) }

func (d *Driver) Platforms() ([]compute.NativePlatform, error) {
	if err := d.call(OpPlatforms); err != nil {
		return nil, err
	}
	out := make([]compute.NativePlatform, len(d.platforms))
	for i, p := range d.platforms {
		out[i] = p
	}
	return out, nil
}

func (d *Driver) CreateContext(p compute.NativePlatform, devices []compute.NativeDevice) (compute.NativeContext, error) {
	if err := d.call(OpContext); err != nil {
		return nil, err
	}
	hp, ok := p.(*platform)
	if !ok || hp.driver != d {
		return nil, &compute.StatusError{Code: compute.StatusInvalidPlatform, Err: fmt.Errorf("hostcl: foreign platform %T", p)}
	}
	for _, nd := range devices {
		dev, ok := nd.(*device)
		if !ok || dev.platform != hp {
			return nil, &compute.StatusError{Code: compute.StatusInvalidDevice, Err: fmt.Errorf("hostcl: device not on platform %q", hp.name)}
		}
	}
	d.acquire()
	return &context{driver: d, platform: hp}, nil
}

type platform struct {
	driver  *Driver
	name    string
	devices []*device
}

func newPlatform(d *Driver, spec PlatformSpec) *platform {
	p := &platform{driver: d, name: spec.Name}
	for _, name := range spec.Devices {
		p.devices = append(p.devices, &device{platform: p, name: name})
	}
	return p
}

func (p *platform) Name() string    { return p.name }
func (p *platform) Vendor() string  { return "blendcl" }
func (p *platform) Version() string { return "OpenCL 1.2 host" }

func (p *platform) Devices() ([]compute.NativeDevice, error) {
	if err := p.driver.call(OpDevices); err != nil {
		return nil, err
	}
	out := make([]compute.NativeDevice, len(p.devices))
	for i, dev := range p.devices {
		out[i] = dev
	}
	return out, nil
}

type device struct {
	platform *platform
	name     string
}

func (d *device) Name() string          { return d.name }
func (d *device) Vendor() string        { return "blendcl" }
func (d *device) ImageSupport() bool    { return false }
func (d *device) MaxComputeUnits() int  { return 1 }
func (d *device) MaxWorkGroupSize() int { return 1024 }
func (d *device) GlobalMemSize() int64  { return 1 << 30 }

type context struct {
	driver   *Driver
	platform *platform
	released bool
}

func (c *context) CreateQueue(nd compute.NativeDevice) (compute.NativeQueue, error) {
	if err := c.driver.call(OpQueue); err != nil {
		return nil, err
	}
	if dev, ok := nd.(*device); !ok || dev.platform != c.platform {
		return nil, &compute.StatusError{Code: compute.StatusInvalidDevice, Err: fmt.Errorf("hostcl: device not in context")}
	}
	c.driver.acquire()
	return &queue{driver: c.driver}, nil
}

// CreateBuffer aliases host: kernel writes land directly in it.
func (c *context) CreateBuffer(access compute.Access, host []float32) (compute.NativeBuffer, error) {
	if err := c.driver.call(OpBuffer); err != nil {
		return nil, err
	}
	if len(host) == 0 {
		return nil, &compute.StatusError{Code: compute.StatusInvalidBufferSize, Err: fmt.Errorf("hostcl: zero-sized buffer")}
	}
	c.driver.acquire()
	return &buffer{driver: c.driver, access: access, data: host}, nil
}

func (c *context) CreateProgram(source string) (compute.NativeProgram, error) {
	if err := c.driver.call(OpProgram); err != nil {
		return nil, err
	}
	c.driver.acquire()
	return &program{driver: c.driver, source: source}, nil
}

func (c *context) Release() {
	if c.released {
		return
	}
	c.released = true
	c.driver.drop()
}

type buffer struct {
	driver   *Driver
	access   compute.Access
	data     []float32
	released bool
}

func (b *buffer) Size() int { return len(b.data) * 4 }

func (b *buffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.driver.drop()
}
