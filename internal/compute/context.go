package compute

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// releaser is any wrapper a Context owns.
type releaser interface {
	release()
}

// Context binds one platform and a fixed device set. Every queue, buffer,
// program and kernel created through it is owned by it and released by Close
// in reverse creation order.
type Context struct {
	native   NativeContext
	platform *Platform
	devices  []*Device
	owned    []releaser
	closed   bool

	log  logrus.FieldLogger
	diag io.Writer
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger used for resource lifecycle events.
func WithLogger(log logrus.FieldLogger) ContextOption {
	return func(c *Context) { c.log = log }
}

// WithDiagnostics sets where compiler logs are written.
func WithDiagnostics(w io.Writer) ContextOption {
	return func(c *Context) { c.diag = w }
}

// CreateContext binds platform and devices on driver.
func CreateContext(driver Driver, platform *Platform, devices []*Device, opts ...ContextOption) (*Context, error) {
	if len(devices) == 0 {
		return nil, &ArgumentError{Msg: "context needs at least one device"}
	}
	natives := make([]NativeDevice, len(devices))
	for i, d := range devices {
		natives[i] = d.native
	}
	nc, err := driver.CreateContext(platform.native, natives)
	if err != nil {
		return nil, backendError("create context", err)
	}
	c := &Context{
		native:   nc,
		platform: platform,
		devices:  devices,
		log:      logrus.StandardLogger(),
		diag:     io.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log.WithFields(logrus.Fields{"platform": platform.Name, "devices": len(devices)}).Debug("context created")
	return c, nil
}

// WithContext creates a Context, passes it to fn and releases it, and
// everything it owns, whatever fn returns.
func WithContext(driver Driver, platform *Platform, devices []*Device, fn func(*Context) error, opts ...ContextOption) error {
	c, err := CreateContext(driver, platform, devices, opts...)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func (c *Context) Platform() *Platform { return c.platform }

func (c *Context) Devices() []*Device { return c.devices }

func (c *Context) own(r releaser) {
	c.owned = append(c.owned, r)
}

var errContextClosed = errors.New("context closed")

func (c *Context) checkOpen(op string) error {
	if c.closed {
		return &BackendError{Op: op, Code: StatusInvalidContext, Err: errContextClosed}
	}
	return nil
}

// Close releases every owned resource, then the context. It is safe to call
// more than once.
func (c *Context) Close() {
	if c.closed {
		return
	}
	for i := len(c.owned) - 1; i >= 0; i-- {
		c.owned[i].release()
	}
	c.owned = nil
	c.native.Release()
	c.closed = true
	c.log.Debug("context released")
}

// Queue is the single in-order submission channel for transfers and
// launches. It is not safe for concurrent use.
type Queue struct {
	native   NativeQueue
	device   *Device
	released bool
}

// CreateQueue creates the command queue for device.
func (c *Context) CreateQueue(device *Device) (*Queue, error) {
	if err := c.checkOpen("create command queue"); err != nil {
		return nil, err
	}
	nq, err := c.native.CreateQueue(device.native)
	if err != nil {
		return nil, backendError("create command queue", err)
	}
	q := &Queue{native: nq, device: device}
	c.own(q)
	return q, nil
}

func (q *Queue) Device() *Device { return q.device }

func (q *Queue) release() {
	if q.released {
		return
	}
	q.native.Release()
	q.released = true
}
