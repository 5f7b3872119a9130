package compute

// Driver is the native compute backend. Handles returned by a Driver are
// owned by the wrappers in this package, which release them exactly once.
// Failed native calls should return a StatusError so the originating status
// code reaches diagnostics.
type Driver interface {
	Name() string
	Platforms() ([]NativePlatform, error)
	CreateContext(platform NativePlatform, devices []NativeDevice) (NativeContext, error)
}

type NativePlatform interface {
	Name() string
	Vendor() string
	Version() string
	Devices() ([]NativeDevice, error)
}

type NativeDevice interface {
	Name() string
	Vendor() string
	ImageSupport() bool
	MaxComputeUnits() int
	MaxWorkGroupSize() int
	GlobalMemSize() int64
}

// Access describes how kernels may use a device buffer.
type Access int

const (
	ReadOnly Access = iota
	WriteOnly
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	default:
		return "unknown"
	}
}

type NativeContext interface {
	CreateQueue(device NativeDevice) (NativeQueue, error)
	// CreateBuffer creates a buffer backed by host. The driver may alias host
	// directly or copy it; host must stay valid until the buffer is released.
	CreateBuffer(access Access, host []float32) (NativeBuffer, error)
	CreateProgram(source string) (NativeProgram, error)
	Release()
}

type NativeBuffer interface {
	Size() int
	Release()
}

type NativeProgram interface {
	Build(devices []NativeDevice, options string) error
	BuildLog(device NativeDevice) (string, error)
	CreateKernel(name string) (NativeKernel, error)
	Release()
}

type NativeKernel interface {
	// NumArgs is the parameter count the kernel was declared with.
	NumArgs() (int, error)
	SetArgBuffer(index int, buffer NativeBuffer) error
	Release()
}

type NativeQueue interface {
	// EnqueueKernel launches a one-dimensional range. local == 0 lets the
	// runtime pick the work-group size.
	EnqueueKernel(kernel NativeKernel, global, local int) (NativeEvent, error)
	// ReadBuffer copies buffer into dst and blocks until the copy is done.
	ReadBuffer(buffer NativeBuffer, dst []float32) error
	Release()
}

type NativeEvent interface {
	Wait() error
	Release()
}
