package compute

import (
	"errors"
	"fmt"
)

// Kernel is a named entry point of a built Program.
type Kernel struct {
	native   NativeKernel
	name     string
	bound    bool
	released bool
}

func (k *Kernel) Name() string { return k.name }

func (k *Kernel) release() {
	if k.released {
		return
	}
	k.native.Release()
	k.released = true
}

// ResolveKernel looks up name in p. A name the program does not define is an
// ArgumentError.
func (c *Context) ResolveKernel(p *Program, name string) (*Kernel, error) {
	if err := c.checkOpen("create kernel"); err != nil {
		return nil, err
	}
	nk, err := p.native.CreateKernel(name)
	if err != nil {
		if Status(err) == StatusInvalidKernelName {
			return nil, &ArgumentError{Msg: fmt.Sprintf("kernel not found: %s", name), Err: err}
		}
		return nil, backendError("create kernel", err)
	}
	k := &Kernel{native: nk, name: name}
	c.own(k)
	return k, nil
}

// bindArity is the parameter count of every blend kernel: a, b, out.
const bindArity = 3

// BindArguments sets inputA, inputB and output as kernel arguments 0, 1 and 2.
// A kernel declared with any other parameter count is rejected before any
// argument is set.
func (k *Kernel) BindArguments(inputA, inputB, output *Buffer) error {
	n, err := k.native.NumArgs()
	if err != nil {
		return backendError("set kernel arguments", err)
	}
	if n != bindArity {
		return &BackendError{Op: "set kernel arguments", Code: StatusInvalidKernelArgs, Err: fmt.Errorf("%s declares %d arguments, want %d", k.name, n, bindArity)}
	}
	args := []*Buffer{inputA, inputB, output}
	for i, b := range args {
		if b == nil || b.released {
			return &BackendError{Op: fmt.Sprintf("set kernel arg %d", i), Code: StatusInvalidMemObject, Err: errors.New("buffer is not live")}
		}
		if err := k.native.SetArgBuffer(i, b.native); err != nil {
			return backendError(fmt.Sprintf("set kernel arg %d", i), err)
		}
	}
	k.bound = true
	return nil
}

// Completion is the signal that a dispatch has finished on the device.
type Completion struct {
	native   NativeEvent
	observed bool
	err      error
}

// Wait blocks until the dispatch finishes. Repeated calls return the first
// result.
func (e *Completion) Wait() error {
	if e.observed {
		return e.err
	}
	if err := e.native.Wait(); err != nil {
		e.err = backendError("wait for events", err)
	}
	e.native.Release()
	e.observed = true
	return e.err
}

// Done reports whether Wait has observed completion.
func (e *Completion) Done() bool { return e.observed && e.err == nil }

// Dispatch launches k over a one-dimensional range of global work-items
// grouped by local (0 lets the runtime choose). The launch is asynchronous;
// callers must Wait on the returned Completion before reading results.
func (q *Queue) Dispatch(k *Kernel, global, local int) (*Completion, error) {
	if !k.bound {
		return nil, &BackendError{Op: "enqueue nd range kernel", Code: StatusInvalidKernelArgs, Err: errors.New("kernel arguments not bound")}
	}
	if err := ValidateWorkSize(global, local); err != nil {
		return nil, err
	}
	ev, err := q.native.EnqueueKernel(k.native, global, local)
	if err != nil {
		return nil, backendError("enqueue nd range kernel", err)
	}
	return &Completion{native: ev}, nil
}

// ValidateWorkSize checks a one-dimensional launch shape.
func ValidateWorkSize(global, local int) error {
	if global <= 0 {
		return &ArgumentError{Msg: fmt.Sprintf("global work size %d must be positive", global)}
	}
	if local < 0 {
		return &ArgumentError{Msg: fmt.Sprintf("local work size %d must not be negative", local)}
	}
	if local > 0 && global%local != 0 {
		return &ArgumentError{Msg: fmt.Sprintf("global work size %d is not a multiple of local work size %d", global, local)}
	}
	return nil
}

var errNotCompleted = errors.New("read-back issued before dispatch completion was observed")

// ReadBack copies buf into dst, blocking until the copy completes. after is
// the dispatch that produced buf and must already have been waited on.
func (q *Queue) ReadBack(buf *Buffer, dst []float32, after *Completion) error {
	if after == nil || !after.Done() {
		return &BackendError{Op: "read buffer", Code: StatusInvalidEvent, Err: errNotCompleted}
	}
	if len(dst) != buf.Len() {
		return &ArgumentError{Msg: fmt.Sprintf("read-back destination holds %d floats, buffer holds %d", len(dst), buf.Len())}
	}
	if err := q.native.ReadBuffer(buf.native, dst); err != nil {
		return backendError("read buffer", err)
	}
	return nil
}
