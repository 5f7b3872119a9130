package hostcl

import (
	"fmt"

	"blendcl/internal/compute"
)

// blendArity is the parameter count of every blend kernel: a, b, out.
const blendArity = 3

type kernel struct {
	driver   *Driver
	name     string
	fn       Func
	args     []*buffer
	released bool
}

func (k *kernel) NumArgs() (int, error) { return len(k.args), nil }

func (k *kernel) SetArgBuffer(index int, nb compute.NativeBuffer) error {
	if err := k.driver.call(OpSetArg); err != nil {
		return err
	}
	if index < 0 || index >= len(k.args) {
		return &compute.StatusError{Code: compute.StatusInvalidArgIndex, Err: fmt.Errorf("hostcl: %s takes %d arguments, got index %d", k.name, len(k.args), index)}
	}
	b, ok := nb.(*buffer)
	if !ok || b.released {
		return &compute.StatusError{Code: compute.StatusInvalidMemObject, Err: fmt.Errorf("hostcl: argument %d is not a live buffer", index)}
	}
	k.args[index] = b
	return nil
}

func (k *kernel) Release() {
	if k.released {
		return
	}
	k.released = true
	k.driver.drop()
}

// queue runs launches one after another on a background goroutine.
type queue struct {
	driver   *Driver
	last     *event
	released bool
}

type event struct {
	driver   *Driver
	done     chan struct{}
	released bool
}

func (q *queue) EnqueueKernel(nk compute.NativeKernel, global, local int) (compute.NativeEvent, error) {
	if err := q.driver.call(OpEnqueue); err != nil {
		return nil, err
	}
	k, ok := nk.(*kernel)
	if !ok || k.released {
		return nil, &compute.StatusError{Code: compute.StatusInvalidMemObject, Err: fmt.Errorf("hostcl: kernel is not live")}
	}
	if len(k.args) != blendArity {
		return nil, &compute.StatusError{Code: compute.StatusInvalidKernelArgs, Err: fmt.Errorf("hostcl: %s declares %d arguments, want %d", k.name, len(k.args), blendArity)}
	}
	for i, b := range k.args {
		if b == nil {
			return nil, &compute.StatusError{Code: compute.StatusInvalidKernelArgs, Err: fmt.Errorf("hostcl: argument %d of %s not set", i, k.name)}
		}
	}
	a, bIn, out := k.args[0], k.args[1], k.args[2]
	if out.access != compute.WriteOnly {
		return nil, &compute.StatusError{Code: compute.StatusInvalidArgValue, Err: fmt.Errorf("hostcl: output of %s is %s", k.name, out.access)}
	}
	if global <= 0 || global > len(a.data) || global > len(bIn.data) || global > len(out.data) {
		return nil, &compute.StatusError{Code: compute.StatusInvalidValue, Err: fmt.Errorf("hostcl: global size %d exceeds bound buffers", global)}
	}
	if local < 0 || (local > 0 && global%local != 0) {
		return nil, &compute.StatusError{Code: compute.StatusInvalidWorkGroupSize, Err: fmt.Errorf("hostcl: global size %d not divisible by local size %d", global, local)}
	}
	if local == 0 {
		local = global
	}

	prev := q.last
	ev := &event{driver: q.driver, done: make(chan struct{})}
	q.driver.acquire()
	q.last = ev
	fn, workers := k.fn, q.driver.workers
	go func() {
		defer close(ev.done)
		if prev != nil {
			<-prev.done
		}
		runGroups(global, local, workers, func(i int) {
			out.data[i] = fn(a.data[i], bIn.data[i])
		})
	}()
	return ev, nil
}

func (q *queue) ReadBuffer(nb compute.NativeBuffer, dst []float32) error {
	if err := q.driver.call(OpReadBuffer); err != nil {
		return err
	}
	b, ok := nb.(*buffer)
	if !ok || b.released {
		return &compute.StatusError{Code: compute.StatusInvalidMemObject, Err: fmt.Errorf("hostcl: read from a buffer that is not live")}
	}
	if len(dst) > len(b.data) {
		return &compute.StatusError{Code: compute.StatusInvalidValue, Err: fmt.Errorf("hostcl: read of %d floats from %d-float buffer", len(dst), len(b.data))}
	}
	// In-order queue: the read starts after every earlier command.
	if q.last != nil {
		<-q.last.done
	}
	copy(dst, b.data)
	return nil
}

func (q *queue) Release() {
	if q.released {
		return
	}
	if q.last != nil {
		<-q.last.done
	}
	q.released = true
	q.driver.drop()
}

func (e *event) Wait() error {
	if err := e.driver.call(OpWait); err != nil {
		return err
	}
	<-e.done
	return nil
}

func (e *event) Release() {
	if e.released {
		return
	}
	e.released = true
	e.driver.drop()
}
