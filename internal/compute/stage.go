package compute

import "fmt"

// Stage is a step of one blend invocation. Stages only move forward, one at
// a time; any failure ends in Failed.
type Stage int

const (
	Uninitialized Stage = iota
	PlatformsDiscovered
	ContextCreated
	BuffersUploaded
	ProgramBuilt
	KernelBound
	Dispatched
	Completed
	Failed
)

func (s Stage) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case PlatformsDiscovered:
		return "platforms discovered"
	case ContextCreated:
		return "context created"
	case BuffersUploaded:
		return "buffers uploaded"
	case ProgramBuilt:
		return "program built"
	case KernelBound:
		return "kernel bound"
	case Dispatched:
		return "dispatched"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// stageTracker enforces the forward-only transition order.
type stageTracker struct {
	current Stage
	trace   []Stage
}

func (t *stageTracker) advance(next Stage) error {
	if t.current == Failed {
		return fmt.Errorf("run already failed, cannot enter %s", next)
	}
	if next != t.current+1 || next >= Failed {
		return fmt.Errorf("invalid transition %s -> %s", t.current, next)
	}
	t.current = next
	t.trace = append(t.trace, next)
	return nil
}

// fail moves the run to Failed and returns err annotated with the last
// stage that succeeded.
func (t *stageTracker) fail(err error) error {
	reached := t.current
	t.current = Failed
	t.trace = append(t.trace, Failed)
	return &RunError{Stage: reached, Err: err}
}
