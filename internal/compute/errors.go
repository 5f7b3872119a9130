package compute

import (
	"errors"
	"fmt"
)

// Native status codes, numbered as in the OpenCL headers.
const (
	StatusSuccess                    = 0
	StatusDeviceNotFound             = -1
	StatusMemObjectAllocationFailure = -4
	StatusOutOfResources             = -5
	StatusOutOfHostMemory            = -6
	StatusBuildProgramFailure        = -11
	StatusInvalidValue               = -30
	StatusInvalidPlatform            = -32
	StatusInvalidDevice              = -33
	StatusInvalidContext             = -34
	StatusInvalidCommandQueue        = -36
	StatusInvalidHostPtr             = -37
	StatusInvalidMemObject           = -38
	StatusInvalidProgramExecutable   = -45
	StatusInvalidKernelName          = -46
	StatusInvalidArgIndex            = -49
	StatusInvalidArgValue            = -50
	StatusInvalidArgSize             = -51
	StatusInvalidKernelArgs          = -52
	StatusInvalidWorkGroupSize       = -54
	StatusInvalidEvent               = -58
	StatusInvalidBufferSize          = -61
	StatusPlatformNotFoundKHR        = -1001

	// StatusUnknown is reported when a driver error carries no code.
	StatusUnknown = -9999
)

// StatusError is what drivers return for a failed native call.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// Status extracts the native status code from err.
func Status(err error) int {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Code
	}
	return StatusUnknown
}

// ArgumentError reports caller input the pipeline refuses to run with.
type ArgumentError struct {
	Msg string
	Err error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Argument wraps err as an ArgumentError.
func Argument(msg string, err error) error {
	return &ArgumentError{Msg: msg, Err: err}
}

// DiscoveryError reports that no usable compute platform exists.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no compute platforms found: %v", e.Err)
	}
	return "no compute platforms found"
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// BackendError is a failed native call. Op names the call and Code is the
// status it returned.
type BackendError struct {
	Op   string
	Code int
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s (%d): %v", e.Op, e.Code, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func backendError(op string, err error) error {
	return &BackendError{Op: op, Code: Status(err), Err: err}
}

// BuildError is a kernel compilation failure. Log holds the compiler output
// for Device; it is empty when the log could not be retrieved.
type BuildError struct {
	Device string
	Log    string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build program for %q (%d): %v", e.Device, Status(e.Err), e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// RunError records how far a run got before it failed.
type RunError struct {
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("after %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// IsArgument reports whether err is, or wraps, an ArgumentError.
func IsArgument(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}
