//go:build !opencl

package compute

import "errors"

// NewOpenCLDriver reports that the binary was built without OpenCL.
func NewOpenCLDriver() (Driver, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl or use --backend host")
}
