// Package kernels holds the blend kernel source compiled at run time.
package kernels

import (
	_ "embed"
	"os"

	"github.com/pkg/errors"
)

// Blend is the built-in source defining blend_<mode> for every mode.
//
//go:embed blend.cl
var Blend string

// Load returns the source at path, or the built-in source when path is empty.
func Load(path string) (string, error) {
	if path == "" {
		return Blend, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading kernel source %q", path)
	}
	return string(data), nil
}
