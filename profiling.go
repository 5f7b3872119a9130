package main

import (
	"os"
	"runtime/pprof"
	"sync"

	"github.com/pkg/errors"
)

// startCPUProfile begins writing a CPU profile to path. The returned stop
// function may be called more than once.
func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating cpu profile %s", path)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "starting cpu profile")
	}
	var once sync.Once
	stop := func() {
		once.Do(func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		})
	}
	return stop, nil
}
