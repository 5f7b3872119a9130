package compute

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Program is kernel code built for every device of a Context.
type Program struct {
	native   NativeProgram
	released bool
}

func (p *Program) release() {
	if p.released {
		return
	}
	p.native.Release()
	p.released = true
}

// Build compiles source for devices. A failure on any device fails the whole
// build; the compiler log of the first device is written in full to the
// context's diagnostic stream and attached to the returned BuildError.
func (c *Context) Build(devices []*Device, source string) (*Program, error) {
	if err := c.checkOpen("create program"); err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, &ArgumentError{Msg: "build needs at least one device"}
	}
	if strings.TrimSpace(source) == "" {
		return nil, &ArgumentError{Msg: "kernel source is empty"}
	}
	np, err := c.native.CreateProgram(source)
	if err != nil {
		return nil, backendError("create program with source", err)
	}
	p := &Program{native: np}
	c.own(p)

	natives := make([]NativeDevice, len(devices))
	for i, d := range devices {
		natives[i] = d.native
	}
	// No build options: the source is compiled as-is.
	buildErr := np.Build(natives, "")
	if buildErr == nil {
		c.log.WithField("devices", len(devices)).Debug("program built")
		return p, nil
	}

	first := devices[0]
	be := &BuildError{Device: first.Name, Err: backendError("build program", buildErr)}
	log, logErr := np.BuildLog(first.native)
	if logErr != nil {
		c.log.WithFields(logrus.Fields{
			"device": first.Name,
			"status": Status(logErr),
		}).WithError(logErr).Warn("build log unavailable")
		return nil, be
	}
	be.Log = log
	fmt.Fprintf(c.diag, "Build log:\n%s\n", log)
	return nil, be
}
