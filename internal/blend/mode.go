// Package blend names the per-pixel compositing formulas the tool can run.
// The formulas themselves live in kernel source; this package only owns the
// closed set of identifiers and their kernel entry point names.
package blend

import (
	"errors"
	"fmt"
)

// Mode identifies one blend formula.
type Mode string

const (
	Multiply   Mode = "multiply"
	Screen     Mode = "screen"
	Normal     Mode = "normal"
	Overlay    Mode = "overlay"
	Darken     Mode = "darken"
	Lighten    Mode = "lighten"
	ColorDodge Mode = "color_dodge"
	HardLight  Mode = "hard_light"
	SoftLight  Mode = "soft_light"
	Difference Mode = "difference"
	Exclusion  Mode = "exclusion"
)

// KernelPrefix is prepended to a mode to form its kernel entry point.
const KernelPrefix = "blend_"

// ErrUnsupportedMode is returned by ParseMode for names outside the set.
var ErrUnsupportedMode = errors.New("mode unsupported")

var modes = []Mode{
	Multiply,
	Screen,
	Normal,
	Overlay,
	Darken,
	Lighten,
	ColorDodge,
	HardLight,
	SoftLight,
	Difference,
	Exclusion,
}

var kernelNames = func() map[Mode]string {
	m := make(map[Mode]string, len(modes))
	for _, mode := range modes {
		m[mode] = KernelPrefix + string(mode)
	}
	return m
}()

// Modes returns every supported mode in display order.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

// ParseMode validates s against the supported set.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
	return m, nil
}

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	_, ok := kernelNames[m]
	return ok
}

// KernelName returns the entry point implementing m, or "" for an invalid mode.
func (m Mode) KernelName() string {
	return kernelNames[m]
}

func (m Mode) String() string { return string(m) }
