package hostcl

import (
	"math"

	"blendcl/internal/blend"
)

// Func computes one output component from the base (a) and blend (b)
// components. It is the host counterpart of a blend_<mode> kernel.
//
// The funcs below transcribe kernels/blend.cl body for body; kernels_test.go
// pins each kernel's statements to its func.
type Func func(a, b float32) float32

func builtinKernels() map[string]Func {
	fns := map[blend.Mode]Func{
		blend.Multiply:   multiply,
		blend.Screen:     screen,
		blend.Normal:     normal,
		blend.Overlay:    overlay,
		blend.Darken:     darken,
		blend.Lighten:    lighten,
		blend.ColorDodge: colorDodge,
		blend.HardLight:  hardLight,
		blend.SoftLight:  softLight,
		blend.Difference: difference,
		blend.Exclusion:  exclusion,
	}
	out := make(map[string]Func, len(fns))
	for m, fn := range fns {
		out[m.KernelName()] = fn
	}
	return out
}

func multiply(a, b float32) float32 { return a * b }

func screen(a, b float32) float32 { return 1 - (1-a)*(1-b) }

func normal(_, b float32) float32 { return b }

func overlay(a, b float32) float32 { return hardLight(b, a) }

func darken(a, b float32) float32 {
	if b < a {
		return b
	}
	return a
}

func lighten(a, b float32) float32 {
	if b > a {
		return b
	}
	return a
}

func colorDodge(a, b float32) float32 {
	if a == 0 {
		return 0
	}
	if b >= 1 {
		return 1
	}
	if v := a / (1 - b); v < 1 {
		return v
	}
	return 1
}

func hardLight(a, b float32) float32 {
	if b <= 0.5 {
		return multiply(a, 2*b)
	}
	return screen(a, 2*b-1)
}

func softLight(a, b float32) float32 {
	if b <= 0.5 {
		return a - (1-2*b)*a*(1-a)
	}
	var d float32
	if a <= 0.25 {
		d = ((16*a-12)*a + 4) * a
	} else {
		d = float32(math.Sqrt(float64(a)))
	}
	return a + (2*b-1)*(d-a)
}

func difference(a, b float32) float32 {
	if a > b {
		return a - b
	}
	return b - a
}

func exclusion(a, b float32) float32 { return a + b - 2*a*b }
