package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blendcl/internal/imageio"
)

func writeImage(t *testing.T, dir, name string, w, h, c int, v float32) string {
	t.Helper()
	pix := make([]float32, w*h*c)
	for i := range pix {
		pix[i] = v
	}
	path := filepath.Join(dir, name)
	require.NoError(t, imageio.Write(path, &imageio.Image{Pix: pix, Width: w, Height: h, Channels: c}))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	all := append([]string{"--backend", "host", "--log-level", "error"}, args...)
	code := run(all, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestBlendMultiply(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", 2, 2, 3, 0.5)
	b := writeImage(t, dir, "b.png", 2, 2, 3, 0.5)
	out := filepath.Join(dir, "out.png")

	code, stdout, stderr := runCLI(t, "0", "multiply", a, b, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, "platform=0 device=0 name=host-cpu\n", stdout)

	img, err := imageio.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 2, img.Height)
	require.Equal(t, 3, img.Channels)
	for _, v := range img.Pix {
		assert.InDelta(t, 0.25, v, 1e-4)
	}
}

func TestBlendNormalTakesTopLayer(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", 3, 2, 1, 1)
	b := writeImage(t, dir, "b.png", 3, 2, 1, 0)
	out := filepath.Join(dir, "out.png")

	code, _, stderr := runCLI(t, "--local-size", "0", "0", "normal", a, b, out)
	require.Equal(t, exitOK, code, stderr)
	img, err := imageio.Read(out)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 6), img.Pix)
}

func TestBlendExitCodes(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", 2, 2, 3, 0.5)
	b := writeImage(t, dir, "b.png", 2, 2, 3, 0.5)
	small := writeImage(t, dir, "small.png", 1, 2, 3, 0.5)
	out := filepath.Join(dir, "out.png")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"unsupported mode", []string{"0", "sparkle", a, b, out}, exitUsage},
		{"too few arguments", []string{"0", "multiply", a, b}, exitUsage},
		{"platform not a number", []string{"gpu", "multiply", a, b, out}, exitUsage},
		{"platform out of range", []string{"3", "multiply", a, b, out}, exitUsage},
		{"negative platform", []string{"--", "-1", "multiply", a, b, out}, exitUsage},
		{"dimensions differ", []string{"0", "multiply", a, small, out}, exitUsage},
		{"unknown output format", []string{"0", "multiply", a, b, filepath.Join(dir, "out.xyz")}, exitUsage},
		{"unknown flag", []string{"--sparkle", "0", "multiply", a, b, out}, exitUsage},
		{"bad backend", []string{"--backend", "cuda", "0", "multiply", a, b, out}, exitUsage},
		{"indivisible local size", []string{"--local-size", "5", "0", "multiply", a, b, out}, exitUsage},
		{"missing input", []string{"0", "multiply", filepath.Join(dir, "absent.png"), b, out}, exitFailure},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, c.args...)
			assert.Equal(t, c.want, code, stderr)
			assert.Contains(t, stderr, "ERROR:")
			_, err := os.Stat(out)
			assert.True(t, os.IsNotExist(err), "no output on failure")
		})
	}
}

func TestUnsupportedModeTouchesNoDevice(t *testing.T) {
	dir := t.TempDir()
	code, stdout, stderr := runCLI(t, "0", "sparkle",
		filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), filepath.Join(dir, "out.png"))
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout, "no device listing before mode validation")
	assert.Contains(t, stderr, "mode unsupported")
}

func TestBuildFailureSurfacesLog(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", 2, 2, 3, 0.5)
	b := writeImage(t, dir, "b.png", 2, 2, 3, 0.5)
	src := filepath.Join(dir, "broken.cl")
	require.NoError(t, os.WriteFile(src, []byte("__kernel void blend_multiply(__global const float* a, __global const float* b, __global float* out) {\n"), 0o644))

	code, _, stderr := runCLI(t, "--kernels", src, "0", "multiply", a, b, filepath.Join(dir, "out.png"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Build log:")
	assert.Contains(t, stderr, "error:")
}

func TestLogsGoToCommandStderr(t *testing.T) {
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png", 2, 2, 3, 0.5)
	b := writeImage(t, dir, "b.png", 2, 2, 3, 0.5)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--backend", "host", "--log-level", "debug", "0", "screen", a, b, filepath.Join(dir, "out.png")}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stderr.String(), "configuration loaded")
	assert.NotContains(t, stdout.String(), "configuration loaded")
}

func TestDevicesCommand(t *testing.T) {
	code, stdout, stderr := runCLI(t, "devices")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "PLATFORM")
	assert.Contains(t, stdout, "Host Reference")
	assert.Contains(t, stdout, "host-cpu")
	assert.Contains(t, stdout, "1.0 GiB")

	code, _, _ = runCLI(t, "devices", "extra")
	assert.Equal(t, exitUsage, code)
}

func TestModesCommand(t *testing.T) {
	code, stdout, stderr := runCLI(t, "modes")
	require.Equal(t, exitOK, code, stderr)
	for _, k := range []string{"multiply", "blend_color_dodge", "blend_exclusion"} {
		assert.Contains(t, stdout, k)
	}
}

func TestCPUProfile(t *testing.T) {
	dir := t.TempDir()
	prof := filepath.Join(dir, "cpu.pprof")
	code, _, stderr := runCLI(t, "--cpuprofile", prof, "modes")
	require.Equal(t, exitOK, code, stderr)
	info, err := os.Stat(prof)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "blendcl.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("backend: sparkle\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run([]string{"--config", cfg, "modes"}, &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "backend")
}
