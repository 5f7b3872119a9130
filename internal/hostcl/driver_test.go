package hostcl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blendcl/internal/compute"
	"blendcl/kernels"
)

func TestCompileBuiltinSource(t *testing.T) {
	decls, log := compile(kernels.Blend)
	require.Empty(t, log)
	require.Len(t, decls, 11)
	for _, d := range decls {
		assert.Equal(t, blendArity, d.params, d.name)
		_, ok := builtinKernels()[d.name]
		assert.True(t, ok, "no host implementation for %s", d.name)
	}
}

func TestCompileReportsMalformedSource(t *testing.T) {
	cases := map[string]string{
		"unmatched brace":  "__kernel void blend_multiply(__global const float* a, __global const float* b, __global float* out) {\n  out[0] = a[0];\n",
		"stray closer":     "__kernel void blend_normal(int a) { }\n}",
		"open comment":     "/* no end\n__kernel void blend_normal(int a) { }",
		"no kernels":       "float helper(float x) { return x; }",
		"duplicate kernel": "__kernel void k(int a) { }\n__kernel void k(int a) { }",
		"open string":      "__kernel void k(int a) { const char* s = \"{ ;\n }",
		"open char":        "__kernel void k(int a) { char c = '}",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			decls, log := compile(src)
			assert.Nil(t, decls)
			assert.NotEmpty(t, log)
			assert.Contains(t, log, "error:")
		})
	}
}

func TestCompileIgnoresCommentedBraces(t *testing.T) {
	src := "// {\n/* } */\nkernel void blend_normal(__global const float* a, __global const float* b, __global float* out) { out[0] = b[0]; }"
	decls, log := compile(src)
	require.Empty(t, log)
	require.Len(t, decls, 1)
	assert.Equal(t, 3, decls[0].line)
}

func TestCompileIgnoresQuotedBraces(t *testing.T) {
	src := "__kernel void k(int a) {\n  char c = '{';\n  char q = '\\'';\n  const char* s = \"/* } \\\" ( //\";\n}"
	decls, log := compile(src)
	require.Empty(t, log)
	require.Len(t, decls, 1)
	assert.Equal(t, "k", decls[0].name)
	assert.Equal(t, 1, decls[0].params)
}

func TestCompileReportsOpenLiteralPosition(t *testing.T) {
	_, log := compile("__kernel void k(int a) {\n  char c = 'x;\n}")
	assert.Contains(t, log, "<source>:2:12: error: missing terminating ' character")
}

func TestBlendFormulas(t *testing.T) {
	fns := builtinKernels()
	cases := []struct {
		kernel string
		a, b   float32
		want   float32
	}{
		{"blend_multiply", 0.5, 0.5, 0.25},
		{"blend_screen", 0.5, 0.5, 0.75},
		{"blend_normal", 1, 0, 0},
		{"blend_overlay", 0.25, 0.5, 0.25},
		{"blend_overlay", 0.75, 0.5, 0.75},
		{"blend_darken", 0.3, 0.6, 0.3},
		{"blend_lighten", 0.3, 0.6, 0.6},
		{"blend_color_dodge", 0.25, 0.5, 0.5},
		{"blend_color_dodge", 0.75, 0.5, 1},
		{"blend_color_dodge", 0, 1, 0},
		{"blend_hard_light", 0.5, 0.25, 0.25},
		{"blend_hard_light", 0.5, 1, 1},
		{"blend_soft_light", 0.5, 0.5, 0.5},
		{"blend_soft_light", 0.25, 1, 0.5},
		{"blend_difference", 0.25, 0.75, 0.5},
		{"blend_exclusion", 0.5, 0.5, 0.5},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, fns[c.kernel](c.a, c.b), 1e-6, "%s(%v, %v)", c.kernel, c.a, c.b)
	}
}

// setup builds the builtin program on the default device.
func setup(t *testing.T, d *Driver) (compute.NativeContext, compute.NativeQueue, compute.NativeProgram) {
	t.Helper()
	platforms, err := d.Platforms()
	require.NoError(t, err)
	devices, err := platforms[0].Devices()
	require.NoError(t, err)
	ctx, err := d.CreateContext(platforms[0], devices)
	require.NoError(t, err)
	q, err := ctx.CreateQueue(devices[0])
	require.NoError(t, err)
	p, err := ctx.CreateProgram(kernels.Blend)
	require.NoError(t, err)
	require.NoError(t, p.Build(devices, ""))
	return ctx, q, p
}

func TestQueueRunsKernel(t *testing.T) {
	d := New()
	ctx, q, p := setup(t, d)

	a := []float32{0.5, 0.5, 1, 0}
	b := []float32{0.5, 1, 0.5, 0.25}
	out := make([]float32, 4)
	ba, err := ctx.CreateBuffer(compute.ReadOnly, a)
	require.NoError(t, err)
	bb, err := ctx.CreateBuffer(compute.ReadOnly, b)
	require.NoError(t, err)
	bo, err := ctx.CreateBuffer(compute.WriteOnly, out)
	require.NoError(t, err)

	k, err := p.CreateKernel("blend_multiply")
	require.NoError(t, err)
	require.NoError(t, k.SetArgBuffer(0, ba))
	require.NoError(t, k.SetArgBuffer(1, bb))
	require.NoError(t, k.SetArgBuffer(2, bo))

	ev, err := q.EnqueueKernel(k, 4, 2)
	require.NoError(t, err)
	require.NoError(t, ev.Wait())

	got := make([]float32, 4)
	require.NoError(t, q.ReadBuffer(bo, got))
	assert.Equal(t, []float32{0.25, 0.5, 0.5, 0}, got)

	for _, r := range []interface{ Release() }{ev, k, bo, bb, ba, p, q, ctx} {
		r.Release()
	}
	assert.Zero(t, d.Live())
}

func TestKernelArgumentChecks(t *testing.T) {
	d := New()
	ctx, q, p := setup(t, d)
	buf, err := ctx.CreateBuffer(compute.ReadOnly, []float32{1})
	require.NoError(t, err)

	k, err := p.CreateKernel("blend_screen")
	require.NoError(t, err)
	n, err := k.NumArgs()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	err = k.SetArgBuffer(3, buf)
	assert.Equal(t, compute.StatusInvalidArgIndex, compute.Status(err))

	_, err = q.EnqueueKernel(k, 1, 1)
	assert.Equal(t, compute.StatusInvalidKernelArgs, compute.Status(err))

	_, err = p.CreateKernel("blend_sparkle")
	assert.Equal(t, compute.StatusInvalidKernelName, compute.Status(err))
}

func TestWorkGroupMustDivideGlobal(t *testing.T) {
	d := New()
	ctx, q, p := setup(t, d)
	k, err := p.CreateKernel("blend_normal")
	require.NoError(t, err)
	for i, access := range []compute.Access{compute.ReadOnly, compute.ReadOnly, compute.WriteOnly} {
		b, err := ctx.CreateBuffer(access, make([]float32, 6))
		require.NoError(t, err)
		require.NoError(t, k.SetArgBuffer(i, b))
	}
	_, err = q.EnqueueKernel(k, 6, 4)
	assert.Equal(t, compute.StatusInvalidWorkGroupSize, compute.Status(err))
}

func TestUnbuiltProgramHasNoKernels(t *testing.T) {
	d := New()
	platforms, _ := d.Platforms()
	devices, _ := platforms[0].Devices()
	ctx, err := d.CreateContext(platforms[0], devices)
	require.NoError(t, err)
	p, err := ctx.CreateProgram(kernels.Blend)
	require.NoError(t, err)
	_, err = p.CreateKernel("blend_normal")
	assert.Equal(t, compute.StatusInvalidProgramExecutable, compute.Status(err))
}

func TestFaultInjection(t *testing.T) {
	d := New(WithFault(OpContext, compute.StatusOutOfHostMemory))
	platforms, err := d.Platforms()
	require.NoError(t, err)
	devices, err := platforms[0].Devices()
	require.NoError(t, err)
	_, err = d.CreateContext(platforms[0], devices)
	require.Error(t, err)
	var se *compute.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, compute.StatusOutOfHostMemory, se.Code)
	assert.Equal(t, 1, d.Count(OpContext))
	assert.Zero(t, d.Live())
}

func TestForeignDeviceRejected(t *testing.T) {
	d := New(WithPlatform("one", "a"), WithPlatform("two", "b"))
	platforms, err := d.Platforms()
	require.NoError(t, err)
	other, err := platforms[1].Devices()
	require.NoError(t, err)
	_, err = d.CreateContext(platforms[0], other)
	assert.Equal(t, compute.StatusInvalidDevice, compute.Status(err))
}

func TestWithoutPlatforms(t *testing.T) {
	platforms, err := New(WithoutPlatforms()).Platforms()
	require.NoError(t, err)
	assert.Empty(t, platforms)
}
