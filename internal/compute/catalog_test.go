package compute_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blendcl/internal/compute"
	"blendcl/internal/hostcl"
)

func TestListPlatforms(t *testing.T) {
	d := hostcl.New(hostcl.WithPlatform("alpha", "a0", "a1"), hostcl.WithPlatform("beta", "b0"))
	c := compute.NewCatalog(d)

	platforms, err := c.ListPlatforms()
	require.NoError(t, err)
	require.Len(t, platforms, 2)
	assert.Equal(t, "alpha", platforms[0].Name)
	assert.Equal(t, 1, platforms[1].Index)

	devices, err := c.ListDevices(platforms[0])
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, compute.DeviceInfo{Name: "a1", ImageSupport: false}, compute.Describe(devices[1]))
}

func TestListPlatformsNoneFound(t *testing.T) {
	_, err := compute.NewCatalog(hostcl.New(hostcl.WithoutPlatforms())).ListPlatforms()
	var de *compute.DiscoveryError
	require.True(t, errors.As(err, &de), "got %v", err)
}

func TestListPlatformsICDMissing(t *testing.T) {
	d := hostcl.New(hostcl.WithFault(hostcl.OpPlatforms, compute.StatusPlatformNotFoundKHR))
	_, err := compute.NewCatalog(d).ListPlatforms()
	var de *compute.DiscoveryError
	require.True(t, errors.As(err, &de), "got %v", err)
	assert.Contains(t, err.Error(), "clinfo")
}

func TestListPlatformsBackendFailure(t *testing.T) {
	d := hostcl.New(hostcl.WithFault(hostcl.OpPlatforms, compute.StatusOutOfHostMemory))
	_, err := compute.NewCatalog(d).ListPlatforms()
	var be *compute.BackendError
	require.True(t, errors.As(err, &be), "got %v", err)
	assert.Equal(t, compute.StatusOutOfHostMemory, be.Code)
}

func TestValidatePlatformIndex(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.NoError(t, compute.ValidatePlatformIndex(i, 3))
	}
	for _, i := range []int{-1, 3, 4, 100} {
		err := compute.ValidatePlatformIndex(i, 3)
		require.Error(t, err)
		assert.True(t, compute.IsArgument(err), "index %d", i)
	}
	assert.Error(t, compute.ValidatePlatformIndex(0, 0))
}

func TestDiscoverIsIdempotent(t *testing.T) {
	d := hostcl.New(hostcl.WithPlatform("alpha", "a0", "a1"), hostcl.WithPlatform("beta", "b0"))
	c := compute.NewCatalog(d)

	names := func(inv []compute.Inventory) [][]string {
		var out [][]string
		for _, e := range inv {
			row := []string{e.Platform.Name}
			for _, dev := range e.Devices {
				row = append(row, dev.Name)
			}
			out = append(out, row)
		}
		return out
	}
	first, err := c.Discover()
	require.NoError(t, err)
	second, err := c.Discover()
	require.NoError(t, err)
	if diff := cmp.Diff(names(first), names(second)); diff != "" {
		t.Fatalf("discovery changed between calls (-first +second):\n%s", diff)
	}
	assert.Equal(t, [][]string{{"alpha", "a0", "a1"}, {"beta", "b0"}}, names(first))
}

func TestPrintDevices(t *testing.T) {
	d := hostcl.New(hostcl.WithPlatform("alpha", "gpu0", "gpu1"))
	c := compute.NewCatalog(d)
	platforms, err := c.ListPlatforms()
	require.NoError(t, err)
	devices, err := c.ListDevices(platforms[0])
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, compute.PrintDevices(&buf, devices))
	assert.Equal(t, "platform=0 device=0 name=gpu0\nplatform=0 device=1 name=gpu1\n", buf.String())
}
