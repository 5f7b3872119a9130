package compute

import (
	"fmt"
	"io"
)

// Platform is one discovered compute backend instance. Platforms live for the
// whole process and are never released.
type Platform struct {
	Index   int
	Name    string
	Vendor  string
	Version string

	native NativePlatform
}

// Device is one compute unit under a Platform.
type Device struct {
	Platform         int
	Index            int
	Name             string
	Vendor           string
	ImageSupport     bool
	MaxComputeUnits  int
	MaxWorkGroupSize int
	GlobalMemSize    int64

	native NativeDevice
}

// DeviceInfo is the subset of device capabilities shown in diagnostics.
type DeviceInfo struct {
	Name         string
	ImageSupport bool
}

// Describe returns the diagnostic view of d.
func Describe(d *Device) DeviceInfo {
	return DeviceInfo{Name: d.Name, ImageSupport: d.ImageSupport}
}

// Catalog enumerates the platforms and devices a Driver exposes.
type Catalog struct {
	driver Driver
}

func NewCatalog(driver Driver) *Catalog {
	return &Catalog{driver: driver}
}

// ListPlatforms enumerates every platform. Zero platforms is a
// DiscoveryError.
func (c *Catalog) ListPlatforms() ([]*Platform, error) {
	natives, err := c.driver.Platforms()
	if err != nil {
		if Status(err) == StatusPlatformNotFoundKHR {
			return nil, &DiscoveryError{Err: fmt.Errorf("no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`: %w", err)}
		}
		return nil, backendError("get platform ids", err)
	}
	if len(natives) == 0 {
		return nil, &DiscoveryError{}
	}
	platforms := make([]*Platform, len(natives))
	for i, np := range natives {
		platforms[i] = &Platform{
			Index:   i,
			Name:    np.Name(),
			Vendor:  np.Vendor(),
			Version: np.Version(),
			native:  np,
		}
	}
	return platforms, nil
}

// ListDevices enumerates every device of p, of any type.
func (c *Catalog) ListDevices(p *Platform) ([]*Device, error) {
	natives, err := p.native.Devices()
	if err != nil {
		return nil, backendError("get device ids", err)
	}
	devices := make([]*Device, len(natives))
	for i, nd := range natives {
		devices[i] = &Device{
			Platform:         p.Index,
			Index:            i,
			Name:             nd.Name(),
			Vendor:           nd.Vendor(),
			ImageSupport:     nd.ImageSupport(),
			MaxComputeUnits:  nd.MaxComputeUnits(),
			MaxWorkGroupSize: nd.MaxWorkGroupSize(),
			GlobalMemSize:    nd.GlobalMemSize(),
			native:           nd,
		}
	}
	return devices, nil
}

// ValidatePlatformIndex checks that i addresses one of count platforms.
func ValidatePlatformIndex(i, count int) error {
	if i < 0 || i >= count {
		return &ArgumentError{Msg: fmt.Sprintf("platform index %d out of bounds [0, %d)", i, count)}
	}
	return nil
}

// PrintDevices writes one "platform=P device=D name=NAME" line per device.
func PrintDevices(w io.Writer, devices []*Device) error {
	for _, d := range devices {
		if _, err := fmt.Fprintf(w, "platform=%d device=%d name=%s\n", d.Platform, d.Index, d.Name); err != nil {
			return err
		}
	}
	return nil
}

// Inventory pairs a platform with its devices.
type Inventory struct {
	Platform *Platform
	Devices  []*Device
}

// Discover lists every platform together with its devices.
func (c *Catalog) Discover() ([]Inventory, error) {
	platforms, err := c.ListPlatforms()
	if err != nil {
		return nil, err
	}
	out := make([]Inventory, 0, len(platforms))
	for _, p := range platforms {
		devices, err := c.ListDevices(p)
		if err != nil {
			return nil, fmt.Errorf("platform %d: %w", p.Index, err)
		}
		out = append(out, Inventory{Platform: p, Devices: devices})
	}
	return out, nil
}
