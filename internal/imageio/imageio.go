// Package imageio converts between image files and the flat float planes the
// blend pipeline works on. Components are row-major, channel-interleaved and
// scaled to [0, 1].
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	_ "golang.org/x/image/webp"
)

// Image is a decoded picture as float components.
type Image struct {
	Pix      []float32
	Width    int
	Height   int
	Channels int
}

// Read decodes the file at path. Grayscale sources yield one channel, opaque
// sources three and everything else four (non-premultiplied alpha last).
func Read(path string) (*Image, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading image %s", path)
	}
	return FromImage(src), nil
}

// FromImage converts src to float components.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	out := &Image{Width: b.Dx(), Height: b.Dy(), Channels: channelsOf(src)}
	out.Pix = make([]float32, 0, out.Width*out.Height*out.Channels)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.At(x, y)
			if out.Channels == 1 {
				g := color.Gray16Model.Convert(c).(color.Gray16)
				out.Pix = append(out.Pix, unit(g.Y))
				continue
			}
			n := color.NRGBA64Model.Convert(c).(color.NRGBA64)
			out.Pix = append(out.Pix, unit(n.R), unit(n.G), unit(n.B))
			if out.Channels == 4 {
				out.Pix = append(out.Pix, unit(n.A))
			}
		}
	}
	return out
}

func channelsOf(src image.Image) int {
	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	}
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return 3
	}
	return 4
}

// Write encodes img to path; the format follows the file extension.
func Write(path string, img *Image) error {
	dst, err := img.ToImage()
	if err != nil {
		return err
	}
	if err := imaging.Save(dst, path); err != nil {
		return errors.Wrapf(err, "writing image %s", path)
	}
	return nil
}

// CheckWritable reports whether path has an extension Write can encode.
func CheckWritable(path string) error {
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return errors.Wrapf(err, "output %s", path)
	}
	return nil
}

// ToImage builds a 16-bit image from the float components. Values outside
// [0, 1] are clamped.
func (img *Image) ToImage() (image.Image, error) {
	if want := img.Width * img.Height * img.Channels; len(img.Pix) != want || want == 0 {
		return nil, fmt.Errorf("pixel buffer holds %d floats, %dx%dx%d needs %d",
			len(img.Pix), img.Width, img.Height, img.Channels, want)
	}
	r := image.Rect(0, 0, img.Width, img.Height)
	pix := img.Pix

	switch img.Channels {
	case 1:
		dst := image.NewGray16(r)
		for i, v := range pix {
			dst.SetGray16(i%img.Width, i/img.Width, color.Gray16{Y: sample(v)})
		}
		return dst, nil
	case 3, 4:
		dst := image.NewNRGBA64(r)
		for i := 0; i < img.Width*img.Height; i++ {
			p := pix[i*img.Channels:]
			c := color.NRGBA64{R: sample(p[0]), G: sample(p[1]), B: sample(p[2]), A: 0xffff}
			if img.Channels == 4 {
				c.A = sample(p[3])
			}
			dst.SetNRGBA64(i%img.Width, i/img.Width, c)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("cannot encode %d channels", img.Channels)
	}
}

func unit(v uint16) float32 { return float32(v) / 0xffff }

func sample(v float32) uint16 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	}
	return uint16(math.Round(float64(v) * 0xffff))
}
