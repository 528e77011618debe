package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/disintegration/imaging"
	"github.com/kbinani/screenshot"
)

// MinSelectionSpan is the smallest selection extent, per axis, that counts as
// a deliberate drag. Anything smaller is treated as an accidental click.
const MinSelectionSpan = 5

// overlayBrightness scales the darkened backdrop to 40% of the original.
const overlayBrightness = -0.6

// Region is a selected screen rectangle in absolute virtual-desktop pixel
// coordinates. A valid Region always satisfies X2 > X1 and Y2 > Y1.
type Region struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

func (r Region) Width() int  { return r.X2 - r.X1 }
func (r Region) Height() int { return r.Y2 - r.Y1 }

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d) %dx%d", r.X1, r.Y1, r.X2, r.Y2, r.Width(), r.Height())
}

// NormalizeRegion orders two selection corner points into a valid Region,
// independent of drag direction. ok is false when either extent is below
// MinSelectionSpan.
func NormalizeRegion(ax, ay, bx, by int) (Region, bool) {
	r := Region{
		X1: min(ax, bx),
		Y1: min(ay, by),
		X2: max(ax, bx),
		Y2: max(ay, by),
	}
	if r.Width() < MinSelectionSpan || r.Height() < MinSelectionSpan {
		return Region{}, false
	}
	return r, true
}

// CaptureVirtual grabs the entire virtual desktop: the union of all active
// display bounds, including negative offsets for displays positioned left of
// or above the primary. The returned origin is the union's top-left corner in
// absolute coordinates; the raster itself is zero-based.
func CaptureVirtual() (*image.RGBA, image.Point, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, image.Point{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	img, err := screenshot.CaptureRect(union)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("failed to capture virtual desktop: %v", err)
	}
	return img, union.Min, nil
}

// Darken returns a copy of img scaled to 40% brightness. Used only as the
// overlay backdrop; the original raster is what gets cropped.
func Darken(img image.Image) *image.RGBA {
	return adjust.Brightness(img, overlayBrightness)
}

// Crop cuts the Region out of a full virtual-desktop raster. The region's
// absolute coordinates are translated to image-local space by subtracting
// origin. The result's dimensions equal the region's extents exactly.
func Crop(img image.Image, r Region, origin image.Point) (image.Image, error) {
	if r.Width() <= 0 || r.Height() <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.Width(), r.Height())
	}
	local := image.Rect(r.X1-origin.X, r.Y1-origin.Y, r.X2-origin.X, r.Y2-origin.Y)
	bounds := img.Bounds()
	if !local.In(bounds) {
		return nil, fmt.Errorf("region %s out of raster bounds %v", r, bounds)
	}
	return imaging.Crop(img, local), nil
}

// EncodePNG serializes an image to PNG bytes for transport.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %v", err)
	}
	return buf.Bytes(), nil
}
