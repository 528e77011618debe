package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"log"
	"os/exec"
	"strings"

	"snag/src/overlay"
	"snag/src/platform"
	"snag/src/screenshot"
)

// ErrSelectionCancelled reports a user-initiated cancellation. It is a normal
// outcome, not a failure; callers exit silently on it.
var ErrSelectionCancelled = errors.New("selection cancelled")

// CaptureError is an environment or tool problem during capture. Its message
// carries enough context for the user to self-remediate.
type CaptureError struct {
	Msg string
	Err error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CaptureError) Unwrap() error { return e.Err }

const waylandInstallHint = "Wayland capture requires 'slurp' and 'grim'.\n" +
	"Install with: sudo apt install slurp grim  # Debian/Ubuntu\n" +
	"             sudo dnf install slurp grim   # Fedora"

// Region lets the user select a screen region and returns the cropped raster.
// Wayland goes through the compositor's selector tools; X11, Windows and
// macOS use the in-process overlay. The two paths are mutually exclusive per
// platform with no fallback: Wayland without slurp/grim fails rather than
// degrading to the overlay.
func Region(ctx context.Context) (image.Image, error) {
	switch p := platform.Detect(); p {
	case platform.LinuxWayland:
		return externalSelector(ctx)
	case platform.LinuxX11, platform.Windows, platform.MacOS:
		return overlaySelector()
	default:
		return nil, &CaptureError{Msg: fmt.Sprintf("unsupported platform: %s", p)}
	}
}

// externalSelector drives slurp (region geometry on stdout) and grim (cropped
// raster on stdout) on Wayland.
func externalSelector(ctx context.Context) (image.Image, error) {
	var missing []string
	for _, tool := range []string{"slurp", "grim"} {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return nil, &CaptureError{Msg: fmt.Sprintf("missing %s.\n%s", strings.Join(missing, " and "), waylandInstallHint)}
	}

	// A non-zero exit or empty geometry means the user dismissed the
	// selector, which is a cancellation rather than an error.
	out, err := exec.CommandContext(ctx, "slurp").Output()
	if err != nil {
		return nil, ErrSelectionCancelled
	}
	geometry := strings.TrimSpace(string(out))
	if geometry == "" {
		return nil, ErrSelectionCancelled
	}
	log.Printf("Capture: slurp geometry %q", geometry)

	raw, err := exec.CommandContext(ctx, "grim", "-g", geometry, "-").Output()
	if err != nil {
		return nil, &CaptureError{Msg: "grim capture failed", Err: err}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &CaptureError{Msg: "failed to decode grim output", Err: err}
	}
	return img, nil
}

// overlaySelector captures the full virtual desktop, runs the darkened
// overlay selection UI, and crops the ORIGINAL (undarkened) raster to the
// selected region.
func overlaySelector() (image.Image, error) {
	full, origin, err := screenshot.CaptureVirtual()
	if err != nil {
		return nil, &CaptureError{Msg: "failed to capture screen", Err: err}
	}
	log.Printf("Capture: virtual desktop %dx%d at origin %v",
		full.Bounds().Dx(), full.Bounds().Dy(), origin)

	region, cancelled, err := overlay.Select(screenshot.Darken(full), origin)
	if err != nil {
		return nil, &CaptureError{Msg: "region selection failed", Err: err}
	}
	if cancelled {
		return nil, ErrSelectionCancelled
	}
	log.Printf("Capture: region selected %s", region)

	cropped, err := screenshot.Crop(full, region, origin)
	if err != nil {
		return nil, &CaptureError{Msg: "failed to crop selection", Err: err}
	}
	return cropped, nil
}
