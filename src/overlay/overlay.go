package overlay

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"snag/src/screenshot"
)

// Select runs the interactive overlay session: a borderless fullscreen
// crosshair window showing the darkened desktop raster, with a drag-to-select
// rectangle. Blocks until the user completes or cancels the selection.
// Returns cancelled=true for Escape/q, right-click, or a sub-span drag.
// Must be called from the process main goroutine (fyne owns the UI thread).
//
// The window goes fullscreen on the active monitor; a window cannot be
// positioned across monitors here, so the whole virtual-desktop raster is
// shown scaled inside it and event positions are mapped back to raster
// pixels through the window-to-raster ratio. That same mapping absorbs
// HiDPI scaling, where window units and pixels differ on one monitor.
func Select(dark image.Image, origin image.Point) (region screenshot.Region, cancelled bool, err error) {
	sess := NewSession(origin)

	a := app.New()
	w := a.NewWindow("Select region")
	area := newSelectArea(sess, dark)

	// Global listener so Escape/q work regardless of window focus. The
	// handoff goes through fyne.Do to keep session state on the UI loop.
	stopKeys := watchCancelKeys(func() {
		fyne.Do(func() { area.cancel() })
	})
	// Backstop only; closeSequence has already stopped the listener on
	// every completion path before the window goes down.
	defer stopKeys()

	area.onDone = closeSequence(stopKeys, w.Close)

	// Focused-path keys as well; the global hook covers the rest.
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape || ev.Name == fyne.KeyQ {
			area.cancel()
		}
	})

	w.SetContent(area)
	w.SetPadded(false)
	w.SetFullScreen(true)
	w.ShowAndRun()

	region, ok := sess.Region()
	return region, !ok, nil
}

// closeSequence tears the global key listener down strictly before the
// window on every completion path, so the hook never outlives the window it
// serves.
func closeSequence(stopKeys, closeWindow func()) func() {
	return func() {
		stopKeys()
		closeWindow()
	}
}

// selectArea is the overlay widget: darkened backdrop plus a two-layer
// selection rectangle (dark outer border, light inner border) that stays
// visible against any background.
type selectArea struct {
	widget.BaseWidget

	session  *Session
	raster   image.Point
	backdrop *canvas.Image
	border   *canvas.Rectangle
	inner    *canvas.Rectangle
	onDone   func()
	finished bool
}

func newSelectArea(sess *Session, dark image.Image) *selectArea {
	backdrop := canvas.NewImageFromImage(dark)
	backdrop.FillMode = canvas.ImageFillStretch
	backdrop.ScaleMode = canvas.ImageScalePixels

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Black
	border.StrokeWidth = 3
	border.Hidden = true

	inner := canvas.NewRectangle(color.Transparent)
	inner.StrokeColor = color.White
	inner.StrokeWidth = 1
	inner.Hidden = true

	a := &selectArea{
		session:  sess,
		raster:   image.Pt(dark.Bounds().Dx(), dark.Bounds().Dy()),
		backdrop: backdrop,
		border:   border,
		inner:    inner,
	}
	a.ExtendBaseWidget(a)
	return a
}

func (a *selectArea) CreateRenderer() fyne.WidgetRenderer {
	return &selectAreaRenderer{area: a}
}

func (a *selectArea) Cursor() desktop.Cursor { return desktop.CrosshairCursor }

func (a *selectArea) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button == desktop.MouseButtonSecondary {
		a.cancel()
		return
	}
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	x, y := a.toAbsolute(ev.Position)
	a.session.MouseDown(x, y)
	a.Refresh()
}

func (a *selectArea) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	x, y := a.toAbsolute(ev.Position)
	a.session.MouseUp(x, y)
	a.Refresh()
	if a.session.Done() {
		a.finish()
	}
}

func (a *selectArea) MouseIn(*desktop.MouseEvent) {}
func (a *selectArea) MouseOut()                   {}

func (a *selectArea) MouseMoved(ev *desktop.MouseEvent) {
	x, y := a.toAbsolute(ev.Position)
	a.session.MouseMove(x, y)
	a.Refresh()
}

func (a *selectArea) toAbsolute(pos fyne.Position) (int, int) {
	return mapToRaster(pos, a.Size(), a.raster, a.session.origin)
}

// rasterScale is the pixels-per-window-unit ratio. The backdrop stretches
// the whole raster across the window, so this also covers HiDPI, where one
// window unit is more than one pixel.
func rasterScale(size fyne.Size, raster image.Point) (float32, float32) {
	if size.Width <= 0 || size.Height <= 0 || raster.X <= 0 || raster.Y <= 0 {
		return 1, 1
	}
	return float32(raster.X) / size.Width, float32(raster.Y) / size.Height
}

// mapToRaster converts a window-local event position to absolute
// virtual-desktop pixels: scale by the raster ratio, then offset by the
// desktop origin.
func mapToRaster(pos fyne.Position, size fyne.Size, raster image.Point, origin image.Point) (int, int) {
	sx, sy := rasterScale(size, raster)
	return int(pos.X*sx) + origin.X, int(pos.Y*sy) + origin.Y
}

func (a *selectArea) cancel() {
	a.session.Cancel()
	a.finish()
}

func (a *selectArea) finish() {
	if a.finished {
		return
	}
	a.finished = true
	if a.onDone != nil {
		a.onDone()
	}
}

type selectAreaRenderer struct {
	area *selectArea
	size fyne.Size
}

func (r *selectAreaRenderer) Layout(size fyne.Size) {
	r.size = size
	r.area.backdrop.Resize(size)
	r.area.backdrop.Move(fyne.NewPos(0, 0))
}

func (r *selectAreaRenderer) MinSize() fyne.Size { return fyne.NewSize(1, 1) }

func (r *selectAreaRenderer) Refresh() {
	rect, ok := r.area.session.Rect()
	if !ok {
		r.area.border.Hidden = true
		r.area.inner.Hidden = true
	} else {
		// Session rectangles are in raster pixels; drawing happens in
		// window units.
		sx, sy := rasterScale(r.area.Size(), r.area.raster)
		pos := fyne.NewPos(float32(rect.X)/sx, float32(rect.Y)/sy)
		size := fyne.NewSize(float32(rect.W)/sx, float32(rect.H)/sy)
		r.area.border.Move(pos)
		r.area.border.Resize(size)
		r.area.inner.Move(pos)
		r.area.inner.Resize(size)
		r.area.border.Hidden = false
		r.area.inner.Hidden = false
	}
	canvas.Refresh(r.area)
}

func (r *selectAreaRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.area.backdrop, r.area.border, r.area.inner}
}

func (r *selectAreaRenderer) Destroy() {}
