package overlay

import (
	"image"

	"snag/src/screenshot"
)

// State tracks progress of one selection session.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Rect is a selection rectangle in overlay-local coordinates, used only for
// drawing. Width/height may be zero mid-drag.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Session is the selection state machine. It consumes abstract input events
// in absolute virtual-desktop coordinates and is independent of any
// windowing toolkit, so it can be driven headless in tests. All methods must
// be called from a single goroutine (the UI loop).
type Session struct {
	origin image.Point

	state  State
	startX int
	startY int
	curX   int
	curY   int
	region screenshot.Region
}

// NewSession creates a session for an overlay whose window covers the virtual
// desktop starting at origin (the union bounding box top-left, possibly
// negative).
func NewSession(origin image.Point) *Session {
	return &Session{origin: origin}
}

func (s *Session) State() State { return s.state }

// Done reports whether the session loop should terminate.
func (s *Session) Done() bool {
	return s.state == StateCompleted || s.state == StateCancelled
}

// MouseDown anchors the selection at the press point.
func (s *Session) MouseDown(absX, absY int) {
	if s.state != StateIdle {
		return
	}
	s.startX, s.startY = absX, absY
	s.curX, s.curY = absX, absY
	s.state = StateDragging
}

// MouseMove updates the rectangle's far corner while dragging.
func (s *Session) MouseMove(absX, absY int) {
	if s.state != StateDragging {
		return
	}
	s.curX, s.curY = absX, absY
}

// MouseUp finishes the drag. A selection below the minimum span in either
// axis is an accidental click and cancels the session instead of completing
// it.
func (s *Session) MouseUp(absX, absY int) {
	if s.state != StateDragging {
		return
	}
	s.curX, s.curY = absX, absY
	region, ok := screenshot.NormalizeRegion(s.startX, s.startY, s.curX, s.curY)
	if !ok {
		s.state = StateCancelled
		return
	}
	s.region = region
	s.state = StateCompleted
}

// Cancel aborts the session from any state. Safe to call repeatedly; a
// completed session stays completed.
func (s *Session) Cancel() {
	if s.state == StateCompleted {
		return
	}
	s.state = StateCancelled
}

// Rect returns the current selection rectangle translated to overlay-local
// space for drawing. ok is false when nothing should be drawn.
func (s *Session) Rect() (Rect, bool) {
	if s.state != StateDragging && s.state != StateCompleted {
		return Rect{}, false
	}
	x1 := min(s.startX, s.curX) - s.origin.X
	y1 := min(s.startY, s.curY) - s.origin.Y
	x2 := max(s.startX, s.curX) - s.origin.X
	y2 := max(s.startY, s.curY) - s.origin.Y
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}, true
}

// Region returns the normalized absolute-coordinate selection. ok is false
// unless the session completed.
func (s *Session) Region() (screenshot.Region, bool) {
	if s.state != StateCompleted {
		return screenshot.Region{}, false
	}
	return s.region, true
}
