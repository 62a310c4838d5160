package components

// Rect is a screen rectangle in terminal cells
type Rect struct {
	X, Y          int
	Width, Height int
}

// Bottom is the first row below the rectangle
func (r Rect) Bottom() int { return r.Y + r.Height }

// Right is the first column right of the rectangle
func (r Rect) Right() int { return r.X + r.Width }

// Contains reports whether the cell (x, y) lies inside r
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Viewport is the visible screen and how far its content is scrolled
type Viewport struct {
	Width, Height    int
	ScrollX, ScrollY int
}

// Placement is where a popup goes. Right is the column the popup's right
// edge sits at; Left is derived from the popup width.
type Placement struct {
	Top   int
	Right int
	Left  int
}

// DistanceFromRight is the gap between the popup and the viewport's right edge
func (p Placement) DistanceFromRight(vp Viewport) int {
	return vp.Width - p.Right
}

// PositionEngine anchors popups under their trigger
type PositionEngine struct {
	// MinRight is the smallest column the popup's right edge may sit at, so a
	// popup opened near the left edge keeps its full width on screen
	MinRight int
}

// Position places a popup of popupWidth just below target, right-aligned to
// the target's left edge. There is no vertical clamp; rows past the viewport
// are clipped when the popup is composited.
func (e PositionEngine) Position(target Rect, popupWidth int, vp Viewport) Placement {
	right := target.X + vp.ScrollX
	if right < e.MinRight {
		right = e.MinRight
	}
	return Placement{
		Top:   target.Bottom() + vp.ScrollY,
		Right: right,
		Left:  right - popupWidth,
	}
}
