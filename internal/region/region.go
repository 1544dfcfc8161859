// Package region maintains a set of rectangles as a disjoint union, used to
// clip RemoteFX tile blits to the rectangles a server actually announced as
// damaged.
package region

// Rect is an axis-aligned rectangle in framebuffer pixel coordinates.
// Right/Bottom are exclusive, matching the convention used throughout the
// RFX sequence engine (a tile at (0,0) covers Rect{0, 0, 64, 64}).
type Rect struct {
	Left, Top, Right, Bottom uint16
}

// Width returns the rectangle's width, or 0 if degenerate.
func (r Rect) Width() uint16 {
	if r.Right <= r.Left {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the rectangle's height, or 0 if degenerate.
func (r Rect) Height() uint16 {
	if r.Bottom <= r.Top {
		return 0
	}
	return r.Bottom - r.Top
}

func (r Rect) empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Contains reports whether the point (x, y) falls inside r.
func (r Rect) Contains(x, y uint16) bool {
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

func (r Rect) intersects(o Rect) bool {
	return r.Left < o.Right && o.Left < r.Right && r.Top < o.Bottom && o.Top < r.Bottom
}

func minU16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func maxU16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

// subtract returns the pieces of r that lie outside e (r minus e), as a set
// of up to four non-overlapping rectangles. If r and e do not intersect, r
// is returned unmodified.
func subtract(r, e Rect) []Rect {
	if !r.intersects(e) {
		return []Rect{r}
	}

	var out []Rect

	// Strip above e.
	if r.Top < e.Top {
		out = append(out, Rect{r.Left, r.Top, r.Right, minU16(r.Bottom, e.Top)})
	}
	// Strip below e.
	if r.Bottom > e.Bottom {
		out = append(out, Rect{r.Left, maxU16(r.Top, e.Bottom), r.Right, r.Bottom})
	}

	midTop := maxU16(r.Top, e.Top)
	midBottom := minU16(r.Bottom, e.Bottom)

	// Strip left of e, within the vertical band shared with e.
	if r.Left < e.Left {
		out = append(out, Rect{r.Left, midTop, minU16(r.Right, e.Left), midBottom})
	}
	// Strip right of e, within the vertical band shared with e.
	if r.Right > e.Right {
		out = append(out, Rect{maxU16(r.Left, e.Right), midTop, r.Right, midBottom})
	}

	kept := out[:0]
	for _, p := range out {
		if !p.empty() {
			kept = append(kept, p)
		}
	}
	return kept
}

// Region is an ordered set of rectangles maintained under a non-overlapping
// union invariant: after every UnionRectangle call, no two stored rectangles
// intersect, and their union equals the union of every rectangle ever
// inserted.
type Region struct {
	rects   []Rect
	extents Rect
	empty   bool
}

// New creates an empty region.
func New() *Region {
	return &Region{empty: true}
}

// Rectangles returns the disjoint rectangles currently stored. The returned
// slice must not be mutated.
func (re *Region) Rectangles() []Rect {
	return re.rects
}

// BoundingBox returns the smallest rectangle containing every rectangle ever
// unioned into the region. Zero value if the region is empty.
func (re *Region) BoundingBox() Rect {
	return re.extents
}

// UnionRectangle inserts r into the region, splitting it against every
// rectangle already stored so the disjoint-union invariant holds afterward.
// A degenerate (zero-area) rectangle is ignored.
func (re *Region) UnionRectangle(r Rect) {
	if r.empty() {
		return
	}

	pieces := []Rect{r}
	for _, existing := range re.rects {
		var next []Rect
		for _, p := range pieces {
			next = append(next, subtract(p, existing)...)
		}
		pieces = next
	}
	re.rects = append(re.rects, pieces...)

	if re.empty {
		re.extents = r
		re.empty = false
	} else {
		re.extents = Rect{
			Left:   minU16(re.extents.Left, r.Left),
			Top:    minU16(re.extents.Top, r.Top),
			Right:  maxU16(re.extents.Right, r.Right),
			Bottom: maxU16(re.extents.Bottom, r.Bottom),
		}
	}
}
