package graph

// Rect is the bounding box of a vertex in canvas coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 { return r.Width * r.Height }

// Contains reports whether o lies within r. Shared borders count as inside.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width &&
		o.Y+o.Height <= r.Y+r.Height
}

// Intersects reports whether r and o share interior area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Overlaps reports whether a and b intersect without either enclosing the
// other. Groups laid out like that do not nest and are rejected by Assemble.
func Overlaps(a, b Rect) bool {
	return a.Intersects(b) && !a.Contains(b) && !b.Contains(a)
}
