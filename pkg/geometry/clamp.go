package geometry

// ClampRect clamps every coordinate of r into [0, width-1] x [0, height-1].
//
// Ordering is not re-validated: an inverted rectangle stays inverted, and
// the croppers treat it as empty.
func ClampRect(r Rect, width, height int) Rect {
	return Rect{
		XMin: clamp(r.XMin, 0, width-1),
		YMin: clamp(r.YMin, 0, height-1),
		XMax: clamp(r.XMax, 0, width-1),
		YMax: clamp(r.YMax, 0, height-1),
	}
}

// Translate adds offset to p. Every coordinate found inside a sub-region is
// passed through here on its way back to full-frame space.
func Translate(p, offset Point) Point {
	return p.Add(offset)
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
