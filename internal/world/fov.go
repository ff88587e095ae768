package world

// VisibleLocations computes the set of locations an observer at from can
// see, projected onto the observer's own Z level. A location is visible when
// its Manhattan distance is within visionRange and the straight line from
// the observer passes only see-through tiles. The observer's own tile is
// always visible.
func VisibleLocations(env *Environment, from Point, visionRange int) []Point {
	var out []Point
	for dy := -visionRange; dy <= visionRange; dy++ {
		for dx := -visionRange; dx <= visionRange; dx++ {
			if abs(dx)+abs(dy) > visionRange {
				continue
			}
			p := Point{from.X + dx, from.Y + dy, from.Z}
			if !env.Contains(p) {
				continue
			}
			if hasLineOfSight(env, from, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// hasLineOfSight walks the Bresenham line from a to b on one Z level and
// reports whether every tile strictly between them is see-through. The
// endpoints themselves never block: standing in a wall you just dug still
// lets you see out of it, and an opaque tile at the end of a clear line is
// itself visible.
func hasLineOfSight(env *Environment, a, b Point) bool {
	if a == b {
		return true
	}

	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	errAcc := dx + dy

	x, y := x0, y0
	for {
		if x == x1 && y == y1 {
			return true
		}
		if !(x == x0 && y == y0) {
			if !env.IsSeeThrough(Point{x, y, a.Z}) {
				return false
			}
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x += sx
		}
		if e2 <= dx {
			errAcc += dx
			y += sy
		}
	}
}
