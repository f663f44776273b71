package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type aabb struct {
	min, max mgl64.Vec3
}

func (s *System) shapeAABB(sh *shape) aabb {
	pos := sh.body.state.Pos
	switch sh.kind {
	case sphereShape:
		c := pos.Add(sh.offset)
		r := mgl64.Vec3{sh.radius, sh.radius, sh.radius}
		return aabb{c.Sub(r), c.Add(r)}
	case boxShape:
		c := pos.Add(sh.offset)
		return aabb{c.Sub(sh.hdims), c.Add(sh.hdims)}
	default: // triangleShape
		a := pos.Add(sh.a)
		b := pos.Add(sh.b)
		c := pos.Add(sh.c)
		return aabb{
			mgl64.Vec3{min3(a.X(), b.X(), c.X()), min3(a.Y(), b.Y(), c.Y()), min3(a.Z(), b.Z(), c.Z())},
			mgl64.Vec3{max3(a.X(), b.X(), c.X()), max3(a.Y(), b.Y(), c.Y()), max3(a.Z(), b.Z(), c.Z())},
		}
	}
}

func overlaps(a, b aabb) bool {
	return a.min.X() <= b.max.X() && a.max.X() >= b.min.X() &&
		a.min.Y() <= b.max.Y() && a.max.Y() >= b.min.Y() &&
		a.min.Z() <= b.max.Z() && a.max.Z() >= b.min.Z()
}

// broadphasePairs returns candidate shape pairs. When bin counts and a
// deactivation volume are configured, shapes are hashed into a uniform
// XY grid over that volume; otherwise all pairs are tested. Both paths
// apply AABB overlap and body-level filtering.
func (s *System) broadphasePairs() [][2]int {
	boxes := make([]aabb, len(s.shapes))
	for i := range s.shapes {
		boxes[i] = s.shapeAABB(&s.shapes[i])
	}

	var pairs [][2]int
	emit := func(i, j int) {
		a, b := &s.shapes[i], &s.shapes[j]
		if !collidable(a.body, b.body) {
			return
		}
		if !overlaps(boxes[i], boxes[j]) {
			return
		}
		pairs = append(pairs, [2]int{i, j})
	}

	if s.bins[0] > 0 && s.bins[1] > 0 && s.useAABB {
		s.gridPairs(boxes, emit)
		return pairs
	}

	for i := 0; i < len(s.shapes); i++ {
		for j := i + 1; j < len(s.shapes); j++ {
			emit(i, j)
		}
	}
	return pairs
}

// gridPairs hashes shape AABBs into grid cells and emits each
// overlapping pair exactly once (on its lowest shared cell).
func (s *System) gridPairs(boxes []aabb, emit func(i, j int)) {
	nx, ny := s.bins[0], s.bins[1]
	ext := s.aabbMax.Sub(s.aabbMin)
	cx := ext.X() / float64(nx)
	cy := ext.Y() / float64(ny)

	cellOf := func(x, y float64) (int, int) {
		ix := clampInt(int(math.Floor((x-s.aabbMin.X())/cx)), 0, nx-1)
		iy := clampInt(int(math.Floor((y-s.aabbMin.Y())/cy)), 0, ny-1)
		return ix, iy
	}

	cells := make(map[[2]int][]int)
	for i, box := range boxes {
		x0, y0 := cellOf(box.min.X(), box.min.Y())
		x1, y1 := cellOf(box.max.X(), box.max.Y())
		for ix := x0; ix <= x1; ix++ {
			for iy := y0; iy <= y1; iy++ {
				cells[[2]int{ix, iy}] = append(cells[[2]int{ix, iy}], i)
			}
		}
	}

	seen := make(map[[2]int]struct{})
	for _, ids := range cells {
		for a := 0; a < len(ids); a++ {
			for b := a + 1; b < len(ids); b++ {
				i, j := ids[a], ids[b]
				if j < i {
					i, j = j, i
				}
				key := [2]int{i, j}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				emit(i, j)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min3(a, b, c float64) float64 { return math.Min(a, math.Min(b, c)) }
func max3(a, b, c float64) float64 { return math.Max(a, math.Max(b, c)) }
