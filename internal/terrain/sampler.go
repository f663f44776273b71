package terrain

import (
	"math"
	"math/rand"
)

// poissonSampler generates 2D points with a minimum pairwise distance
// inside a centered rectangle, using Bridson's dart-throwing algorithm
// with a background grid.
type poissonSampler struct {
	minDist float64
	rng     *rand.Rand
}

func newPoissonSampler(minDist float64, seed int64) *poissonSampler {
	return &poissonSampler{
		minDist: minDist,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// sample fills the rectangle [-hdimX, hdimX] x [-hdimY, hdimY] with
// points at least minDist apart.
func (p *poissonSampler) sample(hdimX, hdimY float64) [][2]float64 {
	const attempts = 30

	cell := p.minDist / math.Sqrt2
	nx := int(math.Ceil(2 * hdimX / cell))
	ny := int(math.Ceil(2 * hdimY / cell))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}

	grid := make([]int, nx*ny)
	for i := range grid {
		grid[i] = -1
	}
	cellOf := func(pt [2]float64) (int, int) {
		ix := int((pt[0] + hdimX) / cell)
		iy := int((pt[1] + hdimY) / cell)
		if ix >= nx {
			ix = nx - 1
		}
		if iy >= ny {
			iy = ny - 1
		}
		return ix, iy
	}

	inBounds := func(pt [2]float64) bool {
		return pt[0] >= -hdimX && pt[0] <= hdimX && pt[1] >= -hdimY && pt[1] <= hdimY
	}

	var points [][2]float64
	var active []int

	farEnough := func(pt [2]float64) bool {
		ix, iy := cellOf(pt)
		for dx := -2; dx <= 2; dx++ {
			for dy := -2; dy <= 2; dy++ {
				jx, jy := ix+dx, iy+dy
				if jx < 0 || jx >= nx || jy < 0 || jy >= ny {
					continue
				}
				k := grid[jy*nx+jx]
				if k < 0 {
					continue
				}
				q := points[k]
				ddx := q[0] - pt[0]
				ddy := q[1] - pt[1]
				if ddx*ddx+ddy*ddy < p.minDist*p.minDist {
					return false
				}
			}
		}
		return true
	}

	insert := func(pt [2]float64) {
		ix, iy := cellOf(pt)
		grid[iy*nx+ix] = len(points)
		points = append(points, pt)
		active = append(active, len(points)-1)
	}

	insert([2]float64{
		(2*p.rng.Float64() - 1) * hdimX,
		(2*p.rng.Float64() - 1) * hdimY,
	})

	for len(active) > 0 {
		pick := p.rng.Intn(len(active))
		base := points[active[pick]]

		placed := false
		for a := 0; a < attempts; a++ {
			ang := 2 * math.Pi * p.rng.Float64()
			rad := p.minDist * (1 + p.rng.Float64())
			cand := [2]float64{
				base[0] + rad*math.Cos(ang),
				base[1] + rad*math.Sin(ang),
			}
			if !inBounds(cand) || !farEnough(cand) {
				continue
			}
			insert(cand)
			placed = true
			break
		}
		if !placed {
			active[pick] = active[len(active)-1]
			active = active[:len(active)-1]
		}
	}

	return points
}
