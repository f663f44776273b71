package physics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// narrowphase tests a shape pair and, on overlap, returns a contact
// with the normal pointing from the first body towards the second.
// Supported pairs: sphere-sphere, sphere-box, sphere-triangle. Other
// combinations are reported as no contact.
func narrowphase(sa, sb *shape) (Contact, bool) {
	// Normalize order so the sphere comes first.
	if sa.kind != sphereShape {
		if sb.kind != sphereShape {
			return Contact{}, false
		}
		c, ok := narrowphase(sb, sa)
		if !ok {
			return Contact{}, false
		}
		c.A, c.B = c.B, c.A
		c.Normal = c.Normal.Mul(-1)
		return c, true
	}

	center := sa.body.state.Pos.Add(sa.offset)

	switch sb.kind {
	case sphereShape:
		return sphereSphere(sa, sb, center)
	case boxShape:
		return sphereBox(sa, sb, center)
	default:
		return sphereTriangle(sa, sb, center)
	}
}

func sphereSphere(sa, sb *shape, ca mgl64.Vec3) (Contact, bool) {
	cb := sb.body.state.Pos.Add(sb.offset)
	d := cb.Sub(ca)
	dist := d.Len()
	depth := sa.radius + sb.radius - dist
	if depth <= 0 {
		return Contact{}, false
	}
	var n mgl64.Vec3
	if dist > 1e-12 {
		n = d.Mul(1 / dist)
	} else {
		n = mgl64.Vec3{0, 0, 1}
	}
	return Contact{
		A:      sa.body,
		B:      sb.body,
		Point:  ca.Add(n.Mul(sa.radius - depth/2)),
		Normal: n,
		Depth:  depth,
	}, true
}

func sphereBox(sa, sb *shape, c mgl64.Vec3) (Contact, bool) {
	bc := sb.body.state.Pos.Add(sb.offset)
	lo := bc.Sub(sb.hdims)
	hi := bc.Add(sb.hdims)

	closest := mgl64.Vec3{
		clamp(c.X(), lo.X(), hi.X()),
		clamp(c.Y(), lo.Y(), hi.Y()),
		clamp(c.Z(), lo.Z(), hi.Z()),
	}

	d := closest.Sub(c)
	dist := d.Len()
	if dist > 1e-12 {
		depth := sa.radius - dist
		if depth <= 0 {
			return Contact{}, false
		}
		n := d.Mul(1 / dist)
		return Contact{
			A:      sa.body,
			B:      sb.body,
			Point:  closest,
			Normal: n,
			Depth:  depth,
		}, true
	}

	// Sphere center inside the box. Push out through the nearest face.
	pen := hi.X() - c.X()
	n := mgl64.Vec3{1, 0, 0}
	if p := c.X() - lo.X(); p < pen {
		pen, n = p, mgl64.Vec3{-1, 0, 0}
	}
	if p := hi.Y() - c.Y(); p < pen {
		pen, n = p, mgl64.Vec3{0, 1, 0}
	}
	if p := c.Y() - lo.Y(); p < pen {
		pen, n = p, mgl64.Vec3{0, -1, 0}
	}
	if p := hi.Z() - c.Z(); p < pen {
		pen, n = p, mgl64.Vec3{0, 0, 1}
	}
	if p := c.Z() - lo.Z(); p < pen {
		pen, n = p, mgl64.Vec3{0, 0, -1}
	}
	return Contact{
		A:      sa.body,
		B:      sb.body,
		Point:  c,
		Normal: n.Mul(-1), // from sphere towards the box interior
		Depth:  sa.radius + pen,
	}, true
}

func sphereTriangle(sa, st *shape, c mgl64.Vec3) (Contact, bool) {
	pos := st.body.state.Pos
	a := pos.Add(st.a)
	b := pos.Add(st.b)
	cc := pos.Add(st.c)

	closest := closestPointTriangle(c, a, b, cc)
	d := closest.Sub(c)
	dist := d.Len()
	depth := sa.radius - dist
	if depth <= 0 {
		return Contact{}, false
	}
	var n mgl64.Vec3
	if dist > 1e-12 {
		n = d.Mul(1 / dist)
	} else {
		n = b.Sub(a).Cross(cc.Sub(a))
		if l := n.Len(); l > 1e-12 {
			n = n.Mul(1 / l)
		} else {
			n = mgl64.Vec3{0, 0, 1}
		}
	}
	return Contact{
		A:      sa.body,
		B:      st.body,
		Point:  closest,
		Normal: n,
		Depth:  depth,
	}, true
}

// closestPointTriangle returns the point on triangle abc closest to p.
// Standard Voronoi-region walk over vertices, edges, and face.
func closestPointTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
