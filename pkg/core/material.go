// pkg/core/material.go
package core

// NumMaterialProps is the number of scalars exchanged for a contact
// material during the handshake. The layout is fixed regardless of
// contact method; unused slots are zero for Complementarity.
const NumMaterialProps = 8

// ContactMaterial describes the contact response of a surface.
// For Penalty all fields are meaningful; for Complementarity only
// Friction and Restitution are used.
type ContactMaterial struct {
	Method      ContactMethod
	Friction    float64
	Restitution float64

	YoungModulus float64
	PoissonRatio float64
	Kn           float64
	Gn           float64
	Kt           float64
	Gt           float64
}

// MaterialFromProps builds a contact material from the flat parameter
// vector received during the handshake, interpreted per method.
func MaterialFromProps(method ContactMethod, props [NumMaterialProps]float64) ContactMaterial {
	mat := ContactMaterial{
		Method:      method,
		Friction:    props[0],
		Restitution: props[1],
	}
	if method == ContactPenalty {
		mat.YoungModulus = props[2]
		mat.PoissonRatio = props[3]
		mat.Kn = props[4]
		mat.Gn = props[5]
		mat.Kt = props[6]
		mat.Gt = props[7]
	}
	return mat
}

// Props returns the flat parameter vector for the handshake.
func (m ContactMaterial) Props() [NumMaterialProps]float64 {
	props := [NumMaterialProps]float64{m.Friction, m.Restitution}
	if m.Method == ContactPenalty {
		props[2] = m.YoungModulus
		props[3] = m.PoissonRatio
		props[4] = m.Kn
		props[5] = m.Gn
		props[6] = m.Kt
		props[7] = m.Gt
	}
	return props
}
