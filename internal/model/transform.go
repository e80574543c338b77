package model

import "math"

// #region transform

// Transform is a rigid-body pose: rotation matrix plus translation.
type Transform struct {
	R [3][3]float64
	P [3]float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Translation returns a pure translation transform.
func Translation(x, y, z float64) Transform {
	t := Identity()
	t.P = [3]float64{x, y, z}
	return t
}

// Mul composes two transforms: result = a then b, expressed in a's parent frame.
func (a Transform) Mul(b Transform) Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a.R[i][k] * b.R[k][j]
			}
			out.R[i][j] = s
		}
		out.P[i] = a.P[i] + a.R[i][0]*b.P[0] + a.R[i][1]*b.P[1] + a.R[i][2]*b.P[2]
	}
	return out
}

// Apply maps a point from the transform's local frame into its parent frame.
func (a Transform) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = a.P[i] + a.R[i][0]*p[0] + a.R[i][1]*p[1] + a.R[i][2]*p[2]
	}
	return out
}

// ApplyRotation maps a direction vector (no translation).
func (a Transform) ApplyRotation(v [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = a.R[i][0]*v[0] + a.R[i][1]*v[1] + a.R[i][2]*v[2]
	}
	return out
}

// Inverse returns the inverse rigid transform.
func (a Transform) Inverse() Transform {
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = a.R[j][i]
		}
	}
	for i := 0; i < 3; i++ {
		out.P[i] = -(out.R[i][0]*a.P[0] + out.R[i][1]*a.P[1] + out.R[i][2]*a.P[2])
	}
	return out
}

// #endregion transform

// #region rotations

// RotAxisAngle builds a rotation about a unit axis by angle theta (Rodrigues).
func RotAxisAngle(axis [3]float64, theta float64) Transform {
	c := math.Cos(theta)
	s := math.Sin(theta)
	v := 1 - c
	x, y, z := axis[0], axis[1], axis[2]
	return Transform{R: [3][3]float64{
		{c + x*x*v, x*y*v - z*s, x*z*v + y*s},
		{y*x*v + z*s, c + y*y*v, y*z*v - x*s},
		{z*x*v - y*s, z*y*v + x*s, c + z*z*v},
	}}
}

// RotRPY builds a rotation from roll-pitch-yaw angles (extrinsic XYZ,
// i.e. R = Rz(yaw) * Ry(pitch) * Rx(roll)).
func RotRPY(roll, pitch, yaw float64) Transform {
	rx := RotAxisAngle([3]float64{1, 0, 0}, roll)
	ry := RotAxisAngle([3]float64{0, 1, 0}, pitch)
	rz := RotAxisAngle([3]float64{0, 0, 1}, yaw)
	return rz.Mul(ry).Mul(rx)
}

// RPY extracts roll-pitch-yaw angles from the transform's rotation,
// inverse of RotRPY. Pitch is clamped to avoid NaN at the gimbal limit.
func (a Transform) RPY() (roll, pitch, yaw float64) {
	sp := -a.R[2][0]
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	pitch = math.Asin(sp)
	if math.Abs(sp) > 1-1e-9 {
		// Gimbal lock: fold yaw into roll.
		roll = math.Atan2(-a.R[0][1], a.R[1][1])
		yaw = 0
		return
	}
	roll = math.Atan2(a.R[2][1], a.R[2][2])
	yaw = math.Atan2(a.R[1][0], a.R[0][0])
	return
}

// #endregion rotations
