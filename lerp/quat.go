package lerp

import "math"

// slerpThreshold is the squared sine of the half angle below which QuatSlerp
// falls back to a normalised linear blend.
const slerpThreshold = 0.001

// Quat is a rotation quaternion.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the quaternion with no rotation.
var Identity = Quat{W: 1}

// Dot returns the 4D dot product of q and o.
func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Len returns the magnitude of q.
func (q Quat) Len() float64 {
	return math.Sqrt(q.Dot(q))
}

// Normalize scales q to unit length. The zero quaternion is returned as is.
func (q Quat) Normalize() Quat {
	l := q.Len()
	if l == 0 {
		return q
	}
	f := 1 / l
	return Quat{X: q.X * f, Y: q.Y * f, Z: q.Z * f, W: q.W * f}
}

// QuatSlerp spherically blends qa towards qb by t, always along the shorter
// arc. t == 0 and t == 1 return the endpoints untouched.
func QuatSlerp(qa, qb Quat, t float64) Quat {
	if t == 0 {
		return qa
	}
	if t == 1 {
		return qb
	}
	if qa == qb {
		return qa
	}

	s := 1 - t
	cos := qa.Dot(qb)
	dir := 1.0
	if cos < 0 {
		dir = -1
	}
	sqrSin := 1 - cos*cos

	spherical := sqrSin > slerpThreshold
	if spherical {
		sin := math.Sqrt(sqrSin)
		angle := math.Atan2(sin, cos*dir)
		s = math.Sin(s*angle) / sin
		t = math.Sin(t*angle) / sin
	}

	tDir := t * dir
	out := Quat{
		X: qa.X*s + qb.X*tDir,
		Y: qa.Y*s + qb.Y*tDir,
		Z: qa.Z*s + qb.Z*tDir,
		W: qa.W*s + qb.W*tDir,
	}
	if !spherical {
		out = out.Normalize()
	}
	return out
}
