package calib

import "math"

// Vec3 is a 3D point or direction in world coordinates (millimetres).
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 { return v.X*w.X + v.Y*w.Y + v.Z*w.Z }

// Cross returns the cross product of v and w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v.Y*w.Z - v.Z*w.Y,
		v.Z*w.X - v.X*w.Z,
		v.X*w.Y - v.Y*w.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length. The zero vector is
// returned unchanged.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Ray is a line in world space given by an origin and a direction.
// The direction is not required to be unit length; geometric helpers
// normalise internally. Rays are treated as full lines: a point "behind"
// the origin still lies on the ray.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// At returns the point Origin + t*Dir.
func (r Ray) At(t float64) Vec3 { return r.Origin.Add(r.Dir.Scale(t)) }

// ClosestApproach returns the minimum distance between two rays and the
// midpoint of the shortest connecting segment. For (near-)parallel rays
// the midpoint degenerates to the projection of one origin onto the
// other ray; the returned distance is still meaningful.
func ClosestApproach(a, b Ray) (dist float64, mid Vec3) {
	da := a.Dir.Normalize()
	db := b.Dir.Normalize()
	w := a.Origin.Sub(b.Origin)

	bd := da.Dot(db)
	d := da.Dot(w)
	e := db.Dot(w)

	denom := 1 - bd*bd
	var ta, tb float64
	if denom < 1e-12 {
		// Parallel: fix ta = 0, slide along b only.
		ta = 0
		tb = e
	} else {
		ta = (bd*e - d) / denom
		tb = (e - bd*d) / denom
	}

	pa := a.Origin.Add(da.Scale(ta))
	pb := b.Origin.Add(db.Scale(tb))
	return pa.Sub(pb).Norm(), pa.Add(pb).Scale(0.5)
}

// PerpDistance returns the perpendicular distance from point p to ray r.
func PerpDistance(r Ray, p Vec3) float64 {
	d := r.Dir.Normalize()
	w := p.Sub(r.Origin)
	return w.Sub(d.Scale(w.Dot(d))).Norm()
}
