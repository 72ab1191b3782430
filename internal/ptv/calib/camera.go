package calib

import (
	"fmt"
	"math"
)

// Maximum iterations for the inverse-distortion and multimedia
// projection fixed-point loops.
const (
	maxUndistortIter = 100
	maxMultimediaIter = 40
	convergenceEps   = 1e-10
)

// Exterior holds the camera pose: position in world coordinates and the
// photogrammetric rotation angles (radians).
type Exterior struct {
	X0, Y0, Z0        float64
	Omega, Phi, Kappa float64
}

// Interior holds the principal point (pixels) and principal distance
// (pixels). A square pixel model is assumed; non-square sensors are
// folded into the calibration upstream.
type Interior struct {
	XH, YH float64
	CC     float64
}

// Distortion holds Brown radial (K1..K3) and decentering (P1, P2)
// coefficients applied to normalised image coordinates.
type Distortion struct {
	K1, K2, K3 float64
	P1, P2     float64
}

// Multimedia describes a flat refractive interface stack between the
// camera and the working volume: medium 1 (camera side, refractive
// index N1), a wall of thickness D and index N2, and medium 3 (volume
// side, index N3). The outer wall surface is the plane z = Z; the
// interface normal is +z and the camera is assumed on the +z side.
type Multimedia struct {
	N1, N2, N3 float64
	D          float64
	Z          float64
}

// Camera wraps one camera's projection model. It is immutable after
// construction and safe for concurrent use.
type Camera struct {
	Name string

	ext  Exterior
	intr Interior
	dist Distortion
	mm   *Multimedia

	r [3][3]float64 // world-to-camera rotation
}

// NewCamera builds a camera from pose, interior and distortion
// parameters. mm may be nil for a single-medium (air only) setup.
func NewCamera(name string, ext Exterior, in Interior, dist Distortion, mm *Multimedia) (*Camera, error) {
	if in.CC == 0 {
		return nil, fmt.Errorf("camera %s: principal distance must be non-zero", name)
	}
	if mm != nil && (mm.N1 <= 0 || mm.N2 <= 0 || mm.N3 <= 0) {
		return nil, fmt.Errorf("camera %s: refractive indices must be positive", name)
	}
	c := &Camera{Name: name, ext: ext, intr: in, dist: dist, mm: mm}
	c.r = rotationMatrix(ext.Omega, ext.Phi, ext.Kappa)
	return c, nil
}

// Position returns the camera centre in world coordinates.
func (c *Camera) Position() Vec3 { return Vec3{c.ext.X0, c.ext.Y0, c.ext.Z0} }

// rotationMatrix builds the world-to-camera rotation from the
// photogrammetric omega/phi/kappa angle convention.
func rotationMatrix(omega, phi, kappa float64) [3][3]float64 {
	so, co := math.Sin(omega), math.Cos(omega)
	sp, cp := math.Sin(phi), math.Cos(phi)
	sk, ck := math.Sin(kappa), math.Cos(kappa)

	var r [3][3]float64
	r[0][0] = cp * ck
	r[0][1] = co*sk + so*sp*ck
	r[0][2] = so*sk - co*sp*ck
	r[1][0] = -cp * sk
	r[1][1] = co*ck - so*sp*sk
	r[1][2] = so*ck + co*sp*sk
	r[2][0] = sp
	r[2][1] = -so * cp
	r[2][2] = co * cp
	return r
}

// worldToCam rotates a world-frame vector into the camera frame.
func (c *Camera) worldToCam(v Vec3) Vec3 {
	return Vec3{
		c.r[0][0]*v.X + c.r[0][1]*v.Y + c.r[0][2]*v.Z,
		c.r[1][0]*v.X + c.r[1][1]*v.Y + c.r[1][2]*v.Z,
		c.r[2][0]*v.X + c.r[2][1]*v.Y + c.r[2][2]*v.Z,
	}
}

// camToWorld rotates a camera-frame vector into the world frame.
func (c *Camera) camToWorld(v Vec3) Vec3 {
	return Vec3{
		c.r[0][0]*v.X + c.r[1][0]*v.Y + c.r[2][0]*v.Z,
		c.r[0][1]*v.X + c.r[1][1]*v.Y + c.r[2][1]*v.Z,
		c.r[0][2]*v.X + c.r[1][2]*v.Y + c.r[2][2]*v.Z,
	}
}

// distort applies the Brown model to normalised image coordinates.
func (c *Camera) distort(x, y float64) (float64, float64) {
	d := c.dist
	r2 := x*x + y*y
	radial := 1 + d.K1*r2 + d.K2*r2*r2 + d.K3*r2*r2*r2
	xd := x*radial + 2*d.P1*x*y + d.P2*(r2+2*x*x)
	yd := y*radial + d.P1*(r2+2*y*y) + 2*d.P2*x*y
	return xd, yd
}

// undistort inverts the Brown model by fixed-point iteration.
func (c *Camera) undistort(xd, yd float64) (float64, float64) {
	x, y := xd, yd
	for i := 0; i < maxUndistortIter; i++ {
		dx, dy := c.distort(x, y)
		ex, ey := dx-xd, dy-yd
		x -= ex
		y -= ey
		if ex*ex+ey*ey < convergenceEps {
			break
		}
	}
	return x, y
}

// Project maps a 3D world point to pixel coordinates. With a multimedia
// stack configured the refracted path through the interface is resolved
// iteratively before the pinhole projection.
func (c *Camera) Project(p Vec3) (px, py float64) {
	if c.mm != nil {
		p = c.multimediaShift(p)
	}
	q := c.worldToCam(p.Sub(c.Position()))
	xn := q.X / q.Z
	yn := q.Y / q.Z
	xd, yd := c.distort(xn, yn)
	return c.intr.XH + c.intr.CC*xd, c.intr.YH + c.intr.CC*yd
}

// Ray back-projects a pixel to a world-space ray through the camera
// centre. With a multimedia stack the returned ray is the refracted leg
// inside medium 3 (origin on the inner wall surface).
func (c *Camera) Ray(px, py float64) Ray {
	xd := (px - c.intr.XH) / c.intr.CC
	yd := (py - c.intr.YH) / c.intr.CC
	xn, yn := c.undistort(xd, yd)
	dir := c.camToWorld(Vec3{xn, yn, 1}).Normalize()
	r := Ray{Origin: c.Position(), Dir: dir}
	if c.mm == nil {
		return r
	}
	return c.refractThroughStack(r)
}

// refractThroughStack traces r from the camera through the flat wall
// and returns the leg inside medium 3. If the ray misses the interface
// plane or undergoes total internal reflection the original ray is
// returned unchanged.
func (c *Camera) refractThroughStack(r Ray) Ray {
	mm := c.mm
	normal := Vec3{0, 0, 1}

	hit, ok := intersectPlaneZ(r, mm.Z)
	if !ok {
		return r
	}
	d1, ok := refract(r.Dir, normal, mm.N1/mm.N2)
	if !ok {
		return r
	}
	// Through the wall to the inner surface z = Z - D.
	inner, ok := intersectPlaneZ(Ray{Origin: hit, Dir: d1}, mm.Z-mm.D)
	if !ok {
		return Ray{Origin: hit, Dir: d1}
	}
	d2, ok := refract(d1, normal, mm.N2/mm.N3)
	if !ok {
		return Ray{Origin: hit, Dir: d1}
	}
	return Ray{Origin: inner, Dir: d2}
}

// multimediaShift finds the apparent (single-medium) position of p such
// that the pinhole projection of the shifted point equals the true
// refracted projection of p. Fixed-point iteration on the in-plane
// offset, following the classic radial-shift scheme.
func (c *Camera) multimediaShift(p Vec3) Vec3 {
	shifted := p
	for i := 0; i < maxMultimediaIter; i++ {
		q := c.worldToCam(shifted.Sub(c.Position()))
		xn := q.X / q.Z
		yn := q.Y / q.Z
		dir := c.camToWorld(Vec3{xn, yn, 1}).Normalize()
		leg := c.refractThroughStack(Ray{Origin: c.Position(), Dir: dir})

		// Where does the refracted path cross the depth of p?
		back, ok := intersectPlaneZ(leg, p.Z)
		if !ok {
			return shifted
		}
		ex, ey := back.X-p.X, back.Y-p.Y
		if ex*ex+ey*ey < convergenceEps {
			break
		}
		shifted.X -= ex
		shifted.Y -= ey
	}
	return shifted
}

// intersectPlaneZ returns the intersection of r with the plane z = z0.
func intersectPlaneZ(r Ray, z0 float64) (Vec3, bool) {
	if math.Abs(r.Dir.Z) < 1e-12 {
		return Vec3{}, false
	}
	t := (z0 - r.Origin.Z) / r.Dir.Z
	return r.At(t), true
}

// refract bends unit direction d at a surface with the given normal by
// Snell's law, with eta the ratio of refractive indices (incident over
// transmitted). Returns false on total internal reflection.
func refract(d, n Vec3, eta float64) (Vec3, bool) {
	d = d.Normalize()
	cosi := -d.Dot(n)
	if cosi < 0 {
		n = n.Scale(-1)
		cosi = -cosi
	}
	sin2t := eta * eta * (1 - cosi*cosi)
	if sin2t > 1 {
		return Vec3{}, false
	}
	cost := math.Sqrt(1 - sin2t)
	return d.Scale(eta).Add(n.Scale(eta*cosi - cost)).Normalize(), true
}

// EpipolarCurve samples the epipolar curve of pixel (px, py) seen in
// other: the back-projected ray is sampled at n depths spanning the
// volume's z extent and each sample is projected into the other camera.
// Returns one [2]float64 pixel per sample.
func (c *Camera) EpipolarCurve(px, py float64, other *Camera, vol Volume, n int) [][2]float64 {
	if n < 2 {
		n = 2
	}
	r := c.Ray(px, py)
	curve := make([][2]float64, 0, n)
	for i := 0; i < n; i++ {
		z := vol.ZMin + (vol.ZMax-vol.ZMin)*float64(i)/float64(n-1)
		p, ok := intersectPlaneZ(r, z)
		if !ok {
			continue
		}
		qx, qy := other.Project(p)
		curve = append(curve, [2]float64{qx, qy})
	}
	return curve
}
