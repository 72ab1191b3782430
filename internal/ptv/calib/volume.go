package calib

// Volume is the axis-aligned 3D region within which reconstructions are
// considered physically valid. Coordinates are world millimetres.
type Volume struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// Contains reports whether p lies inside the volume (bounds inclusive).
func (v Volume) Contains(p Vec3) bool {
	return p.X >= v.XMin && p.X <= v.XMax &&
		p.Y >= v.YMin && p.Y <= v.YMax &&
		p.Z >= v.ZMin && p.Z <= v.ZMax
}

// IsZero reports whether the volume is entirely unset. A zero volume is
// treated as unbounded by callers that allow it.
func (v Volume) IsZero() bool {
	return v == Volume{}
}
