// Package ptv implements the core particle tracking velocimetry engine:
// blob detection, multi-camera correspondence, 3D triangulation and
// frame-to-frame trajectory linking.
//
// The package is pure computation over in-memory values; file formats
// live in internal/ptvio and orchestration in internal/ptv/pipeline.
package ptv

// MaxCameras is the fixed slot count carried by correspondence records.
// Result files always contain four camera index fields regardless of
// how many cameras are configured; unused slots hold NoTarget.
const MaxCameras = 4

// NoTarget marks an empty camera slot in a correspondence record. It is
// distinct from any valid 0-based target index.
const NoTarget = -1

// NoLink marks an absent predecessor or successor in a tracked point.
const NoLink = -1

// Target is one 2D particle detection in one camera in one frame.
// Immutable once produced by the detector, except for PointID which the
// correspondence engine fills in when the target is consumed.
type Target struct {
	Pnr        int     // index within this camera/frame, 0-based
	X, Y       float64 // sub-pixel centroid, pixel coordinates
	PixelCount int     // connected component area in pixels
	NX, NY     int     // bounding extent in x and y
	SumGrey    int     // integrated intensity
	PointID    int     // 1-based id of the consuming 3D point, NoTarget if unmatched
}

// Point3D is a reconstructed particle position for one frame.
type Point3D struct {
	ID      int // 1-based, contiguous within the frame
	X, Y, Z float64
	Cams    [MaxCameras]int // contributing target index per camera, NoTarget where absent
}

// Correspondence is a matched tuple of targets, one slot per camera.
// Arity counts the participating cameras (2..4).
type Correspondence struct {
	Arity    int
	Targets  [MaxCameras]int
	Residual float64
}

// TrackedPoint is a Point3D extended with trajectory links. Offsets are
// counted in frame steps: a normal link has |offset| 1, a bridged gap 2,
// and 0 means unlinked. Indices are 0-based positions in the linked
// frame's record list, NoLink when absent.
type TrackedPoint struct {
	Point3D
	PrevOff, PrevIdx int
	NextOff, NextIdx int
}

// HasPrev reports whether the point has a predecessor link.
func (p *TrackedPoint) HasPrev() bool { return p.PrevIdx != NoLink }

// HasNext reports whether the point has a successor link.
func (p *TrackedPoint) HasNext() bool { return p.NextIdx != NoLink }

// Image is a single-channel 8-bit intensity image, row-major. The
// engine consumes images already preprocessed (filtered, masked) by the
// external image pipeline.
type Image struct {
	Width, Height int
	Pix           []uint8
}

// NewImage allocates a zeroed image of the given dimensions.
func NewImage(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]uint8, w*h)}
}

// At returns the intensity at (x, y). Out-of-bounds reads return 0.
func (im *Image) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return 0
	}
	return im.Pix[y*im.Width+x]
}

// Set writes the intensity at (x, y). Out-of-bounds writes are dropped.
func (im *Image) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
		return
	}
	im.Pix[y*im.Width+x] = v
}
