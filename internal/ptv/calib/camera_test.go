package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCamera(t *testing.T, mm *Multimedia) *Camera {
	t.Helper()
	cam, err := NewCamera("cam0",
		Exterior{X0: 50, Y0: -30, Z0: 400, Omega: 0.08, Phi: -0.05, Kappa: 0.12},
		Interior{XH: 640, YH: 512, CC: 900},
		Distortion{K1: -0.04, K2: 0.002, P1: 1e-4, P2: -2e-4},
		mm)
	require.NoError(t, err)
	return cam
}

func TestNewCameraValidation(t *testing.T) {
	t.Parallel()

	_, err := NewCamera("bad", Exterior{}, Interior{CC: 0}, Distortion{}, nil)
	assert.Error(t, err)

	_, err = NewCamera("bad", Exterior{}, Interior{CC: 100}, Distortion{},
		&Multimedia{N1: 1, N2: 0, N3: 1.33})
	assert.Error(t, err)
}

func TestRotationMatrixOrthonormal(t *testing.T) {
	t.Parallel()

	r := rotationMatrix(0.3, -0.7, 1.1)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += r[i][k] * r[j][k]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, dot, 1e-12)
		}
	}
}

func TestProjectRayRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("single medium", func(t *testing.T) {
		t.Parallel()
		cam := testCamera(t, nil)

		points := []Vec3{
			{0, 0, 0},
			{12.5, -7.25, 20},
			{-40, 33, -15},
		}
		for _, p := range points {
			px, py := cam.Project(p)
			r := cam.Ray(px, py)
			assert.InDelta(t, 0, PerpDistance(r, p), 1e-6,
				"point %+v should lie on its back-projected ray", p)
		}
	})

	t.Run("flat refractive interface", func(t *testing.T) {
		t.Parallel()
		mm := &Multimedia{N1: 1.0, N2: 1.5, N3: 1.33, D: 6, Z: 100}
		cam := testCamera(t, mm)

		points := []Vec3{
			{0, 0, 0},
			{15, 9, 40},
			{-22, -18, -10},
		}
		for _, p := range points {
			px, py := cam.Project(p)
			r := cam.Ray(px, py)
			hit, ok := intersectPlaneZ(r, p.Z)
			require.True(t, ok)
			assert.InDelta(t, p.X, hit.X, 1e-5)
			assert.InDelta(t, p.Y, hit.Y, 1e-5)
		}
	})

	t.Run("refraction bends the ray", func(t *testing.T) {
		t.Parallel()
		dry := testCamera(t, nil)
		wet := testCamera(t, &Multimedia{N1: 1.0, N2: 1.5, N3: 1.33, D: 6, Z: 100})

		p := Vec3{30, 20, 0}
		dx, dy := dry.Project(p)
		wx, wy := wet.Project(p)
		// Same geometry, different media: the projection must move.
		assert.Greater(t, (dx-wx)*(dx-wx)+(dy-wy)*(dy-wy), 1e-4)
	})
}

func TestUndistortInvertsDistort(t *testing.T) {
	t.Parallel()
	cam := testCamera(t, nil)

	for _, pt := range [][2]float64{{0, 0}, {0.2, -0.1}, {-0.35, 0.3}} {
		xd, yd := cam.distort(pt[0], pt[1])
		x, y := cam.undistort(xd, yd)
		assert.InDelta(t, pt[0], x, 1e-9)
		assert.InDelta(t, pt[1], y, 1e-9)
	}
}

func TestEpipolarCurve(t *testing.T) {
	t.Parallel()

	cam0, err := NewCamera("cam0",
		Exterior{X0: -200, Y0: 0, Z0: 400},
		Interior{XH: 64, YH: 64, CC: 200}, Distortion{}, nil)
	require.NoError(t, err)
	cam1, err := NewCamera("cam1",
		Exterior{X0: 200, Y0: 0, Z0: 400},
		Interior{XH: 64, YH: 64, CC: 200}, Distortion{}, nil)
	require.NoError(t, err)

	vol := Volume{XMin: -50, XMax: 50, YMin: -50, YMax: 50, ZMin: -50, ZMax: 50}
	p := Vec3{5, -3, 10}

	px, py := cam0.Project(p)
	qx, qy := cam1.Project(p)

	curve := cam0.EpipolarCurve(px, py, cam1, vol, 101)
	require.NotEmpty(t, curve)

	// The true correspondence must lie on (or extremely near) the curve.
	best := 1e18
	for _, c := range curve {
		d := (c[0]-qx)*(c[0]-qx) + (c[1]-qy)*(c[1]-qy)
		if d < best {
			best = d
		}
	}
	assert.Less(t, best, 1.0, "projection of the source point should fall on the epipolar curve")
}

func TestVolumeContains(t *testing.T) {
	t.Parallel()
	v := Volume{XMin: -1, XMax: 1, YMin: -2, YMax: 2, ZMin: 0, ZMax: 10}

	assert.True(t, v.Contains(Vec3{0, 0, 5}))
	assert.True(t, v.Contains(Vec3{-1, 2, 0}))
	assert.False(t, v.Contains(Vec3{1.01, 0, 5}))
	assert.False(t, v.Contains(Vec3{0, 0, -0.1}))
	assert.True(t, Volume{}.IsZero())
	assert.False(t, v.IsZero())
}
