package ptv

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
)

// maxConditionNumber rejects near-parallel ray systems: if the 3x3
// normal matrix is conditioned worse than this the solution is
// meaningless and reported as a reconstruction failure instead of a
// degenerate point far outside the volume.
const maxConditionNumber = 1e8

// Triangulate computes the 3D point minimising the total squared
// perpendicular distance to all rays, and the RMS of those distances as
// residual. With exactly two rays this is the midpoint of the shortest
// connecting segment.
//
// The normal equations sum (I - d dᵀ) over all unit ray directions; the
// system is solved by SVD with a condition-number guard.
func Triangulate(rays []calib.Ray) (calib.Vec3, float64, error) {
	if len(rays) < 2 {
		return calib.Vec3{}, 0, fmt.Errorf("%w: need at least 2 rays, got %d", ErrReconstruction, len(rays))
	}

	a := mat.NewDense(3, 3, nil)
	b := mat.NewVecDense(3, nil)

	for _, r := range rays {
		d := r.Dir.Normalize()
		// P = I - d dᵀ projects onto the plane perpendicular to d.
		p := [3][3]float64{
			{1 - d.X*d.X, -d.X * d.Y, -d.X * d.Z},
			{-d.Y * d.X, 1 - d.Y*d.Y, -d.Y * d.Z},
			{-d.Z * d.X, -d.Z * d.Y, 1 - d.Z*d.Z},
		}
		o := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				a.Set(i, j, a.At(i, j)+p[i][j])
			}
			b.SetVec(i, b.AtVec(i)+p[i][0]*o[0]+p[i][1]*o[1]+p[i][2]*o[2])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return calib.Vec3{}, 0, fmt.Errorf("%w: SVD factorization failed", ErrReconstruction)
	}
	sv := svd.Values(nil)
	if sv[2] <= 0 || sv[0]/sv[2] > maxConditionNumber {
		return calib.Vec3{}, 0, fmt.Errorf("%w: ill-conditioned ray system (cond %.3g)",
			ErrReconstruction, sv[0]/math.Max(sv[2], math.SmallestNonzeroFloat64))
	}

	// x = V S⁻¹ Uᵀ b
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var utb mat.VecDense
	utb.MulVec(u.T(), b)
	for i := 0; i < 3; i++ {
		utb.SetVec(i, utb.AtVec(i)/sv[i])
	}
	var x mat.VecDense
	x.MulVec(&v, &utb)
	pos := calib.Vec3{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}

	var sum float64
	for _, r := range rays {
		d := calib.PerpDistance(r, pos)
		sum += d * d
	}
	return pos, math.Sqrt(sum / float64(len(rays))), nil
}
