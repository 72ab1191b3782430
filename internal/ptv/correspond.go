package ptv

import (
	"fmt"
	"sort"

	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
)

// CorrespondParams holds the tolerances of the correspondence search.
type CorrespondParams struct {
	MaxRayDist  float64 // max closest-approach distance between two candidate rays (mm)
	MaxResidual float64 // max triangulation RMS residual (mm)
}

// candidate is an accepted tuple prior to deduplication.
type candidate struct {
	arity    int
	targets  [MaxCameras]int
	pos      calib.Vec3
	residual float64
}

// FindCorrespondences finds consistent tuples of targets (one per
// participating camera) that back-project near a common 3D point inside
// the volume.
//
// Candidate pairs are gated on the closest-approach distance of the two
// back-projected rays; larger tuples require every constituent pair to
// be accepted. Each surviving tuple is triangulated and rejected if the
// residual exceeds tolerance or the point falls outside the volume.
// Tuples are ranked by arity descending (quadruplets over triplets over
// pairs), then by residual ascending, then by target indices for
// determinism, and consumed greedily: no target participates in more
// than one final correspondence.
//
// The PointID field of consumed targets is set to the 1-based id of the
// resulting 3D point; unmatched targets keep PointID == NoTarget.
func FindCorrespondences(targets [][]Target, cams []*calib.Camera, vol calib.Volume, par CorrespondParams) ([]Correspondence, []Point3D, error) {
	n := len(cams)
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: no cameras configured", ErrConfiguration)
	}
	if n > MaxCameras {
		return nil, nil, fmt.Errorf("%w: %d cameras exceeds maximum of %d", ErrConfiguration, n, MaxCameras)
	}
	if len(targets) != n {
		return nil, nil, fmt.Errorf("%w: %d target lists for %d cameras", ErrConfiguration, len(targets), n)
	}

	// Back-project every target once.
	rays := make([][]calib.Ray, n)
	for c := range targets {
		rays[c] = make([]calib.Ray, len(targets[c]))
		for i, tg := range targets[c] {
			rays[c][i] = cams[c].Ray(tg.X, tg.Y)
		}
	}

	// Pairwise epipolar gating. adj[i][j][a] lists targets b in camera j
	// whose ray passes within tolerance of target a's ray in camera i,
	// in increasing b order (i < j always).
	adj := make([][][][]int, n)
	for i := 0; i < n; i++ {
		adj[i] = make([][][]int, n)
		for j := i + 1; j < n; j++ {
			adj[i][j] = make([][]int, len(targets[i]))
			for a := range targets[i] {
				for b := range targets[j] {
					dist, _ := calib.ClosestApproach(rays[i][a], rays[j][b])
					if dist <= par.MaxRayDist {
						adj[i][j][a] = append(adj[i][j][a], b)
					}
				}
			}
		}
	}
	pairOK := func(i, a, j, b int) bool {
		for _, x := range adj[i][j][a] {
			if x == b {
				return true
			}
		}
		return false
	}

	// Enumerate tuples for every camera subset of size >= 2, cameras in
	// increasing index order for deterministic iteration.
	var cands []candidate
	subsets := cameraSubsets(n)
	for _, subset := range subsets {
		picked := make([]int, len(subset))
		var walk func(depth int)
		walk = func(depth int) {
			if depth == len(subset) {
				tupleRays := make([]calib.Ray, len(subset))
				for k, c := range subset {
					tupleRays[k] = rays[c][picked[k]]
				}
				pos, residual, err := Triangulate(tupleRays)
				if err != nil {
					return // ill-conditioned tuple, discard
				}
				if residual > par.MaxResidual {
					return
				}
				if !vol.IsZero() && !vol.Contains(pos) {
					return
				}
				cand := candidate{arity: len(subset), pos: pos, residual: residual}
				for s := range cand.targets {
					cand.targets[s] = NoTarget
				}
				for k, c := range subset {
					cand.targets[c] = picked[k]
				}
				cands = append(cands, cand)
				return
			}
			c := subset[depth]
			for t := range targets[c] {
				ok := true
				for prev := 0; prev < depth; prev++ {
					if !pairOK(subset[prev], picked[prev], c, t) {
						ok = false
						break
					}
				}
				if ok {
					picked[depth] = t
					walk(depth + 1)
				}
			}
		}
		walk(0)
	}

	// Rank: arity descending, residual ascending, then indices.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].arity != cands[j].arity {
			return cands[i].arity > cands[j].arity
		}
		if cands[i].residual != cands[j].residual {
			return cands[i].residual < cands[j].residual
		}
		for c := 0; c < MaxCameras; c++ {
			if cands[i].targets[c] != cands[j].targets[c] {
				return cands[i].targets[c] < cands[j].targets[c]
			}
		}
		return false
	})

	// Greedy consumption.
	used := make([][]bool, n)
	for c := range used {
		used[c] = make([]bool, len(targets[c]))
	}
	var corrs []Correspondence
	var points []Point3D
	for _, cand := range cands {
		free := true
		for c := 0; c < n; c++ {
			if cand.targets[c] != NoTarget && used[c][cand.targets[c]] {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		id := len(points) + 1
		for c := 0; c < n; c++ {
			if cand.targets[c] != NoTarget {
				used[c][cand.targets[c]] = true
				targets[c][cand.targets[c]].PointID = id
			}
		}
		corrs = append(corrs, Correspondence{
			Arity:    cand.arity,
			Targets:  cand.targets,
			Residual: cand.residual,
		})
		points = append(points, Point3D{
			ID:   id,
			X:    cand.pos.X,
			Y:    cand.pos.Y,
			Z:    cand.pos.Z,
			Cams: cand.targets,
		})
	}
	return corrs, points, nil
}

// cameraSubsets lists all camera index subsets of size >= 2 in
// decreasing size, each subset in increasing index order.
func cameraSubsets(n int) [][]int {
	var out [][]int
	for size := n; size >= 2; size-- {
		var build func(start int, cur []int)
		build = func(start int, cur []int) {
			if len(cur) == size {
				sub := make([]int, size)
				copy(sub, cur)
				out = append(out, sub)
				return
			}
			for c := start; c < n; c++ {
				build(c+1, append(cur, c))
			}
		}
		build(0, nil)
	}
	return out
}
