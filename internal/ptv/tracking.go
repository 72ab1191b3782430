package ptv

import (
	"context"
	"fmt"
	"math"

	"github.com/fluidmetrics/ptv3d/internal/monitoring"
	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
)

// TrackParams holds the kinematic gates of the linking search. All
// displacement quantities are per frame step (mm/step).
type TrackParams struct {
	DVxMin, DVxMax float64 // allowed per-step displacement along x
	DVyMin, DVyMax float64
	DVzMin, DVzMax float64
	MaxAngle       float64 // max angle between consecutive velocity vectors (degrees)
	MaxAcc         float64 // max velocity change between consecutive steps (mm/step)
	AddParticles   bool    // allow tracks to start mid-sequence
}

// Direction selects the tracking pass(es) to run.
type Direction int

const (
	Forward Direction = iota
	Backward
	Both
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Both:
		return "both"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// TrackStats summarises one tracking run.
type TrackStats struct {
	TracksStarted int
	TracksEnded   int
	LinksMade     int
	GapLinks      int
	Ambiguities   int
}

// FrameSet is the frame-indexed store of all 3D points in a tracking
// run. Point order within a frame is the result-file record order, so
// indices stored in links are stable across load/save.
type FrameSet struct {
	First, Last, Step int
	frames            map[int][]TrackedPoint
}

// NewFrameSet creates an empty frame store for [first, last] stepping
// by step (step must be positive).
func NewFrameSet(first, last, step int) *FrameSet {
	if step <= 0 {
		step = 1
	}
	return &FrameSet{First: first, Last: last, Step: step, frames: make(map[int][]TrackedPoint)}
}

// SetFrame installs the points of one frame with all links cleared.
func (fs *FrameSet) SetFrame(frame int, pts []Point3D) {
	tracked := make([]TrackedPoint, len(pts))
	for i, p := range pts {
		tracked[i] = TrackedPoint{
			Point3D: p,
			PrevOff: 0, PrevIdx: NoLink,
			NextOff: 0, NextIdx: NoLink,
		}
	}
	fs.frames[frame] = tracked
}

// SetTrackedFrame installs one frame's points with links preserved.
func (fs *FrameSet) SetTrackedFrame(frame int, pts []TrackedPoint) {
	fs.frames[frame] = pts
}

// Frame returns the mutable point slice of one frame (nil if empty).
func (fs *FrameSet) Frame(frame int) []TrackedPoint {
	return fs.frames[frame]
}

// FrameNumbers lists frame numbers in increasing order.
func (fs *FrameSet) FrameNumbers() []int {
	var out []int
	for f := fs.First; f <= fs.Last; f += fs.Step {
		out = append(out, f)
	}
	return out
}

func pos(p *TrackedPoint) calib.Vec3 { return calib.Vec3{X: p.X, Y: p.Y, Z: p.Z} }

// velocity returns the per-step velocity estimate implied by the given
// link, or false when the point has no usable history.
func (fs *FrameSet) prevVelocity(frame int, p *TrackedPoint) (calib.Vec3, bool) {
	if !p.HasPrev() {
		return calib.Vec3{}, false
	}
	prevFrame := frame - p.PrevOff*fs.Step
	prev := fs.frames[prevFrame]
	if p.PrevIdx >= len(prev) {
		return calib.Vec3{}, false
	}
	v := pos(p).Sub(pos(&prev[p.PrevIdx])).Scale(1 / float64(p.PrevOff))
	return v, true
}

func (fs *FrameSet) nextVelocity(frame int, p *TrackedPoint) (calib.Vec3, bool) {
	if !p.HasNext() {
		return calib.Vec3{}, false
	}
	nextFrame := frame + p.NextOff*fs.Step
	next := fs.frames[nextFrame]
	if p.NextIdx >= len(next) {
		return calib.Vec3{}, false
	}
	v := pos(&next[p.NextIdx]).Sub(pos(p)).Scale(1 / float64(p.NextOff))
	return v, true
}

// evalCandidate gates a candidate displacement and returns its cost.
// from/to are positions in forward time order, off the link span in
// steps (1 normal, 2 gap bridge). vel is the reference velocity of the
// track, valid when hasVel. Gap attempts run with doubled bounds.
func (par *TrackParams) evalCandidate(from, to calib.Vec3, off int, vel calib.Vec3, hasVel bool) (cost float64, ok bool) {
	relax := 1.0
	if off > 1 {
		relax = 2.0
	}
	dv := to.Sub(from).Scale(1 / float64(off))

	if dv.X < par.DVxMin*relax || dv.X > par.DVxMax*relax ||
		dv.Y < par.DVyMin*relax || dv.Y > par.DVyMax*relax ||
		dv.Z < par.DVzMin*relax || dv.Z > par.DVzMax*relax {
		return 0, false
	}

	if !hasVel || vel.Norm() < 1e-12 {
		// No history: nearest-displacement cost.
		return dv.Norm(), true
	}

	acc := dv.Sub(vel).Norm()
	if acc > par.MaxAcc*relax {
		return 0, false
	}
	angle := 0.0
	if dv.Norm() > 1e-12 {
		cosA := vel.Normalize().Dot(dv.Normalize())
		angle = math.Acos(math.Max(-1, math.Min(1, cosA))) * 180 / math.Pi
	}
	if angle > par.MaxAngle {
		return 0, false
	}
	// Smaller deviation from straight constant-speed motion wins.
	return angle/math.Max(par.MaxAngle, 1e-12) + acc/math.Max(par.MaxAcc, 1e-12), true
}

// Track runs the requested linking pass(es) over the frame set.
// Cancellation is checked at frame granularity.
func Track(ctx context.Context, par *TrackParams, fs *FrameSet, dir Direction) (*TrackStats, error) {
	stats := &TrackStats{}
	if dir == Forward || dir == Both {
		if err := fs.linkPass(ctx, par, stats, false); err != nil {
			return stats, err
		}
	}
	if dir == Backward || dir == Both {
		if err := fs.linkPass(ctx, par, stats, true); err != nil {
			return stats, err
		}
	}
	fs.countTrackEnds(par, stats)
	return stats, nil
}

// linkPass links frame t to t+1 (or the mirror traversal when backward)
// for every point without a link in the traversal direction, bridging a
// one-frame gap with relaxed gates when the adjacent frame yields no
// candidate. Links are recorded bidirectionally and a linked candidate
// is immediately removed from consideration by later points in the same
// pass, so tracks never merge.
func (fs *FrameSet) linkPass(ctx context.Context, par *TrackParams, stats *TrackStats, backward bool) error {
	frames := fs.FrameNumbers()
	if backward {
		for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
			frames[i], frames[j] = frames[j], frames[i]
		}
	}

	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := fs.frames[f]
		for i := range cur {
			p := &cur[i]

			var vel calib.Vec3
			var hasVel bool
			if backward {
				if p.HasPrev() {
					continue
				}
				vel, hasVel = fs.nextVelocity(f, p)
			} else {
				if p.HasNext() {
					continue
				}
				vel, hasVel = fs.prevVelocity(f, p)
			}

			for off := 1; off <= 2; off++ {
				sign := 1
				if backward {
					sign = -1
				}
				tf := f + sign*off*fs.Step
				if tf < fs.First || tf > fs.Last {
					break
				}
				cand := fs.frames[tf]

				bestIdx := -1
				bestCost := math.Inf(1)
				bestDist := math.Inf(1)
				tie := false
				for j := range cand {
					q := &cand[j]
					var cost float64
					var ok bool
					if backward {
						if q.HasNext() {
							continue
						}
						cost, ok = par.evalCandidate(pos(q), pos(p), off, vel, hasVel)
					} else {
						if q.HasPrev() {
							continue
						}
						cost, ok = par.evalCandidate(pos(p), pos(q), off, vel, hasVel)
					}
					if !ok {
						continue
					}
					dist := pos(q).Sub(pos(p)).Norm()
					switch {
					case cost < bestCost:
						bestIdx, bestCost, bestDist, tie = j, cost, dist, false
					case cost == bestCost && dist < bestDist:
						bestIdx, bestDist, tie = j, dist, true
					case cost == bestCost && dist == bestDist:
						tie = true // keep the smaller index
					}
				}
				if bestIdx < 0 {
					continue
				}
				if tie {
					stats.Ambiguities++
					monitoring.Logf("tracking: cost tie at frame %d point %d resolved by deterministic order", f, i)
				}

				q := &fs.frames[tf][bestIdx]
				if backward {
					p.PrevOff, p.PrevIdx = off, bestIdx
					q.NextOff, q.NextIdx = off, i
				} else {
					p.NextOff, p.NextIdx = off, bestIdx
					q.PrevOff, q.PrevIdx = off, i
				}
				stats.LinksMade++
				if off > 1 {
					stats.GapLinks++
				}
				break
			}
		}
	}
	return nil
}

// countTrackEnds fills the start/end statistics. A track start is a
// point with a successor but no predecessor; with AddParticles disabled
// only starts in the first frame are counted (mid-sequence heads are
// left out of the track census).
func (fs *FrameSet) countTrackEnds(par *TrackParams, stats *TrackStats) {
	for f := fs.First; f <= fs.Last; f += fs.Step {
		for i := range fs.frames[f] {
			p := &fs.frames[f][i]
			if !p.HasPrev() && p.HasNext() {
				if par.AddParticles || f == fs.First {
					stats.TracksStarted++
				}
			}
			if p.HasPrev() && !p.HasNext() {
				stats.TracksEnded++
			}
		}
	}
}

// TrackRef addresses one point in a FrameSet.
type TrackRef struct {
	Frame, Idx int
}

// Tracks extracts whole trajectories by walking successor links from
// every track head. Singleton points (no links at all) are skipped.
func (fs *FrameSet) Tracks() [][]TrackRef {
	var tracks [][]TrackRef
	for f := fs.First; f <= fs.Last; f += fs.Step {
		for i := range fs.frames[f] {
			p := &fs.frames[f][i]
			if p.HasPrev() || !p.HasNext() {
				continue
			}
			var track []TrackRef
			frame, idx := f, i
			for {
				track = append(track, TrackRef{Frame: frame, Idx: idx})
				q := &fs.frames[frame][idx]
				if !q.HasNext() {
					break
				}
				frame, idx = frame+q.NextOff*fs.Step, q.NextIdx
			}
			tracks = append(tracks, track)
		}
	}
	return tracks
}
