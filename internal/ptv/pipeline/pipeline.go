// Package pipeline drives the reconstruction sequence over a frame
// range (detect, correspond, persist per frame) and the subsequent
// trajectory linking stage, both working against a shared result
// directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/fluidmetrics/ptv3d/internal/monitoring"
	"github.com/fluidmetrics/ptv3d/internal/ptv"
	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
	"github.com/fluidmetrics/ptv3d/internal/ptvio"
)

// ImageSource supplies preprocessed intensity images to the sequence
// driver. cam is the 0-based camera index, frame the frame number.
type ImageSource interface {
	GetImage(cam, frame int) (*ptv.Image, error)
}

// RunParams collects everything a sequence or tracking run needs beyond
// the cameras themselves.
type RunParams struct {
	NumCams    int
	Range      ptv.FrameRange
	Detect     ptv.DetectParams
	Correspond ptv.CorrespondParams
	Track      ptv.TrackParams
	Volume     calib.Volume

	// Algorithm selects a registered detector/tracker pair. Empty
	// selects "default".
	Algorithm string

	// TargetBases holds one per-camera base path; frame target files
	// are written next to it as <base>.<frame>_targets.
	TargetBases []string

	// ResDir receives the per-frame rt_is and ptv_is files.
	ResDir string

	// SkipFailedFrames records a failed frame in the summary and keeps
	// going instead of aborting the run.
	SkipFailedFrames bool
}

func (par *RunParams) algorithm() (*ptv.AlgorithmDefinition, error) {
	name := par.Algorithm
	if name == "" {
		name = "default"
	}
	def, ok := ptv.DefaultRegistry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown algorithm %q", ptv.ErrConfiguration, name)
	}
	return def, nil
}

func (par *RunParams) validate(cams []*calib.Camera) error {
	if par.NumCams < 1 || par.NumCams > ptv.MaxCameras {
		return fmt.Errorf("%w: camera count %d outside 1..%d", ptv.ErrConfiguration, par.NumCams, ptv.MaxCameras)
	}
	if len(cams) != par.NumCams {
		return fmt.Errorf("%w: %d cameras supplied, %d configured", ptv.ErrConfiguration, len(cams), par.NumCams)
	}
	if len(par.TargetBases) != par.NumCams {
		return fmt.Errorf("%w: %d target bases for %d cameras", ptv.ErrConfiguration, len(par.TargetBases), par.NumCams)
	}
	if par.ResDir == "" {
		return fmt.Errorf("%w: result directory not set", ptv.ErrConfiguration)
	}
	return par.Range.Validate()
}

// FrameSummary records the outcome of one frame of the sequence run.
type FrameSummary struct {
	Frame        int
	TargetCounts []int
	Points       int
	Err          error // non-nil only for frames skipped under SkipFailedFrames
}

// RunSummary aggregates a whole sequence run.
type RunSummary struct {
	Frames       []FrameSummary
	TotalPoints  int
	FailedFrames int
}

// RunSequence processes every frame in the configured range: images are
// fetched from src, targets detected per camera, correspondences
// established and triangulated, and the per-camera target files plus the
// frame's rt_is file written to disk. Each frame's files are complete
// before the next frame starts.
//
// A frame failure aborts the run unless SkipFailedFrames is set, in
// which case the frame is recorded in the summary and produces no output
// files. Cancellation is honoured between frames.
func RunSequence(ctx context.Context, par *RunParams, cams []*calib.Camera, src ImageSource) (*RunSummary, error) {
	if err := par.validate(cams); err != nil {
		return nil, err
	}
	def, err := par.algorithm()
	if err != nil {
		return nil, err
	}
	if def.Detect == nil {
		return nil, fmt.Errorf("%w: algorithm %q has no detector", ptv.ErrConfiguration, def.Name)
	}

	summary := &RunSummary{}
	fail := func(f int, ferr error) error {
		if !par.SkipFailedFrames {
			return ferr
		}
		monitoring.Logf("pipeline: skipping frame %d: %v", f, ferr)
		summary.Frames = append(summary.Frames, FrameSummary{Frame: f, Err: ferr})
		summary.FailedFrames++
		return nil
	}

	for f := par.Range.First; f <= par.Range.Last; f += par.Range.Step {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		images := make([]*ptv.Image, par.NumCams)
		var loadErr error
		for c := 0; c < par.NumCams; c++ {
			img, err := src.GetImage(c, f)
			if err != nil {
				loadErr = ptv.FrameError(f, ptv.StageLoadImages,
					fmt.Errorf("%w: camera %d: %v", ptv.ErrImageLoad, c, err))
				break
			}
			images[c] = img
		}
		if loadErr != nil {
			if err := fail(f, loadErr); err != nil {
				return summary, err
			}
			continue
		}

		targets := make([][]ptv.Target, par.NumCams)
		counts := make([]int, par.NumCams)
		for c, img := range images {
			targets[c] = def.Detect(img, par.Detect)
			counts[c] = len(targets[c])
		}

		_, points, err := ptv.FindCorrespondences(targets, cams, par.Volume, par.Correspond)
		if err != nil {
			// Only configuration problems surface here; they would
			// recur on every frame, so abort regardless of policy.
			return summary, ptv.FrameError(f, ptv.StageCorrespond, err)
		}

		var persistErr error
		for c := range targets {
			path := ptvio.TargetsPath(par.TargetBases[c], f)
			if err := ptvio.WriteTargets(path, targets[c]); err != nil {
				persistErr = ptv.FrameError(f, ptv.StagePersist, err)
				break
			}
		}
		if persistErr == nil {
			if err := ptvio.WriteRTIS(ptvio.RTISPath(par.ResDir, f), points); err != nil {
				persistErr = ptv.FrameError(f, ptv.StagePersist, err)
			}
		}
		if persistErr != nil {
			if err := fail(f, persistErr); err != nil {
				return summary, err
			}
			continue
		}

		monitoring.Logf("pipeline: frame %d: targets %v, %d points", f, counts, len(points))
		summary.Frames = append(summary.Frames, FrameSummary{Frame: f, TargetCounts: counts, Points: len(points)})
		summary.TotalPoints += len(points)
	}
	return summary, nil
}

// RunTracking loads the rt_is files of the configured range from the
// result directory, runs the linking pass(es) and writes one ptv_is
// file per frame. Every frame in range must have an rt_is file; a
// missing one is a configuration error.
func RunTracking(ctx context.Context, par *RunParams, dir ptv.Direction) (*ptv.TrackStats, error) {
	if err := par.Range.Validate(); err != nil {
		return nil, err
	}
	if par.ResDir == "" {
		return nil, fmt.Errorf("%w: result directory not set", ptv.ErrConfiguration)
	}
	def, err := par.algorithm()
	if err != nil {
		return nil, err
	}
	if def.Track == nil {
		return nil, fmt.Errorf("%w: algorithm %q has no tracker", ptv.ErrConfiguration, def.Name)
	}

	frames := ptv.NewFrameSet(par.Range.First, par.Range.Last, par.Range.Step)
	for f := par.Range.First; f <= par.Range.Last; f += par.Range.Step {
		pts, err := ptvio.ReadRTIS(ptvio.RTISPath(par.ResDir, f))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: frame %d has no correspondence file: %v", ptv.ErrConfiguration, f, err)
			}
			return nil, ptv.FrameError(f, ptv.StagePersist, err)
		}
		frames.SetFrame(f, pts)
	}

	stats, err := def.Track(ctx, &par.Track, frames, dir)
	if err != nil {
		return stats, err
	}

	for f := par.Range.First; f <= par.Range.Last; f += par.Range.Step {
		if err := ptvio.WritePTVIS(ptvio.PTVISPath(par.ResDir, f), frames.Frame(f)); err != nil {
			return stats, ptv.FrameError(f, ptv.StagePersist, err)
		}
	}

	monitoring.Logf("pipeline: tracking %s: %d links (%d gap), %d started, %d ended, %d ambiguous",
		dir, stats.LinksMade, stats.GapLinks, stats.TracksStarted, stats.TracksEnded, stats.Ambiguities)
	return stats, nil
}
