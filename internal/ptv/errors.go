package ptv

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is; context (frame number,
// stage) is carried by the wrapping message.
var (
	// ErrConfiguration marks fatal setup problems: camera count
	// mismatch, missing required parameter, missing expected file for
	// a frame in range.
	ErrConfiguration = errors.New("configuration error")

	// ErrImageLoad marks a failure of the image source collaborator.
	ErrImageLoad = errors.New("image load error")

	// ErrReconstruction marks a locally-recovered triangulation
	// failure: ill-conditioned rays or residual/volume rejection.
	ErrReconstruction = errors.New("reconstruction failure")

	// ErrIO marks a result file read/write failure.
	ErrIO = errors.New("i/o error")
)

// Stage identifies where in the per-frame pipeline an error occurred.
type Stage string

const (
	StageLoadImages  Stage = "load-images"
	StageDetect      Stage = "detect"
	StageCorrespond  Stage = "correspond"
	StageTriangulate Stage = "triangulate"
	StagePersist     Stage = "persist"
)

// FrameError wraps err with the frame number and pipeline stage where
// it occurred.
func FrameError(frame int, stage Stage, err error) error {
	return fmt.Errorf("frame %d, stage %s: %w", frame, stage, err)
}
