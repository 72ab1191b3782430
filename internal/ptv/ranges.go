package ptv

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameRange is an inclusive frame interval with a step size.
type FrameRange struct {
	First, Last, Step int
}

// Validate checks the range is non-empty and the step positive.
func (r FrameRange) Validate() error {
	if r.Step <= 0 {
		return fmt.Errorf("%w: frame step must be positive, got %d", ErrConfiguration, r.Step)
	}
	if r.Last < r.First {
		return fmt.Errorf("%w: last frame %d before first frame %d", ErrConfiguration, r.Last, r.First)
	}
	return nil
}

// Count returns the number of frames in the range.
func (r FrameRange) Count() int {
	if r.Last < r.First || r.Step <= 0 {
		return 0
	}
	return (r.Last-r.First)/r.Step + 1
}

// ParseFrameRange parses a "first:last" or "first:last:step" string.
func ParseFrameRange(s string) (FrameRange, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return FrameRange{}, fmt.Errorf("invalid frame range %q: expected first:last[:step]", s)
	}

	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return FrameRange{}, fmt.Errorf("invalid first frame %q: %w", parts[0], err)
	}
	last, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return FrameRange{}, fmt.Errorf("invalid last frame %q: %w", parts[1], err)
	}
	step := 1
	if len(parts) == 3 {
		step, err = strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return FrameRange{}, fmt.Errorf("invalid step %q: %w", parts[2], err)
		}
	}

	r := FrameRange{First: first, Last: last, Step: step}
	if err := r.Validate(); err != nil {
		return FrameRange{}, err
	}
	return r, nil
}

// ChunkRange partitions [first, last] into n in-order, non-overlapping
// sub-ranges covering every frame. When the frame count does not divide
// evenly the leading chunks carry one extra frame. Intended for the
// external parallel driver, which runs the sequence once per sub-range.
func ChunkRange(first, last, n int) ([]FrameRange, error) {
	if last < first {
		return nil, fmt.Errorf("%w: last frame %d before first frame %d", ErrConfiguration, last, first)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: chunk count must be positive, got %d", ErrConfiguration, n)
	}

	total := last - first + 1
	if n > total {
		n = total
	}
	base := total / n
	extra := total % n

	chunks := make([]FrameRange, 0, n)
	start := first
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks = append(chunks, FrameRange{First: start, Last: start + size - 1, Step: 1})
		start += size
	}
	return chunks, nil
}
