package ptvio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

// WritePTVIS writes one frame's linked-result file. Each record carries
// the point's per-frame id, the predecessor and successor links as
// (frame offset, index) pairs, then the 3D position. Offsets are signed
// step counts (0 when unlinked, magnitude 2 across a bridged gap);
// indices are 0-based positions in the linked frame, -1 when unlinked.
func WritePTVIS(path string, points []ptv.TrackedPoint) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		if _, err := fmt.Fprintf(w, "%d\n", len(points)); err != nil {
			return err
		}
		for _, p := range points {
			prevOff, nextOff := 0, 0
			if p.HasPrev() {
				prevOff = -p.PrevOff
			}
			if p.HasNext() {
				nextOff = p.NextOff
			}
			_, err := fmt.Fprintf(w, "%4d %4d %4d %4d %4d %9.3f %9.3f %9.3f\n",
				p.ID, prevOff, p.PrevIdx, nextOff, p.NextIdx, p.X, p.Y, p.Z)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadPTVIS reads one frame's linked-result file.
func ReadPTVIS(path string) ([]ptv.TrackedPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, fmt.Errorf("%w: %s: missing count line", ptv.ErrIO, path)
	}
	n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s: bad count line %q", ptv.ErrIO, path, sc.Text())
	}

	points := make([]ptv.TrackedPoint, 0, n)
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: %s: expected %d records, got %d", ptv.ErrIO, path, n, i)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 8 {
			return nil, fmt.Errorf("%w: %s: record %d has %d fields, want 8", ptv.ErrIO, path, i+1, len(fields))
		}
		vals := make([]int, 5)
		for k := 0; k < 5; k++ {
			if vals[k], err = strconv.Atoi(fields[k]); err != nil {
				return nil, fmt.Errorf("%w: %s: record %d: bad link field: %v", ptv.ErrIO, path, i+1, err)
			}
		}
		var p ptv.TrackedPoint
		p.ID = vals[0]
		p.PrevIdx = vals[2]
		p.NextIdx = vals[4]
		if p.HasPrev() {
			p.PrevOff = -vals[1]
		}
		if p.HasNext() {
			p.NextOff = vals[3]
		}
		if p.X, err = strconv.ParseFloat(fields[5], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad x: %v", ptv.ErrIO, path, i+1, err)
		}
		if p.Y, err = strconv.ParseFloat(fields[6], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad y: %v", ptv.ErrIO, path, i+1, err)
		}
		if p.Z, err = strconv.ParseFloat(fields[7], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad z: %v", ptv.ErrIO, path, i+1, err)
		}
		for c := range p.Cams {
			p.Cams[c] = ptv.NoTarget
		}
		points = append(points, p)
	}
	return points, nil
}
