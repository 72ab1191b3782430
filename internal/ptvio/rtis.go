package ptvio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

// WriteRTIS writes one frame's correspondence file: a count line, then
// one record per 3D point. Records always carry four camera index
// fields; with fewer cameras configured the extra slots are already the
// sentinel.
func WriteRTIS(path string, points []ptv.Point3D) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		if _, err := fmt.Fprintf(w, "%d\n", len(points)); err != nil {
			return err
		}
		for _, p := range points {
			_, err := fmt.Fprintf(w, "%4d %9.3f %9.3f %9.3f %4d %4d %4d %4d\n",
				p.ID, p.X, p.Y, p.Z, p.Cams[0], p.Cams[1], p.Cams[2], p.Cams[3])
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadRTIS reads one frame's correspondence file. A missing file is
// returned as the underlying fs error so callers can distinguish it
// from a malformed one.
func ReadRTIS(path string) ([]ptv.Point3D, error) {
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

	points := make([]ptv.Point3D, 0, n)
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: %s: expected %d records, got %d", ptv.ErrIO, path, n, i)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 8 {
			return nil, fmt.Errorf("%w: %s: record %d has %d fields, want 8", ptv.ErrIO, path, i+1, len(fields))
		}
		var p ptv.Point3D
		if p.ID, err = strconv.Atoi(fields[0]); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad id: %v", ptv.ErrIO, path, i+1, err)
		}
		if p.X, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad x: %v", ptv.ErrIO, path, i+1, err)
		}
		if p.Y, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad y: %v", ptv.ErrIO, path, i+1, err)
		}
		if p.Z, err = strconv.ParseFloat(fields[3], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad z: %v", ptv.ErrIO, path, i+1, err)
		}
		for c := 0; c < ptv.MaxCameras; c++ {
			if p.Cams[c], err = strconv.Atoi(fields[4+c]); err != nil {
				return nil, fmt.Errorf("%w: %s: record %d: bad camera index: %v", ptv.ErrIO, path, i+1, err)
			}
		}
		points = append(points, p)
	}
	return points, nil
}
