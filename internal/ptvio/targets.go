package ptvio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

// WriteTargets writes one camera's detection target file for a frame,
// in the exact order and with the exact ids the correspondence file
// references. Unmatched targets carry the sentinel point id.
func WriteTargets(path string, targets []ptv.Target) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		if _, err := fmt.Fprintf(w, "%d\n", len(targets)); err != nil {
			return err
		}
		for _, tg := range targets {
			_, err := fmt.Fprintf(w, "%4d %9.4f %9.4f %5d %5d %5d %5d %5d\n",
				tg.Pnr, tg.X, tg.Y, tg.PixelCount, tg.NX, tg.NY, tg.SumGrey, tg.PointID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadTargets reads one camera's detection target file.
func ReadTargets(path string) ([]ptv.Target, error) {
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

	targets := make([]ptv.Target, 0, n)
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: %s: expected %d records, got %d", ptv.ErrIO, path, n, i)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != 8 {
			return nil, fmt.Errorf("%w: %s: record %d has %d fields, want 8", ptv.ErrIO, path, i+1, len(fields))
		}
		var tg ptv.Target
		if tg.Pnr, err = strconv.Atoi(fields[0]); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad pnr: %v", ptv.ErrIO, path, i+1, err)
		}
		if tg.X, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad x: %v", ptv.ErrIO, path, i+1, err)
		}
		if tg.Y, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: bad y: %v", ptv.ErrIO, path, i+1, err)
		}
		ints := []*int{&tg.PixelCount, &tg.NX, &tg.NY, &tg.SumGrey, &tg.PointID}
		for k, dst := range ints {
			if *dst, err = strconv.Atoi(fields[3+k]); err != nil {
				return nil, fmt.Errorf("%w: %s: record %d: bad field %d: %v", ptv.ErrIO, path, i+1, 3+k, err)
			}
		}
		targets = append(targets, tg)
	}
	return targets, nil
}
