// Package ptvio reads and writes the on-disk result formats shared
// with the rest of the ecosystem: per-camera detection target files,
// per-frame correspondence files (rt_is) and per-frame linked-result
// files (ptv_is).
//
// These formats are a frozen external contract: field widths, the
// fixed four camera index slots and the 3-decimal coordinate formatting
// must be reproduced byte for byte. Writers go through a temp file and
// rename so a concurrently-started reader never sees a partial file.
package ptvio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

// RTISPath returns the correspondence file path for a frame.
func RTISPath(dir string, frame int) string {
	return filepath.Join(dir, fmt.Sprintf("rt_is.%d", frame))
}

// PTVISPath returns the linked-result file path for a frame.
func PTVISPath(dir string, frame int) string {
	return filepath.Join(dir, fmt.Sprintf("ptv_is.%d", frame))
}

// TargetsPath returns the per-camera target file path for a frame.
// base carries the camera identity (for example "img/cam1").
func TargetsPath(base string, frame int) string {
	return fmt.Sprintf("%s.%d_targets", base, frame)
}

// writeAtomic writes via a temp file in the same directory and renames
// into place on success, so readers never observe a partial file.
func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ptv.ErrIO, path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ptv.ErrIO, path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: flush %s: %v", ptv.ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ptv.ErrIO, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", ptv.ErrIO, path, err)
	}
	return nil
}
