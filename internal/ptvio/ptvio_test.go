package ptvio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

func TestRTISFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := RTISPath(dir, 42)

	points := []ptv.Point3D{
		{ID: 1, X: 1.234, Y: -5.678, Z: 90.123, Cams: [4]int{0, 1, -1, -1}},
		{ID: 2, X: -0.5, Y: 0, Z: 1234.5678, Cams: [4]int{3, -1, 7, 12}},
	}
	require.NoError(t, WriteRTIS(path, points))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "2\n" +
		"   1     1.234    -5.678    90.123    0    1   -1   -1\n" +
		"   2    -0.500     0.000  1234.568    3   -1    7   12\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("rt_is bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestRTISRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := RTISPath(dir, 7)

	points := []ptv.Point3D{
		{ID: 1, X: 10.125, Y: -3.25, Z: 0.5, Cams: [4]int{5, 2, -1, -1}},
		{ID: 2, X: 0, Y: 0, Z: 0, Cams: [4]int{-1, 0, 1, -1}},
	}
	require.NoError(t, WriteRTIS(path, points))

	got, err := ReadRTIS(path)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestRTISEmptyFrame(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := RTISPath(dir, 1)

	require.NoError(t, WriteRTIS(path, nil))
	got, err := ReadRTIS(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRTISMissingFile(t *testing.T) {
	t.Parallel()
	_, err := ReadRTIS(filepath.Join(t.TempDir(), "rt_is.999"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRTISMalformed(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for name, content := range map[string]string{
		"empty":        "",
		"bad count":    "x\n",
		"short":        "2\n   1     1.000     1.000     1.000    0    1   -1   -1\n",
		"wrong fields": "1\n   1 2 3\n",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := ReadRTIS(path)
		assert.Error(t, err, "case %q", name)
		assert.True(t, errors.Is(err, ptv.ErrIO), "case %q", name)
	}
}

func TestPTVISFormatAndRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := PTVISPath(dir, 10003)

	points := []ptv.TrackedPoint{
		{
			Point3D: ptv.Point3D{ID: 1, X: 0, Y: 0, Z: 0, Cams: [4]int{-1, -1, -1, -1}},
			PrevOff: 0, PrevIdx: ptv.NoLink,
			NextOff: 2, NextIdx: 4,
		},
		{
			Point3D: ptv.Point3D{ID: 2, X: 1.5, Y: -2.5, Z: 3.5, Cams: [4]int{-1, -1, -1, -1}},
			PrevOff: 1, PrevIdx: 0,
			NextOff: 0, NextIdx: ptv.NoLink,
		},
	}
	require.NoError(t, WritePTVIS(path, points))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "2\n" +
		"   1    0   -1    2    4     0.000     0.000     0.000\n" +
		"   2   -1    0    0   -1     1.500    -2.500     3.500\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("ptv_is bytes mismatch (-want +got):\n%s", diff)
	}

	got, err := ReadPTVIS(path)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestTargetsFormatAndRoundTrip(t *testing.T) {
	t.Parallel()
	path := TargetsPath(filepath.Join(t.TempDir(), "cam1"), 55)

	targets := []ptv.Target{
		{Pnr: 0, X: 12.3456, Y: 78.9012, PixelCount: 9, NX: 3, NY: 3, SumGrey: 1800, PointID: 1},
		{Pnr: 1, X: 100.5, Y: 2.25, PixelCount: 4, NX: 2, NY: 2, SumGrey: 800, PointID: -1},
	}
	require.NoError(t, WriteTargets(path, targets))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "2\n" +
		"   0   12.3456   78.9012     9     3     3  1800     1\n" +
		"   1  100.5000    2.2500     4     2     2   800    -1\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("targets bytes mismatch (-want +got):\n%s", diff)
	}

	got, err := ReadTargets(path)
	require.NoError(t, err)
	assert.Equal(t, targets, got)
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, WriteRTIS(RTISPath(dir, 1), []ptv.Point3D{{ID: 1, Cams: [4]int{-1, -1, -1, -1}}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rt_is.1", entries[0].Name())
}

func TestPaths(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("res", "rt_is.7"), RTISPath("res", 7))
	assert.Equal(t, filepath.Join("res", "ptv_is.7"), PTVISPath("res", 7))
	assert.Equal(t, "img/cam2.1003_targets", TargetsPath("img/cam2", 1003))
}
