package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
)

func TestPGMRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "frame.1000")

	img := ptv.NewImage(5, 3)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 10)
	}
	require.NoError(t, writePGM(path, img))

	got, err := readPGM(path)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestPGMHeaderComments(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "c.pgm")
	data := append([]byte("P5\n# created by camera 0\n2 2\n# maxval next\n255\n"), 1, 2, 3, 4)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	img, err := readPGM(path)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, []uint8{1, 2, 3, 4}, img.Pix)
}

func TestPGMErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for name, data := range map[string][]byte{
		"wrong magic": []byte("P6\n2 2\n255\n1234"),
		"bad maxval":  []byte("P5\n2 2\n65535\n"),
		"truncated":   append([]byte("P5\n4 4\n255\n"), 1, 2, 3),
		"no header":   []byte("P5"),
		"zero size":   []byte("P5\n0 2\n255\n"),
	} {
		path := filepath.Join(dir, "bad.pgm")
		require.NoError(t, os.WriteFile(path, data, 0o644))
		_, err := readPGM(path)
		assert.Error(t, err, "case %q", name)
	}
}

func TestSplitBasesAndDirection(t *testing.T) {
	t.Parallel()
	assert.Nil(t, splitBases(""))
	assert.Equal(t, []string{"img/cam0", "img/cam1"}, splitBases("img/cam0, img/cam1"))

	dir, err := parseDirection("backward")
	require.NoError(t, err)
	assert.Equal(t, ptv.Backward, dir)
	_, err = parseDirection("sideways")
	assert.Error(t, err)
}
