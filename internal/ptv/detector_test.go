package ptv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobImage(w, h int, blobs ...[3]int) *Image {
	img := NewImage(w, h)
	for _, b := range blobs {
		cx, cy, v := b[0], b[1], b[2]
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				img.Set(cx+dx, cy+dy, uint8(v))
			}
		}
	}
	return img
}

func TestDetectTargets(t *testing.T) {
	t.Parallel()

	par := DetectParams{Threshold: 50, MinPixels: 2, MaxPixels: 100, MinSumGrey: 100}

	t.Run("uniform blob centroid is exact", func(t *testing.T) {
		t.Parallel()
		img := blobImage(32, 32, [3]int{10, 12, 200})

		targets := DetectTargets(img, par)
		require.Len(t, targets, 1)
		assert.InDelta(t, 10, targets[0].X, 1e-12)
		assert.InDelta(t, 12, targets[0].Y, 1e-12)
		assert.Equal(t, 9, targets[0].PixelCount)
		assert.Equal(t, 9*200, targets[0].SumGrey)
		assert.Equal(t, 3, targets[0].NX)
		assert.Equal(t, 3, targets[0].NY)
		assert.Equal(t, 0, targets[0].Pnr)
		assert.Equal(t, NoTarget, targets[0].PointID)
	})

	t.Run("weighted centroid follows intensity", func(t *testing.T) {
		t.Parallel()
		img := NewImage(16, 16)
		img.Set(4, 8, 100)
		img.Set(5, 8, 200)

		targets := DetectTargets(img, DetectParams{Threshold: 50, MinPixels: 1, MaxPixels: 10, MinSumGrey: 0})
		require.Len(t, targets, 1)
		assert.InDelta(t, (4.0*100+5.0*200)/300.0, targets[0].X, 1e-12)
		assert.InDelta(t, 8, targets[0].Y, 1e-12)
	})

	t.Run("raster order with sequential ids", func(t *testing.T) {
		t.Parallel()
		img := blobImage(64, 64, [3]int{40, 10, 200}, [3]int{10, 10, 200}, [3]int{20, 30, 200})

		targets := DetectTargets(img, par)
		require.Len(t, targets, 3)
		assert.Equal(t, []float64{10, 40, 20}, []float64{targets[0].X, targets[1].X, targets[2].X})
		for i, tg := range targets {
			assert.Equal(t, i, tg.Pnr)
		}
	})

	t.Run("size and intensity filters", func(t *testing.T) {
		t.Parallel()
		img := NewImage(32, 32)
		img.Set(3, 3, 255) // single pixel, below MinPixels
		for x := 10; x < 25; x++ { // 15 px wide line, above MaxPixels
			img.Set(x, 10, 200)
		}

		targets := DetectTargets(img, DetectParams{Threshold: 50, MinPixels: 2, MaxPixels: 10, MinSumGrey: 0})
		assert.Empty(t, targets)

		// Dim blob below the integrated intensity floor.
		img2 := blobImage(32, 32, [3]int{10, 10, 60})
		targets = DetectTargets(img2, DetectParams{Threshold: 50, MinPixels: 2, MaxPixels: 100, MinSumGrey: 1000})
		assert.Empty(t, targets)
	})

	t.Run("discontinuity splits adjacent plateaus", func(t *testing.T) {
		t.Parallel()
		img := NewImage(32, 32)
		for x := 2; x <= 4; x++ {
			img.Set(x, 5, 100)
		}
		for x := 5; x <= 7; x++ {
			img.Set(x, 5, 220)
		}

		joined := DetectTargets(img, DetectParams{Threshold: 50, MinPixels: 1, MaxPixels: 100, MinSumGrey: 0})
		require.Len(t, joined, 1)

		split := DetectTargets(img, DetectParams{Threshold: 50, MinPixels: 1, MaxPixels: 100, MinSumGrey: 0, Discontinuity: 50})
		require.Len(t, split, 2)
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		t.Parallel()
		img := blobImage(64, 64, [3]int{12, 40, 180}, [3]int{50, 7, 210}, [3]int{33, 33, 140})

		a := DetectTargets(img, par)
		b := DetectTargets(img, par)
		assert.Equal(t, a, b)
	})

	t.Run("nil and empty images yield nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, DetectTargets(nil, par))
		assert.Empty(t, DetectTargets(&Image{}, par))
	})

	t.Run("blob touching image edge is handled", func(t *testing.T) {
		t.Parallel()
		img := NewImage(16, 16)
		img.Set(0, 0, 200)
		img.Set(1, 0, 200)
		img.Set(0, 1, 200)

		targets := DetectTargets(img, DetectParams{Threshold: 50, MinPixels: 1, MaxPixels: 100, MinSumGrey: 0})
		require.Len(t, targets, 1)
		assert.Equal(t, 3, targets[0].PixelCount)
	})
}
