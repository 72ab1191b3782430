package ptv

import "sort"

// DetectParams controls blob extraction from a preprocessed image.
type DetectParams struct {
	Threshold     uint8 // minimum intensity for a pixel to join a blob
	MinPixels     int   // minimum connected component area
	MaxPixels     int   // maximum connected component area
	MinSumGrey    int   // minimum integrated intensity
	Discontinuity int   // max intensity step allowed between neighbouring blob pixels
}

// DetectTargets extracts particle blobs from one camera's preprocessed
// image: thresholding plus 4-connected component growth, with the
// discontinuity limit stopping growth across sharp intensity steps.
//
// A component is accepted when its pixel count lies in
// [MinPixels, MaxPixels] and its integrated intensity is at least
// MinSumGrey. Sub-pixel position is the intensity-weighted centroid.
//
// Output is sorted by increasing centroid row then column and target
// ids (Pnr) are assigned after sorting, so identical input always
// yields identical targets in identical order. Pure function: the image
// is not modified.
func DetectTargets(img *Image, par DetectParams) []Target {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return nil
	}

	visited := make([]bool, len(img.Pix))
	var targets []Target

	// Reused growth stack to avoid per-blob allocation.
	stack := make([]int, 0, 256)

	for start := range img.Pix {
		if visited[start] || img.Pix[start] < par.Threshold || img.Pix[start] == 0 {
			continue
		}

		stack = stack[:0]
		stack = append(stack, start)
		visited[start] = true

		var (
			sumGrey        int
			count          int
			wx, wy         float64
			minX, maxX     int
			minY, maxY     int
		)
		minX, minY = img.Width, img.Height
		maxX, maxY = -1, -1

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			x := idx % img.Width
			y := idx / img.Width
			v := int(img.Pix[idx])

			sumGrey += v
			count++
			wx += float64(x) * float64(v)
			wy += float64(y) * float64(v)
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			for _, n := range [4]int{idx - 1, idx + 1, idx - img.Width, idx + img.Width} {
				if n < 0 || n >= len(img.Pix) || visited[n] {
					continue
				}
				// Horizontal neighbours must stay on the same row.
				if (n == idx-1 || n == idx+1) && n/img.Width != y {
					continue
				}
				nv := int(img.Pix[n])
				if nv < int(par.Threshold) {
					continue
				}
				if par.Discontinuity > 0 && abs(nv-v) > par.Discontinuity {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}

		if count < par.MinPixels || (par.MaxPixels > 0 && count > par.MaxPixels) {
			continue
		}
		if sumGrey < par.MinSumGrey {
			continue
		}

		targets = append(targets, Target{
			X:          wx / float64(sumGrey),
			Y:          wy / float64(sumGrey),
			PixelCount: count,
			NX:         maxX - minX + 1,
			NY:         maxY - minY + 1,
			SumGrey:    sumGrey,
			PointID:    NoTarget,
		})
	}

	// Raster order over centroids, then stable ids.
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Y != targets[j].Y {
			return targets[i].Y < targets[j].Y
		}
		return targets[i].X < targets[j].X
	})
	for i := range targets {
		targets[i].Pnr = i
	}
	return targets
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
