package analyzer

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"

	"media-catalog/internal/database"
)

const (
	kmeansMaxIter  = 100
	kmeansEpsilon  = 0.2
	kmeansAttempts = 3
)

// Brightness returns the mean luma of img scaled to 0..1, rounded to three
// decimals. Luma uses the BT.601 weights.
func Brightness(img image.Image) float64 {
	nrgba := imaging.Clone(img)
	pix := nrgba.Pix
	n := len(pix) / 4
	if n == 0 {
		return 0.5
	}

	var sum float64
	for i := 0; i < len(pix); i += 4 {
		sum += 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
	}
	return math.Round(sum/float64(n)/255*1000) / 1000
}

// DominantColors clusters the pixels of img into k colours with k-means and
// returns the cluster centres, largest cluster first. Seeding is fixed, so
// the same image always yields the same colours.
func DominantColors(img image.Image, k int) []database.RGB {
	nrgba := imaging.Clone(img)
	pix := nrgba.Pix
	points := make([][3]float64, 0, len(pix)/4)
	for i := 0; i < len(pix); i += 4 {
		points = append(points, [3]float64{float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])})
	}
	if len(points) == 0 || k <= 0 {
		return nil
	}
	k = min(k, len(points))

	rng := rand.New(rand.NewPCG(1, 2))
	var best []cluster
	bestCost := math.Inf(1)
	for range kmeansAttempts {
		clusters, cost := kmeans(points, k, rng)
		if cost < bestCost {
			best, bestCost = clusters, cost
		}
	}

	// Stable order: most populated cluster first.
	for i := 1; i < len(best); i++ {
		for j := i; j > 0 && best[j].size > best[j-1].size; j-- {
			best[j], best[j-1] = best[j-1], best[j]
		}
	}

	colors := make([]database.RGB, len(best))
	for i, c := range best {
		colors[i] = database.RGB{toByte(c.center[0]), toByte(c.center[1]), toByte(c.center[2])}
	}
	return colors
}

type cluster struct {
	center [3]float64
	size   int
}

// kmeans runs Lloyd's algorithm from k-means++ seeds and returns the
// clusters and their total squared distance.
func kmeans(points [][3]float64, k int, rng *rand.Rand) ([]cluster, float64) {
	centers := seedCenters(points, k, rng)
	labels := make([]int, len(points))

	var cost float64
	for range kmeansMaxIter {
		cost = 0
		for i, p := range points {
			bestIdx, bestDist := 0, math.Inf(1)
			for c := range centers {
				if d := sqDist(p, centers[c]); d < bestDist {
					bestIdx, bestDist = c, d
				}
			}
			labels[i] = bestIdx
			cost += bestDist
		}

		sums := make([][3]float64, k)
		counts := make([]int, k)
		for i, p := range points {
			l := labels[i]
			sums[l][0] += p[0]
			sums[l][1] += p[1]
			sums[l][2] += p[2]
			counts[l]++
		}

		var shift float64
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			next := [3]float64{sums[c][0] / float64(counts[c]), sums[c][1] / float64(counts[c]), sums[c][2] / float64(counts[c])}
			shift = math.Max(shift, math.Sqrt(sqDist(next, centers[c])))
			centers[c] = next
		}
		if shift < kmeansEpsilon {
			break
		}
	}

	clusters := make([]cluster, k)
	for c := range centers {
		clusters[c].center = centers[c]
	}
	for _, l := range labels {
		clusters[l].size++
	}
	return clusters, cost
}

func seedCenters(points [][3]float64, k int, rng *rand.Rand) [][3]float64 {
	centers := make([][3]float64, 0, k)
	centers = append(centers, points[rng.IntN(len(points))])

	dists := make([]float64, len(points))
	for len(centers) < k {
		var total float64
		for i, p := range points {
			d := math.Inf(1)
			for _, c := range centers {
				d = math.Min(d, sqDist(p, c))
			}
			dists[i] = d
			total += d
		}
		if total == 0 {
			// Fewer distinct colours than k.
			centers = append(centers, centers[len(centers)-1])
			continue
		}
		target := rng.Float64() * total
		idx := len(points) - 1
		for i, d := range dists {
			target -= d
			if target <= 0 {
				idx = i
				break
			}
		}
		centers = append(centers, points[idx])
	}
	return centers
}

func sqDist(a, b [3]float64) float64 {
	dr, dg, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dr*dr + dg*dg + db*db
}

func toByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, v)))
}
