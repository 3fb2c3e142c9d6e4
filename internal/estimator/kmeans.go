package estimator

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"fjacquet/finance-ml/internal/mlerror"
)

// KMeans is Lloyd's algorithm with k-means++ seeding.
type KMeans struct {
	K         int
	MaxIter   int
	Centroids [][]float64
}

// NewKMeans returns an untrained clusterer for k clusters.
func NewKMeans(k int) *KMeans {
	return &KMeans{K: k, MaxIter: 300}
}

func (m *KMeans) Name() string { return "kmeans" }

// Fit clusters X and returns the assignment of every row.
func (m *KMeans) Fit(X [][]float64) ([]int, error) {
	if len(X) < m.K {
		return nil, &mlerror.InsufficientDataError{
			Component: m.Name(), Unit: "points", Got: len(X), Want: m.K,
		}
	}
	if err := validateXY(X, len(X)); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(Seed))
	m.Centroids = m.seedPlusPlus(X, rng)

	assign := make([]int, len(X))
	for iter := 0; iter < m.MaxIter; iter++ {
		changed := false
		for i, row := range X {
			best := m.nearest(row)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, m.K)
		next := make([][]float64, m.K)
		for c := range next {
			next[c] = make([]float64, len(X[0]))
		}
		for i, row := range X {
			floats.Add(next[assign[i]], row)
			counts[assign[i]]++
		}
		for c := range next {
			if counts[c] == 0 {
				// Re-seed an emptied cluster on a random point.
				copy(next[c], X[rng.Intn(len(X))])
				continue
			}
			floats.Scale(1/float64(counts[c]), next[c])
		}
		m.Centroids = next
	}
	return assign, nil
}

// Predict assigns a point to its nearest centroid.
func (m *KMeans) Predict(x []float64) (int, error) {
	if m.Centroids == nil {
		return 0, &mlerror.NotTrainedError{Component: m.Name()}
	}
	return m.nearest(x), nil
}

func (m *KMeans) nearest(x []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range m.Centroids {
		d := sqDist(x, centroid)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (m *KMeans) seedPlusPlus(X [][]float64, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, m.K)
	first := make([]float64, len(X[0]))
	copy(first, X[rng.Intn(len(X))])
	centroids = append(centroids, first)

	dists := make([]float64, len(X))
	for len(centroids) < m.K {
		total := 0.0
		for i, row := range X {
			d := math.Inf(1)
			for _, c := range centroids {
				if sd := sqDist(row, c); sd < d {
					d = sd
				}
			}
			dists[i] = d
			total += d
		}

		pick := len(X) - 1
		if total > 0 {
			r := rng.Float64() * total
			acc := 0.0
			for i, d := range dists {
				acc += d
				if acc >= r {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(X))
		}
		next := make([]float64, len(X[0]))
		copy(next, X[pick])
		centroids = append(centroids, next)
	}
	return centroids
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
