// Package cluster partitions observation coordinates into zones with
// mini-batch K-means.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var (
	ErrInvalidK     = errors.New("cluster count must be positive")
	ErrTooFewPoints = errors.New("fewer distinct points than clusters")
)

// MiniBatchKMeans holds the clustering parameters. Zero values fall back to
// the defaults applied by withDefaults.
type MiniBatchKMeans struct {
	K                int
	BatchSize        int
	MaxIter          int // passes over the data
	MaxNoImprovement int // 0 disables inertia-based early stopping
	Tol              float64
	InitSize         int
	NInit            int
	Seed             int64
}

type Result struct {
	Labels  []int
	Centers []orb.Point
	Inertia float64
	Steps   int
}

func (m MiniBatchKMeans) withDefaults(n int) MiniBatchKMeans {
	if m.BatchSize <= 0 {
		m.BatchSize = 1024
	}
	m.BatchSize = min(m.BatchSize, n)
	if m.MaxIter <= 0 {
		m.MaxIter = 100
	}
	if m.NInit <= 0 {
		m.NInit = 3
	}
	if m.InitSize <= 0 {
		m.InitSize = 3 * m.BatchSize
		if m.InitSize < m.K {
			m.InitSize = 3 * m.K
		}
	}
	m.InitSize = max(min(m.InitSize, n), m.K)
	return m
}

// FitPredict clusters points and returns the zone id of each one.
func (m MiniBatchKMeans) FitPredict(points []orb.Point) ([]int, error) {
	res, err := m.Fit(points)
	if err != nil {
		return nil, err
	}
	return res.Labels, nil
}

// Fit runs the mini-batch updates and then assigns every point to its
// nearest center. Every label in [0, K) is used by at least one point.
func (m MiniBatchKMeans) Fit(points []orb.Point) (*Result, error) {
	if m.K <= 0 {
		return nil, ErrInvalidK
	}
	n := len(points)
	if n < m.K {
		return nil, fmt.Errorf("%w: %d points for %d clusters", ErrTooFewPoints, n, m.K)
	}
	m = m.withDefaults(n)
	rng := rand.New(rand.NewSource(m.Seed))

	centers := m.initCenters(points, rng)
	steps := m.minibatch(points, centers, rng)

	labels := make([]int, n)
	dists := make([]float64, n)
	for i, p := range points {
		labels[i], dists[i] = nearest(p, centers)
	}
	if err := repairEmpty(points, centers, labels, dists); err != nil {
		return nil, err
	}

	var inertia float64
	for _, d := range dists {
		inertia += d
	}
	return &Result{Labels: labels, Centers: centers, Inertia: inertia, Steps: steps}, nil
}

// initCenters seeds NInit candidate center sets with k-means++ on random
// subsamples and keeps the one with the lowest inertia on its subsample.
func (m MiniBatchKMeans) initCenters(points []orb.Point, rng *rand.Rand) []orb.Point {
	var best []orb.Point
	bestInertia := math.Inf(1)

	for run := 0; run < m.NInit; run++ {
		sample := make([]orb.Point, m.InitSize)
		for i := range sample {
			sample[i] = points[rng.Intn(len(points))]
		}
		centers := kmeansPlusPlus(sample, m.K, rng)

		var inertia float64
		for _, p := range sample {
			_, d := nearest(p, centers)
			inertia += d
		}
		if inertia < bestInertia {
			best, bestInertia = centers, inertia
		}
	}
	return best
}

func kmeansPlusPlus(sample []orb.Point, k int, rng *rand.Rand) []orb.Point {
	centers := make([]orb.Point, 0, k)
	centers = append(centers, sample[rng.Intn(len(sample))])

	closest := make([]float64, len(sample))
	for i, p := range sample {
		closest[i] = planar.DistanceSquared(p, centers[0])
	}

	for len(centers) < k {
		var total float64
		for _, d := range closest {
			total += d
		}

		next := rng.Intn(len(sample))
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range closest {
				target -= d
				if target <= 0 {
					next = i
					break
				}
			}
		}

		c := sample[next]
		centers = append(centers, c)
		for i, p := range sample {
			if d := planar.DistanceSquared(p, c); d < closest[i] {
				closest[i] = d
			}
		}
	}
	return centers
}

// minibatch moves centers in place and returns the number of steps taken.
func (m MiniBatchKMeans) minibatch(points []orb.Point, centers []orb.Point, rng *rand.Rand) int {
	n := len(points)
	nSteps := max(m.MaxIter*n/m.BatchSize, 1)

	counts := make([]float64, m.K)
	sums := make([]orb.Point, m.K)
	hits := make([]float64, m.K)
	batch := make([]int, m.BatchSize)

	alpha := math.Min(float64(m.BatchSize)*2/float64(n+1), 1)
	ewaInertia, minEwa := math.NaN(), math.Inf(1)
	noImprovement := 0

	for step := 1; step <= nSteps; step++ {
		for i := range batch {
			batch[i] = rng.Intn(n)
		}
		for j := range sums {
			sums[j] = orb.Point{}
			hits[j] = 0
		}

		var inertia float64
		for _, idx := range batch {
			p := points[idx]
			j, d := nearest(p, centers)
			inertia += d
			sums[j][0] += p[0]
			sums[j][1] += p[1]
			hits[j]++
		}
		inertia /= float64(m.BatchSize)

		var moved float64
		for j := range centers {
			if hits[j] == 0 {
				continue
			}
			old := centers[j]
			counts[j] += hits[j]
			keep := (counts[j] - hits[j]) / counts[j]
			centers[j] = orb.Point{
				old[0]*keep + sums[j][0]/counts[j],
				old[1]*keep + sums[j][1]/counts[j],
			}
			moved += planar.DistanceSquared(old, centers[j])
		}

		if m.Tol > 0 && moved <= m.Tol {
			return step
		}

		if math.IsNaN(ewaInertia) {
			ewaInertia = inertia
		} else {
			ewaInertia = ewaInertia*(1-alpha) + inertia*alpha
		}
		if ewaInertia < minEwa {
			minEwa = ewaInertia
			noImprovement = 0
		} else {
			noImprovement++
		}
		if m.MaxNoImprovement > 0 && noImprovement >= m.MaxNoImprovement {
			return step
		}
	}
	return nSteps
}

// repairEmpty gives every empty cluster the point lying farthest from its
// own center, taken from a cluster that has more than one member.
func repairEmpty(points []orb.Point, centers []orb.Point, labels []int, dists []float64) error {
	sizes := make([]int, len(centers))
	for _, l := range labels {
		sizes[l]++
	}

	for j := range centers {
		if sizes[j] > 0 {
			continue
		}

		far, farDist := -1, 0.0
		for i, d := range dists {
			if sizes[labels[i]] > 1 && d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return fmt.Errorf("%w: cluster %d stays empty", ErrTooFewPoints, j)
		}

		sizes[labels[far]]--
		labels[far] = j
		dists[far] = 0
		centers[j] = points[far]
		sizes[j] = 1
	}
	return nil
}

func nearest(p orb.Point, centers []orb.Point) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centers {
		if d := planar.DistanceSquared(p, c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}
