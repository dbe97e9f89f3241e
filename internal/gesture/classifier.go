package gesture

import (
	"sync"

	"gonum.org/v1/gonum/stat"
)

// ClassifierConfig configures the Pattern-Average-Distance classifier.
type ClassifierConfig struct {
	// Epsilon multiplies every label's bounds. Values below 1 are treated as 1.
	Epsilon float64
	// Workers is the number of goroutines computing DTW distances.
	// Zero or one computes sequentially.
	Workers int
}

// Classifier matches windows against a Library by averaged per-axis DTW distance.
// It holds no per-call state and is safe for concurrent use.
type Classifier struct {
	epsilon float64
	workers int
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	eps := cfg.Epsilon
	if eps < 1 {
		eps = 1
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Classifier{epsilon: eps, workers: workers}
}

// Epsilon returns the effective bound slack factor.
func (c *Classifier) Epsilon() float64 {
	return c.epsilon
}

// Classify returns the label whose averaged distances fall below both of its
// (slack-scaled) bounds with the largest margin area
// (boundX-avgX)*(boundY-avgY). Labels are visited in ascending order and a
// later label must beat the best margin strictly to win.
//
// An empty window is a degenerate comparison and yields NoMatch.
func (c *Classifier) Classify(window Window, lib *Library) Result {
	if lib == nil || window.Len() == 0 {
		return NoMatch()
	}

	distances := c.averages(window, lib)

	best := -1
	bestScore := 0.0
	for i := range distances {
		d := &distances[i]
		b := lib.bounds[d.Label].Scale(c.epsilon)
		if d.AvgX > b.X || d.AvgY > b.Y {
			continue
		}
		d.Candidate = true

		score := (b.X - d.AvgX) * (b.Y - d.AvgY)
		if best < 0 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best < 0 {
		return Result{Distances: distances}
	}
	return Result{
		Recognized: true,
		Label:      distances[best].Label,
		Score:      bestScore,
		Distances:  distances,
	}
}

// averages computes (avgX, avgY) for every label in library order.
func (c *Classifier) averages(window Window, lib *Library) []LabelDistance {
	s := lib.samples
	labels := lib.labels

	// dx[k*s+i] and dy[k*s+i] hold the distances to sample i of label k.
	dx := make([]float64, len(labels)*s)
	dy := make([]float64, len(labels)*s)

	compute := func(idx int) {
		t := lib.templates[labels[idx/s]]
		i := idx % s
		dx[idx] = DTWDistance(window.X, t.X[i])
		dy[idx] = DTWDistance(window.Y, t.Y[i])
	}

	if c.workers == 1 {
		for idx := range dx {
			compute(idx)
		}
	} else {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < c.workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range jobs {
					compute(idx)
				}
			}()
		}
		for idx := range dx {
			jobs <- idx
		}
		close(jobs)
		wg.Wait()
	}

	out := make([]LabelDistance, len(labels))
	for k, label := range labels {
		out[k] = LabelDistance{
			Label: label,
			AvgX:  stat.Mean(dx[k*s:(k+1)*s], nil),
			AvgY:  stat.Mean(dy[k*s:(k+1)*s], nil),
		}
	}
	return out
}
