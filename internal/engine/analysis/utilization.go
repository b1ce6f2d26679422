package analysis

import (
	"time"

	"go.trai.ch/kiln/internal/core/domain"
)

// Tracker accumulates how long each number of workers was busy at the same
// time. It is not safe for concurrent use; the scheduler calls it while
// holding its own lock.
type Tracker struct {
	workers int
	start   time.Time
	last    time.Time
	active  int
	peak    int
	spent   map[int]time.Duration
}

// NewTracker starts tracking a pool of workers at start.
func NewTracker(start time.Time, workers int) *Tracker {
	return &Tracker{
		workers: max(workers, 1),
		start:   start,
		last:    start,
		spent:   make(map[int]time.Duration),
	}
}

// Busy records that a worker picked up work at now.
func (t *Tracker) Busy(now time.Time) {
	t.advance(now)
	t.active++
	t.peak = max(t.peak, t.active)
}

// Idle records that a worker finished its work at now.
func (t *Tracker) Idle(now time.Time) {
	t.advance(now)
	if t.active > 0 {
		t.active--
	}
}

// Active returns the number of busy workers.
func (t *Tracker) Active() int { return t.active }

// Peak returns the highest number of simultaneously busy workers seen.
func (t *Tracker) Peak() int { return t.peak }

// Histogram closes the measurement at end and returns, for 1 to the pool size,
// the share of the elapsed time during which exactly that many workers were
// busy.
func (t *Tracker) Histogram(end time.Time) []domain.UtilizationBucket {
	spent := make(map[int]time.Duration, len(t.spent)+1)
	for k, v := range t.spent {
		spent[k] = v
	}
	if end.After(t.last) {
		spent[t.active] += end.Sub(t.last)
	}

	total := end.Sub(t.start)
	buckets := make([]domain.UtilizationBucket, 0, t.workers)
	for w := 1; w <= t.workers; w++ {
		b := domain.UtilizationBucket{Workers: w, Duration: spent[w]}
		if total > 0 {
			b.Fraction = float64(spent[w]) / float64(total)
		}
		buckets = append(buckets, b)
	}
	return buckets
}

func (t *Tracker) advance(now time.Time) {
	if now.After(t.last) {
		t.spent[t.active] += now.Sub(t.last)
		t.last = now
	}
}
