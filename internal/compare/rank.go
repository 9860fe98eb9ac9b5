package compare

import (
	"sort"
	"time"

	"github.com/MrWong99/llmgate/pkg/cost"
)

// Ranking is a successful [Result] with its estimated price.
type Ranking struct {
	Model        string
	Cost         float64
	OutputTokens int

	// CostPerToken and TimePerToken are per estimated output token. Both are
	// zero when the response was too short to yield a token estimate.
	CostPerToken float64
	TimePerToken time.Duration

	Elapsed time.Duration
}

// Rank drops failed results, prices the rest with t (the default table when
// nil) and sorts them by ascending cost. Models with equal cost keep their
// input order.
func Rank(results []Result, inputTokens int, t *cost.Table) []Ranking {
	if t == nil {
		t = cost.Default()
	}
	out := make([]Ranking, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			continue
		}
		rk := Ranking{
			Model:        r.Model,
			Cost:         t.Estimate(r.Model, inputTokens, r.TokenEstimate),
			OutputTokens: r.TokenEstimate,
			Elapsed:      r.Elapsed,
		}
		if r.TokenEstimate > 0 {
			rk.CostPerToken = rk.Cost / float64(r.TokenEstimate)
			rk.TimePerToken = r.Elapsed / time.Duration(r.TokenEstimate)
		}
		out = append(out, rk)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}
