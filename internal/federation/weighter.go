// Package federation implements the weighted-score combination of local and
// remote query results, the declarative schema adapter that normalizes
// externally-shaped records into the internal shape, the migration pipeline
// built on top of it, and the export/replication workflow that snapshots the
// embedded vector database into a git-managed directory.
package federation

import (
	"fmt"
	"sort"

	"github.com/memory-service/memoryd/pkg/types"
)

// MaxRemotes is the hard ceiling on attached remotes, per spec.md §4.F.
const MaxRemotes = 3

// DecayStrategy names a weight schedule applied to remote positions 1..N.
type DecayStrategy string

const (
	DecayGolden      DecayStrategy = "golden"
	DecayExponential DecayStrategy = "exponential"
	DecayLinear      DecayStrategy = "linear"
)

// goldenRatioInverse is 1/phi, the base of the golden decay schedule.
const goldenRatioInverse = 0.6180339887498949

// Weights returns the per-position multiplier schedule for strategy, index
// 0 being the local node's weight (always 1.0) and indices 1..3 the
// weights applied to up to three remotes in priority order.
func Weights(strategy DecayStrategy) [4]float64 {
	switch strategy {
	case DecayExponential:
		return [4]float64{1.0, 0.5, 0.25, 0.125}
	case DecayLinear:
		return [4]float64{1.0, 0.75, 0.5, 0.25}
	default: // golden
		return [4]float64{1.0, goldenRatioInverse, goldenRatioInverse * goldenRatioInverse, goldenRatioInverse * goldenRatioInverse * goldenRatioInverse}
	}
}

// ValidateFederationConfig rejects configurations requesting more than
// MaxRemotes remotes.
func ValidateFederationConfig(remoteCount int) error {
	if remoteCount > MaxRemotes {
		return fmt.Errorf("federation: %d remotes requested, max is %d", remoteCount, MaxRemotes)
	}
	return nil
}

// RemoteResultSet is one remote's scored candidates, in priority order
// (position 1..3 within a combine call).
type RemoteResultSet struct {
	Name    string
	Results []types.QueryResult
}

// score turns a QueryResult's distance into a similarity-style score in
// [0,1], higher is better, so local and remote contributions combine
// additively per spec.md §4.F's formula.
func score(r types.QueryResult) float64 {
	s := 1 - float64(r.Distance)
	if s < 0 {
		return 0
	}
	return s
}

// Combine merges local results with up to MaxRemotes remote result sets
// using strategy's decay schedule: combined_score = local_score +
// sum(remote_score_i * weight_i) for matching ids, ranked descending. A
// candidate present only in a remote set is still included, scored purely
// from that remote's contribution.
func Combine(local []types.QueryResult, remotes []RemoteResultSet, strategy DecayStrategy) ([]types.QueryResult, error) {
	if err := ValidateFederationConfig(len(remotes)); err != nil {
		return nil, err
	}
	weights := Weights(strategy)

	type scored struct {
		result types.QueryResult
		score  float64
	}
	byID := make(map[string]*scored)
	order := make([]string, 0)

	add := func(r types.QueryResult, weight float64) {
		sc, ok := byID[r.DocID]
		if !ok {
			sc = &scored{result: r}
			byID[r.DocID] = sc
			order = append(order, r.DocID)
		}
		sc.score += score(r) * weight
	}

	for _, r := range local {
		add(r, weights[0])
	}
	for i, rs := range remotes {
		if i >= MaxRemotes {
			break
		}
		for _, r := range rs.Results {
			add(r, weights[i+1])
		}
	}

	out := make([]types.QueryResult, 0, len(order))
	for _, id := range order {
		sc := byID[id]
		sc.result.Distance = float32(1 - sc.score)
		out = append(out, sc.result)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}
