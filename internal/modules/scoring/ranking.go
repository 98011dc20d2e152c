package scoring

import (
	"sort"

	"github.com/aristath/rotor/internal/domain"
)

// Rank orders scores by composite descending and assigns 1-based ranks.
// Ties break by the shorter-window return (favors recent momentum), then by
// instrument ID so the ranking is fully deterministic: scrambling the input
// order never changes the result.
func Rank(scores []domain.MomentumScore) []domain.MomentumScore {
	ranked := make([]domain.MomentumScore, len(scores))
	copy(ranked, scores)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		si, sj := ranked[i].ShortestWindowReturn(), ranked[j].ShortestWindowReturn()
		if si != sj {
			return si > sj
		}
		return ranked[i].InstrumentID < ranked[j].InstrumentID
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked
}
