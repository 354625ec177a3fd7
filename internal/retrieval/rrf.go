package retrieval

import (
	"fmt"
	"sort"

	"github.com/koopa0/anchor/internal/evidence"
	"github.com/koopa0/anchor/internal/knowledge"
)

// rrfK is the canonical reciprocal rank fusion constant. It dampens the
// influence of top ranks so one index cannot dominate the fused list.
const rrfK = 60

// itemFromHit converts a chunk hit into an evidence item at the given
// 1-based rank.
func itemFromHit(h knowledge.Hit, rank int) evidence.Item {
	return evidence.Item{
		SourceID:   h.ID.String(),
		Kind:       evidence.KindLocal,
		Text:       h.Content,
		Title:      fmt.Sprintf("%s#%d", h.DocumentName, h.Ordinal),
		OriginRank: rank,
	}
}

// fuse merges ranked result lists with reciprocal rank fusion:
// score(item) = sum over lists of 1/(rrfK + rank). Items appearing in both
// lists are deduplicated by source ID and accumulate both contributions.
// Ties break by the best rank the item held in any list, then by source ID.
func fuse(lists ...[]knowledge.Hit) []evidence.Item {
	type fused struct {
		item     evidence.Item
		score    float64
		bestRank int
	}

	byID := make(map[string]*fused)
	order := make([]string, 0)

	for _, hits := range lists {
		for i, h := range hits {
			rank := i + 1
			id := h.ID.String()
			f, ok := byID[id]
			if !ok {
				f = &fused{item: itemFromHit(h, rank), bestRank: rank}
				byID[id] = f
				order = append(order, id)
			}
			f.score += 1.0 / float64(rrfK+rank)
			if rank < f.bestRank {
				f.bestRank = rank
				f.item.OriginRank = rank
			}
		}
	}

	out := make([]evidence.Item, 0, len(byID))
	for _, id := range order {
		f := byID[id]
		f.item.Score = f.score
		out = append(out, f.item)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].OriginRank != out[j].OriginRank {
			return out[i].OriginRank < out[j].OriginRank
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}
