package governance

import (
	"sort"

	"eb-evaluation-lab/internal/domain"
)

// EntitySummary averages one model's gate signals over the sites of a forecast
// entity ("site::entity" series ids share the entity part).
type EntitySummary struct {
	EntityID string
	ModelID  string
	Sites    int
	Admitted int
	HitRate  float64
	NSL      float64
	UD       float64
	CWSL     float64
}

// SummarizeByEntity groups decisions by (entity, model), sorted by both.
// Series ids without a site part form their own entity.
func SummarizeByEntity(decisions []Decision) []EntitySummary {
	type key struct{ entity, model string }
	sums := make(map[key]*EntitySummary)
	for _, d := range decisions {
		entity := d.SeriesID
		if _, item, ok := domain.SplitEntityID(d.SeriesID); ok {
			entity = item
		}
		k := key{entity, d.ModelID}
		s, ok := sums[k]
		if !ok {
			s = &EntitySummary{EntityID: entity, ModelID: d.ModelID}
			sums[k] = s
		}
		s.Sites++
		if d.Admitted {
			s.Admitted++
		}
		s.HitRate += d.Signals.HitRate
		s.NSL += d.Signals.NSL
		s.UD += d.Signals.UD
		s.CWSL += d.Signals.CWSL
	}

	out := make([]EntitySummary, 0, len(sums))
	for _, s := range sums {
		n := float64(s.Sites)
		s.HitRate /= n
		s.NSL /= n
		s.UD /= n
		s.CWSL /= n
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out
}
