package vector

import (
	"fmt"

	"github.com/memory-service/memoryd/pkg/types"
)

// granule is one field of a row split out for independent embedding.
type granule struct {
	docID   string
	content string
}

// granulateObservation splits an Observation into one document per non-empty
// narrative field plus one per fact, e.g. an observation with a narrative
// and two facts produces ids "obs_<id>_narrative", "obs_<id>_fact_0",
// "obs_<id>_fact_1".
func granulateObservation(o *types.Observation) []granule {
	var gs []granule
	if o.Narrative != "" {
		gs = append(gs, granule{docID: fmt.Sprintf("obs_%d_narrative", o.ID), content: o.Narrative})
	}
	for i, fact := range o.Facts {
		if fact == "" {
			continue
		}
		gs = append(gs, granule{docID: fmt.Sprintf("obs_%d_fact_%d", o.ID, i), content: fact})
	}
	return gs
}

// granulateSummary splits a SessionSummary into one document per non-empty
// field among its six free-form fields.
func granulateSummary(s *types.SessionSummary) []granule {
	fields := []struct {
		name string
		text string
	}{
		{"request", s.Request},
		{"investigated", s.Investigated},
		{"learned", s.Learned},
		{"completed", s.Completed},
		{"next_steps", s.NextSteps},
		{"notes", s.Notes},
	}
	var gs []granule
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		gs = append(gs, granule{docID: fmt.Sprintf("summary_%d_%s", s.ID, f.name), content: f.text})
	}
	return gs
}
