package taint

import (
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/taintflow/api/schemas"
)

// BuildEvidence decomposes a value into its ordered tainted/untainted
// segments given the value's range sequence (sorted, disjoint). Sources are
// de-duplicated into an ordered list; tainted segments reference that list
// by index. With no ranges, the whole value is one untainted segment. The
// decomposition is non-mutating and concatenating the segment values in
// order reconstructs the input exactly.
func BuildEvidence(value string, ranges []schemas.TaintRange) schemas.Evidence {
	if len(ranges) == 0 {
		return schemas.Evidence{Segments: []schemas.Segment{{Value: value}}}
	}

	ev := schemas.Evidence{}
	cur := 0
	for _, r := range ranges {
		start, end := r.Start, r.End()
		if end > len(value) {
			end = len(value)
		}
		if start >= end {
			continue
		}
		if start > cur {
			ev.Segments = append(ev.Segments, schemas.Segment{Value: value[cur:start]})
		}

		idx := -1
		if r.Source != nil {
			if idx = ev.TaintIndex(*r.Source); idx < 0 {
				ev.Sources = append(ev.Sources, *r.Source)
				idx = len(ev.Sources) - 1
			}
		}
		seg := schemas.Segment{Value: value[start:end]}
		if idx >= 0 {
			ref := idx
			seg.Source = &ref
		}
		ev.Segments = append(ev.Segments, seg)
		cur = end
	}
	if cur < len(value) {
		ev.Segments = append(ev.Segments, schemas.Segment{Value: value[cur:]})
	}
	return ev
}

// Evidence builds the segmented decomposition for a tracked value.
func (s *Scope) Evidence(v Tracked) schemas.Evidence {
	return BuildEvidence(v.String(), s.registry.Lookup(v.handle))
}

// Report wraps a value's evidence in the envelope handed to the reporting
// collaborator.
func (s *Scope) Report(v Tracked) schemas.TaintReport {
	return schemas.TaintReport{
		ID:         uuid.NewString(),
		ScopeID:    s.id,
		ObservedAt: time.Now().UTC(),
		Value:      v.String(),
		Evidence:   s.Evidence(v),
	}
}
