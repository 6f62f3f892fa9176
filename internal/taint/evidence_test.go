package taint

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/taintflow/api/schemas"
)

func TestBuildEvidence(t *testing.T) {
	src := schemas.Source{Name: "q", Value: "evil", Origin: schemas.OriginParameter}
	idx0 := 0

	t.Run("no ranges yields a single untainted segment", func(t *testing.T) {
		ev := BuildEvidence("plain value", nil)
		want := schemas.Evidence{Segments: []schemas.Segment{{Value: "plain value"}}}
		assert.Empty(t, cmp.Diff(want, ev))
	})

	t.Run("interior range produces gap, tainted, and trailing segments", func(t *testing.T) {
		ev := BuildEvidence("id=evil&x=1", []schemas.TaintRange{{Start: 3, Length: 4, Source: &src}})
		want := schemas.Evidence{
			Segments: []schemas.Segment{
				{Value: "id="},
				{Value: "evil", Source: &idx0},
				{Value: "&x=1"},
			},
			Sources: []schemas.Source{src},
		}
		assert.Empty(t, cmp.Diff(want, ev))
	})

	t.Run("equal sources are de-duplicated", func(t *testing.T) {
		ev := BuildEvidence("ab-ab", []schemas.TaintRange{
			{Start: 0, Length: 2, Source: &src},
			{Start: 3, Length: 2, Source: &src},
		})
		require.Len(t, ev.Sources, 1)
		require.Len(t, ev.Segments, 3)
		assert.Equal(t, 0, *ev.Segments[0].Source)
		assert.Equal(t, 0, *ev.Segments[2].Source)
	})

	t.Run("distinct sources keep their own indices", func(t *testing.T) {
		other := schemas.Source{Name: "h", Value: "x", Origin: schemas.OriginHeader}
		ev := BuildEvidence("ab", []schemas.TaintRange{
			{Start: 0, Length: 1, Source: &src},
			{Start: 1, Length: 1, Source: &other},
		})
		require.Len(t, ev.Sources, 2)
		assert.Equal(t, 0, *ev.Segments[0].Source)
		assert.Equal(t, 1, *ev.Segments[1].Source)
	})

	t.Run("range past the value end is clamped", func(t *testing.T) {
		ev := BuildEvidence("abc", []schemas.TaintRange{{Start: 1, Length: 99, Source: &src}})
		require.Len(t, ev.Segments, 2)
		assert.Equal(t, "bc", ev.Segments[1].Value)
		assert.Equal(t, "abc", ev.Reconstruct())
	})

	t.Run("segments reconstruct the value exactly", func(t *testing.T) {
		value := "user=admin&debug=1"
		ev := BuildEvidence(value, []schemas.TaintRange{{Start: 5, Length: 5, Source: &src}})
		assert.Equal(t, value, ev.Reconstruct())
	})
}

func TestScopeEvidence(t *testing.T) {
	s := newTestScope(t, enabledConfig())
	src := paramSource("id", "1 OR 1=1")
	idx0 := 0

	prefix, err := s.Concat(Text("id="), s.Taint(Text("1 OR 1=1"), src))
	require.NoError(t, err)
	query, err := s.Concat(prefix, Text("&x=2"))
	require.NoError(t, err)

	ev := s.Evidence(query)
	want := schemas.Evidence{
		Segments: []schemas.Segment{
			{Value: "id="},
			{Value: "1 OR 1=1", Source: &idx0},
			{Value: "&x=2"},
		},
		Sources: []schemas.Source{*src},
	}
	assert.Empty(t, cmp.Diff(want, ev))
	assert.Equal(t, "id=1 OR 1=1&x=2", ev.Reconstruct())
}

func TestScopeReport(t *testing.T) {
	s := newTestScope(t, enabledConfig())
	v := s.Taint(Text("payload"), paramSource("q", "payload"))

	before := time.Now().UTC()
	report := s.Report(v)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, s.ID(), report.ScopeID)
	assert.Equal(t, "payload", report.Value)
	assert.Len(t, report.Evidence.Sources, 1)
	assert.False(t, report.ObservedAt.Before(before))
	assert.Equal(t, time.UTC, report.ObservedAt.Location())
}
