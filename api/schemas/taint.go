package schemas

import (
	"strings"
	"time"
	"unicode/utf8"
)

// -- Taint Provenance Schemas --

// OriginType categorizes where a tainted value entered the process. The
// values are dotted paths to align with the reporting backend's vocabulary.
type OriginType string

// Constants for the supported input origin categories.
const (
	OriginParameter     OriginType = "http.request.parameter"      // Request parameter value.
	OriginParameterName OriginType = "http.request.parameter.name" // Request parameter name.
	OriginHeader        OriginType = "http.request.header"         // Request header value.
	OriginHeaderName    OriginType = "http.request.header.name"    // Request header name.
	OriginCookie        OriginType = "http.request.cookie.value"   // Cookie value.
	OriginCookieName    OriginType = "http.request.cookie.name"    // Cookie name.
	OriginBody          OriginType = "http.request.body"           // Request body content.
	OriginQuery         OriginType = "http.request.query"          // Raw query string.
	OriginPath          OriginType = "http.request.path"           // URL path segment.
)

// Source identifies the origin of tainted data: the input's key, its raw
// value (possibly redacted), and the origin category. A Source is created
// once at the taint boundary and shared by reference across every range
// derived from that input; it is never mutated after creation.
type Source struct {
	Name   string     `json:"name"`
	Value  string     `json:"value,omitempty"`
	Origin OriginType `json:"origin_type"`
}

// Equal reports whether two sources are interchangeable for evidence
// de-duplication: name, value, and origin must all match.
func (s Source) Equal(other Source) bool {
	return s.Name == other.Name && s.Value == other.Value && s.Origin == other.Origin
}

// Redacted returns a copy of the source with the value masked, preserving
// its rune length so evidence consumers can still reason about size.
func (s Source) Redacted() Source {
	s.Value = strings.Repeat("*", utf8.RuneCountInString(s.Value))
	return s
}

// TaintRange describes one contiguous tainted region [Start, Start+Length)
// of an owning value, attributed to a single source. Ranges are immutable;
// deriving a shifted or clipped range produces a new value.
type TaintRange struct {
	Start  int     `json:"start"`
	Length int     `json:"length"`
	Source *Source `json:"source"`
}

// End returns the exclusive end offset of the range.
func (r TaintRange) End() int { return r.Start + r.Length }

// Shift returns a copy of the range moved by offset. The source reference is
// shared, not copied.
func (r TaintRange) Shift(offset int) TaintRange {
	r.Start += offset
	return r
}

// Intersect clips the range against the window [i, j) and re-bases the
// result so that offset i becomes 0. The second return value is false when
// the intersection is empty.
func (r TaintRange) Intersect(i, j int) (TaintRange, bool) {
	start := max(r.Start, i)
	end := min(r.End(), j)
	if start >= end {
		return TaintRange{}, false
	}
	return TaintRange{Start: start - i, Length: end - start, Source: r.Source}, true
}

// ShiftRanges returns a new slice with every range moved by offset.
func ShiftRanges(ranges []TaintRange, offset int) []TaintRange {
	if len(ranges) == 0 {
		return nil
	}
	shifted := make([]TaintRange, 0, len(ranges))
	for _, r := range ranges {
		shifted = append(shifted, r.Shift(offset))
	}
	return shifted
}

// -- Evidence Schemas --

// Segment is one span of a decomposed value. Untainted segments carry only
// the text; tainted segments additionally reference an entry in the
// evidence's de-duplicated source list by index.
type Segment struct {
	Value  string `json:"value"`
	Source *int   `json:"source,omitempty"`
}

// Evidence is the order-preserving decomposition of a value into tainted and
// untainted segments, plus the de-duplicated list of sources the segments
// reference. It is the structure handed to the reporting collaborator.
type Evidence struct {
	Segments []Segment `json:"value_parts"`
	Sources  []Source  `json:"sources"`
}

// Reconstruct concatenates all segment values in order. For well-formed
// evidence this reproduces the original value exactly.
func (e Evidence) Reconstruct() string {
	var b strings.Builder
	for _, seg := range e.Segments {
		b.WriteString(seg.Value)
	}
	return b.String()
}

// TaintIndex returns the index of the first source equal to s, or -1.
func (e Evidence) TaintIndex(s Source) int {
	for i, existing := range e.Sources {
		if existing.Equal(s) {
			return i
		}
	}
	return -1
}

// -- Report Envelope --

// TaintReport is the envelope for one analyzed value, produced at reporting
// time and persisted by the store. It maps directly to the `taint_reports`
// table in the database.
type TaintReport struct {
	ID         string    `json:"id"`          // Unique identifier for the report.
	ScopeID    string    `json:"scope_id"`    // The analysis scope (request) that produced it.
	ObservedAt time.Time `json:"observed_at"` // When the value was reported.
	Value      string    `json:"value"`       // The final value under analysis.
	Evidence   Evidence  `json:"evidence"`    // Segmented provenance decomposition.
}
