// Package span implements allocation-span arithmetic used by the PE
// layout passes to reserve and test file-offset regions.
package span

// Span is a half-open byte range [Start, Start+Length).
type Span struct {
	Start  uint32
	Length uint32
}

// End returns the first offset past the span.
func (s Span) End() uint32 {
	return s.Start + s.Length
}

// Overlaps reports whether s and other share any point.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End() && other.Start < s.End()
}

// Map is an unordered collection of reserved spans, queried for
// collisions during section allocation.
type Map struct {
	spans []Span
}

// NewMap creates a span map seeded with the given spans.
func NewMap(seed ...Span) *Map {
	return &Map{spans: append([]Span(nil), seed...)}
}

// Collides reports whether s overlaps any span already in the map.
func (m *Map) Collides(s Span) bool {
	for _, existing := range m.spans {
		if s.Overlaps(existing) {
			return true
		}
	}

	return false
}

// Reserve adds s to the map without checking for collisions; callers
// must call Collides first if overlap matters.
func (m *Map) Reserve(s Span) {
	m.spans = append(m.spans, s)
}

// End returns the maximum End() over every reserved span, or 0 if the
// map is empty.
func (m *Map) End() uint32 {
	var max uint32
	for _, s := range m.spans {
		if e := s.End(); e > max {
			max = e
		}
	}

	return max
}
