package span

import "testing"

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Span
		b    Span
		want bool
	}{
		{"disjoint, a before b", Span{0, 10}, Span{10, 10}, false},
		{"disjoint, b before a", Span{20, 5}, Span{0, 20}, false},
		{"identical", Span{0, 10}, Span{0, 10}, true},
		{"a contains b", Span{0, 100}, Span{10, 5}, true},
		{"partial overlap", Span{0, 10}, Span{5, 10}, true},
		{"zero length touching", Span{0, 0}, Span{0, 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}

			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapCollides(t *testing.T) {
	m := NewMap(Span{0, 0x1000})

	if !m.Collides(Span{0x800, 0x10}) {
		t.Errorf("expected collision with seeded span")
	}

	if m.Collides(Span{0x1000, 0x10}) {
		t.Errorf("did not expect collision immediately after seeded span")
	}

	m.Reserve(Span{0x1000, 0x200})

	if !m.Collides(Span{0x1100, 0x10}) {
		t.Errorf("expected collision with reserved span")
	}

	if got, want := m.End(), uint32(0x1200); got != want {
		t.Errorf("End() = 0x%x, want 0x%x", got, want)
	}
}
