package chroma

import (
	"math"
	"testing"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		dsn, want string
		wantErr   bool
	}{
		{"chroma://localhost:8000", "http://localhost:8000", false},
		{"chromas://chroma.example.com", "https://chroma.example.com", false},
		{"chroma://host:8000/api", "http://host:8000/api", false},
		{"postgres://localhost", "", true},
		{"chroma://", "", true},
	}
	for _, tt := range tests {
		got, err := BaseURL(tt.dsn)
		if tt.wantErr {
			if err == nil {
				t.Errorf("BaseURL(%q): expected error", tt.dsn)
			}
			continue
		}
		if err != nil {
			t.Errorf("BaseURL(%q): %v", tt.dsn, err)
			continue
		}
		if got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float32{3, 4})
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("Normalize = %v", got)
	}
	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestScoreFromDistance(t *testing.T) {
	// identical unit vectors: d=0, orthogonal: d=2, opposite: d=4
	cases := map[float32]float32{0: 1, 2: 0, 4: -1}
	for d, want := range cases {
		if got := ScoreFromDistance(d); got != want {
			t.Errorf("ScoreFromDistance(%v) = %v, want %v", d, got, want)
		}
	}
}

func TestAttributesSkipsNil(t *testing.T) {
	attrs := Attributes(domain.Metadata{
		"source": "sky.pdf",
		"page":   0,
		"score":  1.5,
		"ok":     true,
		"gone":   nil,
		"list":   []string{"a"},
	})
	if len(attrs) != 5 {
		t.Errorf("expected 5 attributes, got %d", len(attrs))
	}
}
