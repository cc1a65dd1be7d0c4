package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty string", "", 0},
		{"single char rounds up", "a", 1},
		{"exactly one token", "abcd", 1},
		{"five chars rounds up", "abcde", 2},
		{"eight chars", "abcdefgh", 2},
		{"multibyte runes count as bytes", "héllo", 2}, // 6 bytes
		{"longer text", strings.Repeat("x", 4000), 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.in); got != tt.want {
				t.Fatalf("Estimate(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestEstimateBytes(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"zero", 0, 0},
		{"negative is clamped", -7, 0},
		{"one byte", 1, 1},
		{"boundary", 4, 1},
		{"boundary plus one", 5, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateBytes(tt.n); got != tt.want {
				t.Fatalf("EstimateBytes(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}
