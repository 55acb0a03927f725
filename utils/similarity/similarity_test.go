package similarity

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Inception", "inception"},
		{"  The   Matrix ", "the matrix"},
		{"Spider-Man: No Way Home", "spider man no way home"},
		{"Me & You", "me and you"},
		{"Fullmetal Alchemist: Brotherhood", "fullmetal alchemist brotherhood"},
		{"...", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTitlesEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Inception", "inception", true},
		{"The Matrix", "the  matrix", true},
		{"Me & You", "Me and You", true},
		{"Dark", "Dank", false},
		{"", "", false},
	}

	for _, tc := range tests {
		if got := TitlesEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("TitlesEqual(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Inception", "Inception", 1.0, 1.0},
		{"case and punctuation", "Spider-Man", "spider man", 1.0, 1.0},
		{"one rune off", "Dark", "Dank", 0.5, 0.99},
		{"unrelated", "Inception", "Totoro", 0.0, 0.5},
		{"empty", "", "Inception", 0.0, 0.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Similarity(tc.a, tc.b)
			if got < tc.min || got > tc.max {
				t.Errorf("Similarity(%q, %q) = %.3f, want within [%.2f, %.2f]", tc.a, tc.b, got, tc.min, tc.max)
			}
		})
	}
}
