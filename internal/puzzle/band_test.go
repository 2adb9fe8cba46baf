package puzzle

import (
	"errors"
	"testing"
)

func TestParseBand(t *testing.T) {
	b, err := ParseBand(" Intermediate ")
	if err != nil || b == nil || b.Min != 1200 || b.Max != 1800 {
		t.Fatalf("ParseBand = %+v, %v", b, err)
	}
	if b, err := ParseBand(""); err != nil || b != nil {
		t.Fatalf("empty difficulty should mean no band, got %+v, %v", b, err)
	}
	_, err = ParseBand("grandmaster")
	var ide *InvalidDifficultyError
	if !errors.As(err, &ide) || ide.Name != "grandmaster" {
		t.Fatalf("expected InvalidDifficultyError, got %v", err)
	}
}

func TestBandContains(t *testing.T) {
	if !BandBeginner.Contains(800) || BandBeginner.Contains(1200) {
		t.Fatalf("beginner is [800,1200)")
	}
	if !BandAdvanced.Contains(3000) || BandAdvanced.Contains(1799) {
		t.Fatalf("advanced is [1800,3000]")
	}
	if BandIntermediate.Midpoint() != 1500 {
		t.Fatalf("intermediate midpoint = %d", BandIntermediate.Midpoint())
	}
}

func TestBandForRating(t *testing.T) {
	cases := map[int]string{500: "beginner", 1199: "beginner", 1200: "intermediate", 1800: "advanced", 3200: "advanced"}
	for r, want := range cases {
		if got := BandForRating(r); got != want {
			t.Fatalf("BandForRating(%d) = %q, want %q", r, got, want)
		}
	}
}
