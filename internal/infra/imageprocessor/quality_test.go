package imageprocessor

import "testing"

func TestEstimateSourceQuality_Tiers(t *testing.T) {
	cases := []struct {
		name  string
		bytes int64
		w, h  int
		want  int
	}{
		{"high density", 3_000_000, 1000, 1000, 95},
		{"boundary at 1.0 chooses upper tier", 1_000_000, 1000, 1000, 85},
		{"mid density", 750_000, 1000, 1000, 75},
		{"low density", 10_000, 1000, 1000, 60},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := EstimateSourceQuality(c.bytes, c.w, c.h)
			if got != c.want {
				t.Errorf("EstimateSourceQuality(%d, %d, %d) = %d, want %d", c.bytes, c.w, c.h, got, c.want)
			}
		})
	}
}

func TestEffectiveQuality_CapsAtEstimatedSource(t *testing.T) {
	// 1000x1000 at 750,000 bytes -> estimated 75; requested 95 is capped down.
	got := EffectiveQuality(95, 1000, 1000, 400, 400, 750_000)
	if got != 75 {
		t.Errorf("EffectiveQuality = %d, want 75", got)
	}
}

func TestEffectiveQuality_UsesRequestedWhenBelowEstimate(t *testing.T) {
	got := EffectiveQuality(50, 1000, 1000, 400, 400, 3_000_000)
	if got != 50 {
		t.Errorf("EffectiveQuality = %d, want 50", got)
	}
}

func TestEffectiveQuality_SkipsReductionWhenSourceFitsTarget(t *testing.T) {
	got := EffectiveQuality(85, 300, 200, 1920, 1080, 1_000)
	if got != 100 {
		t.Errorf("EffectiveQuality = %d, want 100 when source already fits target", got)
	}
}
