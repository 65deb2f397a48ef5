package models

import "testing"

func TestClassifyHealth(t *testing.T) {
	tests := []struct {
		rate float64
		want Health
	}{
		{0, HealthExcellent},
		{0.009, HealthExcellent},
		{0.01, HealthGood},
		{0.049, HealthGood},
		{0.05, HealthFair},
		{0.099, HealthFair},
		{0.10, HealthPoor},
		{1, HealthPoor},
	}

	for _, tt := range tests {
		if got := ClassifyHealth(tt.rate); got != tt.want {
			t.Errorf("ClassifyHealth(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestClassifyHealth_Monotonic(t *testing.T) {
	order := map[Health]int{HealthExcellent: 0, HealthGood: 1, HealthFair: 2, HealthPoor: 3}

	prev := order[ClassifyHealth(0)]
	for i := 1; i <= 1000; i++ {
		cur := order[ClassifyHealth(float64(i) / 1000)]
		if cur < prev {
			t.Fatalf("health improved as failure rate rose to %v", float64(i)/1000)
		}
		prev = cur
	}
}
