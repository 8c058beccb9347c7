package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Zero multiplier still yields one",
			multiplier: 0,
			minExpect:  1,
			maxExpect:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, want between %d and %d", tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int // -1 means fall back to the computed value
	}{
		{name: "Valid override", envValue: "8", expected: 8},
		{name: "Override with limit", envValue: "20", limit: 10, expected: 10},
		{name: "Override below limit", envValue: "5", limit: 10, expected: 5},
		{name: "Non-numeric ignored", envValue: "invalid", expected: -1},
		{name: "Zero ignored", envValue: "0", expected: -1},
		{name: "Negative ignored", envValue: "-5", expected: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.envValue)

			got := Count(1.0, tt.limit)
			if tt.expected < 0 {
				if got < 1 {
					t.Errorf("Count with invalid override should return at least 1, got %d", got)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("Count(1.0, %d) with %s=%s = %d, want %d", tt.limit, EnvOverride, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestForDecode(t *testing.T) {
	t.Run("Default leaves one thread and keeps two", func(t *testing.T) {
		t.Setenv(EnvOverride, "")

		want := runtime.GOMAXPROCS(0) - 1
		if want < 2 {
			want = 2
		}
		if got := ForDecode(); got != want {
			t.Errorf("ForDecode() = %d, want %d", got, want)
		}
	})

	t.Run("Override wins", func(t *testing.T) {
		t.Setenv(EnvOverride, "1")
		if got := ForDecode(); got != 1 {
			t.Errorf("ForDecode() = %d, want 1", got)
		}
	})
}

func TestForHelpersRespectLimit(t *testing.T) {
	t.Setenv(EnvOverride, "")

	for name, fn := range map[string]func(int) int{"ForCPU": ForCPU, "ForIO": ForIO, "ForMixed": ForMixed} {
		got := fn(1)
		if got != 1 {
			t.Errorf("%s(1) = %d, want 1", name, got)
		}
	}
}

func BenchmarkCount(b *testing.B) {
	b.Setenv(EnvOverride, "")
	for i := 0; i < b.N; i++ {
		_ = Count(1.5, 10)
	}
}
