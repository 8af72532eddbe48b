package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{name: "CPU-bound", multiplier: 1.0, limit: 0, minExpect: 1, maxExpect: availableCPU},
		{name: "I/O-bound", multiplier: 2.0, limit: 0, minExpect: 1, maxExpect: availableCPU * 2},
		{name: "Mixed", multiplier: 1.5, limit: 0, minExpect: 1, maxExpect: int(float64(availableCPU) * 1.5)},
		{name: "Limit lower than calculated", multiplier: 2.0, limit: 2, minExpect: 1, maxExpect: 2},
		{name: "Very low multiplier", multiplier: 0.01, limit: 0, minExpect: 1, maxExpect: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < tt.minExpect || got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected in [%d, %d]", tt.multiplier, tt.limit, got, tt.minExpect, tt.maxExpect)
			}
		})
	}
}

func TestHelpersRespectLimit(t *testing.T) {
	for name, fn := range map[string]func(int) int{"ForCPU": ForCPU, "ForIO": ForIO, "ForMixed": ForMixed} {
		if got := fn(1); got != 1 {
			t.Errorf("%s(1) = %d, want 1", name, got)
		}
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "unset", value: "", want: 3},
		{name: "valid override", value: "7", want: 7},
		{name: "zero ignored", value: "0", want: 3},
		{name: "negative ignored", value: "-2", want: 3},
		{name: "garbage ignored", value: "many", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_POOL_WORKERS", tt.value)
			if got := FromEnv("TEST_POOL_WORKERS", 3); got != tt.want {
				t.Errorf("FromEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}
