package memory

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.LimitBytes != 0 {
		t.Errorf("LimitBytes = %d, want 0", config.LimitBytes)
	}
	if config.HighWaterMark >= config.CriticalWaterMark {
		t.Errorf("HighWaterMark %.2f must be below CriticalWaterMark %.2f",
			config.HighWaterMark, config.CriticalWaterMark)
	}
	if config.CheckInterval <= 0 || config.CheckInterval > 10*time.Second {
		t.Errorf("CheckInterval = %v, want a short positive interval", config.CheckInterval)
	}
}

// fakeEnv records the limit configure applies instead of touching the runtime.
type fakeEnv struct {
	vars    map[string]string
	current int64
	set     []int64
}

func (f *fakeEnv) getenv(key string) string { return f.vars[key] }

func (f *fakeEnv) setLimit(limit int64) int64 {
	if limit < 0 {
		return f.current
	}
	prev := f.current
	f.current = limit
	f.set = append(f.set, limit)
	return prev
}

// scaled applies ratio the way configure does, at run time.
func scaled(n int64, ratio float64) int64 {
	return int64(float64(n) * ratio)
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name       string
		vars       map[string]string
		current    int64
		wantSource string
		wantConf   bool
		wantLimit  int64
		wantRatio  float64
	}{
		{
			name:       "nothing set",
			wantSource: "none",
		},
		{
			name:       "GOMEMLIMIT wins",
			vars:       map[string]string{"GOMEMLIMIT": "500MiB", "MEMORY_LIMIT": "1073741824"},
			current:    500 << 20,
			wantSource: "GOMEMLIMIT",
			wantConf:   true,
			wantLimit:  500 << 20,
		},
		{
			name:       "MEMORY_LIMIT bytes",
			vars:       map[string]string{"MEMORY_LIMIT": "1073741824"},
			wantSource: "MEMORY_LIMIT",
			wantConf:   true,
			wantLimit:  scaled(1<<30, DefaultMemoryRatio),
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "MEMORY_LIMIT with unit and ratio",
			vars:       map[string]string{"MEMORY_LIMIT": "2GiB", "MEMORY_RATIO": "0.5"},
			wantSource: "MEMORY_LIMIT",
			wantConf:   true,
			wantLimit:  1 << 30,
			wantRatio:  0.5,
		},
		{
			name:       "ratio out of range",
			vars:       map[string]string{"MEMORY_LIMIT": "1000", "MEMORY_RATIO": "1.5"},
			wantSource: "MEMORY_LIMIT",
			wantConf:   true,
			wantLimit:  scaled(1000, DefaultMemoryRatio),
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "invalid limit",
			vars:       map[string]string{"MEMORY_LIMIT": "lots"},
			wantSource: "none",
		},
		{
			name:       "negative limit",
			vars:       map[string]string{"MEMORY_LIMIT": "-5"},
			wantSource: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &fakeEnv{vars: tt.vars, current: tt.current}
			got := configure(env.getenv, env.setLimit)

			if got.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", got.Source, tt.wantSource)
			}
			if got.Configured != tt.wantConf {
				t.Errorf("Configured = %v, want %v", got.Configured, tt.wantConf)
			}
			if got.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.wantLimit)
			}
			if got.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", got.Ratio, tt.wantRatio)
			}
			if tt.wantSource != "MEMORY_LIMIT" && len(env.set) != 0 {
				t.Errorf("runtime limit changed to %v", env.set)
			}
		})
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"1048576", 1 << 20, false},
		{"256MiB", 256 << 20, false},
		{"256mib", 256 << 20, false},
		{"1.5GiB", 3 << 29, false},
		{"2GB", 2_000_000_000, false},
		{"512m", 512 << 20, false},
		{"64 KiB", 64 << 10, false},
		{"10b", 10, false},
		{"", 0, true},
		{"MiB", 0, true},
		{"twelve", 0, true},
		{"9999999999TiB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{256 << 20, "256.0 MiB"},
		{3 << 30, "3.0 GiB"},
		{1 << 40, "1.0 TiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
