package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewManager(t *testing.T) {
	t.Run("with custom path", func(t *testing.T) {
		customPath := filepath.Join(t.TempDir(), "test-config.json")
		m, err := NewManager(customPath)
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if m.ConfigPath() != customPath {
			t.Errorf("ConfigPath = %q, want %q", m.ConfigPath(), customPath)
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		m, err := NewManager("")
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if m.ConfigPath() == "" {
			t.Error("expected non-empty config path")
		}
	})
}

func TestManagerLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	got := m.Get()
	if got.CascadeMode != CascadeAuto {
		t.Errorf("default CascadeMode = %v, want %v", got.CascadeMode, CascadeAuto)
	}
	if got.LayoutResolution != LayoutFull {
		t.Errorf("default LayoutResolution = %v, want %v", got.LayoutResolution, LayoutFull)
	}

	got.Device = DeviceCUDA
	got.CascadeMode = CascadeMLAlways
	if err := m.Update(got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file on disk: %v", err)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager (reload) failed: %v", err)
	}
	got2 := reloaded.Get()
	if got2.Device != DeviceCUDA {
		t.Errorf("Device = %v, want %v", got2.Device, DeviceCUDA)
	}
	if got2.CascadeMode != CascadeMLAlways {
		t.Errorf("CascadeMode = %v, want %v", got2.CascadeMode, CascadeMLAlways)
	}
}

func TestManagerLoadMalformedFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write malformed config: %v", err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if got := m.Get(); got.CascadeMode != CascadeAuto {
		t.Errorf("expected fallback to defaults, got %+v", got)
	}
}

func TestUpdateAcceptsConservativeCascadeMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	cfg := m.Get()
	cfg.CascadeMode = CascadeConservative
	if err := m.Update(cfg); err != nil {
		t.Fatalf("Update with conservative cascade mode failed: %v", err)
	}
	if got := m.Get().CascadeMode; got != CascadeConservative {
		t.Errorf("CascadeMode = %v, want %v", got, CascadeConservative)
	}
}

func TestUpdateRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	bad := m.Get()
	bad.CascadeMode = "nonsense"
	if err := m.Update(bad); err == nil {
		t.Fatal("expected error for invalid cascade mode")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDevice, "cuda")
	t.Setenv(EnvCascadeMode, "heuristic_always")
	path := filepath.Join(t.TempDir(), "config.json")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	got := m.Get()
	if got.Device != DeviceCUDA {
		t.Errorf("Device = %v, want override cuda", got.Device)
	}
	if got.CascadeMode != CascadeHeuristic {
		t.Errorf("CascadeMode = %v, want override heuristic_always", got.CascadeMode)
	}
}

func TestParseLayoutResolution(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"full", 640, false},
		{"Medium", 512, false},
		{"fast", 448, false},
		{"640", 640, false},
		{"320x320", 320, false},
		{"224", 224, false},
		{"1280", 1280, false},
		{"100", 0, true},  // below minimum
		{"2000", 0, true}, // above maximum
		{"bogus", 0, true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			res, err := ParseLayoutResolution(c.in)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", c.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", c.in, err)
			}
			if res.Size != c.want {
				t.Errorf("Size = %d, want %d", res.Size, c.want)
			}
		})
	}
}

func TestLayoutResolutionString(t *testing.T) {
	if got := LayoutFull.String(); got != "full (640x640)" {
		t.Errorf("String() = %q", got)
	}
	custom, _ := CustomLayoutResolution(320)
	if got := custom.String(); got != "custom (320x320)" {
		t.Errorf("String() = %q", got)
	}
}

func TestExpectedSpeedup(t *testing.T) {
	if got := LayoutMedium.ExpectedSpeedup(); got < 1.5 || got > 1.6 {
		t.Errorf("ExpectedSpeedup(medium) = %v, want ~1.5625", got)
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := defaultConfig()
	cfg.LayoutResolution, _ = CustomLayoutResolution(320)

	m, err := NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := m.Update(*cfg); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got := m.Get()
	if got.LayoutResolution.Size != 320 {
		t.Errorf("LayoutResolution.Size = %d, want 320", got.LayoutResolution.Size)
	}
}
