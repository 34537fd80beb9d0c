package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.WorkingWidth != before.WorkingWidth || cfg.DensityVeryLow != before.DensityVeryLow {
		t.Error("Validate changed default values")
	}
}

func TestValidateClampsBadValues(t *testing.T) {
	cfg := &Config{
		WorkingWidth:    -1,
		ROIFraction:     2.0,
		DensityVeryLow:  -1,
		DensityLow:      0,
		DetectorLevels:  99,
		ZoomStepPercent: 100, // above ZoomMaxPercent after clamp
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if cfg.WorkingWidth < 16 {
		t.Errorf("WorkingWidth = %d, want clamped", cfg.WorkingWidth)
	}
	if cfg.ROIFraction <= 0 || cfg.ROIFraction > 1 {
		t.Errorf("ROIFraction = %v", cfg.ROIFraction)
	}
	if cfg.DensityLow <= cfg.DensityVeryLow {
		t.Errorf("DensityLow %v not above DensityVeryLow %v", cfg.DensityLow, cfg.DensityVeryLow)
	}
	if cfg.DetectorLevels > 5 {
		t.Errorf("DetectorLevels = %d", cfg.DetectorLevels)
	}
	if cfg.ZoomStepPercent > cfg.ZoomMaxPercent {
		t.Errorf("ZoomStepPercent %v above max %v", cfg.ZoomStepPercent, cfg.ZoomMaxPercent)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	def := DefaultConfig()
	if cfg.WorkingWidth != def.WorkingWidth || cfg.ZoomMaxPercent != def.ZoomMaxPercent {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if cfg == nil || cfg.WorkingWidth != DefaultConfig().WorkingWidth {
		t.Error("defaults should survive a decode error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.ZoomMaxPercent = 4.0
	cfg.GameWindowTitle = "Red Dead"
	cfg.SelectionX, cfg.SelectionY, cfg.SelectionW, cfg.SelectionH = 10, 20, 300, 200

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if !got.Debug || got.ZoomMaxPercent != 4.0 || got.GameWindowTitle != "Red Dead" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.SelectionW != 300 || got.SelectionH != 200 {
		t.Errorf("selection lost: %+v", got)
	}
}
