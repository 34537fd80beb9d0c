package config

import (
	"encoding/json"
	"os"
)

// Config holds runtime configuration for frame analysis and app behavior.
// Fields may be loaded from a JSON file and overridden at startup.
type Config struct {
	Debug bool `json:"debug"`

	// Working resolution for zoom metric computation. Frames are downsampled
	// to this size before any frame-to-frame comparison.
	WorkingWidth  int `json:"working_width"`
	WorkingHeight int `json:"working_height"`

	// ROIFraction is the central fraction of the frame (per axis) analyzed by
	// the feature digest extractor. Border content is less stable across zoom.
	ROIFraction float64 `json:"roi_fraction"`

	// ScaleSet is the fixed candidate scale set, ascending. Predictions are
	// permutations of this set.
	ScaleSet []float64 `json:"scale_set"`

	// Scale predictor thresholds (calibrated; see scale.RefitThresholds).
	DensityVeryLow float64 `json:"density_very_low"`
	DensityLow     float64 `json:"density_low"`
	ResponseWeak   float64 `json:"response_weak"`
	ResponseNormal float64 `json:"response_normal"`
	EnergyFloor    float64 `json:"energy_floor"`
	SizeCoarse     float64 `json:"size_coarse"`

	// Feature detector parameters. Few levels and a permissive threshold
	// trade recall for latency.
	DetectorLevels    int `json:"detector_levels"`
	DetectorThreshold int `json:"detector_threshold"`

	// Zoom metric parameters.
	HistogramBins int     `json:"histogram_bins"`
	EdgeThreshold float64 `json:"edge_threshold"`

	// Calibration parameters.
	ZoomMaxPercent    float64 `json:"zoom_max_percent"`
	ZoomStepPercent   float64 `json:"zoom_step_percent"`
	NoiseTrials       int     `json:"noise_trials"`
	NoiseSigma        float64 `json:"noise_sigma"`
	ConfidenceK       float64 `json:"confidence_k"`
	MinTrainingPoints int     `json:"min_training_points"`
	ResidualTolerance float64 `json:"residual_tolerance"`

	// Scene-change guard: maximum perception-hash Hamming distance between
	// consecutive frames still considered the same scene.
	MaxHashDistance int `json:"max_hash_distance"`

	// Reference map acquisition.
	MapURL    string `json:"map_url"`
	AssetName string `json:"asset_name"`

	// Capture loop.
	CaptureIntervalMs int    `json:"capture_interval_ms"`
	GameWindowTitle   string `json:"game_window_title"`

	// Selection rectangle persistence.
	SelectionX int `json:"selection_x"`
	SelectionY int `json:"selection_y"`
	SelectionW int `json:"selection_w"`
	SelectionH int `json:"selection_h"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:             false,
		WorkingWidth:      240,
		WorkingHeight:     108,
		ROIFraction:       0.5,
		ScaleSet:          []float64{0.25, 0.5, 1.0},
		DensityVeryLow:    2e-4,
		DensityLow:        5e-4,
		ResponseWeak:      0.003,
		ResponseNormal:    0.006,
		EnergyFloor:       5.0,
		SizeCoarse:        20,
		DetectorLevels:    3,
		DetectorThreshold: 12,
		HistogramBins:     32,
		EdgeThreshold:     60,
		ZoomMaxPercent:    5.0,
		ZoomStepPercent:   0.1,
		NoiseTrials:       30,
		NoiseSigma:        3.0,
		ConfidenceK:       3.0,
		MinTrainingPoints: 10,
		ResidualTolerance: 0.5,
		MaxHashDistance:   10,
		MapURL:            "",
		AssetName:         "reference_map.png",
		CaptureIntervalMs: 100,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if c.WorkingWidth < 16 {
		c.WorkingWidth = 240
	}
	if c.WorkingHeight < 16 {
		c.WorkingHeight = 108
	}
	if c.ROIFraction <= 0 || c.ROIFraction > 1 {
		c.ROIFraction = 0.5
	}
	if len(c.ScaleSet) == 0 {
		c.ScaleSet = []float64{0.25, 0.5, 1.0}
	}
	if c.DensityVeryLow <= 0 {
		c.DensityVeryLow = 2e-4
	}
	if c.DensityLow <= c.DensityVeryLow {
		c.DensityLow = c.DensityVeryLow * 2.5
	}
	if c.EnergyFloor <= 0 {
		c.EnergyFloor = 5.0
	}
	if c.SizeCoarse <= 0 {
		c.SizeCoarse = 20
	}
	if c.DetectorLevels <= 0 || c.DetectorLevels > 5 {
		c.DetectorLevels = 3
	}
	if c.DetectorThreshold <= 0 || c.DetectorThreshold > 128 {
		c.DetectorThreshold = 12
	}
	if c.HistogramBins < 4 {
		c.HistogramBins = 32
	}
	if c.EdgeThreshold <= 0 {
		c.EdgeThreshold = 60
	}
	if c.ZoomMaxPercent <= 0 {
		c.ZoomMaxPercent = 5.0
	}
	if c.ZoomStepPercent <= 0 || c.ZoomStepPercent > c.ZoomMaxPercent {
		c.ZoomStepPercent = 0.1
	}
	if c.NoiseTrials < 2 {
		c.NoiseTrials = 30
	}
	if c.NoiseSigma <= 0 {
		c.NoiseSigma = 3.0
	}
	if c.ConfidenceK <= 0 {
		c.ConfidenceK = 3.0
	}
	if c.MinTrainingPoints < 3 {
		c.MinTrainingPoints = 10
	}
	if c.ResidualTolerance <= 0 {
		c.ResidualTolerance = 0.5
	}
	if c.MaxHashDistance <= 0 {
		c.MaxHashDistance = 10
	}
	if c.CaptureIntervalMs <= 0 {
		c.CaptureIntervalMs = 100
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
