// Package config loads the tuning parameters for guidance, cluster
// detection and session behaviour from a JSON file. Fields omitted from
// the file fall back to the canonical defaults, so partial configs are
// safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file,
// the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root tuning schema. All fields are pointers so a
// partial JSON file only overrides what it names; the Get* accessors
// supply defaults for the rest.
type TuningConfig struct {
	// Guidance params
	CentreX               *float64 `json:"centre_x,omitempty"`
	CentreY               *float64 `json:"centre_y,omitempty"`
	CentreRadius          *float64 `json:"centre_radius,omitempty"`
	ConvictionMax         *int     `json:"conviction_max,omitempty"`
	ConvictionInOnDetect  *int     `json:"conviction_in_on_detect,omitempty"`
	ConvictionOutNoDetect *int     `json:"conviction_out_no_detect,omitempty"`
	SmoothingAlpha        *float64 `json:"smoothing_alpha,omitempty"`

	// Text cluster detector params
	GridRows               *int     `json:"grid_rows,omitempty"`
	GridCols               *int     `json:"grid_cols,omitempty"`
	BaseFillEmptyThreshold *float64 `json:"base_fill_empty_threshold,omitempty"`
	EmptyThreshold         *float64 `json:"empty_threshold,omitempty"`
	StripSize              *int     `json:"strip_size,omitempty"`
	AngleStepDeg           *float64 `json:"angle_step_deg,omitempty"`
	AngleSteps             *int     `json:"angle_steps,omitempty"`

	// Session params (durations as strings like "5s")
	QueryTimeout         *string  `json:"query_timeout,omitempty"`
	AutoOffTimeout       *string  `json:"auto_off_timeout,omitempty"`
	SharpnessThreshold   *float64 `json:"sharpness_threshold,omitempty"`
	SharpnessRelaxFactor *float64 `json:"sharpness_relax_factor,omitempty"`
	MinTextConfidence    *float64 `json:"min_text_confidence,omitempty"`
}

// Tuning defaults.
const (
	defaultCentreX               = 0.5
	defaultCentreY               = 0.5
	defaultCentreRadius          = 0.12
	defaultConvictionMax         = 10
	defaultConvictionInOnDetect  = 3
	defaultConvictionOutNoDetect = 1
	defaultSmoothingAlpha        = 0.35

	defaultGridRows               = 100
	defaultGridCols               = 100
	defaultBaseFillEmptyThreshold = 0.65
	defaultEmptyThreshold         = 0.9
	defaultStripSize              = 3
	defaultAngleStepDeg           = 2.5
	defaultAngleSteps             = 4

	defaultQueryTimeout         = 6 * time.Second
	defaultAutoOffTimeout       = 90 * time.Second
	defaultSharpnessThreshold   = 0.6
	defaultSharpnessRelaxFactor = 0.9
	defaultMinTextConfidence    = 0.3
)

// EmptyTuningConfig returns a TuningConfig with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

func (c *TuningConfig) GetCentreX() float64 { return f64(c.CentreX, defaultCentreX) }
func (c *TuningConfig) GetCentreY() float64 { return f64(c.CentreY, defaultCentreY) }
func (c *TuningConfig) GetCentreRadius() float64 {
	return f64(c.CentreRadius, defaultCentreRadius)
}
func (c *TuningConfig) GetConvictionMax() int { return i(c.ConvictionMax, defaultConvictionMax) }
func (c *TuningConfig) GetConvictionInOnDetect() int {
	return i(c.ConvictionInOnDetect, defaultConvictionInOnDetect)
}
func (c *TuningConfig) GetConvictionOutNoDetect() int {
	return i(c.ConvictionOutNoDetect, defaultConvictionOutNoDetect)
}
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	return f64(c.SmoothingAlpha, defaultSmoothingAlpha)
}

func (c *TuningConfig) GetGridRows() int { return i(c.GridRows, defaultGridRows) }
func (c *TuningConfig) GetGridCols() int { return i(c.GridCols, defaultGridCols) }
func (c *TuningConfig) GetBaseFillEmptyThreshold() float64 {
	return f64(c.BaseFillEmptyThreshold, defaultBaseFillEmptyThreshold)
}
func (c *TuningConfig) GetEmptyThreshold() float64 {
	return f64(c.EmptyThreshold, defaultEmptyThreshold)
}
func (c *TuningConfig) GetStripSize() int { return i(c.StripSize, defaultStripSize) }
func (c *TuningConfig) GetAngleStepDeg() float64 {
	return f64(c.AngleStepDeg, defaultAngleStepDeg)
}
func (c *TuningConfig) GetAngleSteps() int { return i(c.AngleSteps, defaultAngleSteps) }

func (c *TuningConfig) GetQueryTimeout() time.Duration {
	return duration(c.QueryTimeout, defaultQueryTimeout)
}
func (c *TuningConfig) GetAutoOffTimeout() time.Duration {
	return duration(c.AutoOffTimeout, defaultAutoOffTimeout)
}
func (c *TuningConfig) GetSharpnessThreshold() float64 {
	return f64(c.SharpnessThreshold, defaultSharpnessThreshold)
}
func (c *TuningConfig) GetSharpnessRelaxFactor() float64 {
	return f64(c.SharpnessRelaxFactor, defaultSharpnessRelaxFactor)
}
func (c *TuningConfig) GetMinTextConfidence() float64 {
	return f64(c.MinTextConfidence, defaultMinTextConfidence)
}

// Validate rejects values that would make the pipeline misbehave.
func (c *TuningConfig) Validate() error {
	if v := c.GetCentreRadius(); v <= 0 || v >= 0.5 {
		return fmt.Errorf("centre_radius must be in (0, 0.5), got %v", v)
	}
	if v := c.GetSmoothingAlpha(); v <= 0 || v > 1 {
		return fmt.Errorf("smoothing_alpha must be in (0, 1], got %v", v)
	}
	if v := c.GetConvictionMax(); v < 1 {
		return fmt.Errorf("conviction_max must be >= 1, got %d", v)
	}
	if v := c.GetConvictionInOnDetect(); v < 1 || v > c.GetConvictionMax() {
		return fmt.Errorf("conviction_in_on_detect must be in [1, conviction_max], got %d", v)
	}
	if v := c.GetConvictionOutNoDetect(); v < 1 {
		return fmt.Errorf("conviction_out_no_detect must be >= 1, got %d", v)
	}
	if v := c.GetGridRows(); v < 2 {
		return fmt.Errorf("grid_rows must be >= 2, got %d", v)
	}
	if v := c.GetGridCols(); v < 2 {
		return fmt.Errorf("grid_cols must be >= 2, got %d", v)
	}
	if v := c.GetEmptyThreshold(); v <= c.GetBaseFillEmptyThreshold() {
		return fmt.Errorf("empty_threshold (%v) must be stricter than base_fill_empty_threshold (%v)",
			v, c.GetBaseFillEmptyThreshold())
	}
	if v := c.GetStripSize(); v < 1 {
		return fmt.Errorf("strip_size must be >= 1, got %d", v)
	}
	if v := c.GetSharpnessRelaxFactor(); v <= 0 || v >= 1 {
		return fmt.Errorf("sharpness_relax_factor must be in (0, 1), got %v", v)
	}
	if _, err := time.ParseDuration(s(c.QueryTimeout, defaultQueryTimeout.String())); err != nil {
		return fmt.Errorf("invalid query_timeout: %w", err)
	}
	if _, err := time.ParseDuration(s(c.AutoOffTimeout, defaultAutoOffTimeout.String())); err != nil {
		return fmt.Errorf("invalid auto_off_timeout: %w", err)
	}
	return nil
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The path must
// carry a .json extension and stay under the size cap; omitted fields
// keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults, searching upward
// from the working directory. Panics when the file cannot be found;
// intended for tests and binaries that have already validated config
// availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from the repository root")
}

func f64(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func i(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func s(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func duration(p *string, def time.Duration) time.Duration {
	if p == nil {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}
