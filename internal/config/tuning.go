package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
)

// TuningConfig represents the root configuration for reconstruction and
// tracking parameters. Fields omitted from the JSON file fall back to
// the defaults provided by the Get* accessors, so partial configs are
// safe.
type TuningConfig struct {
	// Detection params
	GreyThreshold *int `json:"grey_threshold,omitempty"`
	MinPixels     *int `json:"min_pixels,omitempty"`
	MaxPixels     *int `json:"max_pixels,omitempty"`
	MinSumGrey    *int `json:"min_sum_grey,omitempty"`
	Discontinuity *int `json:"discontinuity,omitempty"`

	// Correspondence params
	MaxRayDistance *float64 `json:"max_ray_distance,omitempty"`
	MaxResidual    *float64 `json:"max_residual,omitempty"`

	// Observation volume bounds (mm)
	VolXMin *float64 `json:"vol_x_min,omitempty"`
	VolXMax *float64 `json:"vol_x_max,omitempty"`
	VolYMin *float64 `json:"vol_y_min,omitempty"`
	VolYMax *float64 `json:"vol_y_max,omitempty"`
	VolZMin *float64 `json:"vol_z_min,omitempty"`
	VolZMax *float64 `json:"vol_z_max,omitempty"`

	// Tracking params (per frame step)
	DVxMin          *float64 `json:"dvx_min,omitempty"`
	DVxMax          *float64 `json:"dvx_max,omitempty"`
	DVyMin          *float64 `json:"dvy_min,omitempty"`
	DVyMax          *float64 `json:"dvy_max,omitempty"`
	DVzMin          *float64 `json:"dvz_min,omitempty"`
	DVzMax          *float64 `json:"dvz_max,omitempty"`
	MaxAngle        *float64 `json:"max_angle,omitempty"`
	MaxAcceleration *float64 `json:"max_acceleration,omitempty"`
	AddParticles    *bool    `json:"add_particles,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.GreyThreshold != nil {
		if *c.GreyThreshold < 0 || *c.GreyThreshold > 255 {
			return fmt.Errorf("grey_threshold must be between 0 and 255, got %d", *c.GreyThreshold)
		}
	}
	if c.MinPixels != nil && *c.MinPixels < 0 {
		return fmt.Errorf("min_pixels must be non-negative, got %d", *c.MinPixels)
	}
	if c.MinPixels != nil && c.MaxPixels != nil && *c.MaxPixels > 0 && *c.MaxPixels < *c.MinPixels {
		return fmt.Errorf("max_pixels (%d) below min_pixels (%d)", *c.MaxPixels, *c.MinPixels)
	}
	if c.MaxRayDistance != nil && *c.MaxRayDistance <= 0 {
		return fmt.Errorf("max_ray_distance must be positive, got %f", *c.MaxRayDistance)
	}
	if c.MaxResidual != nil && *c.MaxResidual <= 0 {
		return fmt.Errorf("max_residual must be positive, got %f", *c.MaxResidual)
	}
	if c.MaxAngle != nil && (*c.MaxAngle <= 0 || *c.MaxAngle > 180) {
		return fmt.Errorf("max_angle must be in (0, 180], got %f", *c.MaxAngle)
	}
	if c.MaxAcceleration != nil && *c.MaxAcceleration <= 0 {
		return fmt.Errorf("max_acceleration must be positive, got %f", *c.MaxAcceleration)
	}

	bounds := []struct {
		name     string
		min, max *float64
	}{
		{"dvx", c.DVxMin, c.DVxMax},
		{"dvy", c.DVyMin, c.DVyMax},
		{"dvz", c.DVzMin, c.DVzMax},
		{"vol_x", c.VolXMin, c.VolXMax},
		{"vol_y", c.VolYMin, c.VolYMax},
		{"vol_z", c.VolZMin, c.VolZMax},
	}
	for _, b := range bounds {
		if b.min != nil && b.max != nil && *b.max < *b.min {
			return fmt.Errorf("%s_max (%f) below %s_min (%f)", b.name, *b.max, b.name, *b.min)
		}
	}

	return nil
}

// GetGreyThreshold returns the grey_threshold value or the default.
func (c *TuningConfig) GetGreyThreshold() uint8 {
	if c.GreyThreshold == nil {
		return 25 // default
	}
	return uint8(*c.GreyThreshold)
}

// GetMinPixels returns the min_pixels value or the default.
func (c *TuningConfig) GetMinPixels() int {
	if c.MinPixels == nil {
		return 4
	}
	return *c.MinPixels
}

// GetMaxPixels returns the max_pixels value or the default.
func (c *TuningConfig) GetMaxPixels() int {
	if c.MaxPixels == nil {
		return 400
	}
	return *c.MaxPixels
}

// GetMinSumGrey returns the min_sum_grey value or the default.
func (c *TuningConfig) GetMinSumGrey() int {
	if c.MinSumGrey == nil {
		return 100
	}
	return *c.MinSumGrey
}

// GetDiscontinuity returns the discontinuity value or the default.
func (c *TuningConfig) GetDiscontinuity() int {
	if c.Discontinuity == nil {
		return 0 // default: growth not limited by intensity steps
	}
	return *c.Discontinuity
}

// GetMaxRayDistance returns the max_ray_distance value or the default.
func (c *TuningConfig) GetMaxRayDistance() float64 {
	if c.MaxRayDistance == nil {
		return 0.25
	}
	return *c.MaxRayDistance
}

// GetMaxResidual returns the max_residual value or the default.
func (c *TuningConfig) GetMaxResidual() float64 {
	if c.MaxResidual == nil {
		return 0.25
	}
	return *c.MaxResidual
}

// GetMaxAngle returns the max_angle value or the default.
func (c *TuningConfig) GetMaxAngle() float64 {
	if c.MaxAngle == nil {
		return 100
	}
	return *c.MaxAngle
}

// GetMaxAcceleration returns the max_acceleration value or the default.
func (c *TuningConfig) GetMaxAcceleration() float64 {
	if c.MaxAcceleration == nil {
		return 2.0
	}
	return *c.MaxAcceleration
}

// GetAddParticles returns the add_particles value or the default.
func (c *TuningConfig) GetAddParticles() bool {
	if c.AddParticles == nil {
		return true
	}
	return *c.AddParticles
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// DetectParams assembles the detection parameter block.
func (c *TuningConfig) DetectParams() ptv.DetectParams {
	return ptv.DetectParams{
		Threshold:     c.GetGreyThreshold(),
		MinPixels:     c.GetMinPixels(),
		MaxPixels:     c.GetMaxPixels(),
		MinSumGrey:    c.GetMinSumGrey(),
		Discontinuity: c.GetDiscontinuity(),
	}
}

// CorrespondParams assembles the correspondence parameter block.
func (c *TuningConfig) CorrespondParams() ptv.CorrespondParams {
	return ptv.CorrespondParams{
		MaxRayDist:  c.GetMaxRayDistance(),
		MaxResidual: c.GetMaxResidual(),
	}
}

// TrackParams assembles the tracking parameter block.
func (c *TuningConfig) TrackParams() ptv.TrackParams {
	return ptv.TrackParams{
		DVxMin:       orDefault(c.DVxMin, -10),
		DVxMax:       orDefault(c.DVxMax, 10),
		DVyMin:       orDefault(c.DVyMin, -10),
		DVyMax:       orDefault(c.DVyMax, 10),
		DVzMin:       orDefault(c.DVzMin, -10),
		DVzMax:       orDefault(c.DVzMax, 10),
		MaxAngle:     c.GetMaxAngle(),
		MaxAcc:       c.GetMaxAcceleration(),
		AddParticles: c.GetAddParticles(),
	}
}

// Volume assembles the observation volume. All-nil bounds yield the
// zero volume, which disables the volume check.
func (c *TuningConfig) Volume() calib.Volume {
	return calib.Volume{
		XMin: orDefault(c.VolXMin, 0),
		XMax: orDefault(c.VolXMax, 0),
		YMin: orDefault(c.VolYMin, 0),
		YMax: orDefault(c.VolYMax, 0),
		ZMin: orDefault(c.VolZMin, 0),
		ZMax: orDefault(c.VolZMax, 0),
	}
}
