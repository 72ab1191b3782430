package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningConfigPartial(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tuning.json", `{
		"grey_threshold": 40,
		"max_ray_distance": 0.1,
		"dvx_min": -2.5,
		"dvx_max": 2.5,
		"add_particles": false
	}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint8(40), cfg.GetGreyThreshold())
	assert.Equal(t, 4, cfg.GetMinPixels()) // default retained
	assert.Equal(t, 0.1, cfg.GetMaxRayDistance())
	assert.Equal(t, 0.25, cfg.GetMaxResidual())

	tp := cfg.TrackParams()
	assert.Equal(t, -2.5, tp.DVxMin)
	assert.Equal(t, 2.5, tp.DVxMax)
	assert.Equal(t, -10.0, tp.DVyMin)
	assert.False(t, tp.AddParticles)

	dp := cfg.DetectParams()
	assert.Equal(t, ptv.DetectParams{Threshold: 40, MinPixels: 4, MaxPixels: 400, MinSumGrey: 100}, dp)
}

func TestTuningConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := EmptyTuningConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint8(25), cfg.GetGreyThreshold())
	assert.Equal(t, 400, cfg.GetMaxPixels())
	assert.Equal(t, 100.0, cfg.GetMaxAngle())
	assert.Equal(t, 2.0, cfg.GetMaxAcceleration())
	assert.True(t, cfg.GetAddParticles())
	assert.True(t, cfg.Volume().IsZero())
}

func TestTuningConfigVolume(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tuning.json", `{
		"vol_x_min": -60, "vol_x_max": 60,
		"vol_y_min": -30, "vol_y_max": 30,
		"vol_z_min": -40, "vol_z_max": 40
	}`)
	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	vol := cfg.Volume()
	assert.Equal(t, calib.Volume{XMin: -60, XMax: 60, YMin: -30, YMax: 30, ZMin: -40, ZMax: 40}, vol)
	assert.False(t, vol.IsZero())
}

func TestTuningConfigValidation(t *testing.T) {
	t.Parallel()
	for name, content := range map[string]string{
		"threshold out of range": `{"grey_threshold": 300}`,
		"negative min pixels":    `{"min_pixels": -1}`,
		"max below min pixels":   `{"min_pixels": 10, "max_pixels": 5}`,
		"bad ray distance":       `{"max_ray_distance": 0}`,
		"bad angle":              `{"max_angle": 200}`,
		"inverted dv bounds":     `{"dvy_min": 3, "dvy_max": -3}`,
		"inverted volume":        `{"vol_z_min": 10, "vol_z_max": -10}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, "tuning.json", content)
			_, err := LoadTuningConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tuning.yaml", `grey_threshold: 40`)
	_, err := LoadTuningConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json")
}

func TestLoadCalibration(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "calib.json", `{
		"cameras": [
			{
				"name": "c0",
				"exterior": {"x0": -50, "z0": 200},
				"interior": {"xh": 64, "yh": 64, "cc": 200}
			},
			{
				"exterior": {"x0": 50, "z0": 200, "omega": 0.02},
				"interior": {"xh": 64, "yh": 64, "cc": 200},
				"distortion": {"k1": 1e-4},
				"multimedia": {"n1": 1, "n2": 1.46, "n3": 1.33, "d": 5, "z": 100}
			}
		]
	}`)

	cams, err := LoadCalibration(path)
	require.NoError(t, err)
	require.Len(t, cams, 2)
	assert.Equal(t, "c0", cams[0].Name)
	assert.Equal(t, "cam1", cams[1].Name) // unnamed cameras get positional names
	assert.Equal(t, calib.Vec3{X: -50, Z: 200}, cams[0].Position())
}

func TestLoadCalibrationErrors(t *testing.T) {
	t.Parallel()

	t.Run("no cameras", func(t *testing.T) {
		path := writeConfig(t, "calib.json", `{"cameras": []}`)
		_, err := LoadCalibration(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ptv.ErrConfiguration)
	})

	t.Run("too many cameras", func(t *testing.T) {
		cam := `{"exterior": {"z0": 200}, "interior": {"xh": 64, "yh": 64, "cc": 200}}`
		path := writeConfig(t, "calib.json",
			`{"cameras": [`+cam+`,`+cam+`,`+cam+`,`+cam+`,`+cam+`]}`)
		_, err := LoadCalibration(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ptv.ErrConfiguration)
	})

	t.Run("zero principal distance", func(t *testing.T) {
		path := writeConfig(t, "calib.json",
			`{"cameras": [{"exterior": {"z0": 200}, "interior": {"xh": 64, "yh": 64}}]}`)
		_, err := LoadCalibration(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ptv.ErrConfiguration)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCalibration(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}
