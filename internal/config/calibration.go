package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fluidmetrics/ptv3d/internal/ptv"
	"github.com/fluidmetrics/ptv3d/internal/ptv/calib"
)

// CameraConfig is one camera's calibration as stored on disk. Angles
// are radians, lengths mm, the principal point and distance pixels.
type CameraConfig struct {
	Name     string `json:"name"`
	Exterior struct {
		X0    float64 `json:"x0"`
		Y0    float64 `json:"y0"`
		Z0    float64 `json:"z0"`
		Omega float64 `json:"omega"`
		Phi   float64 `json:"phi"`
		Kappa float64 `json:"kappa"`
	} `json:"exterior"`
	Interior struct {
		XH float64 `json:"xh"`
		YH float64 `json:"yh"`
		CC float64 `json:"cc"`
	} `json:"interior"`
	Distortion struct {
		K1 float64 `json:"k1"`
		K2 float64 `json:"k2"`
		K3 float64 `json:"k3"`
		P1 float64 `json:"p1"`
		P2 float64 `json:"p2"`
	} `json:"distortion"`
	// Multimedia is optional; absent means a single-medium setup.
	Multimedia *struct {
		N1 float64 `json:"n1"`
		N2 float64 `json:"n2"`
		N3 float64 `json:"n3"`
		D  float64 `json:"d"`
		Z  float64 `json:"z"`
	} `json:"multimedia,omitempty"`
}

// CalibrationConfig is the on-disk camera set.
type CalibrationConfig struct {
	Cameras []CameraConfig `json:"cameras"`
}

// LoadCalibration reads a calibration JSON file and builds the camera
// set in file order.
func LoadCalibration(path string) ([]*calib.Camera, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var cfg CalibrationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse calibration JSON: %w", err)
	}
	if len(cfg.Cameras) == 0 {
		return nil, fmt.Errorf("%w: calibration file %s lists no cameras", ptv.ErrConfiguration, path)
	}
	if len(cfg.Cameras) > ptv.MaxCameras {
		return nil, fmt.Errorf("%w: calibration file %s lists %d cameras, maximum is %d",
			ptv.ErrConfiguration, path, len(cfg.Cameras), ptv.MaxCameras)
	}

	cams := make([]*calib.Camera, 0, len(cfg.Cameras))
	for i, cc := range cfg.Cameras {
		name := cc.Name
		if name == "" {
			name = fmt.Sprintf("cam%d", i)
		}
		var mm *calib.Multimedia
		if cc.Multimedia != nil {
			mm = &calib.Multimedia{
				N1: cc.Multimedia.N1,
				N2: cc.Multimedia.N2,
				N3: cc.Multimedia.N3,
				D:  cc.Multimedia.D,
				Z:  cc.Multimedia.Z,
			}
		}
		cam, err := calib.NewCamera(name,
			calib.Exterior{
				X0: cc.Exterior.X0, Y0: cc.Exterior.Y0, Z0: cc.Exterior.Z0,
				Omega: cc.Exterior.Omega, Phi: cc.Exterior.Phi, Kappa: cc.Exterior.Kappa,
			},
			calib.Interior{XH: cc.Interior.XH, YH: cc.Interior.YH, CC: cc.Interior.CC},
			calib.Distortion{
				K1: cc.Distortion.K1, K2: cc.Distortion.K2, K3: cc.Distortion.K3,
				P1: cc.Distortion.P1, P2: cc.Distortion.P2,
			},
			mm)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ptv.ErrConfiguration, err)
		}
		cams = append(cams, cam)
	}
	return cams, nil
}
