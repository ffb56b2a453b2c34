// Package config handles worldfix configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrConfig marks invalid configuration. Tools fail fast on it before
// touching any input artifact.
var ErrConfig = errors.New("invalid configuration")

// Config holds all tuning settings for the repair pipeline.
type Config struct {
	Mesh        MeshConfig        `yaml:"mesh"`
	Orientation OrientationConfig `yaml:"orientation"`
	Optimize    OptimizeConfig    `yaml:"optimize"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// MeshConfig holds normal-repair settings.
type MeshConfig struct {
	// Scale is the uniform scale applied to mesh references in the world.
	Scale float64 `yaml:"scale"`
	// Simple collapses all submesh groups into one before repair.
	Simple bool `yaml:"simple"`
	// DegenerateEpsilon is the cross-product magnitude below which a face
	// is treated as degenerate and skipped.
	DegenerateEpsilon float64 `yaml:"degenerate_epsilon"`
}

// OrientationConfig holds up-axis correction settings.
type OrientationConfig struct {
	// Factor: the fix triggers when the up-axis extent exceeds the larger
	// horizontal extent by more than this factor.
	Factor float64 `yaml:"factor"`
	// Rotation is the corrective rotation as "roll pitch yaw" in radians.
	Rotation string `yaml:"rotation"`
}

// OptimizeConfig holds world optimization thresholds and target values.
type OptimizeConfig struct {
	// LargeMeshFaces: models referencing meshes above this face count get
	// a box collision proxy instead of full mesh collision.
	LargeMeshFaces int `yaml:"large_mesh_faces"`
	// SceneFaces: total scene face count above which the global
	// performance tier kicks in (cheaper physics, no shadows).
	SceneFaces int `yaml:"scene_faces"`

	// Performance-tier physics targets.
	SolverIters         int     `yaml:"solver_iters"`
	MaxStepSize         float64 `yaml:"max_step_size"`
	RealTimeUpdateRate  float64 `yaml:"real_time_update_rate"`
	ContactSurfaceLayer float64 `yaml:"contact_surface_layer"`
	MaxContacts         int     `yaml:"max_contacts"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with documented default values.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Scale:             1.0,
			Simple:            false,
			DegenerateEpsilon: 1e-12,
		},
		Orientation: OrientationConfig{
			Factor:   3.0,
			Rotation: "1.5708 0 0", // 90° roll, vertical to horizontal
		},
		Optimize: OptimizeConfig{
			LargeMeshFaces:      50000,
			SceneFaces:          100000,
			SolverIters:         5,
			MaxStepSize:         0.01,
			RealTimeUpdateRate:  100,
			ContactSurfaceLayer: 0.01,
			MaxContacts:         10,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks the configuration, returning ErrConfig-wrapped errors.
func (c *Config) Validate() error {
	if c.Mesh.Scale <= 0 {
		return fmt.Errorf("%w: mesh scale must be positive, got %v", ErrConfig, c.Mesh.Scale)
	}
	if c.Mesh.DegenerateEpsilon <= 0 {
		return fmt.Errorf("%w: degenerate epsilon must be positive, got %v", ErrConfig, c.Mesh.DegenerateEpsilon)
	}
	if c.Orientation.Factor <= 1 {
		return fmt.Errorf("%w: orientation factor must exceed 1, got %v", ErrConfig, c.Orientation.Factor)
	}
	if _, err := c.Orientation.RPY(); err != nil {
		return err
	}
	if c.Optimize.LargeMeshFaces <= 0 {
		return fmt.Errorf("%w: large mesh face threshold must be positive, got %d", ErrConfig, c.Optimize.LargeMeshFaces)
	}
	if c.Optimize.SceneFaces <= 0 {
		return fmt.Errorf("%w: scene face threshold must be positive, got %d", ErrConfig, c.Optimize.SceneFaces)
	}
	if c.Optimize.SolverIters <= 0 {
		return fmt.Errorf("%w: solver iterations must be positive, got %d", ErrConfig, c.Optimize.SolverIters)
	}
	if c.Optimize.MaxStepSize <= 0 {
		return fmt.Errorf("%w: max step size must be positive, got %v", ErrConfig, c.Optimize.MaxStepSize)
	}
	if c.Optimize.RealTimeUpdateRate <= 0 {
		return fmt.Errorf("%w: real time update rate must be positive, got %v", ErrConfig, c.Optimize.RealTimeUpdateRate)
	}
	if c.Optimize.ContactSurfaceLayer <= 0 {
		return fmt.Errorf("%w: contact surface layer must be positive, got %v", ErrConfig, c.Optimize.ContactSurfaceLayer)
	}
	if c.Optimize.MaxContacts <= 0 {
		return fmt.Errorf("%w: max contacts must be positive, got %d", ErrConfig, c.Optimize.MaxContacts)
	}
	return nil
}

// RPY parses the corrective rotation into roll/pitch/yaw radians.
func (o OrientationConfig) RPY() ([3]float64, error) {
	fields := strings.Fields(o.Rotation)
	if len(fields) != 3 {
		return [3]float64{}, fmt.Errorf("%w: rotation must be three radians values, got %q", ErrConfig, o.Rotation)
	}
	var rpy [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return [3]float64{}, fmt.Errorf("%w: rotation component %q is not numeric", ErrConfig, f)
		}
		rpy[i] = v
	}
	return rpy, nil
}
