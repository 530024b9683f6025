package controller

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wojiaojiao/Pacer/gait"
)

// JointConfig is one joint's PID gains, torque limit, and resting angle,
// keyed by joint id in Config.Joints. Mirrors spec.md §6's per-joint
// "kp, kv, ki, torque_limit, q0" options.
type JointConfig struct {
	Kp          float64 `yaml:"kp"`
	Kv          float64 `yaml:"kv"`
	Ki          float64 `yaml:"ki"`
	AntiWindup  bool    `yaml:"anti_windup"`
	TorqueLimit float64 `yaml:"torque_limit"`
	Q0          float64 `yaml:"q0"`
}

// TrunkGains are the PD gains of the trunk stabilizer's stance-foot
// acceleration bias (see com.go).
type TrunkGains struct {
	Kp float64 `yaml:"kp"`
	Kv float64 `yaml:"kv"`
}

// Config holds every recognized YAML option of spec.md §6.
type Config struct {
	Walk               bool `yaml:"walk"`
	TrunkStabilization bool `yaml:"trunk_stabilization"`
	ControlIDYN        bool `yaml:"control_idyn"`
	FrictionEstimation bool `yaml:"friction_estimation"`
	ParallelStiffness  bool `yaml:"parallel_stiffness"`

	StepSize   float64 `yaml:"step_size"`
	PhaseTime  float64 `yaml:"phase_time"`
	StepHeight float64 `yaml:"step_height"`

	// BodyTwist is (vx, vy, vz, wx, wy, wz) in the body-horizontal frame.
	BodyTwist [6]float64 `yaml:"body_twist"`

	Joints map[string]JointConfig `yaml:"joints"`

	// Gait names one of gait.Named's built-in descriptors.
	Gait string `yaml:"gait"`

	// AlphaIDYN weights the IDYN feed-forward term against PID feedback
	// (spec.md §4.8 step 3, §9's resolved default of 1.0).
	AlphaIDYN float64 `yaml:"alpha_idyn"`

	// IDYNBudget is the wall-clock budget an IDYN solve gets before the
	// tick falls back to PID-only (spec.md §5, default 5ms).
	IDYNBudget time.Duration `yaml:"idyn_budget"`

	Trunk TrunkGains `yaml:"trunk_gains"`
}

// DefaultConfig returns the spec.md §6 defaults.
func DefaultConfig() Config {
	return Config{
		StepSize:   0.01,
		PhaseTime:  0.1,
		StepHeight: 0.02,
		AlphaIDYN:  1.0,
		IDYNBudget: 5 * time.Millisecond,
		Gait:       "trot",
		Joints:     map[string]JointConfig{},
	}
}

// LoadConfig decodes YAML over DefaultConfig, so an option the document
// omits keeps its default rather than zeroing out.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("controller: decode config: %w", err)
	}
	return cfg, nil
}

// Twist converts BodyTwist into a gait.Twist.
func (c Config) Twist() gait.Twist {
	return gait.Twist{
		Vx: c.BodyTwist[0], Vy: c.BodyTwist[1], Vz: c.BodyTwist[2],
		Wx: c.BodyTwist[3], Wy: c.BodyTwist[4], Wz: c.BodyTwist[5],
	}
}

// gaitDescriptor resolves Config.Gait against gait.Named, falling back
// to Trot for an unrecognized name.
func (c Config) gaitDescriptor() gait.Descriptor {
	if d, ok := gait.Named(c.Gait); ok {
		return d
	}
	return gait.Trot
}
