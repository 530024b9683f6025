package pid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wojiaojiao/Pacer/model"
)

func TestStepProducesProportionalTorque(t *testing.T) {
	c := NewController()
	j := model.Joint{ID: "hip", TorqueLimit: 10, Gains: model.PIDGains{Kp: 2}}

	u := c.Step(j, 0, 0, 1, 0, 0.01)
	assert.InDelta(t, 2, u, 1e-9)
}

func TestStepClampsToTorqueLimit(t *testing.T) {
	c := NewController()
	j := model.Joint{ID: "hip", TorqueLimit: 1, Gains: model.PIDGains{Kp: 100}}

	u := c.Step(j, 0, 0, 1, 0, 0.01)
	assert.Equal(t, 1.0, u)

	u = c.Step(j, 1, 0, 0, 0, 0.01)
	assert.Equal(t, -1.0, u)
}

func TestIntegratorAccumulatesOverTicks(t *testing.T) {
	c := NewController()
	j := model.Joint{ID: "hip", TorqueLimit: 100, Gains: model.PIDGains{Ki: 1}}

	c.Step(j, 0, 0, 1, 0, 0.1)
	u := c.Step(j, 0, 0, 1, 0, 0.1)
	// integrator after two ticks of e=1, dt=0.1 -> 0.2
	assert.InDelta(t, 0.2, u, 1e-9)
}

func TestAntiWindupResetsOnSignFlip(t *testing.T) {
	c := NewController()
	j := model.Joint{ID: "hip", TorqueLimit: 100, Gains: model.PIDGains{Ki: 1, AntiWindup: true}}

	c.Step(j, 0, 0, 1, 0, 0.1) // e=1, integrator -> 0.1
	u := c.Step(j, 0, 0, -1, 0, 0.1) // e=-1, sign flip -> integrator reset then += -0.1
	assert.InDelta(t, -0.1, u, 1e-9)
}

func TestResetClearsIntegrator(t *testing.T) {
	c := NewController()
	j := model.Joint{ID: "hip", TorqueLimit: 100, Gains: model.PIDGains{Ki: 1}}

	c.Step(j, 0, 0, 1, 0, 0.1)
	c.Reset("hip")
	u := c.Step(j, 0, 0, 1, 0, 0.1)
	assert.InDelta(t, 0.1, u, 1e-9)
}

func TestFiniteRejectsNaNAndInf(t *testing.T) {
	assert.False(t, Finite(nan()))
	assert.False(t, Finite(inf()))
	assert.True(t, Finite(1.0))
}

func nan() float64 { var z float64; return z / z }
func inf() float64 { var z float64; return 1 / z }
