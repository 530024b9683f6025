// Package pid closes a per-joint PD+integral loop on joint position
// and velocity error, producing the feedback torque ufb of spec.md
// §4.5.
package pid

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/wojiaojiao/Pacer/model"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "pid"})

// JointState holds one joint's feedback loop state across ticks: the
// integrator accumulator and the previous error sign, used to detect
// a sign flip for anti-windup reset.
type JointState struct {
	Integrator float64
	lastSign   float64
	primed     bool
}

// Controller runs one PID loop per joint, keyed by joint ID.
type Controller struct {
	joints map[string]*JointState
}

// NewController returns a Controller with no prior integrator state.
func NewController() *Controller {
	return &Controller{joints: map[string]*JointState{}}
}

// Reset zeroes the integrator and sign-tracking state for a joint, as
// if it had never run.
func (c *Controller) Reset(jointID string) {
	delete(c.joints, jointID)
}

// Step computes ufb for one joint given its gains, measured state,
// and goal state, advancing the integrator by dt.
func (c *Controller) Step(j model.Joint, q, qd, qDesired, qdDesired, dt float64) float64 {
	st, ok := c.joints[j.ID]
	if !ok {
		st = &JointState{}
		c.joints[j.ID] = st
	}

	e := qDesired - q
	ed := qdDesired - qd

	if j.Gains.AntiWindup && st.primed {
		if sign(e) != st.lastSign && sign(e) != 0 {
			st.Integrator = 0
		}
	}
	st.lastSign = sign(e)
	st.primed = true

	st.Integrator += e * dt

	u := j.Gains.Kp*e + j.Gains.Kv*ed + j.Gains.Ki*st.Integrator

	limit := j.TorqueLimit
	if limit > 0 {
		if u > limit {
			u = limit
		} else if u < -limit {
			u = -limit
		}
	}
	return u
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// Finite reports whether a computed torque is safe to command.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
