package gait

import (
	"fmt"
	"math"

	"github.com/wojiaojiao/Pacer/math3d"
)

// Twist is a desired body velocity in the body-horizontal frame:
// linear (Vx, Vy, Vz) plus angular (Wx, Wy, Wz). Mirrors spec.md §6's
// `body_twist` config option.
type Twist struct {
	Vx, Vy, Vz float64
	Wx, Wy, Wz float64
}

func (t Twist) linear() math3d.Vector3 {
	return math3d.Vector3{X: t.Vx, Y: t.Vy, Z: t.Vz}
}

func (t Twist) angular() math3d.Vector3 {
	return math3d.Vector3{X: t.Wx, Y: t.Wy, Z: t.Wz}
}

// groundVelocityAt returns the velocity, in the body-horizontal frame,
// of the body point at origin under the commanded body twist: the
// rigid-body composition of the linear twist with the angular twist
// crossed into the foot's lever arm. The ground appears to move under
// a foot resting there at the negative of this velocity.
func (t Twist) groundVelocityAt(origin math3d.Vector3) math3d.Vector3 {
	return *t.linear().Add(t.angular().Cross(origin))
}

// FootRef is the planner's output for one foot: a Cartesian
// (position, velocity, acceleration) tuple in the body-horizontal
// frame, plus whether the gait currently commands stance.
type FootRef struct {
	Pos, Vel, Acc math3d.Vector3
	Stance        bool
}

// Planner evaluates a Descriptor against a clock to produce per-foot
// references, per spec.md §4.3.
type Planner struct {
	G Descriptor

	// Origins is each foot's nominal position in the body-horizontal
	// frame, indexed the same as G's columns.
	Origins []math3d.Vector3

	// PhaseTime is τ, the duration of a single descriptor row/bucket.
	PhaseTime float64

	// StepHeight is h, the peak swing height.
	StepHeight float64

	// CaptureFraction places the swing touchdown point this fraction
	// of the way through the upcoming stance run, ahead of the foot's
	// origin (spec.md §9's resolved default is 0.5).
	CaptureFraction float64
}

// NewPlanner returns a Planner with CaptureFraction defaulted to 0.5.
func NewPlanner(g Descriptor, origins []math3d.Vector3, phaseTime, stepHeight float64) (*Planner, error) {
	if g.NumFeet() != len(origins) {
		return nil, fmt.Errorf("gait: descriptor has %d feet, got %d origins", g.NumFeet(), len(origins))
	}
	if phaseTime <= 0 {
		return nil, fmt.Errorf("gait: phase_time must be positive, got %v", phaseTime)
	}
	return &Planner{
		G:               g,
		Origins:         origins,
		PhaseTime:       phaseTime,
		StepHeight:      stepHeight,
		CaptureFraction: 0.5,
	}, nil
}

// Plan evaluates every foot's reference at time t under the given
// body twist.
func (p *Planner) Plan(t float64, twist Twist) ([]FootRef, error) {
	cycleLen := len(p.G)
	if cycleLen == 0 {
		return nil, fmt.Errorf("gait: empty descriptor")
	}
	numFeet := p.G.NumFeet()

	cycleDur := float64(cycleLen) * p.PhaseTime
	tm := math.Mod(t, cycleDur)
	if tm < 0 {
		tm += cycleDur
	}
	rowF := tm / p.PhaseTime
	row := int(rowF)
	if row >= cycleLen {
		row = cycleLen - 1
	}
	sigmaLocal := rowF - float64(row)

	refs := make([]FootRef, numFeet)
	for f := 0; f < numFeet; f++ {
		stance := p.G[row][f] <= 0
		runStart, runLen := p.findRun(f, row, stance)
		rowsIntoRun := circularSteps(runStart, row, cycleLen)
		sigma := (float64(rowsIntoRun) + sigmaLocal) / float64(runLen)

		origin := p.Origins[f]
		groundVel := twist.groundVelocityAt(origin)

		var ref FootRef
		if stance {
			ref = stanceRef(origin, groundVel, sigma, float64(runLen)*p.PhaseTime)
		} else {
			stanceLen := cycleLen - runLen
			ref = p.swingRef(origin, groundVel, sigma, float64(runLen)*p.PhaseTime, float64(stanceLen)*p.PhaseTime)
		}
		refs[f] = ref
	}

	return refs, nil
}

// findRun returns the starting row and length (in rows) of the
// contiguous, circularly-wrapping run of rows sharing `row`'s
// stance/swing sign for foot f.
func (p *Planner) findRun(f, row int, stance bool) (start, length int) {
	cycleLen := len(p.G)
	same := func(r int) bool {
		v := p.G[((r%cycleLen)+cycleLen)%cycleLen][f]
		return (v <= 0) == stance
	}

	start = row
	for steps := 0; steps < cycleLen; steps++ {
		prev := ((start-1)%cycleLen + cycleLen) % cycleLen
		if !same(prev) {
			break
		}
		start = prev
	}

	length = 0
	for r := start; length < cycleLen; length++ {
		if !same(r) {
			break
		}
		r = ((r+1)%cycleLen + cycleLen) % cycleLen
	}
	if length == 0 {
		length = 1
	}
	return start, length
}

func circularSteps(from, to, cycleLen int) int {
	d := to - from
	if d < 0 {
		d += cycleLen
	}
	return d
}

// stanceRef implements spec.md §4.3 item 3: the foot's reference
// slides opposite the commanded ground velocity, holding the ground
// plane fixed under a moving body.
func stanceRef(origin, groundVel math3d.Vector3, sigma, runDur float64) FootRef {
	slid := groundVel.MultiplyByScalar(sigma * runDur)
	return FootRef{
		Pos:    origin.Subtract(slid),
		Vel:    groundVel.MultiplyByScalar(-1),
		Acc:    math3d.ZeroVector3,
		Stance: true,
	}
}

// swingRef implements spec.md §4.3 item 4: a straight horizontal line
// from the point the foot was left at by the preceding stance run to
// a capture-point touchdown target, with a parabolic lift profile.
func (p *Planner) swingRef(origin, groundVel math3d.Vector3, sigma, swingDur, stanceDur float64) FootRef {
	liftoff := origin.Subtract(groundVel.MultiplyByScalar(stanceDur))
	touchdown := *origin.Add(groundVel.MultiplyByScalar(p.CaptureFraction * stanceDur))

	horiz := liftoff.Add(touchdown.Subtract(liftoff).MultiplyByScalar(sigma))
	horizVel := touchdown.Subtract(liftoff).MultiplyByScalar(1 / swingDur)

	h := p.StepHeight
	z := 4 * h * sigma * (1 - sigma)
	dsigmaDt := 1 / swingDur
	zdot := 4 * h * (1 - 2*sigma) * dsigmaDt
	zddot := -8 * h * dsigmaDt * dsigmaDt

	pos := *horiz
	pos.Z += z

	vel := horizVel
	vel.Z += zdot

	acc := math3d.Vector3{Z: zddot}

	return FootRef{
		Pos:    pos,
		Vel:    vel,
		Acc:    acc,
		Stance: false,
	}
}
