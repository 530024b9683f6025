// Package gait schedules foot stance/swing timing from a fixed phase
// table and generates per-foot Cartesian references for the stance
// slide and the swing arc.
//
// Grounded on original_source/Examples/Quadruped/quadruped.cc's trot,
// trot2, walk, and walk2 phase tables and spec.md §4.3.
package gait

import "github.com/sirupsen/logrus"

var log = logrus.WithFields(logrus.Fields{"pkg": "gait"})

// Descriptor is an ordered sequence of phases; each phase is a vector
// (one entry per foot) of small integers. A value v<=0 means stance,
// with |v| counting down the buckets remaining before this foot
// swings; v>0 means swing, with v counting up from 1. The magnitude is
// informative only -- Planner derives actual run boundaries by
// scanning for contiguous same-sign rows, so a hand-authored
// descriptor needs only get the signs right.
type Descriptor [][]int

// NumFeet returns the number of feet this descriptor covers, or 0 for
// an empty descriptor.
func (d Descriptor) NumFeet() int {
	if len(d) == 0 {
		return 0
	}
	return len(d[0])
}

// Foot order throughout this package is LF, RF, LH, RH, matching the
// original quadruped's eef_names_.
const (
	FootLF = 0
	FootRF = 1
	FootLH = 2
	FootRH = 3
)

// Trot is the two-phase diagonal gait: LF/RH swing together while
// RF/LH hold stance, and vice versa. 50% duty factor.
var Trot = Descriptor{
	{-1, 1, 1, -1},
	{1, -1, -1, 1},
}

// Trot2 is a slower diagonal trot with a 75% duty factor: each
// diagonal pair swings for a single bucket out of four.
var Trot2 = Descriptor{
	{-3, -1, -1, -3},
	{-2, 1, 1, -2},
	{-1, -3, -3, -1},
	{1, -2, -2, 1},
}

// Walk swings exactly one foot at a time, in LF, RF, LH, RH order,
// each for a single bucket out of four -- a statically stable crawl.
var Walk = Descriptor{
	{1, -1, -2, -3},
	{-3, 1, -1, -2},
	{-2, -3, 1, -1},
	{-1, -2, -3, 1},
}

// Walk2 swings one foot at a time in LF, RH, RF, LH order.
var Walk2 = Descriptor{
	{1, -2, -3, -1},
	{-3, -1, -2, 1},
	{-2, 1, -1, -3},
	{-1, -3, 1, -2},
}

// Named looks up one of the four built-in descriptors by the
// `gait:` config option's value (spec.md §6). ok is false for an
// unrecognized name.
func Named(name string) (Descriptor, bool) {
	switch name {
	case "trot":
		return Trot, true
	case "trot2":
		return Trot2, true
	case "walk":
		return Walk, true
	case "walk2":
		return Walk2, true
	default:
		return nil, false
	}
}
