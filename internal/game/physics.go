package game

import (
	"math"
	"time"
)

const (
	// Gravity is the downward acceleration in units per second squared.
	Gravity = 15.0
	// GroundHeight is the y a player rests at.
	GroundHeight = 1.0
	// MaxStep bounds one integration step after a stall.
	MaxStep = 100 * time.Millisecond

	syncFalloff = 5.0
)

// Step advances s by delta seconds: gravity, integration, the ground clamp,
// the sync scalar and the countdown. A zero delta returns s unchanged.
// Nothing moves while paused or after game over.
func Step(s State, delta float64) State {
	if delta <= 0 || s.Paused || s.GameOver {
		return s
	}

	v := s.Velocity
	if !s.Grounded {
		v[1] -= Gravity * delta
	}

	p := Vec3{
		s.Position[0] + v[0]*delta,
		s.Position[1] + v[1]*delta,
		s.Position[2] + v[2]*delta,
	}
	s.Position, s.Velocity, s.Grounded = clampToGround(p, v)

	s.ConnectPercent = SyncPercent(s.Position, s.RemotePosition)

	s.TimeRemaining -= delta
	if s.TimeRemaining <= 0 {
		s.TimeRemaining = 0
		s.GameOver = true
	}
	return s
}

func clampToGround(p, v Vec3) (Vec3, Vec3, bool) {
	if p[1] <= GroundHeight {
		p[1] = GroundHeight
		v[1] = 0
		return p, v, true
	}
	return p, v, false
}

// SyncPercent is 100 when the players stand together and falls by five per
// unit of planar distance, reaching 0 at 20 units.
func SyncPercent(local, remote Vec3) float64 {
	return math.Max(0, 100-syncFalloff*PlanarDistance(local, remote))
}
