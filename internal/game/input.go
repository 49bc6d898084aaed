package game

const (
	// JumpImpulse is the upward velocity a jump sets.
	JumpImpulse = 8.0
	// DashImpulse is added to x velocity by a dash.
	DashImpulse = 10.0
	// CollectPoints is the score for one interaction at full sync.
	CollectPoints = 10.0

	joystickScale = 0.02
)

// Move steers with a joystick offset. dy grows downwards on screen, so it maps to -z.
func Move(dx, dy float64) Reducer[State] {
	return func(s State) State {
		if s.Paused {
			return s
		}
		k := s.Settings.ControlSensitivity * joystickScale
		s.Velocity = Vec3{dx * k, s.Velocity[1], -dy * k}
		return s
	}
}

// Release stops horizontal movement when the joystick is let go.
func Release() Reducer[State] {
	return func(s State) State {
		s.Velocity = Vec3{0, s.Velocity[1], 0}
		return s
	}
}

// Jump launches a grounded player.
func Jump() Reducer[State] {
	return func(s State) State {
		if !s.Grounded || s.Paused {
			return s
		}
		s.Velocity[1] = JumpImpulse
		s.Grounded = false
		return s
	}
}

// Dash pushes the player along x.
func Dash() Reducer[State] {
	return func(s State) State {
		if s.Paused {
			return s
		}
		s.Velocity[0] += DashImpulse
		return s
	}
}

// Interact collects an item. Points scale with the sync scalar, and reaching
// the phase threshold advances the game.
func Interact() Reducer[State] {
	return func(s State) State {
		if s.GameOver {
			return s
		}
		s.Score += CollectPoints * (s.ConnectPercent / 100)
		if s.Score >= PhaseConfigFor(s.Level, s.Phase).Threshold() {
			s = Advance(s)
		}
		return s
	}
}

// Advance moves to the next phase. Past phase C the level changes, which
// resets score and timer; past the last level the game ends.
func Advance(s State) State {
	if next, ok := s.Phase.Next(); ok {
		s.Phase = next
		return s
	}
	if s.Level >= MaxLevel {
		s.GameOver = true
		return s
	}
	s.Level++
	s.Phase = PhaseA
	s.Score = 0
	s.TimeRemaining = PhaseConfigFor(s.Level, PhaseA).Time
	return s
}

// Restart starts over at level 1 after a finished game. The pair, the shared
// session, the partner's last known transform and the local settings carry over.
func Restart() Reducer[State] {
	return func(s State) State {
		if !s.GameOver {
			return s
		}
		next := NewState(s.PairID)
		next.SessionID = s.SessionID
		next.Settings = s.Settings
		next.ConnectPercent = s.ConnectPercent
		next.RemotePosition = s.RemotePosition
		next.RemoteRotation = s.RemoteRotation
		next.RemoteScore = s.RemoteScore
		next.RemoteConnected = s.RemoteConnected
		return next
	}
}

// TogglePause flips the paused flag.
func TogglePause() Reducer[State] {
	return func(s State) State {
		s.Paused = !s.Paused
		return s
	}
}

// UpdateSettings replaces the local preferences. A non-positive sensitivity keeps the current one.
func UpdateSettings(settings Settings) Reducer[State] {
	return func(s State) State {
		if settings.ControlSensitivity <= 0 {
			settings.ControlSensitivity = s.Settings.ControlSensitivity
		}
		s.Settings = settings
		return s
	}
}

// Tick advances the simulation by delta seconds.
func Tick(delta float64) Reducer[State] {
	return func(s State) State { return Step(s, delta) }
}
