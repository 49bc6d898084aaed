package game

import "math"

// Vec3 is an x, y, z triple. y is up.
type Vec3 [3]float64

// Phase is a stage within a level.
type Phase string

const (
	PhaseA Phase = "A"
	PhaseB Phase = "B"
	PhaseC Phase = "C"
)

// Next returns the phase after p and false when p is the last one.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseA:
		return PhaseB, true
	case PhaseB:
		return PhaseC, true
	default:
		return PhaseA, false
	}
}

// Settings are the player's local preferences.
type Settings struct {
	MusicVolume        float64 `json:"musicVolume"`
	SFXVolume          float64 `json:"sfxVolume"`
	MusicEnabled       bool    `json:"musicEnabled"`
	SFXEnabled         bool    `json:"sfxEnabled"`
	GraphicsQuality    string  `json:"graphicsQuality"`
	ControlSensitivity float64 `json:"controlSensitivity"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() Settings {
	return Settings{
		MusicVolume:        0.5,
		SFXVolume:          0.7,
		MusicEnabled:       true,
		SFXEnabled:         true,
		GraphicsQuality:    "medium",
		ControlSensitivity: 1.0,
	}
}

// State is everything one peer knows about a running game.
type State struct {
	Level          int     `json:"level"`
	Phase          Phase   `json:"phase"`
	Score          float64 `json:"score"`
	RemoteScore    float64 `json:"remoteScore"`
	ConnectPercent float64 `json:"connectPercent"`
	TimeRemaining  float64 `json:"timeRemaining"`
	Paused         bool    `json:"paused"`
	GameOver       bool    `json:"gameOver"`

	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Velocity Vec3 `json:"velocity"`
	Grounded bool `json:"grounded"`

	RemotePosition  Vec3 `json:"remotePosition"`
	RemoteRotation  Vec3 `json:"remoteRotation"`
	RemoteConnected bool `json:"remoteConnected"`

	PairID    string `json:"pairId"`
	SessionID string `json:"sessionId"`

	Settings Settings `json:"settings"`
}

// NewState returns the starting state for a pair's game.
func NewState(pairID string) State {
	return State{
		Level:          1,
		Phase:          PhaseA,
		ConnectPercent: 100,
		TimeRemaining:  PhaseConfigFor(1, PhaseA).Time,
		Position:       Vec3{0, GroundHeight, 0},
		Grounded:       true,
		RemotePosition: Vec3{2, GroundHeight, 0},
		PairID:         pairID,
		Settings:       DefaultSettings(),
	}
}

// PlanarDistance is the distance between a and b ignoring height.
func PlanarDistance(a, b Vec3) float64 {
	return math.Hypot(a[0]-b[0], a[2]-b[2])
}
