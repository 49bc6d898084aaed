package game

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
)

// MaxLevel is the last level of the game.
const MaxLevel = 10

// PhaseConfig sizes one phase of a level. Time is in seconds.
type PhaseConfig struct {
	Collectibles int     `json:"collectibles"`
	Time         float64 `json:"time"`
	Platforms    int     `json:"platforms"`
	Hazards      int     `json:"hazards"`
}

// Threshold is the score that completes the phase.
func (c PhaseConfig) Threshold() float64 {
	return float64(c.Collectibles * 10)
}

var levels = [MaxLevel][3]PhaseConfig{
	{{5, 60, 3, 0}, {8, 45, 5, 1}, {10, 30, 7, 2}},
	{{7, 55, 4, 1}, {10, 40, 6, 2}, {12, 35, 8, 3}},
	{{9, 50, 5, 2}, {12, 35, 7, 3}, {15, 30, 9, 4}},
	{{11, 45, 6, 3}, {14, 30, 8, 4}, {17, 25, 10, 5}},
	{{13, 40, 7, 4}, {16, 25, 9, 5}, {19, 20, 11, 6}},
	{{15, 35, 8, 5}, {18, 20, 10, 6}, {21, 15, 12, 7}},
	{{17, 30, 9, 6}, {20, 15, 11, 7}, {23, 10, 13, 8}},
	{{19, 25, 10, 7}, {22, 10, 12, 8}, {25, 8, 14, 9}},
	{{21, 20, 11, 8}, {24, 8, 13, 9}, {27, 6, 15, 10}},
	{{25, 15, 12, 9}, {30, 6, 14, 10}, {35, 4, 16, 12}},
}

// PhaseConfigFor looks up a phase. Unknown levels or phases fall back to level 1 phase A.
func PhaseConfigFor(level int, phase Phase) PhaseConfig {
	idx := phaseIndex(phase)
	if level < 1 || level > MaxLevel || idx < 0 {
		return levels[0][0]
	}
	return levels[level-1][idx]
}

func phaseIndex(p Phase) int {
	switch p {
	case PhaseA:
		return 0
	case PhaseB:
		return 1
	case PhaseC:
		return 2
	}
	return -1
}

// Platform is a box both peers place at the same spot.
type Platform struct {
	Position Vec3   `json:"position"`
	Size     Vec3   `json:"size"`
	Color    uint32 `json:"color"`
}

// Layout generates the platforms for a level and phase. The result depends
// only on its arguments, so two peers of the same pair build identical geometry.
func Layout(level int, phase Phase, pairID string) []Platform {
	cfg := PhaseConfigFor(level, phase)

	h := fnv.New64a()
	_, _ = h.Write([]byte(pairID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.Itoa(level)))
	_, _ = h.Write([]byte(phase))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	platforms := make([]Platform, cfg.Platforms)
	for i := range platforms {
		platforms[i] = Platform{
			Position: Vec3{
				(rng.Float64() - 0.5) * 10,
				GroundHeight + float64(i)*1.5,
				(rng.Float64() - 0.5) * 8,
			},
			Size:  Vec3{2, 0.2, 1},
			Color: rng.Uint32N(0xffffff + 1),
		}
	}
	return platforms
}
