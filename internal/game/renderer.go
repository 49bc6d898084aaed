package game

import (
	"context"
	"log/slog"
)

// CameraOffset places the follow camera behind and above the local player.
var CameraOffset = Vec3{0, 5, 8}

// Transform positions one object in the scene.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

// Camera is the follow camera.
type Camera struct {
	Position Vec3 `json:"position"`
	LookAt   Vec3 `json:"lookAt"`
}

// Frame is what a renderer draws for one tick.
type Frame struct {
	Local     Transform  `json:"local"`
	Remote    Transform  `json:"remote"`
	Camera    Camera     `json:"camera"`
	Platforms []Platform `json:"platforms"`
	State     State      `json:"state"`
}

// Renderer draws frames.
type Renderer interface {
	Render(ctx context.Context, frame Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, frame Frame)

func (f RendererFunc) Render(ctx context.Context, frame Frame) { f(ctx, frame) }

// LogRenderer writes a debug line every Every frames. It stands in where no display exists.
type LogRenderer struct {
	Logger *slog.Logger
	Every  int

	frames int
}

func (r *LogRenderer) Render(ctx context.Context, frame Frame) {
	r.frames++
	every := r.Every
	if every <= 0 {
		every = 60
	}
	if r.frames%every != 0 {
		return
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "game frame",
		"level", frame.State.Level,
		"phase", frame.State.Phase,
		"score", frame.State.Score,
		"connectPercent", frame.State.ConnectPercent,
		"timeRemaining", frame.State.TimeRemaining,
		"remoteConnected", frame.State.RemoteConnected,
		"platforms", len(frame.Platforms),
	)
}

// followCamera places the camera at the offset from the player, looking at it.
func followCamera(target Vec3) Camera {
	return Camera{
		Position: Vec3{target[0] + CameraOffset[0], target[1] + CameraOffset[1], target[2] + CameraOffset[2]},
		LookAt:   target,
	}
}
