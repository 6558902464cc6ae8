package input

import (
	"deferred-shadows/internal/config"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/logging"
	"deferred-shadows/internal/pipeline"

	"github.com/go-gl/mathgl/mgl32"
)

// Renderer is the part of the coordinator the controls toggle.
type Renderer interface {
	ToggleShadows(ctx *pipeline.Context) bool
	SetDebugView(on bool)
	DebugView() bool
}

var _ Renderer = (*pipeline.Coordinator)(nil)

// Result reports what an Update changed besides the context itself.
type Result struct {
	Quit          bool
	CameraMoved   bool
	ToggleProfile bool
}

// Controller turns held and pressed actions into camera motion, light
// animation and renderer toggles.
type Controller struct {
	keys     *Manager
	controls config.ControlSettings
	orbiting []*light.Light
	log      logging.Logger
}

// NewController drives the lights in orbiting around the Y axis every frame.
func NewController(keys *Manager, controls config.ControlSettings, orbiting []*light.Light, log logging.Logger) *Controller {
	if log == nil {
		log = logging.Nop()
	}
	return &Controller{keys: keys, controls: controls, orbiting: orbiting, log: log}
}

func (c *Controller) Keys() *Manager { return c.keys }

// Update applies one frame of input, dt seconds long, and clears the
// per-frame edges.
func (c *Controller) Update(ctx *pipeline.Context, r Renderer, dt float32) Result {
	defer c.keys.PostUpdate()

	var res Result
	if c.keys.JustPressed(ActionQuit) {
		res.Quit = true
	}
	if ctx == nil || ctx.Camera == nil {
		return res
	}
	cam := ctx.Camera

	move := c.controls.MoveSpeed * dt
	turn := mgl32.DegToRad(c.controls.RotateSpeed * dt)
	held := func(pos, neg Action) float32 {
		var v float32
		if c.keys.IsActive(pos) {
			v++
		}
		if c.keys.IsActive(neg) {
			v--
		}
		return v
	}

	if s := held(ActionMoveForward, ActionMoveBackward); s != 0 {
		cam.MoveForward(s * move)
		res.CameraMoved = true
	}
	if s := held(ActionStrafeRight, ActionStrafeLeft); s != 0 {
		cam.StrafeRight(s * move)
		res.CameraMoved = true
	}
	if s := held(ActionMoveUp, ActionMoveDown); s != 0 {
		cam.MoveUp(s * move)
		res.CameraMoved = true
	}
	if s := held(ActionRotateUp, ActionRotateDown); s != 0 {
		cam.RotateUp(s * turn)
		res.CameraMoved = true
	}
	if s := held(ActionRotateRight, ActionRotateLeft); s != 0 {
		cam.RotateRight(s * turn)
		res.CameraMoved = true
	}
	if s := held(ActionSpinRight, ActionSpinLeft); s != 0 {
		cam.Spin(s * turn)
		res.CameraMoved = true
	}

	if c.keys.JustPressed(ActionOrthographic) {
		cam.SetOrtho()
		c.log.Debugf("projection %s", cam.Kind())
	}
	if c.keys.JustPressed(ActionPerspective) {
		cam.SetPerspective()
		c.log.Debugf("projection %s", cam.Kind())
	}
	if r != nil {
		if c.keys.JustPressed(ActionToggleShadows) {
			r.ToggleShadows(ctx)
		}
		if c.keys.JustPressed(ActionToggleDebugView) {
			r.SetDebugView(!r.DebugView())
		}
	}
	if c.keys.JustPressed(ActionToggleProfiling) {
		res.ToggleProfile = true
	}

	if dt != 0 {
		angle := turn * c.controls.OrbitFactor
		for _, l := range c.orbiting {
			l.Orbit(angle)
		}
	}
	return res
}
