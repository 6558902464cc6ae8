package main

import (
	"fmt"

	"deferred-shadows/internal/config"
	"deferred-shadows/internal/gpu/glbackend"
	"deferred-shadows/internal/input"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/logging"
	"deferred-shadows/internal/pipeline"
	"deferred-shadows/internal/profiling"
	"deferred-shadows/internal/shaders"
	"deferred-shadows/internal/world"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func setupWindow(s config.WindowSettings) (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(s.Width, s.Height, s.Title, nil, nil)
	if err != nil {
		return nil, err
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		return nil, err
	}

	if s.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
	return window, nil
}

// App holds everything the frame loop touches.
type App struct {
	window   *glfw.Window
	settings config.Settings
	log      logging.Logger
	prof     *profiling.Profiler

	shaders    *shaders.Manager
	world      *world.World
	lights     *light.Registry
	ctx        *pipeline.Context
	pipeline   *pipeline.Coordinator
	controller *input.Controller
	limiter    *FPSLimiter

	showProfile bool
	destroyed   bool
}

func setupApp(window *glfw.Window, s config.Settings, log logging.Logger) (*App, error) {
	dev := glbackend.New()
	a := &App{
		window:   window,
		settings: s,
		log:      log,
		prof:     profiling.New(),
		limiter:  NewFPSLimiter(s.Window.FPSLimit),
	}

	var err error
	if a.shaders, err = shaders.NewManager(dev); err != nil {
		return nil, fmt.Errorf("shaders: %w", err)
	}
	if a.world, err = world.Build(dev, s.Scene); err != nil {
		a.Destroy()
		return nil, err
	}

	lights, orbiting, err := s.BuildLights()
	if err != nil {
		a.Destroy()
		return nil, err
	}
	a.lights = lights

	// the framebuffer can be larger than the window on high-DPI screens
	fbw, fbh := window.GetFramebufferSize()
	cam, err := s.Camera.BuildCamera(float32(fbw) / float32(fbh))
	if err != nil {
		a.Destroy()
		return nil, err
	}
	a.ctx = a.world.Context(cam, lights)

	a.pipeline = pipeline.New(dev, a.shaders, pipeline.Options{
		Width:            fbw,
		Height:           fbh,
		ShadowResolution: s.Shadows.Resolution,
		ShadowsEnabled:   s.Shadows.Enabled,
		DebugView:        s.Debug.GBufferView,
		Logger:           log,
		Profiler:         a.prof,
	})
	if err := a.pipeline.Init(a.ctx); err != nil {
		a.Destroy()
		return nil, err
	}

	keys := input.NewManager()
	keys.SetKeyCallback(window)
	a.controller = input.NewController(keys, s.Controls, orbiting, log)
	a.showProfile = s.Debug.Profile

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		a.resize(width, height)
	})
	return a, nil
}

func (a *App) resize(width, height int) {
	// minimised windows report 0x0
	if width <= 0 || height <= 0 {
		return
	}
	if err := a.ctx.Camera.SetAspect(float32(width) / float32(height)); err != nil {
		a.log.Warnf("resize: %v", err)
		return
	}
	if err := a.pipeline.Resize(width, height); err != nil {
		a.log.Errorf("resize to %dx%d: %v", width, height, err)
	}
}

// Destroy releases GPU resources in reverse order of creation. It is safe
// to call more than once.
func (a *App) Destroy() {
	if a.destroyed {
		return
	}
	a.destroyed = true
	if a.pipeline != nil {
		a.pipeline.Destroy()
	}
	if a.lights != nil {
		a.lights.Destroy()
	}
	if a.world != nil {
		a.world.Destroy()
	}
	if a.shaders != nil {
		a.shaders.Destroy()
	}
}
