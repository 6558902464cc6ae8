// Package pipeline runs the deferred renderer one frame at a time: shadow
// maps for every shadow-casting light, the geometry pass into the G-buffer,
// then one additive pass per light that reads the G-buffer and, when
// shadowed, the light's shadow map.
package pipeline

import (
	"fmt"

	"deferred-shadows/internal/gbuffer"
	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/logging"
	"deferred-shadows/internal/mesh"
	"deferred-shadows/internal/profiling"
	"deferred-shadows/internal/shaders"
	"deferred-shadows/internal/shadow"
)

// Pass names reported to the profiler.
const (
	PassShadow           = "shadow"
	PassGeometry         = "geometry"
	PassPointLight       = "light.point"
	PassDirectionalLight = "light.directional"
	PassPresent          = "present"
)

// proxy sphere tessellation
const (
	sphereSlices = 24
	sphereStacks = 12
)

type Options struct {
	Width, Height    int
	ShadowResolution int
	ShadowsEnabled   bool
	DebugView        bool

	Logger   logging.Logger
	Profiler *profiling.Profiler
}

func (o *Options) defaults() {
	if o.ShadowResolution <= 0 {
		o.ShadowResolution = shadow.DefaultResolution
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Profiler == nil {
		o.Profiler = profiling.New()
	}
}

// Coordinator owns the G-buffer and the light proxy meshes and drives the
// passes. Lights, their shadow maps and scene geometry belong to the caller.
type Coordinator struct {
	dev     gpu.Device
	shaders shaders.Provider
	log     logging.Logger
	prof    *profiling.Profiler

	gbuf   *gbuffer.GBuffer
	sphere *mesh.Mesh
	quad   *mesh.Mesh

	width, height    int
	shadowResolution int
	shadows          bool
	debugView        bool

	ready bool
	frame uint64
	// geometryFrame is the last frame whose geometry stage completed.
	geometryFrame uint64

	// gbufLost is set when a resize failed after Init.
	gbufLost bool
}

func New(dev gpu.Device, provider shaders.Provider, opts Options) *Coordinator {
	opts.defaults()
	return &Coordinator{
		dev:              dev,
		shaders:          provider,
		log:              opts.Logger,
		prof:             opts.Profiler,
		gbuf:             gbuffer.New(dev),
		width:            opts.Width,
		height:           opts.Height,
		shadowResolution: opts.ShadowResolution,
		shadows:          opts.ShadowsEnabled,
		debugView:        opts.DebugView,
	}
}

func (c *Coordinator) Ready() bool                   { return c.ready }
func (c *Coordinator) Frame() uint64                 { return c.frame }
func (c *Coordinator) GBuffer() *gbuffer.GBuffer     { return c.gbuf }
func (c *Coordinator) Profiler() *profiling.Profiler { return c.prof }
func (c *Coordinator) ShadowsEnabled() bool          { return c.shadows }
func (c *Coordinator) DebugView() bool               { return c.debugView }
func (c *Coordinator) Size() (int, int)              { return c.width, c.height }

// Init prepares everything the frames need: it checks the shader passes,
// allocates the G-buffer, uploads the proxy meshes and creates a shadow map
// for every light that asks for one. The first failure releases what Init
// allocated and is returned; there is no partial setup.
func (c *Coordinator) Init(ctx *Context) error {
	if err := ctx.validate(); err != nil {
		return err
	}
	if err := c.init(ctx); err != nil {
		c.log.Errorf("pipeline setup failed: %v", err)
		c.release(ctx)
		return err
	}
	c.ready = true
	if spots := ctx.Lights.OfType(light.Spot); len(spots) > 0 {
		c.log.Warnf("%d spot lights have no light pass and will be skipped", len(spots))
	}
	c.log.Infof("pipeline ready: %dx%d, %d lights, %d shadow maps at %d, shadows %s",
		c.width, c.height, ctx.Lights.Len(), len(ctx.Lights.ShadowCasters()), c.shadowResolution, onOff(c.shadows))
	return nil
}

func (c *Coordinator) init(ctx *Context) error {
	if err := c.checkShaders(); err != nil {
		return err
	}
	if err := c.gbuf.Init(c.width, c.height); err != nil {
		return err
	}

	var err error
	if c.sphere, err = mesh.Upload(c.dev, "light sphere", mesh.Sphere(sphereSlices, sphereStacks)); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.quad, err = mesh.Upload(c.dev, "screen quad", mesh.Quad()); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	for _, l := range ctx.Lights.All() {
		if !l.WantsShadow() {
			continue
		}
		if err := l.EnableShadow(c.dev, c.shadowResolution, c.shaders.Depth()); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		c.log.Debugf("%s: %s shadow map %dx%d", l, l.Shadow().Kind(), c.shadowResolution, c.shadowResolution)
	}
	return nil
}

func (c *Coordinator) checkShaders() error {
	checks := []struct {
		name   string
		shader shaders.Shader
		shadow bool
	}{
		{"depth", c.shaders.Depth(), false},
		{"geometry", c.shaders.Geometry(), false},
		{"point light", c.shaders.PointLight(), false},
		{"point light (shadow)", c.shaders.PointLight(), true},
		{"directional light", c.shaders.DirectionalLight(), false},
		{"directional light (shadow)", c.shaders.DirectionalLight(), true},
	}
	for _, ch := range checks {
		if ch.shader == nil || !ch.shader.IsReady(ch.shadow) {
			return fmt.Errorf("pipeline: %s pass: %w", ch.name, gpu.ErrShaderBuild)
		}
	}
	return nil
}

// release undoes Init. Shadow maps created by Init are destroyed again.
func (c *Coordinator) release(ctx *Context) {
	for _, l := range ctx.Lights.All() {
		l.DisableShadow()
	}
	c.releaseOwned()
}

func (c *Coordinator) releaseOwned() {
	c.gbuf.Destroy()
	if c.sphere != nil {
		c.sphere.Destroy()
		c.sphere = nil
	}
	if c.quad != nil {
		c.quad.Destroy()
		c.quad = nil
	}
	c.ready, c.gbufLost = false, false
}

// Destroy releases the G-buffer and proxy meshes. Lights keep their shadow
// maps until the registry is destroyed.
func (c *Coordinator) Destroy() {
	c.releaseOwned()
}

// Resize reallocates the G-buffer for a new viewport size. The size is only
// taken once the reallocation succeeds. After a failed resize the pipeline
// is not ready until a later Resize manages to reallocate.
func (c *Coordinator) Resize(width, height int) error {
	if !c.ready && !c.gbufLost {
		c.width, c.height = width, height
		return nil
	}
	if c.ready && width == c.width && height == c.height {
		return nil
	}
	if err := c.gbuf.Resize(width, height); err != nil {
		c.ready, c.gbufLost = false, true
		return fmt.Errorf("pipeline: resize: %w", err)
	}
	c.width, c.height = width, height
	if c.gbufLost {
		c.ready, c.gbufLost = true, false
		c.log.Infof("G-buffer restored at %dx%d", width, height)
		return nil
	}
	c.log.Debugf("resized to %dx%d", width, height)
	return nil
}

// SetShadowsEnabled switches the shadow stage and shadow sampling on or off.
// Re-enabling forces every shadow map to re-render, since objects may have
// moved while it was skipped.
func (c *Coordinator) SetShadowsEnabled(ctx *Context, on bool) {
	if on == c.shadows {
		return
	}
	c.shadows = on
	if on && ctx != nil && ctx.Lights != nil {
		for _, l := range ctx.Lights.ShadowCasters() {
			l.Shadow().Invalidate()
		}
	}
	c.log.Infof("shadows %s", onOff(on))
}

func (c *Coordinator) ToggleShadows(ctx *Context) bool {
	c.SetShadowsEnabled(ctx, !c.shadows)
	return c.shadows
}

// SetDebugView replaces lighting with the four G-buffer attachments
// blitted to the screen quadrants.
func (c *Coordinator) SetDebugView(on bool) {
	c.debugView = on
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Shadowed reports whether light l is drawn with its shadow map this frame.
func (c *Coordinator) Shadowed(l *light.Light) bool {
	return c.shadows && l.ShadowEnabled()
}
