package pipeline

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/gbuffer"
	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/shaders"
	"deferred-shadows/internal/shadow"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrNotReady = errors.New("pipeline: not initialised")

// RenderFrame renders one frame of ctx. The stages run in order:
//
//  1. shadow: re-render the map of every shadow-casting light (skipped when
//     shadows are off)
//  2. geometry: fill the G-buffer
//  3. lighting: one additive pass per light, only if stage 2 completed in
//     this frame
//  4. present: in debug view, blit the G-buffer instead of lighting
//
// A failing stage is recorded in the report and abandoned for this frame.
func (c *Coordinator) RenderFrame(ctx *Context) FrameReport {
	c.frame++
	c.prof.ResetFrame()
	report := FrameReport{Frame: c.frame, DebugView: c.debugView}

	if !c.ready {
		report.fail("setup", ErrNotReady)
		return report
	}
	if err := ctx.validate(); err != nil {
		report.fail("setup", err)
		return report
	}

	if c.shadows {
		c.shadowStage(ctx, &report)
	}

	if err := c.geometryStage(ctx, &report); err != nil {
		report.fail(PassGeometry, err)
	} else {
		c.geometryFrame = c.frame
		report.GeometryDone = true
	}

	if c.debugView {
		if err := c.presentStage(); err != nil {
			report.fail(PassPresent, err)
		}
	} else if c.geometryFrame == c.frame {
		if err := c.lightStage(ctx, &report); err != nil {
			report.fail("light", err)
		}
	}

	if err := report.Err(); err != nil {
		c.log.Debugf("frame %d degraded: %v", c.frame, err)
	}
	return report
}

func (c *Coordinator) shadowStage(ctx *Context, report *FrameReport) {
	defer c.prof.Track(PassShadow)()
	view := ctx.Camera.View()
	for _, l := range ctx.Lights.ShadowCasters() {
		before := l.Shadow().Generation()
		if err := l.CreateShadow(ctx.Objects, view); err != nil {
			report.ShadowFailures = append(report.ShadowFailures, fmt.Errorf("%s: %w", l, err))
			continue
		}
		if l.Shadow().Generation() != before {
			report.ShadowMapsRendered++
		}
	}
}

func (c *Coordinator) geometryStage(ctx *Context, report *FrameReport) error {
	defer c.prof.Track(PassGeometry)()
	dev := c.dev

	if err := c.gbuf.BindForWriting(); err != nil {
		return err
	}
	dev.Viewport(0, 0, c.width, c.height)
	dev.SetBlend(gpu.BlendNone)
	dev.SetCulling(gpu.CullBack)
	dev.SetDepth(true, true)
	dev.Clear(gpu.ClearColor | gpu.ClearDepth)
	if err := gpu.Check(dev, "geometry state"); err != nil {
		return err
	}

	sh := c.shaders.Geometry()
	if err := sh.Bind(false); err != nil {
		return err
	}
	defer sh.Unbind()

	view := ctx.Camera.View()
	u := shaders.Uniforms{Projection: ctx.Camera.Projection()}
	for i, obj := range ctx.Objects {
		mat := obj.Material()
		u.ModelView = view.Mul4(obj.ObjectToWorld())
		u.NormalTrans = u.ModelView.Inv().Transpose()
		u.Albedo = mat.Albedo
		u.UseTexture = mat.Texture != 0
		if u.UseTexture {
			dev.BindTexture(shaders.AlbedoUnit, gpu.Texture2D, mat.Texture)
		}
		err := c.drawObject(sh, &u, obj.Rasterize)
		if u.UseTexture {
			dev.BindTexture(shaders.AlbedoUnit, gpu.Texture2D, 0)
		}
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		report.ObjectsDrawn++
	}

	dev.BindFramebuffer(gpu.DrawFramebuffer, 0)
	// every attachment must be written before the light passes sample it
	dev.Barrier()
	return nil
}

func (c *Coordinator) drawObject(sh shaders.Shader, u *shaders.Uniforms, rasterize func() error) error {
	if err := sh.SetUniforms(u, false); err != nil {
		return err
	}
	if err := rasterize(); err != nil {
		return err
	}
	return gpu.Check(c.dev, "geometry draw")
}

func (c *Coordinator) lightStage(ctx *Context, report *FrameReport) error {
	dev := c.dev
	if err := c.gbuf.BindForReading(); err != nil {
		return err
	}
	dev.Viewport(0, 0, c.width, c.height)
	dev.Clear(gpu.ClearColor)
	dev.SetDepth(false, false)
	dev.SetBlend(gpu.BlendAdditive)
	defer func() {
		dev.SetBlend(gpu.BlendNone)
		dev.SetCulling(gpu.CullBack)
		dev.SetDepth(true, true)
		c.gbuf.UnbindTextures()
	}()
	if err := gpu.Check(dev, "light state"); err != nil {
		return err
	}

	view := ctx.Camera.View()
	proj := ctx.Camera.Projection()
	screen := mgl32.Vec2{float32(c.width), float32(c.height)}

	for _, l := range ctx.Lights.All() {
		var err error
		switch l.Type() {
		case light.Point:
			err = c.pointLight(l, view, proj, screen)
		case light.Directional:
			err = c.directionalLight(l, view, screen)
		default:
			// no spot pass
			report.LightsSkipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", l, err)
		}
		report.LightsDrawn++
	}
	return nil
}

// bindShadow exposes l's shadow map for one draw. The returned func must be
// called right after the draw, whether or not the bind succeeded.
func (c *Coordinator) bindShadow(l *light.Light, shadowed bool) (func(), error) {
	if !shadowed {
		return func() {}, nil
	}
	err := l.BindShadow(shaders.ShadowUnit)
	return func() { l.UnbindShadow(shaders.ShadowUnit) }, err
}

func (c *Coordinator) pointLight(l *light.Light, view, proj mgl32.Mat4, screen mgl32.Vec2) error {
	defer c.prof.Track(PassPointLight)()
	shadowed := c.Shadowed(l)
	sh := c.shaders.PointLight()
	if err := sh.Bind(shadowed); err != nil {
		return err
	}
	defer sh.Unbind()

	att, _ := l.Attenuation()
	r := l.EffectiveRadius()
	pos := l.Position()
	model := mgl32.Translate3D(pos[0], pos[1], pos[2]).Mul4(mgl32.Scale3D(r, r, r))
	u := shaders.Uniforms{
		ModelView:        view.Mul4(model),
		Projection:       proj,
		ScreenSize:       screen,
		LightPos:         mgl32.TransformCoordinate(pos, view),
		Radiance:         l.Radiance(),
		AmbientIntensity: l.AmbientIntensity(),
		DiffuseIntensity: l.DiffuseIntensity(),
		Attenuation:      att.Vec3(),
		ShadowFar:        shadow.Far,
	}

	// back faces only, so the volume still covers the screen with the
	// camera inside it
	c.dev.SetCulling(gpu.CullFront)
	return c.drawLight(l, shadowed, sh, &u, c.sphere.Rasterize)
}

func (c *Coordinator) directionalLight(l *light.Light, view mgl32.Mat4, screen mgl32.Vec2) error {
	defer c.prof.Track(PassDirectionalLight)()
	shadowed := c.Shadowed(l)
	sh := c.shaders.DirectionalLight()
	if err := sh.Bind(shadowed); err != nil {
		return err
	}
	defer sh.Unbind()

	u := shaders.Uniforms{
		ModelView:        mgl32.Ident4(),
		Projection:       mgl32.Ident4(),
		ScreenSize:       screen,
		LightDir:         mgl32.TransformNormal(l.Direction(), view).Normalize(),
		Radiance:         l.Radiance(),
		AmbientIntensity: l.AmbientIntensity(),
		DiffuseIntensity: l.DiffuseIntensity(),
		ShadowFar:        shadow.Far,
	}
	if shadowed {
		cam := l.Shadow().Cameras()[0]
		u.ShadowView = cam.View()
		u.ShadowProj = cam.Projection()
	}

	c.dev.SetCulling(gpu.CullNone)
	return c.drawLight(l, shadowed, sh, &u, c.quad.Rasterize)
}

func (c *Coordinator) drawLight(l *light.Light, shadowed bool, sh shaders.Shader, u *shaders.Uniforms, rasterize func() error) error {
	unbind, err := c.bindShadow(l, shadowed)
	defer unbind()
	if err != nil {
		return err
	}
	if err := sh.SetUniforms(u, shadowed); err != nil {
		return err
	}
	if err := rasterize(); err != nil {
		return err
	}
	return gpu.Check(c.dev, "light draw")
}

// quadrant layout of the debug view
var debugQuadrants = [gbuffer.NumTextures]struct {
	tex        gbuffer.TextureType
	right, top bool
}{
	{gbuffer.Position, false, false},
	{gbuffer.Diffuse, false, true},
	{gbuffer.Normal, true, true},
	{gbuffer.TexCoord, true, false},
}

func (c *Coordinator) presentStage() error {
	defer c.prof.Track(PassPresent)()
	if c.geometryFrame != c.frame {
		return fmt.Errorf("debug view: %w", ErrNotReady)
	}
	dev := c.dev
	if err := c.gbuf.BindForBlit(); err != nil {
		return err
	}
	defer dev.BindFramebuffer(gpu.ReadFramebuffer, 0)

	dev.Clear(gpu.ClearColor)
	w, h := c.width, c.height
	hw, hh := w/2, h/2
	src := gpu.Rect{X0: 0, Y0: 0, X1: w, Y1: h}
	for _, q := range debugQuadrants {
		dst := gpu.Rect{X0: 0, Y0: 0, X1: hw, Y1: hh}
		if q.right {
			dst.X0, dst.X1 = hw, w
		}
		if q.top {
			dst.Y0, dst.Y1 = hh, h
		}
		c.gbuf.SetReadBuffer(q.tex)
		dev.Blit(src, dst)
	}
	return gpu.Check(dev, "debug blit")
}
