// Package reference renders the same frame as the GPU pipeline on the CPU.
//
// The G-buffer and every shadow map are produced by ray casting instead of
// rasterisation, and the light passes evaluate the same equations and
// constants as the GLSL programs. It needs CPU geometry, so objects must be
// backed by a *mesh.Mesh (uploaded or detached). Results are meant for
// headless verification and for inspecting a scene without a GPU; texture
// maps are not sampled.
package reference

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/gbuffer"
	"deferred-shadows/internal/light"
	"deferred-shadows/internal/pipeline"
	"deferred-shadows/internal/shadow"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Specular constants of the light programs.
const (
	PointSpecularIntensity       = 0.10
	PointSpecularPower           = 0.10
	DirectionalSpecularIntensity = 0.70
	DirectionalSpecularPower     = 0.90
)

var ErrInvalidSize = errors.New("reference: invalid frame size")

type Options struct {
	Width, Height    int
	ShadowResolution int
	ShadowsEnabled   bool
}

// Renderer produces Frames. It holds no state between frames.
type Renderer struct {
	opts Options
}

func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("reference: size %dx%d: %w", opts.Width, opts.Height, ErrInvalidSize)
	}
	if opts.ShadowResolution <= 0 {
		opts.ShadowResolution = shadow.DefaultResolution
	}
	return &Renderer{opts: opts}, nil
}

// Contribution is one light's share of a pixel, before the albedo is
// applied. Diffuse and Specular already include shadow visibility and
// every term is divided by the point light attenuation.
type Contribution struct {
	Ambient    mgl32.Vec3
	Diffuse    mgl32.Vec3
	Specular   mgl32.Vec3
	Visibility float32
	// Covered is false for pixels outside the light volume.
	Covered bool
}

func (c Contribution) Sum() mgl32.Vec3 { return c.Ambient.Add(c.Diffuse).Add(c.Specular) }

// Frame is one rendered frame. Pixel (x, y) is at index y*Width+x with row
// 0 at the bottom, as in the GPU framebuffers.
type Frame struct {
	Width, Height int
	GBuffer       [gbuffer.NumTextures][]mgl32.Vec3
	Color         []mgl32.Vec3
	// Shadows holds the depth map of every shadowed light.
	Shadows map[uuid.UUID]*DepthMap

	LightsDrawn   int
	LightsSkipped int

	view    mgl32.Mat4
	proj    mgl32.Mat4
	invProj mgl32.Mat4
}

// Render runs the shadow, geometry and light stages for ctx.
func (r *Renderer) Render(ctx *pipeline.Context) (*Frame, error) {
	if ctx == nil || ctx.Camera == nil || ctx.Lights == nil {
		return nil, errors.New("reference: context needs a camera and a light registry")
	}
	w, h := r.opts.Width, r.opts.Height
	f := &Frame{
		Width:   w,
		Height:  h,
		Color:   make([]mgl32.Vec3, w*h),
		Shadows: make(map[uuid.UUID]*DepthMap),
		view:    ctx.Camera.View(),
		proj:    ctx.Camera.Projection(),
		invProj: ctx.Camera.Projection().Inv(),
	}

	if r.opts.ShadowsEnabled {
		for _, l := range ctx.Lights.All() {
			if !l.WantsShadow() {
				continue
			}
			dm, err := renderDepth(l, ctx.Objects, f.view, r.opts.ShadowResolution)
			if err != nil {
				return nil, fmt.Errorf("reference: shadow: %w", err)
			}
			f.Shadows[l.ID()] = dm
		}
	}

	if err := f.geometry(ctx); err != nil {
		return nil, fmt.Errorf("reference: geometry: %w", err)
	}

	for _, l := range ctx.Lights.All() {
		switch l.Type() {
		case light.Point, light.Directional:
		default:
			f.LightsSkipped++
			continue
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := f.Contribution(l, x, y)
				if !c.Covered {
					continue
				}
				i := y*w + x
				f.Color[i] = f.Color[i].Add(mul(f.GBuffer[gbuffer.Diffuse][i], c.Sum()))
			}
		}
		f.LightsDrawn++
	}
	return f, nil
}

func (f *Frame) geometry(ctx *pipeline.Context) error {
	tris, err := buildSoup(ctx.Objects, f.view)
	if err != nil {
		return err
	}
	n := f.Width * f.Height
	for t := range f.GBuffer {
		f.GBuffer[t] = make([]mgl32.Vec3, n)
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			hit := tris.Cast(pixelRay(f.invProj, x, y, f.Width, f.Height), FrontFaces)
			if !hit.Hit {
				continue
			}
			i := y*f.Width + x
			f.GBuffer[gbuffer.Position][i] = hit.Position
			f.GBuffer[gbuffer.Diffuse][i] = hit.Albedo
			f.GBuffer[gbuffer.Normal][i] = hit.Normal
			f.GBuffer[gbuffer.TexCoord][i] = mgl32.Vec3{hit.TexCoord[0], hit.TexCoord[1], 0}
		}
	}
	return nil
}

// Contribution evaluates light l at pixel (x, y). Empty pixels and spot
// lights contribute nothing.
func (f *Frame) Contribution(l *light.Light, x, y int) Contribution {
	i := y*f.Width + x
	normal := f.GBuffer[gbuffer.Normal][i]
	if normal.Dot(normal) < 1e-8 {
		return Contribution{}
	}
	normal = normal.Normalize()
	pos := f.GBuffer[gbuffer.Position][i]

	switch l.Type() {
	case light.Point:
		lightPos := mgl32.TransformCoordinate(l.Position(), f.view)
		if !f.inVolume(x, y, lightPos, l.EffectiveRadius()) {
			return Contribution{}
		}
		return f.point(l, pos, normal, lightPos)
	case light.Directional:
		return f.directional(l, pos, normal)
	}
	return Contribution{}
}

// inVolume reports whether the back face of the light's proxy sphere
// covers pixel (x, y) between the clip planes.
func (f *Frame) inVolume(x, y int, center mgl32.Vec3, radius float32) bool {
	ray := pixelRay(f.invProj, x, y, f.Width, f.Height)
	oc := ray.Origin.Sub(center)
	a := ray.Dir.Dot(ray.Dir)
	b := 2 * oc.Dot(ray.Dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - 4*a*c
	if disc < 0 {
		return false
	}
	far := (-b + math32.Sqrt(disc)) / (2 * a)
	return far >= 0 && far <= 1
}

func (f *Frame) visibility(l *light.Light, pos, lightPos mgl32.Vec3) float32 {
	dm, ok := f.Shadows[l.ID()]
	if !ok {
		return 1
	}
	return dm.Visibility(pos, lightPos)
}

func (f *Frame) point(l *light.Light, pos, normal, lightPos mgl32.Vec3) Contribution {
	toLight := lightPos.Sub(pos)
	dist := toLight.Len()
	dir := toLight.Mul(1 / math32.Max(dist, 1e-6))

	c := Contribution{Covered: true, Visibility: f.visibility(l, pos, lightPos)}
	rad := l.Radiance()
	c.Ambient = rad.Mul(l.AmbientIntensity())
	if ndl := normal.Dot(dir); ndl > 0 {
		c.Diffuse = rad.Mul(l.DiffuseIntensity() * ndl * c.Visibility)
		s := math32.Max(pos.Mul(-1).Normalize().Dot(reflect(dir.Mul(-1), normal).Normalize()), 0)
		if s > 0 {
			c.Specular = rad.Mul(PointSpecularIntensity * math32.Pow(s, PointSpecularPower) * c.Visibility)
		}
	}

	att, _ := l.Attenuation()
	k := 1 / math32.Max(1, att.At(dist))
	c.Ambient = c.Ambient.Mul(k)
	c.Diffuse = c.Diffuse.Mul(k)
	c.Specular = c.Specular.Mul(k)
	return c
}

func (f *Frame) directional(l *light.Light, pos, normal mgl32.Vec3) Contribution {
	dir := mgl32.TransformNormal(l.Direction(), f.view).Normalize()

	c := Contribution{Covered: true, Visibility: f.visibility(l, pos, mgl32.Vec3{})}
	rad := l.Radiance()
	c.Ambient = rad.Mul(l.AmbientIntensity())
	if ndl := normal.Dot(dir.Mul(-1)); ndl > 0 {
		c.Diffuse = rad.Mul(l.DiffuseIntensity() * ndl * c.Visibility)
		s := math32.Max(pos.Mul(-1).Normalize().Dot(reflect(dir, normal).Normalize()), 0)
		if s > 0 {
			c.Specular = rad.Mul(DirectionalSpecularIntensity * math32.Pow(s, DirectionalSpecularPower) * c.Visibility)
		}
	}
	return c
}

// reflect mirrors GLSL reflect: i - 2·dot(n, i)·n.
func reflect(i, n mgl32.Vec3) mgl32.Vec3 {
	return i.Sub(n.Mul(2 * n.Dot(i)))
}

func mul(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
