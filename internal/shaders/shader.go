// Package shaders owns the GLSL programs used by the renderer and exposes
// them as Shader handles. Callers never see shader source; they ask a
// Provider for a pass, check IsReady and push a Uniforms bundle.
package shaders

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// Texture units shared between the passes and the code that binds them.
// The G-buffer attachments occupy units 0..3 in attachment order.
const (
	PositionUnit = 0
	DiffuseUnit  = 1
	NormalUnit   = 2
	TexCoordUnit = 3
	ShadowUnit   = 4

	// AlbedoUnit is the material texture sampled by the geometry pass.
	AlbedoUnit = 0
)

var ErrNotReady = errors.New("shaders: program not ready")

// Uniforms is the per-draw uniform bundle. Each pass reads only the fields
// its program declares.
type Uniforms struct {
	ModelView   mgl32.Mat4
	Projection  mgl32.Mat4
	NormalTrans mgl32.Mat4

	Albedo     mgl32.Vec3
	UseTexture bool

	// Light parameters, in main-camera view space.
	LightPos         mgl32.Vec3
	LightDir         mgl32.Vec3
	Radiance         mgl32.Vec3
	AmbientIntensity float32
	DiffuseIntensity float32
	Attenuation      mgl32.Vec3
	ScreenSize       mgl32.Vec2

	ShadowView mgl32.Mat4
	ShadowProj mgl32.Mat4
	ShadowFar  float32
	DepthBias  float32
}

// Shader is a render pass program, optionally with a shadow-sampling variant.
type Shader interface {
	IsReady(shadow bool) bool
	Bind(shadow bool) error
	SetUniforms(u *Uniforms, shadow bool) error
	Unbind()
}

// Provider hands out the programs of each pipeline stage.
type Provider interface {
	Depth() Shader
	Geometry() Shader
	PointLight() Shader
	DirectionalLight() Shader
}
