package shaders

import (
	"embed"
	"fmt"

	"deferred-shadows/internal/gpu"
)

//go:embed glsl/*
var sources embed.FS

const (
	glslVersion  = "#version 410 core\n"
	shadowDefine = "#define SHADOW\n"
)

var (
	lightSamplers = map[string]int32{
		"PositionMap": PositionUnit,
		"DiffuseMap":  DiffuseUnit,
		"NormalMap":   NormalUnit,
	}
	lightShadowSamplers = map[string]int32{
		"PositionMap": PositionUnit,
		"DiffuseMap":  DiffuseUnit,
		"NormalMap":   NormalUnit,
		"ShadowMap":   ShadowUnit,
	}
)

// passSpec lists the programs of one pass and the uniforms each variant
// must expose to be considered ready.
type passSpec struct {
	name     string
	vertex   string
	fragment string
	plain    variant
	shadow   *variant
}

var passes = []passSpec{
	{
		name:     "depth",
		vertex:   "depth.vert",
		fragment: "depth.frag",
		plain:    variant{uniforms: []string{"ModelView", "Projection", "ShadowFar", "DepthBias"}},
	},
	{
		name:     "geometry",
		vertex:   "geometry.vert",
		fragment: "geometry.frag",
		plain: variant{
			uniforms: []string{"ModelView", "Projection", "NormalTrans", "Albedo", "UseTexture"},
			samplers: map[string]int32{"AlbedoMap": AlbedoUnit},
		},
	},
	{
		name:     "point",
		vertex:   "light.vert",
		fragment: "point.frag",
		plain: variant{
			uniforms: []string{"ModelView", "Projection", "ScreenSize", "LightPos", "Radiance",
				"AmbientIntensity", "DiffuseIntensity", "Attenuation"},
			samplers: lightSamplers,
		},
		shadow: &variant{
			uniforms: []string{"ModelView", "Projection", "ScreenSize", "LightPos", "Radiance",
				"AmbientIntensity", "DiffuseIntensity", "Attenuation", "ShadowFar"},
			samplers: lightShadowSamplers,
		},
	},
	{
		name:     "directional",
		vertex:   "light.vert",
		fragment: "directional.frag",
		plain: variant{
			uniforms: []string{"ModelView", "Projection", "ScreenSize", "LightDir", "Radiance",
				"AmbientIntensity", "DiffuseIntensity"},
			samplers: lightSamplers,
		},
		shadow: &variant{
			uniforms: []string{"ModelView", "Projection", "ScreenSize", "LightDir", "Radiance",
				"AmbientIntensity", "DiffuseIntensity", "ShadowView", "ShadowProj", "ShadowFar"},
			samplers: lightShadowSamplers,
		},
	},
}

// Manager compiles every pass program up front and serves them as a
// Provider.
type Manager struct {
	dev    gpu.Device
	passes map[string]*Pass
}

var _ Provider = (*Manager)(nil)

// NewManager builds all programs. Any compile or link failure releases what
// was built and is returned wrapped in gpu.ErrShaderBuild.
func NewManager(dev gpu.Device) (*Manager, error) {
	m := &Manager{dev: dev, passes: make(map[string]*Pass)}
	for _, spec := range passes {
		p, err := m.buildPass(spec)
		if err != nil {
			m.Destroy()
			return nil, err
		}
		m.passes[spec.name] = p
	}
	return m, nil
}

func (m *Manager) buildPass(spec passSpec) (*Pass, error) {
	vert, err := sources.ReadFile("glsl/" + spec.vertex)
	if err != nil {
		return nil, fmt.Errorf("%s pass: %w", spec.name, err)
	}
	frag, err := sources.ReadFile("glsl/" + spec.fragment)
	if err != nil {
		return nil, fmt.Errorf("%s pass: %w", spec.name, err)
	}

	p := newPass(m.dev, spec.name)
	if err := p.build(false, glslVersion+string(vert), glslVersion+string(frag), spec.plain); err != nil {
		p.destroy()
		return nil, err
	}
	if spec.shadow != nil {
		err := p.build(true, glslVersion+shadowDefine+string(vert), glslVersion+shadowDefine+string(frag), *spec.shadow)
		if err != nil {
			p.destroy()
			return nil, err
		}
	}
	return p, nil
}

func (m *Manager) Depth() Shader            { return m.pass("depth") }
func (m *Manager) Geometry() Shader         { return m.pass("geometry") }
func (m *Manager) PointLight() Shader       { return m.pass("point") }
func (m *Manager) DirectionalLight() Shader { return m.pass("directional") }

// A destroyed manager hands out nil passes, which report not ready.
func (m *Manager) pass(name string) Shader {
	return m.passes[name]
}

// Destroy deletes every program.
func (m *Manager) Destroy() {
	for name, p := range m.passes {
		p.destroy()
		delete(m.passes, name)
	}
}
