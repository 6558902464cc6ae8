package shaders

import (
	"fmt"

	"deferred-shadows/internal/gpu"
)

type setter func(p *Program, name string, u *Uniforms)

var setters = map[string]setter{
	"ModelView":        func(p *Program, n string, u *Uniforms) { p.SetMatrix4(n, u.ModelView) },
	"Projection":       func(p *Program, n string, u *Uniforms) { p.SetMatrix4(n, u.Projection) },
	"NormalTrans":      func(p *Program, n string, u *Uniforms) { p.SetMatrix4(n, u.NormalTrans) },
	"Albedo":           func(p *Program, n string, u *Uniforms) { p.SetVector3(n, u.Albedo) },
	"UseTexture":       func(p *Program, n string, u *Uniforms) { p.SetBool(n, u.UseTexture) },
	"LightPos":         func(p *Program, n string, u *Uniforms) { p.SetVector3(n, u.LightPos) },
	"LightDir":         func(p *Program, n string, u *Uniforms) { p.SetVector3(n, u.LightDir) },
	"Radiance":         func(p *Program, n string, u *Uniforms) { p.SetVector3(n, u.Radiance) },
	"AmbientIntensity": func(p *Program, n string, u *Uniforms) { p.SetFloat(n, u.AmbientIntensity) },
	"DiffuseIntensity": func(p *Program, n string, u *Uniforms) { p.SetFloat(n, u.DiffuseIntensity) },
	"Attenuation":      func(p *Program, n string, u *Uniforms) { p.SetVector3(n, u.Attenuation) },
	"ScreenSize":       func(p *Program, n string, u *Uniforms) { p.SetVector2(n, u.ScreenSize) },
	"ShadowView":       func(p *Program, n string, u *Uniforms) { p.SetMatrix4(n, u.ShadowView) },
	"ShadowProj":       func(p *Program, n string, u *Uniforms) { p.SetMatrix4(n, u.ShadowProj) },
	"ShadowFar":        func(p *Program, n string, u *Uniforms) { p.SetFloat(n, u.ShadowFar) },
	"DepthBias":        func(p *Program, n string, u *Uniforms) { p.SetFloat(n, u.DepthBias) },
}

// variant describes one compiled flavour of a pass.
type variant struct {
	uniforms []string
	samplers map[string]int32
}

// Pass is a Shader built from up to two variants: index 0 is the plain
// program, index 1 samples a shadow map.
type Pass struct {
	name     string
	dev      gpu.Device
	programs [2]*Program
	layout   [2]variant
	ready    [2]bool
}

var _ Shader = (*Pass)(nil)

func newPass(dev gpu.Device, name string) *Pass {
	return &Pass{name: name, dev: dev}
}

// build compiles one variant. A program that links but lacks a declared
// uniform is kept but reported as not ready.
func (p *Pass) build(shadow bool, vertexSrc, fragmentSrc string, v variant) error {
	i := idx(shadow)
	prog, err := NewProgram(p.dev, vertexSrc, fragmentSrc)
	if err != nil {
		return fmt.Errorf("%s pass (shadow=%t): %w", p.name, shadow, err)
	}
	p.programs[i] = prog
	p.layout[i] = v

	names := append([]string(nil), v.uniforms...)
	for s := range v.samplers {
		names = append(names, s)
	}
	if missing := prog.Missing(names); len(missing) > 0 {
		return fmt.Errorf("%s pass (shadow=%t): uniforms %v not found: %w", p.name, shadow, missing, gpu.ErrShaderBuild)
	}
	p.ready[i] = true
	return nil
}

func (p *Pass) Name() string {
	if p == nil {
		return "missing"
	}
	return p.name
}

func (p *Pass) IsReady(shadow bool) bool {
	return p != nil && p.ready[idx(shadow)]
}

// Bind makes the variant current and points its samplers at their units.
func (p *Pass) Bind(shadow bool) error {
	if !p.IsReady(shadow) {
		return fmt.Errorf("%s pass (shadow=%t): %w", p.Name(), shadow, ErrNotReady)
	}
	i := idx(shadow)
	prog := p.programs[i]
	prog.Use()
	for name, unit := range p.layout[i].samplers {
		prog.SetInt(name, unit)
	}
	return gpu.Check(p.dev, p.name+" bind")
}

func (p *Pass) SetUniforms(u *Uniforms, shadow bool) error {
	if !p.IsReady(shadow) {
		return fmt.Errorf("%s pass (shadow=%t): %w", p.Name(), shadow, ErrNotReady)
	}
	i := idx(shadow)
	prog := p.programs[i]
	for _, name := range p.layout[i].uniforms {
		setters[name](prog, name, u)
	}
	return gpu.Check(p.dev, p.name+" uniforms")
}

func (p *Pass) Unbind() {
	if p == nil {
		return
	}
	p.dev.UseProgram(0)
}

func (p *Pass) destroy() {
	for i := range p.programs {
		p.programs[i].Delete()
		p.programs[i] = nil
		p.ready[i] = false
	}
}

func idx(shadow bool) int {
	if shadow {
		return 1
	}
	return 0
}
