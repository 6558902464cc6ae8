package shaders

import (
	"fmt"

	"deferred-shadows/internal/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// Program is a linked GPU program with a uniform location cache.
type Program struct {
	dev       gpu.Device
	ID        gpu.Program
	locations map[string]int32
}

// NewProgram compiles and links a program from vertex and fragment source.
func NewProgram(dev gpu.Device, vertexSrc, fragmentSrc string) (*Program, error) {
	id, err := dev.NewProgram(vertexSrc, fragmentSrc)
	if err != nil {
		return nil, err
	}
	return &Program{dev: dev, ID: id, locations: make(map[string]int32)}, nil
}

// Use activates the program
func (p *Program) Use() {
	p.dev.UseProgram(p.ID)
}

// Location returns the uniform location of name, or -1 if the program does
// not use it.
func (p *Program) Location(name string) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	loc := p.dev.UniformLocation(p.ID, name)
	p.locations[name] = loc
	return loc
}

// SetBool sets a boolean uniform
func (p *Program) SetBool(name string, value bool) {
	var v int32
	if value {
		v = 1
	}
	p.dev.UniformInt(p.Location(name), v)
}

// SetInt sets an integer uniform
func (p *Program) SetInt(name string, value int32) {
	p.dev.UniformInt(p.Location(name), value)
}

// SetFloat sets a float uniform
func (p *Program) SetFloat(name string, value float32) {
	p.dev.UniformFloat(p.Location(name), value)
}

func (p *Program) SetVector2(name string, v mgl32.Vec2) {
	p.dev.UniformVec2(p.Location(name), v)
}

// SetVector3 sets a vector3 uniform
func (p *Program) SetVector3(name string, v mgl32.Vec3) {
	p.dev.UniformVec3(p.Location(name), v)
}

// SetMatrix4 sets a 4x4 matrix uniform
func (p *Program) SetMatrix4(name string, m mgl32.Mat4) {
	p.dev.UniformMat4(p.Location(name), m)
}

// Missing returns the names that the linked program does not expose.
func (p *Program) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if p.Location(n) < 0 {
			out = append(out, n)
		}
	}
	return out
}

func (p *Program) Delete() {
	if p == nil || p.ID == 0 {
		return
	}
	p.dev.DeleteProgram(p.ID)
	p.ID = 0
}

func (p *Program) String() string {
	return fmt.Sprintf("program %d", p.ID)
}
