package mesh

import (
	"errors"
	"fmt"

	"deferred-shadows/internal/gpu"
	"deferred-shadows/internal/scene"
)

var ErrNotUploaded = errors.New("mesh: no GPU copy")

// Mesh is geometry with an optional GPU copy. It is shared, read-only
// geometry for any number of scene objects and must outlive them.
type Mesh struct {
	name     string
	geometry *Geometry

	dev   gpu.Device
	va    gpu.VertexArray
	count int
}

var _ scene.Renderable = (*Mesh)(nil)

// Upload validates g and copies it into a vertex array on dev.
func Upload(dev gpu.Device, name string, g *Geometry) (*Mesh, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	va, err := dev.NewVertexArray(Layout, g.Interleave(), g.Indices)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	m := &Mesh{name: name, geometry: g, dev: dev, va: va, count: len(g.Indices)}
	if err := gpu.Check(dev, "upload "+name); err != nil {
		m.Destroy()
		return nil, err
	}
	return m, nil
}

// Detached wraps g without a GPU copy, for CPU-side consumers such as the
// reference renderer. Rasterize fails.
func Detached(name string, g *Geometry) *Mesh {
	return &Mesh{name: name, geometry: g}
}

func (m *Mesh) Name() string        { return m.name }
func (m *Mesh) Geometry() *Geometry { return m.geometry }
func (m *Mesh) Uploaded() bool      { return m.va != 0 }

// Rasterize draws the whole index list with the bound program.
func (m *Mesh) Rasterize() error {
	if m.va == 0 {
		return fmt.Errorf("%s: %w", m.name, ErrNotUploaded)
	}
	m.dev.DrawIndexed(m.va, m.count)
	return nil
}

// Destroy releases the GPU copy. The CPU geometry stays usable.
func (m *Mesh) Destroy() {
	if m.va != 0 {
		m.dev.DeleteVertexArray(m.va)
		m.va = 0
	}
}

// Library owns the meshes a scene shares between its objects.
type Library struct {
	meshes map[string]*Mesh
	order  []string
}

func NewLibrary() *Library {
	return &Library{meshes: make(map[string]*Mesh)}
}

// Add uploads g under name, replacing any previous mesh of that name.
func (l *Library) Add(dev gpu.Device, name string, g *Geometry) (*Mesh, error) {
	m, err := Upload(dev, name, g)
	if err != nil {
		return nil, err
	}
	l.put(m)
	return m, nil
}

// AddDetached stores a CPU-only mesh.
func (l *Library) AddDetached(name string, g *Geometry) *Mesh {
	m := Detached(name, g)
	l.put(m)
	return m
}

func (l *Library) put(m *Mesh) {
	if old, ok := l.meshes[m.name]; ok {
		old.Destroy()
	} else {
		l.order = append(l.order, m.name)
	}
	l.meshes[m.name] = m
}

func (l *Library) Get(name string) (*Mesh, bool) {
	m, ok := l.meshes[name]
	return m, ok
}

// Destroy releases every mesh. Objects referencing them must be gone.
func (l *Library) Destroy() {
	for _, name := range l.order {
		l.meshes[name].Destroy()
	}
	l.meshes = make(map[string]*Mesh)
	l.order = nil
}
